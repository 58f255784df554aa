package extract

import (
	"encoding/base64"
	"strings"
)

var urlSafeReplacer = strings.NewReplacer("-", "+", "_", "/")

// DecodeLeaf decodes a URL-safe base64 payload into UTF-8 text. Padding is
// optional but only accepted at the end, and line breaks are ignored.
// Malformed input, including concatenated padded chunks or other
// whitespace, yields "".
func DecodeLeaf(payload string) string {
	std := urlSafeReplacer.Replace(payload)
	std = strings.Map(func(r rune) rune {
		if r == '\r' || r == '\n' {
			return -1
		}
		return r
	}, std)
	std = strings.TrimRight(std, "=")

	raw, err := base64.RawStdEncoding.DecodeString(std)
	if err != nil {
		return ""
	}
	return strings.ToValidUTF8(string(raw), "�")
}

// EncodeLeaf is the inverse of DecodeLeaf, used by receivers that build part
// trees from already-decoded MIME content.
func EncodeLeaf(content []byte) string {
	return base64.URLEncoding.EncodeToString(content)
}
