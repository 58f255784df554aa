package receiver

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/emersion/go-message"
	_ "github.com/emersion/go-message/charset"
	"github.com/emersion/go-message/mail"

	"github.com/priscillayouziqian/gmail-attachment-printer/internal/extract"
)

// ParseRaw converts an RFC 5322 message into an Email. Multipart entities
// become containers; every other entity becomes a leaf holding its decoded
// content. When id is empty the Message-ID header is used, falling back to a
// content hash.
func ParseRaw(id string, raw []byte) (Email, error) {
	entity, err := message.Read(bytes.NewReader(raw))
	if err != nil && !tolerable(err) {
		return Email{}, fmt.Errorf("parse message: %w", err)
	}

	h := mail.Header{Header: entity.Header}
	email := Email{ID: id}
	email.Subject, _ = h.Subject()
	email.From, _ = h.Text("From")
	email.Date, _ = h.Date()

	if email.ID == "" {
		email.ID, _ = h.MessageID()
	}
	if email.ID == "" {
		sum := sha256.Sum256(raw)
		email.ID = hashIDPrefix + hex.EncodeToString(sum[:])
	}

	root, attachments := partTree(entity)
	if root.Kind == extract.KindContainer {
		email.Parts = root.Children
	} else {
		email.Parts = []extract.PartNode{root}
	}
	email.Attachments = attachments
	return email, nil
}

const hashIDPrefix = "sha256-"

// isHashID reports whether id was derived from content because the message
// had no Message-ID.
func isHashID(id string) bool {
	return strings.HasPrefix(id, hashIDPrefix)
}

// tolerable reports errors after which go-message still returns a usable
// entity with undecoded content.
func tolerable(err error) bool {
	return message.IsUnknownCharset(err) || message.IsUnknownEncoding(err)
}

func partTree(e *message.Entity) (extract.PartNode, []Attachment) {
	if mr := e.MultipartReader(); mr != nil {
		node := extract.PartNode{Kind: extract.KindContainer}
		var attachments []Attachment
		for {
			part, err := mr.NextPart()
			if errors.Is(err, io.EOF) {
				break
			}
			if err != nil && !tolerable(err) {
				// Truncated multipart: keep the parts read so far.
				break
			}
			child, childAttachments := partTree(part)
			node.Children = append(node.Children, child)
			attachments = append(attachments, childAttachments...)
		}
		return node, attachments
	}

	body, err := io.ReadAll(e.Body)
	if err != nil {
		return extract.PartNode{Kind: extract.KindOther}, nil
	}

	mediaType, _, _ := e.Header.ContentType()
	if mediaType == "" {
		mediaType = "text/plain"
	}

	if filename, ok := attachmentName(e); ok {
		att := Attachment{Filename: filename, MIMEType: mediaType, Data: body}
		return extract.Leaf(extract.KindOther, extract.EncodeLeaf(body)), []Attachment{att}
	}

	kind := extract.KindOther
	switch strings.ToLower(mediaType) {
	case "text/plain":
		kind = extract.KindPlainText
	case "text/html":
		kind = extract.KindHTML
	}
	return extract.Leaf(kind, extract.EncodeLeaf(body)), nil
}

// attachmentName reports whether e is an attachment and its file name.
func attachmentName(e *message.Entity) (string, bool) {
	disp, _, _ := e.Header.ContentDisposition()
	ah := mail.AttachmentHeader{Header: e.Header}
	filename, _ := ah.Filename()

	switch {
	case strings.EqualFold(disp, "attachment"):
		if filename == "" {
			filename = "attachment"
		}
		return filename, true
	case filename != "":
		return filename, true
	default:
		return "", false
	}
}
