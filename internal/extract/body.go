package extract

import "strings"

type source int

const (
	sourceNone source = iota
	sourcePlain
	sourceHTML
)

// match is the tagged result of searching a run of sibling nodes.
type match struct {
	source source
	text   string
}

// SelectBody returns the canonical body of a part tree: the first non-blank
// plain-text leaf in depth-first sibling order, or else the last HTML leaf
// visited, or "".
func SelectBody(roots []PartNode) string {
	return selectFrom(roots).text
}

func selectFrom(nodes []PartNode) match {
	var fallback match
	for _, n := range nodes {
		switch n.shape() {
		case shapeLeaf:
			switch n.Kind {
			case KindPlainText:
				if text := DecodeLeaf(n.Payload); strings.TrimSpace(text) != "" {
					return match{source: sourcePlain, text: text}
				}
			case KindHTML:
				fallback = match{source: sourceHTML, text: DecodeLeaf(n.Payload)}
			}
		case shapeContainer:
			nested := selectFrom(n.Children)
			switch {
			case nested.source == sourcePlain:
				return nested
			case nested.source == sourceHTML && nested.text != "":
				fallback = nested
			}
		}
	}
	return fallback
}
