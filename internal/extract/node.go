// Package extract recovers a canonical text body and the media links it
// references from a message's body-part tree.
package extract

// ContentKind classifies a node of a body-part tree.
type ContentKind int

const (
	KindOther ContentKind = iota
	KindPlainText
	KindHTML
	KindContainer
)

func (k ContentKind) String() string {
	switch k {
	case KindPlainText:
		return "plain-text"
	case KindHTML:
		return "html"
	case KindContainer:
		return "container"
	default:
		return "other-leaf"
	}
}

// PartNode is one node of a message body-part tree. A leaf carries an
// encoded Payload and no Children; a container carries Children and no
// Payload.
type PartNode struct {
	Kind     ContentKind
	Payload  string // URL-safe base64
	Children []PartNode
}

type shape int

const (
	shapeMalformed shape = iota
	shapeLeaf
	shapeContainer
)

// shape reports how a node is traversed. Nodes that violate the
// leaf/container exclusivity are malformed and behave like an empty
// container.
func (n PartNode) shape() shape {
	hasPayload := n.Payload != ""
	hasChildren := len(n.Children) > 0
	switch {
	case n.Kind == KindContainer && hasChildren && !hasPayload:
		return shapeContainer
	case n.Kind != KindContainer && hasPayload && !hasChildren:
		return shapeLeaf
	default:
		return shapeMalformed
	}
}

// Leaf builds a leaf node.
func Leaf(kind ContentKind, payload string) PartNode {
	return PartNode{Kind: kind, Payload: payload}
}

// Container builds a container node.
func Container(children ...PartNode) PartNode {
	return PartNode{Kind: KindContainer, Children: children}
}
