// Package doctree holds the rich-text document model: a tree of Block, Mark
// and Text nodes. Type strings are opaque and defined by the caller's rules.
package doctree

import "strings"

// Kind identifies which variant a Node is.
type Kind int

const (
	KindBlock Kind = iota + 1
	KindMark
	KindText
)

func (k Kind) String() string {
	switch k {
	case KindBlock:
		return "block"
	case KindMark:
		return "mark"
	case KindText:
		return "text"
	}
	return "unknown"
}

// Node is one of *Block, *Mark or *Text.
type Node interface {
	Kind() Kind
	node()
}

// Block is a structural node (paragraph, quote, list...).
type Block struct {
	Type     string
	Children []Node
}

// Mark is an inline formatting node (bold, italic...).
type Mark struct {
	Type     string
	Children []Node
}

// Text is a leaf holding literal text.
type Text struct {
	Value string
}

func (*Block) Kind() Kind { return KindBlock }
func (*Mark) Kind() Kind  { return KindMark }
func (*Text) Kind() Kind  { return KindText }

func (*Block) node() {}
func (*Mark) node()  {}
func (*Text) node()  {}

// NewBlock builds a Block.
func NewBlock(typ string, children ...Node) *Block {
	return &Block{Type: typ, Children: children}
}

// NewMark builds a Mark.
func NewMark(typ string, children ...Node) *Mark {
	return &Mark{Type: typ, Children: children}
}

// NewText builds a Text leaf.
func NewText(value string) *Text {
	return &Text{Value: value}
}

// TypeOf returns the type string of a Block or Mark, and "" for Text.
func TypeOf(n Node) string {
	switch n := n.(type) {
	case *Block:
		return n.Type
	case *Mark:
		return n.Type
	}
	return ""
}

// ChildrenOf returns the children of a Block or Mark. Text has none.
func ChildrenOf(n Node) []Node {
	switch n := n.(type) {
	case *Block:
		return n.Children
	case *Mark:
		return n.Children
	}
	return nil
}

// Equal reports whether a and b are structurally identical.
func Equal(a, b Node) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	if a.Kind() != b.Kind() {
		return false
	}
	if t, ok := a.(*Text); ok {
		return t.Value == b.(*Text).Value
	}
	if TypeOf(a) != TypeOf(b) {
		return false
	}
	return EqualNodes(ChildrenOf(a), ChildrenOf(b))
}

// EqualNodes compares two node sequences element by element.
func EqualNodes(a, b []Node) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !Equal(a[i], b[i]) {
			return false
		}
	}
	return true
}

// Walk visits nodes depth-first, pre-order. Returning false from fn skips
// the children of that node.
func Walk(nodes []Node, fn func(n Node, depth int) bool) {
	var walk func(nodes []Node, depth int)
	walk = func(nodes []Node, depth int) {
		for _, n := range nodes {
			if fn(n, depth) {
				walk(ChildrenOf(n), depth+1)
			}
		}
	}
	walk(nodes, 0)
}

// TextContent concatenates every Text leaf in document order.
func TextContent(nodes []Node) string {
	var sb strings.Builder
	Walk(nodes, func(n Node, _ int) bool {
		if t, ok := n.(*Text); ok {
			sb.WriteString(t.Value)
		}
		return true
	})
	return sb.String()
}

// Count returns the total number of nodes in the forest.
func Count(nodes []Node) int {
	total := 0
	Walk(nodes, func(Node, int) bool {
		total++
		return true
	})
	return total
}
