// Package markup is a read-only view over an already-parsed markup tree,
// plus adapters from concrete parsers (HTML, markdown, XML) and the HTML
// printer used on the way out.
package markup

// Node is one of *Element or *Text.
type Node interface {
	markup()
}

// Attr is a single attribute. Order is preserved so printing is deterministic.
type Attr struct {
	Key string
	Val string
}

// Element is a tagged markup element.
type Element struct {
	Tag      string
	Attrs    []Attr
	Children []Node
}

// Text is a markup text leaf.
type Text struct {
	Value string
}

func (*Element) markup() {}
func (*Text) markup()    {}

// NewElement builds an Element without attributes.
func NewElement(tag string, children ...Node) *Element {
	return &Element{Tag: tag, Children: children}
}

// NewText builds a Text leaf.
func NewText(value string) *Text {
	return &Text{Value: value}
}

// Attr looks up an attribute by key.
func (e *Element) Attr(key string) (string, bool) {
	for _, a := range e.Attrs {
		if a.Key == key {
			return a.Val, true
		}
	}
	return "", false
}

// FirstElement returns the first element child, skipping text.
func (e *Element) FirstElement() *Element {
	for _, c := range e.Children {
		if el, ok := c.(*Element); ok {
			return el
		}
	}
	return nil
}

// TextContent concatenates every text leaf under the given nodes.
func TextContent(nodes []Node) string {
	var buf []byte
	var walk func([]Node)
	walk = func(nodes []Node) {
		for _, n := range nodes {
			switch n := n.(type) {
			case *Text:
				buf = append(buf, n.Value...)
			case *Element:
				walk(n.Children)
			}
		}
	}
	walk(nodes)
	return string(buf)
}

// Fragment is one already-serialized child handed to a serialize rule:
// either raw text that still needs escaping, or finished markup.
type Fragment struct {
	raw  string
	node Node
}

// RawText wraps literal text.
func RawText(s string) Fragment {
	return Fragment{raw: s}
}

// Markup wraps a finished markup node.
func Markup(n Node) Fragment {
	return Fragment{node: n}
}

// IsRaw reports whether the fragment is raw text.
func (f Fragment) IsRaw() bool {
	return f.node == nil
}

// Text returns the raw text, or "" for a markup fragment.
func (f Fragment) Text() string {
	return f.raw
}

// Node returns the fragment as a markup node; raw text becomes a Text leaf.
func (f Fragment) Node() Node {
	if f.node == nil {
		return &Text{Value: f.raw}
	}
	return f.node
}

// Nodes converts fragments to markup nodes, in order.
func Nodes(frags []Fragment) []Node {
	out := make([]Node, 0, len(frags))
	for _, f := range frags {
		out = append(out, f.Node())
	}
	return out
}
