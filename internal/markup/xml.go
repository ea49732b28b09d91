package markup

import (
	"fmt"
	"io"

	"github.com/antchfx/xmlquery"
)

// ParseXML parses an XML (or XHTML) document with xmlquery and adapts its
// root elements. CDATA becomes text; declarations, comments and processing
// instructions are dropped. Attribute names keep their local part only.
func ParseXML(r io.Reader) ([]Node, error) {
	root, err := xmlquery.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("parse xml: %w", err)
	}
	return fromXML(root), nil
}

func fromXML(n *xmlquery.Node) []Node {
	switch n.Type {
	case xmlquery.TextNode, xmlquery.CharDataNode:
		return []Node{&Text{Value: n.Data}}
	case xmlquery.ElementNode:
		el := &Element{Tag: n.Data}
		for _, a := range n.Attr {
			if a.Name.Space == "xmlns" || a.Name.Local == "xmlns" {
				continue
			}
			el.Attrs = append(el.Attrs, Attr{Key: a.Name.Local, Val: a.Value})
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			el.Children = append(el.Children, fromXML(c)...)
		}
		return []Node{el}
	case xmlquery.DocumentNode:
		var out []Node
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			out = append(out, fromXML(c)...)
		}
		return out
	}
	return nil
}
