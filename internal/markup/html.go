package markup

import (
	"bytes"
	"fmt"
	"io"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// ParseHTML parses an HTML fragment in a <body> context. Empty input yields
// an empty sequence.
func ParseHTML(r io.Reader) ([]Node, error) {
	body := &html.Node{Type: html.ElementNode, Data: "body", DataAtom: atom.Body}
	nodes, err := html.ParseFragment(r, body)
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}
	out := make([]Node, 0, len(nodes))
	for _, n := range nodes {
		out = append(out, FromHTML(n)...)
	}
	return out, nil
}

// ParseHTMLString is ParseHTML over a string.
func ParseHTMLString(s string) ([]Node, error) {
	return ParseHTML(strings.NewReader(s))
}

// BodyNodes adapts the contents of a parsed document's <body>, or of the
// whole document when it has none.
func BodyNodes(doc *html.Node) []Node {
	root := findBody(doc)
	if root == nil {
		root = doc
	}
	var out []Node
	for c := root.FirstChild; c != nil; c = c.NextSibling {
		out = append(out, FromHTML(c)...)
	}
	return out
}

// FromHTML adapts an x/net/html node. Document nodes contribute their
// children; comments and doctypes are dropped.
func FromHTML(n *html.Node) []Node {
	switch n.Type {
	case html.TextNode:
		return []Node{&Text{Value: n.Data}}
	case html.ElementNode:
		el := &Element{Tag: n.Data}
		if len(n.Attr) > 0 {
			el.Attrs = make([]Attr, 0, len(n.Attr))
			for _, a := range n.Attr {
				key := a.Key
				if a.Namespace != "" {
					key = a.Namespace + ":" + a.Key
				}
				el.Attrs = append(el.Attrs, Attr{Key: key, Val: a.Val})
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			el.Children = append(el.Children, FromHTML(c)...)
		}
		return []Node{el}
	case html.DocumentNode:
		var out []Node
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			out = append(out, FromHTML(c)...)
		}
		return out
	}
	return nil
}

// ToHTML builds a detached x/net/html tree for the node.
func ToHTML(n Node) *html.Node {
	switch n := n.(type) {
	case *Text:
		return &html.Node{Type: html.TextNode, Data: n.Value}
	case *Element:
		hn := &html.Node{
			Type:     html.ElementNode,
			Data:     n.Tag,
			DataAtom: atom.Lookup([]byte(n.Tag)),
		}
		for _, a := range n.Attrs {
			hn.Attr = append(hn.Attr, html.Attribute{Key: a.Key, Val: a.Val})
		}
		for _, c := range n.Children {
			if child := ToHTML(c); child != nil {
				hn.AppendChild(child)
			}
		}
		return hn
	}
	return nil
}

// RenderHTML prints nodes in order. Text is escaped by the printer.
func RenderHTML(w io.Writer, nodes []Node) error {
	for _, n := range nodes {
		hn := ToHTML(n)
		if hn == nil {
			continue
		}
		if err := html.Render(w, hn); err != nil {
			return fmt.Errorf("render html: %w", err)
		}
	}
	return nil
}

// RenderHTMLString prints nodes to a string.
func RenderHTMLString(nodes []Node) (string, error) {
	var buf bytes.Buffer
	if err := RenderHTML(&buf, nodes); err != nil {
		return "", err
	}
	return buf.String(), nil
}

func findBody(n *html.Node) *html.Node {
	if n.Type == html.ElementNode && n.Data == "body" {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if b := findBody(c); b != nil {
			return b
		}
	}
	return nil
}
