package markup

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
)

var markdown = goldmark.New(
	goldmark.WithExtensions(extension.GFM),
)

// ParseMarkdown renders markdown to HTML with goldmark and adapts the result.
// Whitespace between block elements is dropped.
func ParseMarkdown(src []byte) ([]Node, error) {
	var buf bytes.Buffer
	if err := markdown.Convert(src, &buf); err != nil {
		return nil, fmt.Errorf("render markdown: %w", err)
	}
	nodes, err := ParseHTML(&buf)
	if err != nil {
		return nil, err
	}
	return TrimBlockWhitespace(nodes), nil
}

var blockTags = map[string]bool{
	"address": true, "article": true, "aside": true, "blockquote": true,
	"dd": true, "div": true, "dl": true, "dt": true, "figure": true,
	"footer": true, "h1": true, "h2": true, "h3": true, "h4": true,
	"h5": true, "h6": true, "header": true, "hr": true, "li": true,
	"main": true, "nav": true, "ol": true, "p": true, "pre": true,
	"section": true, "table": true, "tbody": true, "td": true,
	"tfoot": true, "th": true, "thead": true, "tr": true, "ul": true,
}

// IsBlockTag reports whether tag is a block-level HTML element.
func IsBlockTag(tag string) bool {
	return blockTags[tag]
}

// TrimBlockWhitespace removes whitespace-only text nodes that sit next to
// block-level siblings, recursively. Text inside <pre> is left alone. The
// input is not modified.
func TrimBlockWhitespace(nodes []Node) []Node {
	hasBlock := false
	for _, n := range nodes {
		if el, ok := n.(*Element); ok && blockTags[el.Tag] {
			hasBlock = true
			break
		}
	}
	out := make([]Node, 0, len(nodes))
	for _, n := range nodes {
		switch n := n.(type) {
		case *Text:
			if hasBlock && strings.TrimSpace(n.Value) == "" {
				continue
			}
			out = append(out, n)
		case *Element:
			if n.Tag == "pre" {
				out = append(out, n)
				continue
			}
			cp := *n
			cp.Children = TrimBlockWhitespace(n.Children)
			out = append(out, &cp)
		}
	}
	return out
}
