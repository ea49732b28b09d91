package parser

import (
	"io"
	"strings"

	"github.com/dgallion1/richconv/internal/markup"
)

// MarkdownParser handles Markdown files using goldmark.
type MarkdownParser struct{}

func (p *MarkdownParser) Parse(r io.Reader, filename string) (*Source, error) {
	src, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}

	nodes, err := markup.ParseMarkdown(src)
	if err != nil {
		return nil, err
	}

	out := &Source{
		Title: stripExt(filename, ".md", ".markdown"),
		Nodes: nodes,
	}

	// The first top-level h1 names the document.
	for _, n := range nodes {
		if el, ok := n.(*markup.Element); ok && el.Tag == "h1" {
			if title := strings.TrimSpace(markup.TextContent(el.Children)); title != "" {
				out.Title = title
			}
			break
		}
	}

	return out, nil
}
