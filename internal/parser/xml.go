package parser

import (
	"io"
	"strings"

	"github.com/dgallion1/richconv/internal/markup"
)

// XMLParser handles XML and XHTML files using xmlquery. An XHTML document
// contributes the content of its <body>.
type XMLParser struct{}

func (p *XMLParser) Parse(r io.Reader, filename string) (*Source, error) {
	nodes, err := markup.ParseXML(r)
	if err != nil {
		return nil, err
	}

	src := &Source{
		Title: stripExt(filename, ".xml", ".xhtml"),
	}
	if title := findElement(nodes, "title"); title != nil {
		if t := strings.TrimSpace(markup.TextContent(title.Children)); t != "" {
			src.Title = t
		}
	}
	if body := findElement(nodes, "body"); body != nil {
		nodes = body.Children
	}
	src.Nodes = markup.TrimBlockWhitespace(nodes)

	return src, nil
}

func findElement(nodes []markup.Node, tag string) *markup.Element {
	for _, n := range nodes {
		el, ok := n.(*markup.Element)
		if !ok {
			continue
		}
		if el.Tag == tag {
			return el
		}
		if found := findElement(el.Children, tag); found != nil {
			return found
		}
	}
	return nil
}
