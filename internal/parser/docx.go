package parser

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/fumiama/go-docx"

	"github.com/dgallion1/richconv/internal/markup"
)

// DOCXParser handles .docx files. Heading styles become h1..h6, other
// paragraphs become <p>, and bold, italic and underlined runs are wrapped in
// <strong>, <em> and <u>.
type DOCXParser struct{}

func (p *DOCXParser) Parse(r io.Reader, filename string) (*Source, error) {
	// go-docx needs a ReaderAt+size, so write to temp file.
	tmp, err := os.CreateTemp("", "richconv-docx-*.docx")
	if err != nil {
		return nil, fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	size, err := io.Copy(tmp, r)
	if err != nil {
		tmp.Close()
		return nil, fmt.Errorf("write temp file: %w", err)
	}
	if _, err := tmp.Seek(0, io.SeekStart); err != nil {
		tmp.Close()
		return nil, fmt.Errorf("seek temp file: %w", err)
	}

	doc, err := docx.Parse(tmp, size)
	tmp.Close()
	if err != nil {
		return nil, fmt.Errorf("parse docx: %w", err)
	}

	src := &Source{
		Title: stripExt(filename, ".docx"),
	}

	titled := false
	for _, item := range doc.Document.Body.Items {
		para, ok := item.(*docx.Paragraph)
		if !ok {
			continue
		}
		runs := docxRuns(para)
		if len(runs) == 0 {
			continue
		}

		tag := "p"
		if level := docxHeadingLevel(para); level > 0 {
			tag = fmt.Sprintf("h%d", level)
			if level == 1 && !titled {
				src.Title = strings.TrimSpace(markup.TextContent(runs))
				titled = true
			}
		}
		src.Nodes = append(src.Nodes, markup.NewElement(tag, runs...))
	}

	return src, nil
}

func docxHeadingLevel(para *docx.Paragraph) int {
	if para.Properties == nil || para.Properties.Style == nil {
		return 0
	}
	style := strings.ToLower(strings.ReplaceAll(para.Properties.Style.Val, " ", ""))
	if len(style) == len("heading1") && strings.HasPrefix(style, "heading") {
		if d := style[len(style)-1]; d >= '1' && d <= '6' {
			return int(d - '0')
		}
	}
	return 0
}

// docxRuns converts a paragraph's runs to inline markup. Paragraphs with no
// visible text yield nil.
func docxRuns(para *docx.Paragraph) []markup.Node {
	var out []markup.Node
	visible := false
	for _, child := range para.Children {
		run, ok := child.(*docx.Run)
		if !ok {
			continue
		}
		var buf strings.Builder
		for _, rc := range run.Children {
			if t, ok := rc.(*docx.Text); ok {
				buf.WriteString(t.Text)
			}
		}
		if buf.Len() == 0 {
			continue
		}
		if strings.TrimSpace(buf.String()) != "" {
			visible = true
		}
		var n markup.Node = markup.NewText(buf.String())
		for _, tag := range runTags(run.RunProperties) {
			n = markup.NewElement(tag, n)
		}
		out = append(out, n)
	}
	if !visible {
		return nil
	}
	return out
}

// runTags lists wrapper tags innermost first.
func runTags(rp *docx.RunProperties) []string {
	if rp == nil {
		return nil
	}
	var tags []string
	if rp.Underline != nil && rp.Underline.Val != "none" {
		tags = append(tags, "u")
	}
	if rp.Italic != nil {
		tags = append(tags, "em")
	}
	if rp.Bold != nil {
		tags = append(tags, "strong")
	}
	return tags
}
