package parser

import (
	"bufio"
	"io"
	"strings"
)

// TextParser handles plain text files. Blank lines separate paragraphs;
// line breaks inside a paragraph become <br>.
type TextParser struct{}

func (p *TextParser) Parse(r io.Reader, filename string) (*Source, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	var paragraphs [][]string
	var current []string

	for scanner.Scan() {
		line := scanner.Text()
		if strings.TrimSpace(line) == "" {
			if len(current) > 0 {
				paragraphs = append(paragraphs, current)
				current = nil
			}
		} else {
			current = append(current, line)
		}
	}
	if len(current) > 0 {
		paragraphs = append(paragraphs, current)
	}

	if err := scanner.Err(); err != nil {
		return nil, err
	}

	src := &Source{
		Title: stripExt(filename, ".txt"),
	}

	// Each paragraph becomes a <p>.
	for _, para := range paragraphs {
		src.Nodes = append(src.Nodes, paragraph(para))
	}

	return src, nil
}
