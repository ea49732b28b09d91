package parser

import (
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/dgallion1/richconv/internal/markup"
)

// Source is an imported file as a markup tree, ready for the converter.
type Source struct {
	Title string        // From document metadata or the filename
	Nodes []markup.Node // Body content
}

// Parser converts raw file bytes into a markup tree.
type Parser interface {
	Parse(r io.Reader, filename string) (*Source, error)
}

// SupportedExtensions lists file extensions this service can import.
var SupportedExtensions = map[string]bool{
	".txt":      true,
	".md":       true,
	".markdown": true,
	".csv":      true,
	".html":     true,
	".htm":      true,
	".xml":      true,
	".xhtml":    true,
	".pdf":      true,
	".docx":     true,
}

// ForFile returns the appropriate parser for a filename.
func ForFile(filename string) (Parser, error) {
	ext := strings.ToLower(filepath.Ext(filename))
	switch ext {
	case ".txt":
		return &TextParser{}, nil
	case ".md", ".markdown":
		return &MarkdownParser{}, nil
	case ".csv":
		return &CSVParser{}, nil
	case ".html", ".htm":
		return &HTMLParser{}, nil
	case ".xml", ".xhtml":
		return &XMLParser{}, nil
	case ".pdf":
		return &PDFParser{}, nil
	case ".docx":
		return &DOCXParser{}, nil
	default:
		return nil, fmt.Errorf("unsupported file extension: %s", ext)
	}
}

// ForFormat returns a parser for an explicit format name (html, markdown,
// xml, text, csv, pdf, docx).
func ForFormat(format string) (Parser, error) {
	switch strings.ToLower(format) {
	case "", "html":
		return ForFile("x.html")
	case "md", "markdown":
		return ForFile("x.md")
	case "text", "txt":
		return ForFile("x.txt")
	case "xml", "xhtml", "csv", "pdf", "docx":
		return ForFile("x." + strings.ToLower(format))
	}
	return nil, fmt.Errorf("unsupported format: %s", format)
}

// IsSupportedExtension checks if a file extension is supported.
func IsSupportedExtension(filename string) bool {
	ext := strings.ToLower(filepath.Ext(filename))
	return SupportedExtensions[ext]
}

func stripExt(filename string, exts ...string) string {
	for _, ext := range exts {
		filename = strings.TrimSuffix(filename, ext)
	}
	return filename
}

func paragraph(lines []string) *markup.Element {
	p := markup.NewElement("p")
	for i, line := range lines {
		if i > 0 {
			p.Children = append(p.Children, markup.NewElement("br"))
		}
		p.Children = append(p.Children, markup.NewText(line))
	}
	return p
}
