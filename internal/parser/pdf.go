package parser

import (
	"fmt"
	"io"
	"os"
	"os/exec"
	"strconv"
	"strings"

	pdflib "github.com/ledongthuc/pdf"

	"github.com/dgallion1/richconv/internal/markup"
)

// PDFParser handles PDF files. It tries the Go library first,
// then falls back to pdftotext if available.
//
// Each page becomes a <section data-page="N"> of paragraphs. The section
// is unclaimed by the shipped rules, so it flattens away on conversion.
type PDFParser struct {
	FallbackPdftotext bool
}

func (p *PDFParser) Parse(r io.Reader, filename string) (*Source, error) {
	// ledongthuc/pdf requires a ReaderAt+size, so we write to a temp file.
	tmp, err := os.CreateTemp("", "richconv-pdf-*.pdf")
	if err != nil {
		return nil, fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	if _, err := io.Copy(tmp, r); err != nil {
		tmp.Close()
		return nil, fmt.Errorf("write temp file: %w", err)
	}
	tmp.Close()

	text, err := extractPDFText(tmpPath)
	if err != nil && p.FallbackPdftotext {
		text, err = extractPdftotext(tmpPath)
	}
	if err != nil {
		return nil, fmt.Errorf("extract pdf text: %w", err)
	}

	return &Source{
		Title: stripExt(filename, ".pdf"),
		Nodes: pageSections(text),
	}, nil
}

// pageSections splits form-feed separated page text into sections.
func pageSections(text string) []markup.Node {
	var out []markup.Node
	for i, page := range strings.Split(text, "\f") {
		var paras []markup.Node
		for _, block := range strings.Split(page, "\n\n") {
			var lines []string
			for _, line := range strings.Split(block, "\n") {
				if line = strings.TrimSpace(line); line != "" {
					lines = append(lines, line)
				}
			}
			if len(lines) > 0 {
				paras = append(paras, paragraph(lines))
			}
		}
		if len(paras) == 0 {
			continue
		}
		section := markup.NewElement("section", paras...)
		section.Attrs = []markup.Attr{{Key: "data-page", Val: strconv.Itoa(i + 1)}}
		out = append(out, section)
	}
	return out
}

func extractPDFText(path string) (string, error) {
	f, reader, err := pdflib.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	var buf strings.Builder
	numPages := reader.NumPage()
	for i := 1; i <= numPages; i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			continue
		}
		if i > 1 {
			buf.WriteString("\f") // Form feed as page separator.
		}
		buf.WriteString(text)
	}
	return buf.String(), nil
}

func extractPdftotext(path string) (string, error) {
	cmd := exec.Command("pdftotext", "-layout", path, "-")
	out, err := cmd.Output()
	if err != nil {
		return "", fmt.Errorf("pdftotext: %w", err)
	}
	return string(out), nil
}
