package parser

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"

	"github.com/dgallion1/richconv/internal/markup"
)

// CSVParser handles CSV files. Rows are grouped under an <h2> per batch,
// one <p> per row.
type CSVParser struct{}

func (p *CSVParser) Parse(r io.Reader, filename string) (*Source, error) {
	reader := csv.NewReader(r)
	reader.LazyQuotes = true
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = -1

	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parse csv: %w", err)
	}

	src := &Source{
		Title: stripExt(filename, ".csv"),
	}

	if len(records) == 0 {
		return src, nil
	}

	// First row is headers.
	headers := records[0]

	// Group rows into batches of 20 for readable sections.
	const batchSize = 20
	dataRows := records[1:]

	for i := 0; i < len(dataRows); i += batchSize {
		end := min(i+batchSize, len(dataRows))
		batch := dataRows[i:end]

		heading := fmt.Sprintf("Rows %d-%d", i+2, end+1) // 1-indexed, skip header
		src.Nodes = append(src.Nodes, markup.NewElement("h2", markup.NewText(heading)))

		for _, row := range batch {
			var text strings.Builder
			for j, cell := range row {
				if j < len(headers) {
					text.WriteString(headers[j] + ": " + cell)
				} else {
					text.WriteString(cell)
				}
				if j < len(row)-1 {
					text.WriteString(", ")
				}
			}
			src.Nodes = append(src.Nodes, markup.NewElement("p", markup.NewText(text.String())))
		}
	}

	return src, nil
}
