package export

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"time"
)

// Table is an ordered tabular report, typically an attendance summary.
// Rows are positional and must line up with Columns.
type Table struct {
	Title       string
	Columns     []string
	Rows        [][]string
	GeneratedAt time.Time
}

// CSVExporter renders tables into CSV bytes for spreadsheet imports.
type CSVExporter struct{}

// NewCSVExporter builds a CSV exporter.
func NewCSVExporter() *CSVExporter {
	return &CSVExporter{}
}

// Render produces CSV encoded bytes for the table. The title and
// generation time are not part of the CSV body; attendance spreadsheets
// want a clean header row.
func (e *CSVExporter) Render(table Table) ([]byte, error) {
	if len(table.Columns) == 0 {
		return nil, fmt.Errorf("csv requires at least one column")
	}

	buf := &bytes.Buffer{}
	writer := csv.NewWriter(buf)
	if err := writer.Write(table.Columns); err != nil {
		return nil, fmt.Errorf("write csv header: %w", err)
	}
	for i, row := range table.Rows {
		if len(row) != len(table.Columns) {
			return nil, fmt.Errorf("csv row %d has %d cells, want %d", i, len(row), len(table.Columns))
		}
		if err := writer.Write(row); err != nil {
			return nil, fmt.Errorf("write csv row: %w", err)
		}
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("flush csv: %w", err)
	}
	return buf.Bytes(), nil
}
