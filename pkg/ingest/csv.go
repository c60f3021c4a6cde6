package ingest

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"

	"github.com/cellwatch/cellwatch/pkg/normalize"
)

// CSVAdapter reads a cycler export file from disk. The first row is the
// header; every following row becomes one record keyed by header name.
type CSVAdapter struct {
	// Path is the file to read (required).
	Path string

	// Comma overrides the field delimiter. Zero means ','. European cycler
	// exports often use ';'.
	Comma rune
}

func (c *CSVAdapter) Name() string { return "csv" }

func (c *CSVAdapter) Collect(ctx context.Context) (*normalize.RecordSet, error) {
	if c.Path == "" {
		return nil, fmt.Errorf("csv adapter: Path is required")
	}

	f, err := os.Open(c.Path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", c.Path, err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	if c.Comma != 0 {
		r.Comma = c.Comma
	}
	r.TrimLeadingSpace = true
	// Cycler exports sometimes carry ragged trailing columns.
	r.FieldsPerRecord = -1

	header, err := r.Read()
	if err == io.EOF {
		return nil, fmt.Errorf("csv adapter: %s is empty", c.Path)
	}
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}

	var rows []normalize.Row
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		record, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read row %d: %w", len(rows)+2, err)
		}

		row := make(normalize.Row, len(header))
		for i, col := range header {
			if i < len(record) {
				row[col] = record[i]
			}
		}
		rows = append(rows, row)
	}

	return &normalize.RecordSet{Columns: header, Rows: rows}, nil
}
