package export

import (
	"encoding/csv"
	"fmt"
	"io"

	"palmledger/internal/domain/docmodel"
)

// WriteCSV writes the header row, the rows and the totals row of t with RFC 4180 quoting.
func WriteCSV(w io.Writer, t *docmodel.Table) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(t.Headers()); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}
	for i, row := range t.Rows {
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("write csv row %d: %w", i+1, err)
		}
	}
	if len(t.Totals) > 0 {
		if err := cw.Write(t.Totals); err != nil {
			return fmt.Errorf("write csv totals: %w", err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// ReadCSV parses a file written by WriteCSV into headers and records.
func ReadCSV(r io.Reader) ([]string, [][]string, error) {
	records, err := csv.NewReader(r).ReadAll()
	if err != nil {
		return nil, nil, fmt.Errorf("read csv: %w", err)
	}
	if len(records) == 0 {
		return nil, nil, nil
	}
	return records[0], records[1:], nil
}
