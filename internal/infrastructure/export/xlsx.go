package export

import (
	"fmt"
	"io"
	"strings"

	"github.com/xuri/excelize/v2"

	"palmledger/internal/domain/docmodel"
)

const maxSheetName = 31

var sheetNameReplacer = strings.NewReplacer(":", " ", "\\", " ", "/", " ", "?", " ", "*", " ", "[", "(", "]", ")")

// sheetName makes name a valid, unique worksheet name.
func sheetName(name string, used map[string]bool) string {
	base := strings.TrimSpace(sheetNameReplacer.Replace(name))
	if base == "" {
		base = "Sheet"
	}
	if len(base) > maxSheetName {
		base = base[:maxSheetName]
	}
	candidate := base
	for i := 2; used[strings.ToLower(candidate)]; i++ {
		suffix := fmt.Sprintf(" %d", i)
		cut := base
		if len(cut)+len(suffix) > maxSheetName {
			cut = cut[:maxSheetName-len(suffix)]
		}
		candidate = cut + suffix
	}
	used[strings.ToLower(candidate)] = true
	return candidate
}

// WriteXLSX writes one worksheet per table. The first sheet starts with the document title,
// header and summary fields.
func WriteXLSX(w io.Writer, doc *docmodel.Document) error {
	f := excelize.NewFile()
	defer f.Close()

	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("create style: %w", err)
	}

	tables := doc.Tables
	if len(tables) == 0 {
		tables = []*docmodel.Table{{Name: "document"}}
	}

	used := make(map[string]bool)
	for i, t := range tables {
		sheet := sheetName(t.Name, used)
		if i == 0 {
			if err := f.SetSheetName("Sheet1", sheet); err != nil {
				return fmt.Errorf("rename sheet: %w", err)
			}
		} else if _, err := f.NewSheet(sheet); err != nil {
			return fmt.Errorf("create sheet %s: %w", sheet, err)
		}

		row := 1
		if i == 0 {
			row, err = writePreamble(f, sheet, doc, bold)
			if err != nil {
				return err
			}
		}
		if err := writeTable(f, sheet, row, t, bold); err != nil {
			return err
		}
	}

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("write xlsx: %w", err)
	}
	return nil
}

func writePreamble(f *excelize.File, sheet string, doc *docmodel.Document, bold int) (int, error) {
	row := 1
	set := func(values ...any) error {
		cell, err := excelize.CoordinatesToCellName(1, row)
		if err != nil {
			return err
		}
		row++
		return f.SetSheetRow(sheet, cell, &values)
	}

	if err := set(doc.Title); err != nil {
		return 0, fmt.Errorf("write title: %w", err)
	}
	if err := f.SetCellStyle(sheet, "A1", "A1", bold); err != nil {
		return 0, fmt.Errorf("style title: %w", err)
	}
	if doc.Subtitle != "" {
		if err := set(doc.Subtitle); err != nil {
			return 0, fmt.Errorf("write subtitle: %w", err)
		}
	}
	for _, fields := range [][]docmodel.Field{doc.Header, doc.Summary} {
		for _, fd := range fields {
			if err := set(fd.Label, fd.Value); err != nil {
				return 0, fmt.Errorf("write field %s: %w", fd.Label, err)
			}
		}
	}
	return row + 1, nil
}

func writeTable(f *excelize.File, sheet string, row int, t *docmodel.Table, bold int) error {
	if len(t.Columns) == 0 {
		return nil
	}
	write := func(cells []string, style bool) error {
		start, err := excelize.CoordinatesToCellName(1, row)
		if err != nil {
			return err
		}
		values := make([]any, len(cells))
		for i, c := range cells {
			values[i] = c
		}
		if err := f.SetSheetRow(sheet, start, &values); err != nil {
			return err
		}
		if style {
			end, err := excelize.CoordinatesToCellName(len(cells), row)
			if err != nil {
				return err
			}
			if err := f.SetCellStyle(sheet, start, end, bold); err != nil {
				return err
			}
		}
		row++
		return nil
	}

	if err := write(t.Headers(), true); err != nil {
		return fmt.Errorf("write %s header: %w", t.Name, err)
	}
	for _, r := range t.Rows {
		if err := write(r, false); err != nil {
			return fmt.Errorf("write %s row: %w", t.Name, err)
		}
	}
	if len(t.Totals) > 0 {
		if err := write(t.Totals, true); err != nil {
			return fmt.Errorf("write %s totals: %w", t.Name, err)
		}
	}

	for i, c := range t.Columns {
		col, err := excelize.ColumnNumberToName(i + 1)
		if err != nil {
			return err
		}
		width := 14.0
		if c.Width > 0 {
			width = 8 * c.Width
		}
		if err := f.SetColWidth(sheet, col, col, width); err != nil {
			return fmt.Errorf("set width: %w", err)
		}
	}
	return nil
}
