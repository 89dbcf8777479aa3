// Package docmodel is the renderer-independent shape of printable and exportable documents.
// Domain packages build a Document from typed data; infrastructure/export renders it as
// CSV, XLSX or PDF.
package docmodel

import (
	"time"

	"github.com/shopspring/decimal"
)

// Align is the horizontal alignment of a column.
type Align int

const (
	AlignLeft Align = iota
	AlignRight
	AlignCenter
)

// Field is a labelled value in the header or summary block.
type Field struct {
	Label string
	Value string
}

// Column describes one table column. Width is relative; zero means equal share.
type Column struct {
	Header string
	Align  Align
	Width  float64
}

// Table is one logical table of a document.
type Table struct {
	// Name identifies the table in exports (file or sheet name), e.g. "advances".
	Name    string
	Title   string
	Columns []Column
	Rows    [][]string
	// Totals is an optional closing row with the same arity as Columns.
	Totals []string
}

// Headers returns the column headers.
func (t *Table) Headers() []string {
	out := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		out[i] = c.Header
	}
	return out
}

// AddRow appends a row.
func (t *Table) AddRow(cells ...string) {
	t.Rows = append(t.Rows, cells)
}

// Document is a titled set of header fields, summary fields, tables and footer lines.
type Document struct {
	Title       string
	Subtitle    string
	Header      []Field
	Summary     []Field
	Tables      []*Table
	Footer      []string
	GeneratedAt time.Time
}

// Table returns the table with the given name.
func (d *Document) Table(name string) (*Table, bool) {
	for _, t := range d.Tables {
		if t.Name == name {
			return t, true
		}
	}
	return nil, false
}

// TableNames lists table names in order.
func (d *Document) TableNames() []string {
	out := make([]string, len(d.Tables))
	for i, t := range d.Tables {
		out[i] = t.Name
	}
	return out
}

// Money formats an amount with two decimals.
func Money(v decimal.Decimal) string {
	return v.StringFixed(2)
}

// Weight formats a weight in kilograms with two decimals.
func Weight(v decimal.Decimal) string {
	return v.StringFixed(2)
}

// Date formats a calendar date.
func Date(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format("2006-01-02")
}
