// Package export renders docmodel documents as CSV, XLSX and PDF.
package export

import (
	"bytes"
	"fmt"
	"strings"

	"palmledger/internal/core/apperror"
	"palmledger/internal/domain/docmodel"
)

// Format is an export file format.
type Format string

const (
	FormatCSV  Format = "csv"
	FormatXLSX Format = "xlsx"
	FormatPDF  Format = "pdf"
)

// ParseFormat validates a format query value.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case FormatCSV, FormatXLSX, FormatPDF:
		return f, nil
	case "":
		return FormatCSV, nil
	default:
		return "", apperror.NewInvalidInput("format", "format must be csv, xlsx or pdf")
	}
}

// ContentType returns the MIME type of f.
func (f Format) ContentType() string {
	switch f {
	case FormatXLSX:
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	case FormatPDF:
		return "application/pdf"
	default:
		return "text/csv; charset=utf-8"
	}
}

// File is a rendered export.
type File struct {
	Name        string
	ContentType string
	Body        []byte
}

// Render renders doc in format. CSV holds a single table: table selects it and defaults to
// the first one. XLSX and PDF always contain every table.
func Render(doc *docmodel.Document, format Format, baseName, table string) (*File, error) {
	var (
		buf  bytes.Buffer
		name = baseName
		err  error
	)

	switch format {
	case FormatCSV:
		t, terr := selectTable(doc, table)
		if terr != nil {
			return nil, terr
		}
		name = baseName + "-" + t.Name
		err = WriteCSV(&buf, t)
	case FormatXLSX:
		err = WriteXLSX(&buf, doc)
	case FormatPDF:
		err = WritePDF(&buf, doc)
	default:
		return nil, apperror.NewInvalidInput("format", "unsupported format")
	}
	if err != nil {
		return nil, fmt.Errorf("render %s: %w", format, err)
	}

	return &File{
		Name:        name + "." + string(format),
		ContentType: format.ContentType(),
		Body:        buf.Bytes(),
	}, nil
}

func selectTable(doc *docmodel.Document, name string) (*docmodel.Table, error) {
	if name == "" {
		if len(doc.Tables) == 0 {
			return nil, apperror.NewValidation("document has no tables")
		}
		return doc.Tables[0], nil
	}
	t, ok := doc.Table(name)
	if !ok {
		return nil, apperror.NewInvalidInput("table", "table must be one of "+strings.Join(doc.TableNames(), ", "))
	}
	return t, nil
}
