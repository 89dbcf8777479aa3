package export

import (
	"fmt"
	"io"
	"strings"

	"github.com/go-pdf/fpdf"

	"palmledger/internal/domain/docmodel"
)

const (
	pdfFont       = "Helvetica"
	pdfLineHeight = 6.0
	pdfRowHeight  = 6.5
)

// cp1252Fallbacks spells out symbols the core fonts cannot encode.
var cp1252Fallbacks = strings.NewReplacer(
	"→", "->",
	"←", "<-",
	"≤", "<=",
	"≥", ">=",
	"×", "x",
)

// pdfText returns the cp1252 translator of pdf with symbol fallbacks applied first.
func pdfText(pdf *fpdf.Fpdf) func(string) string {
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	return func(s string) string {
		return tr(cp1252Fallbacks.Replace(s))
	}
}

// WritePDF renders doc as a portrait A4 document.
func WritePDF(w io.Writer, doc *docmodel.Document) error {
	pdf := buildPDF(doc)
	if err := pdf.Error(); err != nil {
		return fmt.Errorf("build pdf: %w", err)
	}
	if err := pdf.Output(w); err != nil {
		return fmt.Errorf("write pdf: %w", err)
	}
	return nil
}

func buildPDF(doc *docmodel.Document) *fpdf.Fpdf {
	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(15, 15, 15)
	pdf.SetAutoPageBreak(true, 15)
	tr := pdfText(pdf)
	pdf.AddPage()

	pageWidth, _ := pdf.GetPageSize()
	left, _, right, _ := pdf.GetMargins()
	contentWidth := pageWidth - left - right

	pdf.SetFont(pdfFont, "B", 15)
	pdf.CellFormat(contentWidth, 8, tr(doc.Title), "", 1, "L", false, 0, "")
	if doc.Subtitle != "" {
		pdf.SetFont(pdfFont, "", 11)
		pdf.CellFormat(contentWidth, pdfLineHeight, tr(doc.Subtitle), "", 1, "L", false, 0, "")
	}
	pdf.Ln(2)

	writeFields(pdf, tr, doc.Header, contentWidth)
	if len(doc.Summary) > 0 {
		pdf.Ln(2)
		pdf.SetFont(pdfFont, "B", 11)
		pdf.CellFormat(contentWidth, pdfLineHeight, "Summary", "", 1, "L", false, 0, "")
		writeFields(pdf, tr, doc.Summary, contentWidth)
	}

	for _, t := range doc.Tables {
		pdf.Ln(4)
		writePDFTable(pdf, tr, t, contentWidth)
	}

	if len(doc.Footer) > 0 || !doc.GeneratedAt.IsZero() {
		pdf.Ln(4)
		pdf.SetFont(pdfFont, "I", 8)
		for _, line := range doc.Footer {
			pdf.MultiCell(contentWidth, 4.5, tr(line), "", "L", false)
		}
		if !doc.GeneratedAt.IsZero() {
			pdf.CellFormat(contentWidth, 4.5, "Generated "+doc.GeneratedAt.UTC().Format("2006-01-02 15:04 UTC"), "", 1, "L", false, 0, "")
		}
	}
	return pdf
}

func writeFields(pdf *fpdf.Fpdf, tr func(string) string, fields []docmodel.Field, width float64) {
	labelWidth := width * 0.35
	for _, f := range fields {
		pdf.SetFont(pdfFont, "B", 10)
		pdf.CellFormat(labelWidth, pdfLineHeight, tr(f.Label), "", 0, "L", false, 0, "")
		pdf.SetFont(pdfFont, "", 10)
		pdf.CellFormat(width-labelWidth, pdfLineHeight, tr(f.Value), "", 1, "L", false, 0, "")
	}
}

// columnWidths splits width by the relative column widths.
func columnWidths(cols []docmodel.Column, width float64) []float64 {
	total := 0.0
	for _, c := range cols {
		if c.Width > 0 {
			total += c.Width
		} else {
			total++
		}
	}
	out := make([]float64, len(cols))
	for i, c := range cols {
		share := c.Width
		if share <= 0 {
			share = 1
		}
		out[i] = width * share / total
	}
	return out
}

func alignOf(a docmodel.Align) string {
	switch a {
	case docmodel.AlignRight:
		return "R"
	case docmodel.AlignCenter:
		return "C"
	default:
		return "L"
	}
}

func writePDFTable(pdf *fpdf.Fpdf, tr func(string) string, t *docmodel.Table, width float64) {
	if t.Title != "" {
		pdf.SetFont(pdfFont, "B", 11)
		pdf.CellFormat(width, pdfLineHeight, tr(t.Title), "", 1, "L", false, 0, "")
	}
	if len(t.Columns) == 0 {
		return
	}

	widths := columnWidths(t.Columns, width)
	header := func() {
		pdf.SetFont(pdfFont, "B", 9)
		pdf.SetFillColor(230, 230, 230)
		for i, c := range t.Columns {
			pdf.CellFormat(widths[i], pdfRowHeight, tr(c.Header), "1", 0, alignOf(c.Align), true, 0, "")
		}
		pdf.Ln(-1)
	}
	row := func(cells []string, style string) {
		_, pageHeight := pdf.GetPageSize()
		_, _, _, bottom := pdf.GetMargins()
		if pdf.GetY()+pdfRowHeight > pageHeight-bottom {
			pdf.AddPage()
			header()
		}
		pdf.SetFont(pdfFont, style, 9)
		for i := range t.Columns {
			var v string
			if i < len(cells) {
				v = cells[i]
			}
			pdf.CellFormat(widths[i], pdfRowHeight, tr(v), "1", 0, alignOf(t.Columns[i].Align), false, 0, "")
		}
		pdf.Ln(-1)
	}

	header()
	for _, r := range t.Rows {
		row(r, "")
	}
	if len(t.Totals) > 0 {
		row(t.Totals, "B")
	}
}
