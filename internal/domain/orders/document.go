package orders

import (
	"strconv"

	"palmledger/internal/domain/docmodel"
)

// Table names of the receipt document.
const (
	TableItems    = "items"
	TablePayments = "payments"
)

// ReceiptDocument lays out a receipt with the order lines and payments it acknowledges.
func ReceiptDocument(r *Receipt, d *Detail, companyName string) *docmodel.Document {
	customer := ""
	if d.Customer != nil {
		customer = d.Customer.Name
	}

	doc := &docmodel.Document{
		Title:       "Payment Receipt",
		Subtitle:    companyName,
		GeneratedAt: r.IssuedAt,
		Header: []docmodel.Field{
			{Label: "Receipt No.", Value: r.ReceiptNumber},
			{Label: "Issued", Value: docmodel.Date(r.IssuedAt)},
			{Label: "Order No.", Value: d.Order.OrderNumber},
			{Label: "Order date", Value: docmodel.Date(d.Order.OrderDate)},
			{Label: "Customer", Value: customer},
		},
		Summary: []docmodel.Field{
			{Label: "Order total", Value: docmodel.Money(d.Order.TotalAmount)},
			{Label: "Amount received", Value: docmodel.Money(r.Amount)},
			{Label: "Balance due", Value: docmodel.Money(d.Order.TotalAmount.Sub(r.Amount))},
			{Label: "Delivery", Value: string(d.Order.DeliveryStatus)},
		},
	}
	if r.Status == ReceiptVoid {
		doc.Footer = append(doc.Footer, "VOID")
	}
	doc.Footer = append(doc.Footer, "Thank you for your business.")

	items := &docmodel.Table{
		Name:  TableItems,
		Title: "Items",
		Columns: []docmodel.Column{
			{Header: "#", Align: docmodel.AlignRight, Width: 1},
			{Header: "Description", Width: 5},
			{Header: "Qty", Align: docmodel.AlignRight, Width: 2},
			{Header: "Unit price", Align: docmodel.AlignRight, Width: 2},
			{Header: "Total", Align: docmodel.AlignRight, Width: 2},
		},
		Totals: []string{"", "TOTAL", "", "", docmodel.Money(d.Order.TotalAmount)},
	}
	for _, it := range d.Items {
		items.AddRow(
			strconv.Itoa(it.LineNo),
			it.Description,
			it.Quantity.String(),
			docmodel.Money(it.UnitPrice),
			docmodel.Money(it.LineTotal),
		)
	}

	payments := &docmodel.Table{
		Name:  TablePayments,
		Title: "Payments",
		Columns: []docmodel.Column{
			{Header: "Date", Width: 2},
			{Header: "Method", Width: 2},
			{Header: "Reference", Width: 4},
			{Header: "Amount", Align: docmodel.AlignRight, Width: 2},
		},
	}
	for _, p := range d.Payments {
		if p.PaidAt.After(r.IssuedAt) {
			continue
		}
		ref := ""
		if p.Reference != nil {
			ref = *p.Reference
		}
		payments.AddRow(docmodel.Date(p.PaidAt), string(p.Method), ref, docmodel.Money(p.Amount))
	}

	doc.Tables = []*docmodel.Table{items, payments}
	return doc
}
