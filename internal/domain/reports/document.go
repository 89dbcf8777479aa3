package reports

import (
	"strconv"
	"strings"

	"palmledger/internal/domain/docmodel"
)

// Table names of the net position document.
const (
	TableSummary     = "summary"
	TableAdvances    = "advances"
	TableExpenses    = "expenses"
	TableCollections = "collections"
)

// NetPositionDocument lays the report out as a document with one table per logical table.
func NetPositionDocument(r *NetPositionReport, companyName string) *docmodel.Document {
	names := make(map[string]string, len(r.Agents))
	for _, a := range r.Agents {
		names[a.AgentID.String()] = displayName(a)
	}
	nameOf := func(agentID string) string {
		if n, ok := names[agentID]; ok {
			return n
		}
		return agentID
	}

	doc := &docmodel.Document{
		Title:       "Consolidated Financial Report",
		Subtitle:    companyName,
		GeneratedAt: r.GeneratedAt,
		Header: []docmodel.Field{
			{Label: "Period", Value: periodLabel(r.Filter)},
			{Label: "Agents", Value: strconv.Itoa(len(r.Agents))},
		},
		Summary: []docmodel.Field{
			{Label: "Total advances", Value: docmodel.Money(r.Totals.Advances)},
			{Label: "Total expenses", Value: docmodel.Money(r.Totals.Expenses)},
			{Label: "Fruit spend", Value: docmodel.Money(r.Totals.FruitSpend)},
			{Label: "Fruit weight (kg)", Value: docmodel.Weight(r.Totals.FruitWeight)},
			{Label: r.Status, Value: docmodel.Money(r.Magnitude)},
		},
	}
	if r.ItemsUnavailable {
		doc.Footer = append(doc.Footer, "Line items were unavailable; collections are priced from stored totals.")
	}
	doc.Footer = append(doc.Footer, "Net = advances - (expenses + fruit spend).")

	summary := &docmodel.Table{
		Name:  TableSummary,
		Title: "Agent positions",
		Columns: []docmodel.Column{
			{Header: "Agent", Width: 3},
			{Header: "Advances", Align: docmodel.AlignRight, Width: 2},
			{Header: "Expenses", Align: docmodel.AlignRight, Width: 2},
			{Header: "Fruit spend", Align: docmodel.AlignRight, Width: 2},
			{Header: "Weight (kg)", Align: docmodel.AlignRight, Width: 2},
			{Header: "Net", Align: docmodel.AlignRight, Width: 2},
			{Header: "Status", Width: 3},
		},
		Totals: []string{
			"TOTAL",
			docmodel.Money(r.Totals.Advances),
			docmodel.Money(r.Totals.Expenses),
			docmodel.Money(r.Totals.FruitSpend),
			docmodel.Weight(r.Totals.FruitWeight),
			docmodel.Money(r.Totals.Net),
			r.Status,
		},
	}
	for _, a := range r.Agents {
		summary.AddRow(
			displayName(a),
			docmodel.Money(a.Advances),
			docmodel.Money(a.Expenses),
			docmodel.Money(a.FruitSpend),
			docmodel.Weight(a.FruitWeight),
			docmodel.Money(a.Net),
			a.Status,
		)
	}

	advances := &docmodel.Table{
		Name:  TableAdvances,
		Title: "Cash advances",
		Columns: []docmodel.Column{
			{Header: "Date", Width: 2},
			{Header: "Agent", Width: 3},
			{Header: "Method", Width: 1},
			{Header: "Amount", Align: docmodel.AlignRight, Width: 2},
		},
	}
	for _, a := range r.Advances {
		advances.AddRow(docmodel.Date(a.Date), nameOf(a.AgentID.String()), a.Method, docmodel.Money(a.Amount))
	}

	expenses := &docmodel.Table{
		Name:  TableExpenses,
		Title: "Expenses",
		Columns: []docmodel.Column{
			{Header: "Date", Width: 2},
			{Header: "Agent", Width: 3},
			{Header: "Type", Width: 3},
			{Header: "Amount", Align: docmodel.AlignRight, Width: 2},
		},
	}
	for _, e := range r.Expenses {
		expenses.AddRow(docmodel.Date(e.Date), nameOf(e.AgentID.String()), e.Type, docmodel.Money(e.Amount))
	}

	collections := &docmodel.Table{
		Name:  TableCollections,
		Title: "Fruit collections",
		Columns: []docmodel.Column{
			{Header: "Date", Width: 2},
			{Header: "Agent", Width: 3},
			{Header: "Driver", Width: 2},
			{Header: "Weight (kg)", Align: docmodel.AlignRight, Width: 2},
			{Header: "Amount", Align: docmodel.AlignRight, Width: 2},
			{Header: "Price breakdown", Width: 4},
		},
	}
	for _, c := range r.Collections {
		collections.AddRow(
			docmodel.Date(c.Date),
			nameOf(c.AgentID.String()),
			c.DriverName,
			docmodel.Weight(c.WeightKg),
			docmodel.Money(c.Amount),
			breakdownLabel(c.Breakdown),
		)
	}

	doc.Tables = []*docmodel.Table{summary, advances, expenses, collections}
	return doc
}

func displayName(a AgentPosition) string {
	if a.AgentName != "" {
		return a.AgentName
	}
	return a.AgentID.String()
}

func periodLabel(f NetPositionFilter) string {
	switch {
	case f.From.IsZero() && f.To.IsZero():
		return "All dates"
	case f.From.IsZero():
		return "Up to " + docmodel.Date(f.To)
	case f.To.IsZero():
		return "From " + docmodel.Date(f.From)
	default:
		return docmodel.Date(f.From) + " to " + docmodel.Date(f.To)
	}
}

func breakdownLabel(buckets []PriceBucket) string {
	parts := make([]string, len(buckets))
	for i, b := range buckets {
		parts[i] = b.String()
	}
	return strings.Join(parts, "; ")
}
