package reports

import (
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"palmledger/internal/core/id"
)

// Inputs are the normalized rows of one report.
type Inputs struct {
	Filter      NetPositionFilter
	Advances    []AdvanceRow
	Expenses    []ExpenseRow
	Collections []CollectionRow
	// Items of the collections above. Ignored when ItemsUnavailable is set.
	Items            []ItemRow
	ItemsUnavailable bool
	AgentNames       map[id.ID]string
	Now              time.Time
}

// StatusLabel labels a net position.
func StatusLabel(net decimal.Decimal) string {
	if net.IsNegative() {
		return LabelDeficit
	}
	return LabelSurplus
}

// NetOf is advances − (expenses + fruit spend).
func NetOf(advances, expenses, fruitSpend decimal.Decimal) decimal.Decimal {
	return advances.Sub(expenses.Add(fruitSpend))
}

// PriceCollection prices one collection: the sum of weight × price over its items when it has
// any, else its stored aggregates.
func PriceCollection(c CollectionRow, items []ItemRow) CollectionSpend {
	out := CollectionSpend{
		CollectionID: c.ID,
		AgentID:      c.AgentID,
		Date:         c.Date,
		DriverName:   c.DriverName,
	}
	if len(items) == 0 {
		out.WeightKg = c.StoredWeight
		out.Amount = c.StoredAmount
		return out
	}

	weight, amount := decimal.Zero, decimal.Zero
	for _, it := range items {
		weight = weight.Add(it.WeightKg)
		amount = amount.Add(it.Amount())
	}
	out.WeightKg = weight
	out.Amount = amount
	out.FromItems = true
	out.Breakdown = PriceBreakdown(items)
	return out
}

// PriceBreakdown groups items by price per kg, summing weight and amount within each price,
// highest price first.
func PriceBreakdown(items []ItemRow) []PriceBucket {
	byPrice := make(map[string]*PriceBucket, len(items))
	order := make([]*PriceBucket, 0, len(items))
	for _, it := range items {
		// decimal.String is canonical, so 2.5 and 2.50 share a bucket
		key := it.PricePerKg.String()
		b, ok := byPrice[key]
		if !ok {
			b = &PriceBucket{PricePerKg: it.PricePerKg, WeightKg: decimal.Zero, Amount: decimal.Zero}
			byPrice[key] = b
			order = append(order, b)
		}
		b.WeightKg = b.WeightKg.Add(it.WeightKg)
		b.Amount = b.Amount.Add(it.Amount())
		b.Lines++
	}

	out := make([]PriceBucket, len(order))
	for i, b := range order {
		out[i] = *b
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].PricePerKg.GreaterThan(out[j].PricePerKg)
	})
	return out
}

// TopDeficit returns up to n agents with a negative net, most negative first.
func TopDeficit(positions []AgentPosition, n int) []AgentPosition {
	out := make([]AgentPosition, 0, n)
	for _, p := range positions {
		if p.Net.IsNegative() {
			out = append(out, p)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Net.LessThan(out[j].Net) })
	return truncate(out, n)
}

// TopSurplus returns up to n agents with a positive net, most positive first.
func TopSurplus(positions []AgentPosition, n int) []AgentPosition {
	out := make([]AgentPosition, 0, n)
	for _, p := range positions {
		if p.Net.IsPositive() {
			out = append(out, p)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Net.GreaterThan(out[j].Net) })
	return truncate(out, n)
}

func truncate(p []AgentPosition, n int) []AgentPosition {
	if len(p) > n {
		return p[:n]
	}
	return p
}

// Aggregate computes the report from normalized rows. It is deterministic for the same inputs.
func Aggregate(in Inputs) *NetPositionReport {
	report := &NetPositionReport{
		Filter:           in.Filter,
		GeneratedAt:      in.Now,
		Advances:         in.Advances,
		Expenses:         in.Expenses,
		ItemsUnavailable: in.ItemsUnavailable,
	}

	byAgent := make(map[id.ID]*AgentPosition)
	position := func(agentID id.ID) *AgentPosition {
		p, ok := byAgent[agentID]
		if !ok {
			p = &AgentPosition{
				AgentID:     agentID,
				AgentName:   in.AgentNames[agentID],
				Advances:    decimal.Zero,
				Expenses:    decimal.Zero,
				FruitSpend:  decimal.Zero,
				FruitWeight: decimal.Zero,
			}
			byAgent[agentID] = p
		}
		return p
	}
	if in.Filter.AgentID != nil {
		position(*in.Filter.AgentID)
	}

	for _, a := range in.Advances {
		p := position(a.AgentID)
		p.Advances = p.Advances.Add(a.Amount)
		p.AdvanceCount++
	}
	for _, e := range in.Expenses {
		p := position(e.AgentID)
		p.Expenses = p.Expenses.Add(e.Amount)
		p.ExpenseCount++
	}

	itemsByCollection := make(map[id.ID][]ItemRow)
	if !in.ItemsUnavailable {
		for _, it := range in.Items {
			itemsByCollection[it.CollectionID] = append(itemsByCollection[it.CollectionID], it)
		}
	}

	report.Collections = make([]CollectionSpend, 0, len(in.Collections))
	for _, c := range in.Collections {
		spend := PriceCollection(c, itemsByCollection[c.ID])
		report.Collections = append(report.Collections, spend)

		p := position(c.AgentID)
		p.FruitSpend = p.FruitSpend.Add(spend.Amount)
		p.FruitWeight = p.FruitWeight.Add(spend.WeightKg)
		p.CollectionCount++
	}

	report.Agents = make([]AgentPosition, 0, len(byAgent))
	totals := Totals{
		Advances:    decimal.Zero,
		Expenses:    decimal.Zero,
		FruitSpend:  decimal.Zero,
		FruitWeight: decimal.Zero,
		Net:         decimal.Zero,
	}
	for _, p := range byAgent {
		p.Net = NetOf(p.Advances, p.Expenses, p.FruitSpend)
		p.Status = StatusLabel(p.Net)
		report.Agents = append(report.Agents, *p)

		totals.Advances = totals.Advances.Add(p.Advances)
		totals.Expenses = totals.Expenses.Add(p.Expenses)
		totals.FruitSpend = totals.FruitSpend.Add(p.FruitSpend)
		totals.FruitWeight = totals.FruitWeight.Add(p.FruitWeight)
	}
	sort.Slice(report.Agents, func(i, j int) bool {
		a, b := report.Agents[i], report.Agents[j]
		an, bn := strings.ToLower(a.AgentName), strings.ToLower(b.AgentName)
		if an != bn {
			return an < bn
		}
		return a.AgentID.String() < b.AgentID.String()
	})

	totals.Net = NetOf(totals.Advances, totals.Expenses, totals.FruitSpend)
	report.Totals = totals
	report.Status = StatusLabel(totals.Net)
	report.Magnitude = totals.Net.Abs()

	report.TopDeficit = TopDeficit(report.Agents, TopN)
	report.TopSurplus = TopSurplus(report.Agents, TopN)
	return report
}
