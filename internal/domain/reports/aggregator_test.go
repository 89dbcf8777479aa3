package reports

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"palmledger/internal/core/id"
)

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestPriceCollection_ItemsSumIsExact(t *testing.T) {
	c := CollectionRow{ID: id.New(), StoredAmount: d("999"), StoredWeight: d("1")}
	items := []ItemRow{
		{CollectionID: c.ID, WeightKg: d("0.1"), PricePerKg: d("0.2")},
		{CollectionID: c.ID, WeightKg: d("123.456"), PricePerKg: d("1.1")},
		{CollectionID: c.ID, WeightKg: d("7"), PricePerKg: d("3.33")},
	}

	spend := PriceCollection(c, items)

	expected := d("0.02").Add(d("135.8016")).Add(d("23.31"))
	assert.True(t, spend.Amount.Equal(expected), "got %s", spend.Amount)
	assert.True(t, spend.WeightKg.Equal(d("130.556")))
	assert.True(t, spend.FromItems)
}

func TestPriceCollection_FallbackWithoutItems(t *testing.T) {
	c := CollectionRow{ID: id.New(), StoredAmount: d("450.5"), StoredWeight: d("200")}
	spend := PriceCollection(c, nil)
	assert.True(t, spend.Amount.Equal(d("450.5")))
	assert.True(t, spend.WeightKg.Equal(d("200")))
	assert.False(t, spend.FromItems)

	empty := PriceCollection(CollectionRow{ID: id.New()}, nil)
	assert.True(t, empty.Amount.IsZero())
}

func TestPriceBreakdown_GroupsByPriceDescending(t *testing.T) {
	items := []ItemRow{
		{WeightKg: d("100"), PricePerKg: d("2.5")},
		{WeightKg: d("40"), PricePerKg: d("3")},
		{WeightKg: d("60"), PricePerKg: d("2.50")},
		{WeightKg: d("10"), PricePerKg: d("3.0")},
	}

	buckets := PriceBreakdown(items)
	require.Len(t, buckets, 2)

	assert.True(t, buckets[0].PricePerKg.Equal(d("3")))
	assert.True(t, buckets[0].WeightKg.Equal(d("50")))
	assert.True(t, buckets[0].Amount.Equal(d("150")))
	assert.Equal(t, 2, buckets[0].Lines)

	assert.True(t, buckets[1].PricePerKg.Equal(d("2.5")))
	assert.True(t, buckets[1].WeightKg.Equal(d("160")))
	assert.True(t, buckets[1].Amount.Equal(d("400")))
	assert.Equal(t, "160.00 kg @ 2.50 → 400.00", buckets[1].String())
}

func TestStatusLabel(t *testing.T) {
	assert.Equal(t, LabelSurplus, StatusLabel(d("0")))
	assert.Equal(t, LabelSurplus, StatusLabel(d("0.01")))
	assert.Equal(t, LabelDeficit, StatusLabel(d("-0.01")))
}

func sampleInputs() Inputs {
	a1, a2, a3 := id.New(), id.New(), id.New()
	c1, c2, c3 := id.New(), id.New(), id.New()
	day := time.Date(2024, 5, 2, 0, 0, 0, 0, time.UTC)
	return Inputs{
		Now: day,
		Advances: []AdvanceRow{
			{AgentID: a1, Amount: d("5000"), Date: day},
			{AgentID: a1, Amount: d("1000"), Date: day},
			{AgentID: a2, Amount: d("800"), Date: day},
		},
		Expenses: []ExpenseRow{
			{AgentID: a1, Amount: d("150"), Type: "Fuel"},
			{AgentID: a3, Amount: d("75.5"), Type: "Food"},
		},
		Collections: []CollectionRow{
			{ID: c1, AgentID: a1, StoredAmount: d("1")},
			{ID: c2, AgentID: a2, StoredAmount: d("1200"), StoredWeight: d("400")},
			{ID: c3, AgentID: a1},
		},
		Items: []ItemRow{
			{CollectionID: c1, WeightKg: d("1000"), PricePerKg: d("2.5")},
			{CollectionID: c1, WeightKg: d("200"), PricePerKg: d("2.8")},
		},
		AgentNames: map[id.ID]string{a1: "Ama", a2: "Kwame", a3: "Esi"},
	}
}

func TestAggregate_AgentNetAndTotals(t *testing.T) {
	r := Aggregate(sampleInputs())
	require.Len(t, r.Agents, 3)

	// sorted by name
	ama, esi, kwame := r.Agents[0], r.Agents[1], r.Agents[2]
	assert.Equal(t, "Ama", ama.AgentName)
	assert.True(t, ama.Advances.Equal(d("6000")))
	assert.True(t, ama.Expenses.Equal(d("150")))
	assert.True(t, ama.FruitSpend.Equal(d("3060")))
	assert.True(t, ama.Net.Equal(d("2790")))
	assert.Equal(t, 2, ama.CollectionCount)

	assert.True(t, kwame.Net.Equal(d("-400")))
	assert.Equal(t, LabelDeficit, kwame.Status)
	assert.True(t, esi.Net.Equal(d("-75.5")))

	sum := decimal.Zero
	for _, a := range r.Agents {
		sum = sum.Add(a.Net)
	}
	assert.True(t, sum.Equal(r.Totals.Net))
	assert.True(t, r.Totals.Net.Equal(d("2314.5")))
	assert.Equal(t, LabelSurplus, r.Status)
	assert.True(t, r.Magnitude.Equal(d("2314.5")))
}

func TestAggregate_DeficitMagnitudeIsAbsolute(t *testing.T) {
	in := sampleInputs()
	in.Advances = nil
	r := Aggregate(in)
	assert.Equal(t, LabelDeficit, r.Status)
	assert.True(t, r.Magnitude.Equal(r.Totals.Net.Neg()))
}

func TestAggregate_IsIdempotent(t *testing.T) {
	in := sampleInputs()
	first := Aggregate(in)
	second := Aggregate(in)

	require.Len(t, second.Agents, len(first.Agents))
	for i := range first.Agents {
		assert.Equal(t, first.Agents[i].AgentID, second.Agents[i].AgentID)
		assert.True(t, first.Agents[i].Net.Equal(second.Agents[i].Net))
	}
	assert.True(t, first.Totals.Net.Equal(second.Totals.Net))
	assert.Equal(t, first.Status, second.Status)
}

func TestAggregate_ItemsUnavailableUsesStoredTotals(t *testing.T) {
	in := sampleInputs()
	in.ItemsUnavailable = true
	r := Aggregate(in)
	assert.True(t, r.ItemsUnavailable)

	for _, c := range r.Collections {
		assert.False(t, c.FromItems)
	}
	ama := r.Agents[0]
	assert.True(t, ama.FruitSpend.Equal(d("1")), "c1 falls back to its stored amount")
}

func TestAggregate_FilteredAgentWithoutActivityIsListed(t *testing.T) {
	agentID := id.New()
	r := Aggregate(Inputs{Filter: NetPositionFilter{AgentID: &agentID}})
	require.Len(t, r.Agents, 1)
	assert.Equal(t, agentID, r.Agents[0].AgentID)
	assert.True(t, r.Agents[0].Net.IsZero())
	assert.Equal(t, LabelSurplus, r.Status)
}

func TestTopLists(t *testing.T) {
	positions := make([]AgentPosition, 0, 14)
	for i := -7; i <= 6; i++ {
		positions = append(positions, AgentPosition{AgentID: id.New(), Net: decimal.NewFromInt(int64(i * 10))})
	}

	deficit := TopDeficit(positions, TopN)
	require.Len(t, deficit, 5)
	assert.True(t, deficit[0].Net.Equal(d("-70")))
	assert.True(t, deficit[4].Net.Equal(d("-30")))

	surplus := TopSurplus(positions, TopN)
	require.Len(t, surplus, 5)
	assert.True(t, surplus[0].Net.Equal(d("60")))
	assert.True(t, surplus[4].Net.Equal(d("20")))

	for _, p := range append(deficit, surplus...) {
		assert.False(t, p.Net.IsZero(), "balanced agents are not highlighted")
	}
}
