// Package reports computes the consolidated net cash position of agents.
package reports

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"palmledger/internal/core/id"
)

// Status labels of the overall position.
const (
	LabelSurplus = "CASH BALANCE (SURPLUS)"
	LabelDeficit = "DEFICIT (OVERDRAWN)"
)

// TopN is the length of the highlight lists.
const TopN = 5

// NetPositionFilter selects the rows of a report. Zero dates are open bounds.
type NetPositionFilter struct {
	From    time.Time `json:"from"`
	To      time.Time `json:"to"`
	AgentID *id.ID    `json:"agentId,omitempty"`
}

// AdvanceRow is a normalized cash advance.
type AdvanceRow struct {
	ID      id.ID           `json:"id"`
	AgentID id.ID           `json:"agentId"`
	Date    time.Time       `json:"date"`
	Amount  decimal.Decimal `json:"amount"`
	Method  string          `json:"method"`
}

// ExpenseRow is a normalized expense.
type ExpenseRow struct {
	ID      id.ID           `json:"id"`
	AgentID id.ID           `json:"agentId"`
	Date    time.Time       `json:"date"`
	Type    string          `json:"type"`
	Amount  decimal.Decimal `json:"amount"`
}

// CollectionRow is a normalized collection header. StoredAmount is the first numeric legacy
// aggregate found at the persistence boundary, zero when none was.
type CollectionRow struct {
	ID           id.ID           `json:"id"`
	AgentID      id.ID           `json:"agentId"`
	Date         time.Time       `json:"date"`
	DriverName   string          `json:"driverName"`
	StoredWeight decimal.Decimal `json:"storedWeight"`
	StoredAmount decimal.Decimal `json:"storedAmount"`
}

// ItemRow is a normalized collection item.
type ItemRow struct {
	CollectionID id.ID           `json:"collectionId"`
	WeightKg     decimal.Decimal `json:"weightKg"`
	PricePerKg   decimal.Decimal `json:"pricePerKg"`
}

// Amount is weight × price.
func (i ItemRow) Amount() decimal.Decimal {
	return i.WeightKg.Mul(i.PricePerKg)
}

// PriceBucket is the sum of all items sold at one price.
type PriceBucket struct {
	PricePerKg decimal.Decimal `json:"pricePerKg"`
	WeightKg   decimal.Decimal `json:"weightKg"`
	Amount     decimal.Decimal `json:"amount"`
	Lines      int             `json:"lines"`
}

// String renders the bucket as "N kg @ price → amount".
func (b PriceBucket) String() string {
	return fmt.Sprintf("%s kg @ %s → %s", b.WeightKg.StringFixed(2), b.PricePerKg.StringFixed(2), b.Amount.StringFixed(2))
}

// CollectionSpend is the priced view of one collection.
type CollectionSpend struct {
	CollectionID id.ID           `json:"collectionId"`
	AgentID      id.ID           `json:"agentId"`
	Date         time.Time       `json:"date"`
	DriverName   string          `json:"driverName"`
	WeightKg     decimal.Decimal `json:"weightKg"`
	Amount       decimal.Decimal `json:"amount"`
	FromItems    bool            `json:"fromItems"`
	Breakdown    []PriceBucket   `json:"breakdown,omitempty"`
}

// AgentPosition is one agent's totals.
type AgentPosition struct {
	AgentID         id.ID           `json:"agentId"`
	AgentName       string          `json:"agentName"`
	Advances        decimal.Decimal `json:"advances"`
	Expenses        decimal.Decimal `json:"expenses"`
	FruitSpend      decimal.Decimal `json:"fruitSpend"`
	FruitWeight     decimal.Decimal `json:"fruitWeight"`
	Net             decimal.Decimal `json:"net"`
	AdvanceCount    int             `json:"advanceCount"`
	ExpenseCount    int             `json:"expenseCount"`
	CollectionCount int             `json:"collectionCount"`
	Status          string          `json:"status"`
}

// Totals are the sums over all agents.
type Totals struct {
	Advances    decimal.Decimal `json:"advances"`
	Expenses    decimal.Decimal `json:"expenses"`
	FruitSpend  decimal.Decimal `json:"fruitSpend"`
	FruitWeight decimal.Decimal `json:"fruitWeight"`
	Net         decimal.Decimal `json:"net"`
}

// NetPositionReport is the consolidated report.
type NetPositionReport struct {
	Filter      NetPositionFilter `json:"filter"`
	GeneratedAt time.Time         `json:"generatedAt"`

	Agents []AgentPosition `json:"agents"`
	Totals Totals          `json:"totals"`
	// Status is LabelSurplus or LabelDeficit; Magnitude is |Totals.Net|.
	Status    string          `json:"status"`
	Magnitude decimal.Decimal `json:"magnitude"`

	TopDeficit []AgentPosition `json:"topDeficit"`
	TopSurplus []AgentPosition `json:"topSurplus"`

	Collections []CollectionSpend `json:"collections"`
	Advances    []AdvanceRow      `json:"advances"`
	Expenses    []ExpenseRow      `json:"expenses"`

	// ItemsUnavailable is set when line items could not be read; every collection was
	// then priced from its stored aggregate.
	ItemsUnavailable bool `json:"itemsUnavailable"`
}
