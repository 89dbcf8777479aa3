// Package collections records fruit deliveries from agents, each priced as one or more
// weight × price items.
package collections

import (
	"context"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"palmledger/internal/core/apperror"
	"palmledger/internal/core/entity"
	"palmledger/internal/core/id"
	"palmledger/internal/core/types"
)

// Collection is one delivery event.
type Collection struct {
	entity.BaseEntity
	AgentID     id.ID        `db:"agent_id" json:"agentId"`
	Date        time.Time    `db:"collection_date" json:"date"`
	DriverName  string       `db:"driver_name" json:"driverName"`
	TotalWeight types.Weight `db:"total_weight" json:"totalWeight"`
	TotalAmount types.Money  `db:"total_amount" json:"totalAmount"`
	Notes       *string      `db:"notes" json:"notes,omitempty"`

	Items []Item `db:"-" json:"items"`
}

// Item is a priced weight slice of a collection.
type Item struct {
	ID           id.ID        `db:"id" json:"id"`
	CollectionID id.ID        `db:"collection_id" json:"collectionId"`
	LineNo       int          `db:"line_no" json:"lineNo"`
	WeightKg     types.Weight `db:"weight_kg" json:"weightKg"`
	PricePerKg   types.Money  `db:"price_per_kg" json:"pricePerKg"`
	LineTotal    types.Money  `db:"line_total" json:"lineTotal"`
}

func (c *Collection) AgentRef() id.ID { return c.AgentID }

// Validate checks header invariants. Items are validated through the Breakdown.
func (c *Collection) Validate(ctx context.Context) error {
	c.DriverName = strings.TrimSpace(c.DriverName)
	if id.IsNil(c.AgentID) {
		return apperror.NewValidation("agent is required").WithDetail("field", "agentId")
	}
	if c.Date.IsZero() {
		return apperror.NewValidation("date is required").WithDetail("field", "date")
	}
	if len(c.DriverName) > 200 {
		return apperror.NewValidation("driver name is too long").WithDetail("field", "driverName")
	}
	return nil
}

// DisplayWeight is the sum of item weights when items exist, else the stored total.
func (c *Collection) DisplayWeight() types.Weight {
	if len(c.Items) == 0 {
		return c.TotalWeight
	}
	total := decimal.Zero
	for _, it := range c.Items {
		total = total.Add(it.WeightKg)
	}
	return total
}

// DisplayAmount is the sum of item line totals when items exist, else the stored total.
func (c *Collection) DisplayAmount() types.Money {
	if len(c.Items) == 0 {
		return c.TotalAmount
	}
	total := decimal.Zero
	for _, it := range c.Items {
		total = total.Add(it.WeightKg.Mul(it.PricePerKg))
	}
	return total
}

// Breakdown rebuilds the editable rows from stored items.
func (c *Collection) Breakdown() *Breakdown {
	rows := make([]Row, len(c.Items))
	for i, it := range c.Items {
		rows[i] = Row{WeightKg: it.WeightKg, PricePerKg: it.PricePerKg}
	}
	mode := ModeBreakdown
	if len(rows) == 1 {
		mode = ModeSimple
	}
	return NewBreakdown(mode, rows...)
}

// Draft is the operator's input for creating or editing a collection.
type Draft struct {
	AgentID    id.ID
	Date       time.Time
	DriverName string
	Notes      *string
	Breakdown  *Breakdown
	// Version is the expected version when editing.
	Version int
}
