package collections

import (
	"fmt"

	"github.com/shopspring/decimal"

	"palmledger/internal/core/apperror"
	"palmledger/internal/core/id"
	"palmledger/internal/core/types"
)

// Mode selects how a delivery is entered.
type Mode string

const (
	// ModeSimple is a single weight and price.
	ModeSimple Mode = "SIMPLE"
	// ModeBreakdown splits the weight across several prices.
	ModeBreakdown Mode = "BREAKDOWN"
)

// Row is one (weight, price) pair being entered.
type Row struct {
	WeightKg   types.Weight `json:"weightKg"`
	PricePerKg types.Money  `json:"pricePerKg"`
}

// LineTotal is weight × price.
func (r Row) LineTotal() types.Money {
	return r.WeightKg.Mul(r.PricePerKg)
}

// Breakdown is the editable set of rows of one delivery. It always holds at least one row.
type Breakdown struct {
	mode Mode
	rows []Row
}

// NewBreakdown creates a breakdown. Without rows it starts with one empty row; in simple
// mode only the first row is kept.
func NewBreakdown(mode Mode, rows ...Row) *Breakdown {
	if mode != ModeSimple {
		mode = ModeBreakdown
	}
	b := &Breakdown{mode: mode}
	if len(rows) == 0 {
		b.rows = []Row{{}}
		return b
	}
	if mode == ModeSimple {
		rows = rows[:1]
	}
	b.rows = append([]Row(nil), rows...)
	return b
}

func (b *Breakdown) Mode() Mode { return b.mode }

func (b *Breakdown) Len() int { return len(b.rows) }

// Rows returns a copy of the rows.
func (b *Breakdown) Rows() []Row {
	return append([]Row(nil), b.rows...)
}

// SetMode switches modes. Switching to simple keeps only the first row.
func (b *Breakdown) SetMode(mode Mode) {
	if mode == ModeSimple {
		b.mode = ModeSimple
		b.rows = b.rows[:1]
		return
	}
	b.mode = ModeBreakdown
}

// AddRow appends a row. Simple mode holds exactly one row.
func (b *Breakdown) AddRow(r Row) error {
	if b.mode == ModeSimple {
		return apperror.NewBusinessRule(apperror.CodeBusinessRule, "switch to breakdown mode to add rows")
	}
	b.rows = append(b.rows, r)
	return nil
}

// UpdateRow replaces row i.
func (b *Breakdown) UpdateRow(i int, r Row) error {
	if err := b.checkIndex(i); err != nil {
		return err
	}
	b.rows[i] = r
	return nil
}

// RemoveRow deletes row i. The last remaining row cannot be removed.
func (b *Breakdown) RemoveRow(i int) error {
	if err := b.checkIndex(i); err != nil {
		return err
	}
	if len(b.rows) == 1 {
		return apperror.NewBusinessRule(apperror.CodeLastBreakdownRow, "at least one row is required")
	}
	b.rows = append(b.rows[:i], b.rows[i+1:]...)
	return nil
}

// DuplicateRow inserts a copy of row i right after it.
func (b *Breakdown) DuplicateRow(i int) error {
	if err := b.checkIndex(i); err != nil {
		return err
	}
	if b.mode == ModeSimple {
		return apperror.NewBusinessRule(apperror.CodeBusinessRule, "switch to breakdown mode to add rows")
	}
	b.rows = append(b.rows[:i+1], append([]Row{b.rows[i]}, b.rows[i+1:]...)...)
	return nil
}

// Clear resets to a single empty row.
func (b *Breakdown) Clear() {
	b.rows = []Row{{}}
}

// Validate requires every weight and price to be strictly positive and to fit the stored scale.
func (b *Breakdown) Validate() error {
	if len(b.rows) == 0 {
		return apperror.NewValidation("at least one row is required").WithDetail("field", "rows")
	}
	for i, r := range b.rows {
		if !r.WeightKg.IsPositive() {
			return apperror.NewValidation("weight must be greater than zero").
				WithDetail("field", fmt.Sprintf("rows[%d].weightKg", i)).
				WithDetail("value", r.WeightKg.String())
		}
		if !r.PricePerKg.IsPositive() {
			return apperror.NewValidation("price per kg must be greater than zero").
				WithDetail("field", fmt.Sprintf("rows[%d].pricePerKg", i)).
				WithDetail("value", r.PricePerKg.String())
		}
		if !types.FitsScale(r.WeightKg, types.WeightPlaces) {
			return apperror.NewValidation("weight allows at most 3 decimal places").
				WithDetail("field", fmt.Sprintf("rows[%d].weightKg", i)).
				WithDetail("value", r.WeightKg.String())
		}
		if !types.FitsScale(r.PricePerKg, types.MoneyPlaces) {
			return apperror.NewValidation("price per kg allows at most 2 decimal places").
				WithDetail("field", fmt.Sprintf("rows[%d].pricePerKg", i)).
				WithDetail("value", r.PricePerKg.String())
		}
	}
	return nil
}

// TotalWeight sums row weights.
func (b *Breakdown) TotalWeight() types.Weight {
	total := decimal.Zero
	for _, r := range b.rows {
		total = total.Add(r.WeightKg)
	}
	return total
}

// TotalAmount sums row line totals.
func (b *Breakdown) TotalAmount() types.Money {
	total := decimal.Zero
	for _, r := range b.rows {
		total = total.Add(r.LineTotal())
	}
	return total
}

// Items converts the rows into collection items of collectionID.
func (b *Breakdown) Items(collectionID id.ID) []Item {
	items := make([]Item, len(b.rows))
	for i, r := range b.rows {
		items[i] = Item{
			ID:           id.New(),
			CollectionID: collectionID,
			LineNo:       i + 1,
			WeightKg:     r.WeightKg,
			PricePerKg:   r.PricePerKg,
			LineTotal:    r.LineTotal(),
		}
	}
	return items
}

func (b *Breakdown) checkIndex(i int) error {
	if i < 0 || i >= len(b.rows) {
		return apperror.NewValidation("row index out of range").
			WithDetail("index", i).
			WithDetail("rows", len(b.rows))
	}
	return nil
}
