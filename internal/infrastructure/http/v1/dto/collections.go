package dto

import (
	"palmledger/internal/core/apperror"
	"palmledger/internal/core/id"
	"palmledger/internal/core/types"
	"palmledger/internal/domain/collections"
)

// CollectionRowRequest is one weight × price row.
type CollectionRowRequest struct {
	WeightKg   types.Weight `json:"weightKg"`
	PricePerKg types.Money  `json:"pricePerKg"`
}

// CollectionRequest creates or edits a fruit collection.
type CollectionRequest struct {
	AgentID    id.ID                  `json:"agentId" binding:"required"`
	Date       Date                   `json:"date"`
	DriverName string                 `json:"driverName" binding:"max=200"`
	Notes      *string                `json:"notes" binding:"omitempty,max=1000"`
	Mode       collections.Mode       `json:"mode" binding:"omitempty,oneof=SIMPLE BREAKDOWN"`
	Rows       []CollectionRowRequest `json:"rows" binding:"required,min=1,max=100"`
	Version    int                    `json:"version" binding:"omitempty,min=1"`
}

// ToDraft converts the request to the domain draft. Without a mode, one row means simple
// entry and several rows a breakdown.
func (r *CollectionRequest) ToDraft() (collections.Draft, error) {
	rows := make([]collections.Row, len(r.Rows))
	for i, row := range r.Rows {
		rows[i] = collections.Row{WeightKg: row.WeightKg, PricePerKg: row.PricePerKg}
	}
	mode := r.Mode
	if mode == "" {
		mode = collections.ModeBreakdown
		if len(rows) == 1 {
			mode = collections.ModeSimple
		}
	}
	if mode == collections.ModeSimple && len(rows) > 1 {
		return collections.Draft{}, apperror.NewValidation("simple entry takes exactly one row").
			WithDetail("field", "rows")
	}
	return collections.Draft{
		AgentID:    r.AgentID,
		Date:       r.Date.Time,
		DriverName: r.DriverName,
		Notes:      trimmed(r.Notes),
		Breakdown:  collections.NewBreakdown(mode, rows...),
		Version:    r.Version,
	}, nil
}

// CollectionResponse is a collection with its display totals.
type CollectionResponse struct {
	*collections.Collection
	DisplayWeight types.Weight `json:"displayWeight"`
	DisplayAmount types.Money  `json:"displayAmount"`
}

// FromCollection creates the response.
func FromCollection(c *collections.Collection) CollectionResponse {
	return CollectionResponse{
		Collection:    c,
		DisplayWeight: c.DisplayWeight(),
		DisplayAmount: c.DisplayAmount(),
	}
}

// BreakdownRowResponse is one editable row with its line total.
type BreakdownRowResponse struct {
	WeightKg   types.Weight `json:"weightKg"`
	PricePerKg types.Money  `json:"pricePerKg"`
	LineTotal  types.Money  `json:"lineTotal"`
}

// BreakdownResponse rebuilds the entry form of a stored collection.
type BreakdownResponse struct {
	CollectionID string                 `json:"collectionId"`
	Mode         collections.Mode       `json:"mode"`
	Rows         []BreakdownRowResponse `json:"rows"`
	TotalWeight  types.Weight           `json:"totalWeight"`
	TotalAmount  types.Money            `json:"totalAmount"`
	Version      int                    `json:"version"`
}

// FromBreakdown creates the response.
func FromBreakdown(c *collections.Collection) BreakdownResponse {
	b := c.Breakdown()
	rows := b.Rows()
	out := BreakdownResponse{
		CollectionID: c.ID.String(),
		Mode:         b.Mode(),
		Rows:         make([]BreakdownRowResponse, len(rows)),
		TotalWeight:  b.TotalWeight(),
		TotalAmount:  b.TotalAmount(),
		Version:      c.Version,
	}
	for i, r := range rows {
		out.Rows[i] = BreakdownRowResponse{WeightKg: r.WeightKg, PricePerKg: r.PricePerKg, LineTotal: r.LineTotal()}
	}
	return out
}
