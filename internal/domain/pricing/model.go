// Package pricing keeps the ledger of agents' buying price changes.
//
// A change records the weight still on the ground at the old price (carryover). The ledger
// is informational: collections are priced by the operator, nothing is allocated automatically.
package pricing

import (
	"context"
	"strings"
	"time"

	"palmledger/internal/core/apperror"
	"palmledger/internal/core/entity"
	"palmledger/internal/core/id"
	"palmledger/internal/core/types"
)

// PriceChange is one buying price change of an agent.
type PriceChange struct {
	entity.BaseEntity
	AgentID         id.ID        `db:"agent_id" json:"agentId"`
	PricePerKg      types.Money  `db:"price_per_kg" json:"pricePerKg"`
	EffectiveAt     time.Time    `db:"effective_at" json:"effectiveAt"`
	CarryoverWeight types.Weight `db:"carryover_weight" json:"carryoverWeight"`
	Note            *string      `db:"note" json:"note,omitempty"`
}

func (p *PriceChange) AgentRef() id.ID { return p.AgentID }

// Validate checks price change invariants.
func (p *PriceChange) Validate(ctx context.Context) error {
	if id.IsNil(p.AgentID) {
		return apperror.NewValidation("agent is required").WithDetail("field", "agentId")
	}
	if !p.PricePerKg.IsPositive() {
		return apperror.NewValidation("price per kg must be greater than zero").
			WithDetail("field", "pricePerKg").
			WithDetail("value", p.PricePerKg.String())
	}
	if !types.FitsScale(p.PricePerKg, types.MoneyPlaces) {
		return apperror.NewValidation("price per kg allows at most 2 decimal places").
			WithDetail("field", "pricePerKg").
			WithDetail("value", p.PricePerKg.String())
	}
	if !types.FitsScale(p.CarryoverWeight, types.WeightPlaces) {
		return apperror.NewValidation("carryover weight allows at most 3 decimal places").
			WithDetail("field", "carryoverWeight").
			WithDetail("value", p.CarryoverWeight.String())
	}
	if p.CarryoverWeight.IsNegative() {
		return apperror.NewValidation("carryover weight cannot be negative").
			WithDetail("field", "carryoverWeight").
			WithDetail("value", p.CarryoverWeight.String())
	}
	if p.EffectiveAt.IsZero() {
		p.EffectiveAt = time.Now().UTC()
	}
	if p.Note != nil {
		note := strings.TrimSpace(*p.Note)
		if note == "" {
			p.Note = nil
		} else {
			p.Note = &note
		}
	}
	return nil
}

// CarryoverValue is the carryover weight valued at the given (old) price.
func (p *PriceChange) CarryoverValue(oldPrice types.Money) types.Money {
	return p.CarryoverWeight.Mul(oldPrice)
}
