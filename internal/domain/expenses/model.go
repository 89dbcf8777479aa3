// Package expenses records costs incurred by agents in the field.
package expenses

import (
	"context"
	"strings"
	"time"

	"palmledger/internal/core/apperror"
	"palmledger/internal/core/entity"
	"palmledger/internal/core/id"
	"palmledger/internal/core/types"
)

// Expense is one agent-incurred cost.
type Expense struct {
	entity.BaseEntity
	AgentID id.ID       `db:"agent_id" json:"agentId"`
	Type    string      `db:"expense_type" json:"type"`
	Amount  types.Money `db:"amount" json:"amount"`
	Date    time.Time   `db:"expense_date" json:"date"`
}

func (e *Expense) AgentRef() id.ID { return e.AgentID }

// Validate checks expense invariants.
func (e *Expense) Validate(ctx context.Context) error {
	e.Type = strings.Join(strings.Fields(e.Type), " ")
	if id.IsNil(e.AgentID) {
		return apperror.NewValidation("agent is required").WithDetail("field", "agentId")
	}
	if e.Type == "" {
		return apperror.NewValidation("expense type is required").WithDetail("field", "type")
	}
	if len(e.Type) > 120 {
		return apperror.NewValidation("expense type is too long").WithDetail("field", "type")
	}
	if !e.Amount.IsPositive() {
		return apperror.NewValidation("amount must be greater than zero").
			WithDetail("field", "amount").
			WithDetail("value", e.Amount.String())
	}
	if !types.FitsScale(e.Amount, types.MoneyPlaces) {
		return apperror.NewValidation("amount allows at most 2 decimal places").
			WithDetail("field", "amount").
			WithDetail("value", e.Amount.String())
	}
	if e.Date.IsZero() {
		return apperror.NewValidation("date is required").WithDetail("field", "date")
	}
	return nil
}
