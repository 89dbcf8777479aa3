// Package advances records cash disbursed to agents to fund purchases.
package advances

import (
	"context"
	"strings"
	"time"

	"palmledger/internal/core/apperror"
	"palmledger/internal/core/entity"
	"palmledger/internal/core/id"
	"palmledger/internal/core/tx"
	"palmledger/internal/core/types"
	"palmledger/internal/domain"
	"palmledger/internal/domain/audit"
)

// Method is how the cash reached the agent.
type Method string

const (
	MethodCash Method = "CASH"
	MethodMomo Method = "MOMO"
	MethodBank Method = "BANK"
)

// Valid reports whether m is a known method.
func (m Method) Valid() bool {
	switch m {
	case MethodCash, MethodMomo, MethodBank:
		return true
	}
	return false
}

// CashAdvance is one disbursement to an agent.
type CashAdvance struct {
	entity.BaseEntity
	AgentID id.ID       `db:"agent_id" json:"agentId"`
	Date    time.Time   `db:"advance_date" json:"date"`
	Amount  types.Money `db:"amount" json:"amount"`
	Method  Method      `db:"method" json:"method"`
	Signer  *string     `db:"signer" json:"signer,omitempty"`
}

func (a *CashAdvance) AgentRef() id.ID { return a.AgentID }

// Validate checks advance invariants.
func (a *CashAdvance) Validate(ctx context.Context) error {
	if id.IsNil(a.AgentID) {
		return apperror.NewValidation("agent is required").WithDetail("field", "agentId")
	}
	if a.Date.IsZero() {
		return apperror.NewValidation("date is required").WithDetail("field", "date")
	}
	if !a.Amount.IsPositive() {
		return apperror.NewValidation("amount must be greater than zero").
			WithDetail("field", "amount").
			WithDetail("value", a.Amount.String())
	}
	if !types.FitsScale(a.Amount, types.MoneyPlaces) {
		return apperror.NewValidation("amount allows at most 2 decimal places").
			WithDetail("field", "amount").
			WithDetail("value", a.Amount.String())
	}
	if a.Method == "" {
		a.Method = MethodCash
	}
	if !a.Method.Valid() {
		return apperror.NewValidation("invalid payment method").
			WithDetail("field", "method").
			WithDetail("value", a.Method)
	}
	if a.Signer != nil {
		signer := strings.TrimSpace(*a.Signer)
		if signer == "" {
			a.Signer = nil
		} else {
			a.Signer = &signer
		}
	}
	return nil
}

// Repository stores advances.
type Repository = domain.LedgerRepository[*CashAdvance]

// Service manages advances.
type Service = domain.LedgerService[*CashAdvance]

// NewService creates the advance service.
func NewService(repo Repository, txManager tx.Manager, rec audit.Recorder) *Service {
	return domain.NewLedgerService(domain.LedgerServiceConfig[*CashAdvance]{
		Repo:       repo,
		TxManager:  txManager,
		Audit:      rec,
		EntityName: "cash advance",
	})
}
