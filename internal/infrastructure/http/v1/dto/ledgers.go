package dto

import (
	"palmledger/internal/core/entity"
	"palmledger/internal/core/id"
	"palmledger/internal/core/types"
	"palmledger/internal/domain/advances"
	"palmledger/internal/domain/expenses"
	"palmledger/internal/domain/pricing"
)

func baseFor(existing *entity.BaseEntity, version int) entity.BaseEntity {
	if existing == nil {
		return entity.NewBaseEntity()
	}
	b := *existing
	if version != 0 {
		b.Version = version
	}
	return b
}

// --- Cash advances ---

// AdvanceRequest creates or updates a cash advance.
type AdvanceRequest struct {
	AgentID id.ID           `json:"agentId" binding:"required"`
	Date    Date            `json:"date"`
	Amount  types.Money     `json:"amount"`
	Method  advances.Method `json:"method" binding:"omitempty,oneof=CASH MOMO BANK"`
	Signer  *string         `json:"signer" binding:"omitempty,max=200"`
	Version int             `json:"version" binding:"omitempty,min=1"`
}

// ToAdvance builds the advance, keeping identity and audit fields of existing when given.
func (r AdvanceRequest) ToAdvance(existing *advances.CashAdvance) *advances.CashAdvance {
	var base *entity.BaseEntity
	if existing != nil {
		base = &existing.BaseEntity
	}
	return &advances.CashAdvance{
		BaseEntity: baseFor(base, r.Version),
		AgentID:    r.AgentID,
		Date:       r.Date.Time,
		Amount:     r.Amount,
		Method:     r.Method,
		Signer:     trimmed(r.Signer),
	}
}

// --- Expenses ---

// ExpenseRequest creates or updates an expense.
type ExpenseRequest struct {
	AgentID id.ID       `json:"agentId" binding:"required"`
	Type    string      `json:"type" binding:"required,max=120"`
	Amount  types.Money `json:"amount"`
	Date    Date        `json:"date"`
	Version int         `json:"version" binding:"omitempty,min=1"`
}

// ToExpense builds the expense, keeping identity and audit fields of existing when given.
func (r ExpenseRequest) ToExpense(existing *expenses.Expense) *expenses.Expense {
	var base *entity.BaseEntity
	if existing != nil {
		base = &existing.BaseEntity
	}
	return &expenses.Expense{
		BaseEntity: baseFor(base, r.Version),
		AgentID:    r.AgentID,
		Type:       r.Type,
		Amount:     r.Amount,
		Date:       r.Date.Time,
	}
}

// ExpenseTypesQuery asks for type suggestions.
type ExpenseTypesQuery struct {
	AgentID *string `form:"agentId" binding:"omitempty,uuid"`
	Prefix  string  `form:"q" binding:"max=120"`
	Limit   int     `form:"limit" binding:"omitempty,min=1,max=50"`
}

// --- Price changes ---

// PriceChangeRequest creates or updates a price change.
type PriceChangeRequest struct {
	AgentID         id.ID        `json:"agentId" binding:"required"`
	PricePerKg      types.Money  `json:"pricePerKg"`
	EffectiveAt     *Date        `json:"effectiveAt"`
	CarryoverWeight types.Weight `json:"carryoverWeight"`
	Note            *string      `json:"note" binding:"omitempty,max=500"`
	Version         int          `json:"version" binding:"omitempty,min=1"`
}

// ToPriceChange builds the change, keeping identity and audit fields of existing when given.
// A missing effective date means now.
func (r PriceChangeRequest) ToPriceChange(existing *pricing.PriceChange) *pricing.PriceChange {
	var base *entity.BaseEntity
	if existing != nil {
		base = &existing.BaseEntity
	}
	p := &pricing.PriceChange{
		BaseEntity:      baseFor(base, r.Version),
		AgentID:         r.AgentID,
		PricePerKg:      r.PricePerKg,
		CarryoverWeight: r.CarryoverWeight,
		Note:            trimmed(r.Note),
	}
	if t := r.EffectiveAt.Ptr(); t != nil {
		p.EffectiveAt = *t
	}
	return p
}
