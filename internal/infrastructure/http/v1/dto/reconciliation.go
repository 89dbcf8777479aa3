package dto

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"

	"palmledger/internal/core/id"
	"palmledger/internal/core/types"
	"palmledger/internal/domain/reconciliation"
)

// Month is a calendar month on the wire, YYYY-MM. A full date is accepted and truncated.
type Month struct {
	time.Time
}

// ParseMonth parses YYYY-MM or YYYY-MM-DD into the first day of the month.
func ParseMonth(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	if t, err := time.Parse("2006-01", s); err == nil {
		return t, nil
	}
	t, err := time.Parse(types.DateLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid month %q: expected YYYY-MM", s)
	}
	return types.MonthOf(t), nil
}

// UnmarshalJSON implements json.Unmarshaler.
func (m *Month) UnmarshalJSON(b []byte) error {
	if bytes.Equal(b, []byte("null")) {
		m.Time = time.Time{}
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return fmt.Errorf("month must be a string: %w", err)
	}
	t, err := ParseMonth(s)
	if err != nil {
		return err
	}
	m.Time = t
	return nil
}

// GenerateReconciliationRequest computes one agent's month.
type GenerateReconciliationRequest struct {
	AgentID id.ID `json:"agentId" binding:"required"`
	Month   Month `json:"month"`
}

// PatchReconciliationRequest changes status, comments or both.
type PatchReconciliationRequest struct {
	Status   *reconciliation.Status `json:"status" binding:"omitempty,oneof=OPEN RENDERED CLOSED"`
	Comments *string                `json:"comments" binding:"omitempty,max=2000"`
	Version  int                    `json:"version" binding:"omitempty,min=1"`
}

// ReconciliationListQuery filters reconciliations by month range and status.
type ReconciliationListQuery struct {
	AgentID *string               `form:"agentId" binding:"omitempty,uuid"`
	From    string                `form:"from"`
	To      string                `form:"to"`
	Status  reconciliation.Status `form:"status" binding:"omitempty,oneof=OPEN RENDERED CLOSED"`
	Limit   int                   `form:"limit" binding:"omitempty,min=1,max=500"`
	Offset  int                   `form:"offset" binding:"omitempty,min=0"`
}

// ToFilter converts to the domain filter.
func (q *ReconciliationListQuery) ToFilter() (reconciliation.Filter, error) {
	f := reconciliation.Filter{Status: q.Status, Limit: q.Limit, Offset: q.Offset}
	var err error
	if q.AgentID != nil {
		if f.AgentID, err = id.ParseOptional(*q.AgentID); err != nil {
			return f, err
		}
	}
	if f.From, err = ParseMonth(q.From); err != nil {
		return f, err
	}
	if f.To, err = ParseMonth(q.To); err != nil {
		return f, err
	}
	return f, nil
}
