// Package reconciliation keeps one monthly summary per agent of advances received and fruit
// weight collected.
package reconciliation

import (
	"fmt"
	"strings"
	"time"

	"palmledger/internal/core/id"
	"palmledger/internal/core/types"
)

// Status is the review state of a reconciliation.
type Status string

const (
	StatusOpen     Status = "OPEN"
	StatusRendered Status = "RENDERED"
	StatusClosed   Status = "CLOSED"
)

// IsValid reports whether s is a known status.
func (s Status) IsValid() bool {
	switch s {
	case StatusOpen, StatusRendered, StatusClosed:
		return true
	}
	return false
}

// StatusPolicy decides the status of a regenerated row.
type StatusPolicy string

const (
	// PolicyReset sets every regenerated row back to OPEN.
	PolicyReset StatusPolicy = "reset"
	// PolicyPreserve keeps the status of an existing row.
	PolicyPreserve StatusPolicy = "preserve"
)

// ParseStatusPolicy accepts "reset" or "preserve"; empty means reset.
func ParseStatusPolicy(s string) (StatusPolicy, error) {
	switch p := StatusPolicy(strings.ToLower(strings.TrimSpace(s))); p {
	case "":
		return PolicyReset, nil
	case PolicyReset, PolicyPreserve:
		return p, nil
	default:
		return "", fmt.Errorf("unknown reconciliation status policy %q", s)
	}
}

// Apply returns the status a regenerated row gets when existing is its stored status
// (empty for a new row).
func (p StatusPolicy) Apply(existing Status) Status {
	if p == PolicyPreserve && existing.IsValid() {
		return existing
	}
	return StatusOpen
}

// Reconciliation is the summary of one agent for one month.
type Reconciliation struct {
	ID                   id.ID        `db:"id" json:"id"`
	AgentID              id.ID        `db:"agent_id" json:"agentId"`
	Month                time.Time    `db:"month" json:"month"`
	TotalAdvance         types.Money  `db:"total_advance" json:"totalAdvance"`
	TotalCollectedWeight types.Weight `db:"total_collected_weight" json:"totalCollectedWeight"`
	Status               Status       `db:"status" json:"status"`
	Comments             *string      `db:"comments" json:"comments,omitempty"`
	GeneratedAt          time.Time    `db:"generated_at" json:"generatedAt"`
	GeneratedBy          string       `db:"generated_by" json:"generatedBy,omitempty"`
	Version              int          `db:"version" json:"version"`
	CreatedAt            time.Time    `db:"created_at" json:"createdAt"`
	UpdatedAt            time.Time    `db:"updated_at" json:"updatedAt"`
}

// Filter selects reconciliations. Month bounds are inclusive; zero means open.
type Filter struct {
	AgentID *id.ID
	From    time.Time
	To      time.Time
	Status  Status
	Limit   int
	Offset  int
}
