// Package entity holds the fields and contracts shared by persisted records.
package entity

import (
	"context"
	"time"

	"palmledger/internal/core/id"
)

// Validatable is implemented by records that check their own invariants without the store.
type Validatable interface {
	// Validate returns nil or an *apperror.AppError with field details.
	Validate(ctx context.Context) error
}

// AgentOwned is a record that belongs to exactly one agent and is scoped by it.
type AgentOwned interface {
	Validatable
	GetID() id.ID
	AgentRef() id.ID
	Stamp(userID string, now time.Time)
}

// BaseEntity contains id, optimistic-lock version and audit fields.
type BaseEntity struct {
	ID        id.ID     `db:"id" json:"id"`
	Version   int       `db:"version" json:"version"`
	CreatedAt time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt time.Time `db:"updated_at" json:"updatedAt"`
	CreatedBy string    `db:"created_by" json:"createdBy,omitempty"`
	UpdatedBy string    `db:"updated_by" json:"updatedBy,omitempty"`
}

// NewBaseEntity creates a BaseEntity with a fresh id.
func NewBaseEntity() BaseEntity {
	return BaseEntity{
		ID:      id.New(),
		Version: 1,
	}
}

func (b *BaseEntity) GetID() id.ID {
	return b.ID
}

// Stamp fills audit fields. Creation fields are set only once.
func (b *BaseEntity) Stamp(userID string, now time.Time) {
	if id.IsNil(b.ID) {
		b.ID = id.New()
	}
	if b.Version == 0 {
		b.Version = 1
	}
	if b.CreatedAt.IsZero() {
		b.CreatedAt = now
		b.CreatedBy = userID
	}
	b.UpdatedAt = now
	b.UpdatedBy = userID
}
