// Package agents manages the field collectors who buy fruit on the company's behalf.
package agents

import (
	"context"
	"strings"
	"time"

	"palmledger/internal/core/apperror"
	"palmledger/internal/core/entity"
	"palmledger/internal/domain"
)

// Status of an agent.
type Status string

const (
	StatusActive   Status = "ACTIVE"
	StatusInactive Status = "INACTIVE"
)

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	return s == StatusActive || s == StatusInactive
}

// Agent is a field collector.
type Agent struct {
	entity.BaseEntity
	FullName   string     `db:"full_name" json:"fullName"`
	Phone      string     `db:"phone" json:"phone"`
	Location   string     `db:"location" json:"location"`
	PhotoPath  *string    `db:"photo_path" json:"photoPath,omitempty"`
	Status     Status     `db:"status" json:"status"`
	ArchivedAt *time.Time `db:"archived_at" json:"archivedAt,omitempty"`
}

// NewAgent creates an active agent.
func NewAgent(fullName, phone, location string) *Agent {
	return &Agent{
		BaseEntity: entity.NewBaseEntity(),
		FullName:   fullName,
		Phone:      phone,
		Location:   location,
		Status:     StatusActive,
	}
}

// Validate checks agent invariants.
func (a *Agent) Validate(ctx context.Context) error {
	a.FullName = strings.TrimSpace(a.FullName)
	a.Phone = strings.TrimSpace(a.Phone)
	a.Location = strings.TrimSpace(a.Location)

	if a.FullName == "" {
		return apperror.NewValidation("full name is required").WithDetail("field", "fullName")
	}
	if len(a.FullName) > 200 {
		return apperror.NewValidation("full name is too long").WithDetail("field", "fullName")
	}
	if a.Status == "" {
		a.Status = StatusActive
	}
	if !a.Status.Valid() {
		return apperror.NewValidation("invalid status").
			WithDetail("field", "status").
			WithDetail("value", a.Status)
	}
	return nil
}

// IsArchived reports whether the agent was soft-deleted.
func (a *Agent) IsArchived() bool {
	return a.ArchivedAt != nil
}

// ListFilter filters the agent directory.
type ListFilter struct {
	domain.ListFilter
	Status          Status
	IncludeArchived bool
}
