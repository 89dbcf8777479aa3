// Package domain holds the contracts shared by the business packages under it.
package domain

import (
	"context"

	"palmledger/internal/core/entity"
	"palmledger/internal/core/id"
	"palmledger/internal/core/types"
)

// ListFilter contains common filtering options for list operations.
type ListFilter struct {
	// AgentID restricts results to one agent. Overwritten by the caller's scope for agents.
	AgentID *id.ID

	// Period filters by the record's business date, both bounds inclusive
	Period types.DateRange

	// Search matches free-text columns (ILIKE)
	Search string

	// OrderBy is a column name, "-" prefix for descending
	OrderBy string

	Limit  int
	Offset int
}

// MaxListLimit caps page sizes.
const MaxListLimit = 500

// Normalize applies default and maximum page size.
func (f *ListFilter) Normalize() {
	if f.Limit <= 0 {
		f.Limit = 50
	}
	if f.Limit > MaxListLimit {
		f.Limit = MaxListLimit
	}
	if f.Offset < 0 {
		f.Offset = 0
	}
}

// ListResult contains paginated results.
type ListResult[T any] struct {
	Items      []T   `json:"items"`
	TotalCount int64 `json:"totalCount"`
	Limit      int   `json:"limit"`
	Offset     int   `json:"offset"`
}

// LedgerRepository is the storage contract of agent-owned ledger records.
type LedgerRepository[T entity.AgentOwned] interface {
	Create(ctx context.Context, e T) error
	GetByID(ctx context.Context, id id.ID) (T, error)
	// Update applies optimistic locking on Version.
	Update(ctx context.Context, e T) error
	Delete(ctx context.Context, id id.ID) error
	List(ctx context.Context, filter ListFilter) (ListResult[T], error)
}

// HookEvent represents lifecycle event type.
type HookEvent string

const (
	BeforeCreate HookEvent = "before_create"
	AfterCreate  HookEvent = "after_create"
	BeforeUpdate HookEvent = "before_update"
	BeforeDelete HookEvent = "before_delete"
)

// Hook is a function that runs at specific lifecycle points.
type Hook[T any] func(ctx context.Context, entity T) error

// HookRegistry stores lifecycle hooks for an entity type.
type HookRegistry[T any] struct {
	hooks map[HookEvent][]Hook[T]
}

// NewHookRegistry creates an empty hook registry.
func NewHookRegistry[T any]() *HookRegistry[T] {
	return &HookRegistry[T]{
		hooks: make(map[HookEvent][]Hook[T]),
	}
}

// On registers a hook for the specified event.
func (r *HookRegistry[T]) On(event HookEvent, hook Hook[T]) {
	r.hooks[event] = append(r.hooks[event], hook)
}

// Run executes hooks for event in registration order, stopping at the first error.
func (r *HookRegistry[T]) Run(ctx context.Context, event HookEvent, entity T) error {
	for _, hook := range r.hooks[event] {
		if err := hook(ctx, entity); err != nil {
			return err
		}
	}
	return nil
}

func (r *HookRegistry[T]) OnBeforeCreate(hook Hook[T]) { r.On(BeforeCreate, hook) }
func (r *HookRegistry[T]) OnAfterCreate(hook Hook[T])  { r.On(AfterCreate, hook) }
func (r *HookRegistry[T]) OnBeforeUpdate(hook Hook[T]) { r.On(BeforeUpdate, hook) }
func (r *HookRegistry[T]) OnBeforeDelete(hook Hook[T]) { r.On(BeforeDelete, hook) }
