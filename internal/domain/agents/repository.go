package agents

import (
	"context"
	"time"

	"palmledger/internal/core/id"
	"palmledger/internal/domain"
)

// Repository is the storage contract of the agent directory.
type Repository interface {
	Create(ctx context.Context, a *Agent) error
	GetByID(ctx context.Context, id id.ID) (*Agent, error)
	Update(ctx context.Context, a *Agent) error
	List(ctx context.Context, filter ListFilter) (domain.ListResult[*Agent], error)

	// Names returns full names keyed by id, archived agents included.
	Names(ctx context.Context, ids []id.ID) (map[id.ID]string, error)

	// ActiveIDs lists non-archived ACTIVE agents.
	ActiveIDs(ctx context.Context) ([]id.ID, error)

	// HasHistory reports whether any advance, expense, collection, price change or
	// reconciliation references the agent.
	HasHistory(ctx context.Context, id id.ID) (bool, error)

	Archive(ctx context.Context, id id.ID, at time.Time) error
	Restore(ctx context.Context, id id.ID) error
	HardDelete(ctx context.Context, id id.ID) error
	SetPhoto(ctx context.Context, id id.ID, path *string) error
}

// PhotoStore is the file storage collaborator.
type PhotoStore interface {
	Put(ctx context.Context, path, contentType string, data []byte) error
	Delete(ctx context.Context, path string) error
	// URL resolves path to a viewable, possibly time-limited, URL.
	URL(ctx context.Context, path string) (string, error)
}

// ImageProcessor normalizes an uploaded image, returning encoded bytes and a content type.
type ImageProcessor interface {
	Process(data []byte) ([]byte, string, error)
}
