// Package audit defines the change log written alongside every mutation.
package audit

import (
	"context"

	"palmledger/internal/core/id"
)

// Action is the kind of audited change.
type Action string

const (
	ActionCreate Action = "create"
	ActionUpdate Action = "update"
	ActionDelete Action = "delete"
	ActionStatus Action = "status"
)

// Recorder writes audit entries. Implementations must join the transaction in ctx so an
// entry is never committed without its change.
type Recorder interface {
	LogChange(ctx context.Context, entityType string, entityID id.ID, action Action, changes map[string]any) error
}

// Nop discards entries.
type Nop struct{}

func (Nop) LogChange(context.Context, string, id.ID, Action, map[string]any) error { return nil }
