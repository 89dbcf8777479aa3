// Package tx decouples services from the database transaction implementation.
package tx

import (
	"context"
)

// Manager runs fn inside a transaction: rollback when fn returns an error, commit otherwise.
// Nested calls join the transaction already present in ctx.
type Manager interface {
	RunInTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}

// Nop runs fn directly. Tests and read paths that never write use it.
type Nop struct{}

func (Nop) RunInTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}
