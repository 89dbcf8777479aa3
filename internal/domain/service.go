package domain

import (
	"context"
	"fmt"
	"time"

	"palmledger/internal/core/apperror"
	appctx "palmledger/internal/core/context"
	"palmledger/internal/core/entity"
	"palmledger/internal/core/id"
	"palmledger/internal/core/security"
	"palmledger/internal/core/tx"
	"palmledger/internal/domain/audit"
	"palmledger/pkg/logger"
)

// LedgerService implements create/read/update/delete for agent-owned records
// (advances, expenses, price changes). Every call is scoped by the caller's agent visibility.
type LedgerService[T entity.AgentOwned] struct {
	repo       LedgerRepository[T]
	txManager  tx.Manager
	audit      audit.Recorder
	hooks      *HookRegistry[T]
	entityName string
	now        func() time.Time
}

// LedgerServiceConfig configures a LedgerService.
type LedgerServiceConfig[T entity.AgentOwned] struct {
	Repo       LedgerRepository[T]
	TxManager  tx.Manager
	Audit      audit.Recorder // optional
	EntityName string
}

// NewLedgerService creates a ledger service.
func NewLedgerService[T entity.AgentOwned](cfg LedgerServiceConfig[T]) *LedgerService[T] {
	rec := cfg.Audit
	if rec == nil {
		rec = audit.Nop{}
	}
	return &LedgerService[T]{
		repo:       cfg.Repo,
		txManager:  cfg.TxManager,
		audit:      rec,
		hooks:      NewHookRegistry[T](),
		entityName: cfg.EntityName,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// Hooks returns the hook registry for external registration.
func (s *LedgerService[T]) Hooks() *HookRegistry[T] {
	return s.hooks
}

func (s *LedgerService[T]) validate(ctx context.Context, e T) error {
	if err := e.Validate(ctx); err != nil {
		if _, ok := apperror.AsAppError(err); ok {
			return err
		}
		return apperror.NewValidation(err.Error())
	}
	return nil
}

// Create validates and stores a new record.
func (s *LedgerService[T]) Create(ctx context.Context, e T) error {
	if err := security.NewAccessScope(ctx).RequireAgent(e.AgentRef()); err != nil {
		return err
	}
	if err := s.validate(ctx, e); err != nil {
		return err
	}
	e.Stamp(appctx.GetUserID(ctx), s.now())

	if err := s.hooks.Run(ctx, BeforeCreate, e); err != nil {
		return err
	}

	err := s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		if err := s.repo.Create(ctx, e); err != nil {
			return fmt.Errorf("create %s: %w", s.entityName, err)
		}
		return s.audit.LogChange(ctx, s.entityName, e.GetID(), audit.ActionCreate, map[string]any{"new": e})
	})
	if err != nil {
		return err
	}

	if err := s.hooks.Run(ctx, AfterCreate, e); err != nil {
		logger.Warn(ctx, "after-create hook failed", "entity", s.entityName, "id", e.GetID(), "error", err)
	}

	logger.Info(ctx, s.entityName+" created", "id", e.GetID(), "agent_id", e.AgentRef())
	return nil
}

// GetByID returns a visible record. Records of other agents read as not found.
func (s *LedgerService[T]) GetByID(ctx context.Context, recordID id.ID) (T, error) {
	e, err := s.repo.GetByID(ctx, recordID)
	if err != nil {
		return e, err
	}
	if !security.NewAccessScope(ctx).CanAccessAgent(e.AgentRef()) {
		var zero T
		return zero, apperror.NewNotFound(s.entityName, recordID.String())
	}
	return e, nil
}

// Update replaces a record. Moving it to an agent the caller cannot see is refused.
func (s *LedgerService[T]) Update(ctx context.Context, e T) error {
	existing, err := s.GetByID(ctx, e.GetID())
	if err != nil {
		return err
	}
	if err := security.NewAccessScope(ctx).RequireAgent(e.AgentRef()); err != nil {
		return err
	}
	if err := s.validate(ctx, e); err != nil {
		return err
	}
	e.Stamp(appctx.GetUserID(ctx), s.now())

	if err := s.hooks.Run(ctx, BeforeUpdate, e); err != nil {
		return err
	}

	err = s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		if err := s.repo.Update(ctx, e); err != nil {
			return fmt.Errorf("update %s: %w", s.entityName, err)
		}
		return s.audit.LogChange(ctx, s.entityName, e.GetID(), audit.ActionUpdate,
			map[string]any{"old": existing, "new": e})
	})
	if err != nil {
		return err
	}

	logger.Info(ctx, s.entityName+" updated", "id", e.GetID())
	return nil
}

// Delete removes a record.
func (s *LedgerService[T]) Delete(ctx context.Context, recordID id.ID) error {
	existing, err := s.GetByID(ctx, recordID)
	if err != nil {
		return err
	}
	if err := s.hooks.Run(ctx, BeforeDelete, existing); err != nil {
		return err
	}

	err = s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		if err := s.repo.Delete(ctx, recordID); err != nil {
			return fmt.Errorf("delete %s: %w", s.entityName, err)
		}
		return s.audit.LogChange(ctx, s.entityName, recordID, audit.ActionDelete, map[string]any{"old": existing})
	})
	if err != nil {
		return err
	}

	logger.Info(ctx, s.entityName+" deleted", "id", recordID)
	return nil
}

// List returns the records visible to the caller.
func (s *LedgerService[T]) List(ctx context.Context, filter ListFilter) (ListResult[T], error) {
	agentID, err := security.NewAccessScope(ctx).AgentFilter(filter.AgentID)
	if err != nil {
		return ListResult[T]{}, err
	}
	filter.AgentID = agentID
	if err := filter.Period.Validate(); err != nil {
		return ListResult[T]{}, apperror.NewValidation(err.Error())
	}
	filter.Normalize()
	return s.repo.List(ctx, filter)
}
