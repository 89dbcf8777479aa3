package collections

import (
	"context"
	"fmt"
	"time"

	"palmledger/internal/core/apperror"
	appctx "palmledger/internal/core/context"
	"palmledger/internal/core/id"
	"palmledger/internal/core/security"
	"palmledger/internal/core/tx"
	"palmledger/internal/domain"
	"palmledger/internal/domain/audit"
	"palmledger/pkg/logger"
)

const entityName = "fruit collection"

// Repository stores collections with their items.
type Repository interface {
	// Create inserts the header only.
	Create(ctx context.Context, c *Collection) error
	// ReplaceItems deletes the collection's items and inserts items.
	ReplaceItems(ctx context.Context, collectionID id.ID, items []Item) error
	// GetByID returns the collection with its items.
	GetByID(ctx context.Context, id id.ID) (*Collection, error)
	// Update applies optimistic locking on Version.
	Update(ctx context.Context, c *Collection) error
	// Delete removes the collection and its items.
	Delete(ctx context.Context, id id.ID) error
	// List returns collections with their items.
	List(ctx context.Context, filter domain.ListFilter) (domain.ListResult[*Collection], error)
}

// Service records fruit deliveries.
type Service struct {
	repo      Repository
	txManager tx.Manager
	audit     audit.Recorder
	hooks     *domain.HookRegistry[*Collection]
	now       func() time.Time
}

// NewService creates the collection service.
func NewService(repo Repository, txManager tx.Manager, rec audit.Recorder) *Service {
	if rec == nil {
		rec = audit.Nop{}
	}
	return &Service{
		repo:      repo,
		txManager: txManager,
		audit:     rec,
		hooks:     domain.NewHookRegistry[*Collection](),
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Hooks returns the hook registry for external registration.
func (s *Service) Hooks() *domain.HookRegistry[*Collection] {
	return s.hooks
}

func (s *Service) build(ctx context.Context, c *Collection, d Draft) error {
	if d.Breakdown == nil {
		return apperror.NewValidation("at least one row is required").WithDetail("field", "rows")
	}
	if err := security.NewAccessScope(ctx).RequireAgent(d.AgentID); err != nil {
		return err
	}

	c.AgentID = d.AgentID
	c.Date = d.Date
	c.DriverName = d.DriverName
	c.Notes = d.Notes
	if err := c.Validate(ctx); err != nil {
		return err
	}
	if err := d.Breakdown.Validate(); err != nil {
		return err
	}

	c.Stamp(appctx.GetUserID(ctx), s.now())
	c.TotalWeight = d.Breakdown.TotalWeight()
	c.TotalAmount = d.Breakdown.TotalAmount()
	c.Items = d.Breakdown.Items(c.ID)
	return nil
}

// Create stores the collection and one item per row in a single transaction.
func (s *Service) Create(ctx context.Context, d Draft) (*Collection, error) {
	c := &Collection{}
	if err := s.build(ctx, c, d); err != nil {
		return nil, err
	}
	if err := s.hooks.Run(ctx, domain.BeforeCreate, c); err != nil {
		return nil, err
	}

	err := s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		if err := s.repo.Create(ctx, c); err != nil {
			return fmt.Errorf("create collection: %w", err)
		}
		if err := s.repo.ReplaceItems(ctx, c.ID, c.Items); err != nil {
			return fmt.Errorf("create collection items: %w", err)
		}
		return s.audit.LogChange(ctx, entityName, c.ID, audit.ActionCreate, map[string]any{"new": c})
	})
	if err != nil {
		return nil, err
	}

	logger.Info(ctx, "fruit collection created",
		"id", c.ID,
		"agent_id", c.AgentID,
		"items", len(c.Items),
		"total_weight", c.TotalWeight.String())
	return c, nil
}

// Update replaces header and items of an existing collection atomically.
func (s *Service) Update(ctx context.Context, collectionID id.ID, d Draft) (*Collection, error) {
	existing, err := s.GetByID(ctx, collectionID)
	if err != nil {
		return nil, err
	}

	c := &Collection{BaseEntity: existing.BaseEntity}
	if d.Version != 0 {
		c.Version = d.Version
	}
	if err := s.build(ctx, c, d); err != nil {
		return nil, err
	}
	if err := s.hooks.Run(ctx, domain.BeforeUpdate, c); err != nil {
		return nil, err
	}

	err = s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		if err := s.repo.Update(ctx, c); err != nil {
			return fmt.Errorf("update collection: %w", err)
		}
		if err := s.repo.ReplaceItems(ctx, c.ID, c.Items); err != nil {
			return fmt.Errorf("replace collection items: %w", err)
		}
		return s.audit.LogChange(ctx, entityName, c.ID, audit.ActionUpdate, map[string]any{"old": existing, "new": c})
	})
	if err != nil {
		return nil, err
	}

	c.Version++
	logger.Info(ctx, "fruit collection updated", "id", c.ID, "items", len(c.Items))
	return c, nil
}

// GetByID returns a visible collection with its items.
func (s *Service) GetByID(ctx context.Context, collectionID id.ID) (*Collection, error) {
	c, err := s.repo.GetByID(ctx, collectionID)
	if err != nil {
		return nil, err
	}
	if !security.NewAccessScope(ctx).CanAccessAgent(c.AgentID) {
		return nil, apperror.NewNotFound(entityName, collectionID.String())
	}
	return c, nil
}

// Delete removes a collection with its items.
func (s *Service) Delete(ctx context.Context, collectionID id.ID) error {
	existing, err := s.GetByID(ctx, collectionID)
	if err != nil {
		return err
	}
	if err := s.hooks.Run(ctx, domain.BeforeDelete, existing); err != nil {
		return err
	}
	err = s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		if err := s.repo.Delete(ctx, collectionID); err != nil {
			return fmt.Errorf("delete collection: %w", err)
		}
		return s.audit.LogChange(ctx, entityName, collectionID, audit.ActionDelete, map[string]any{"old": existing})
	})
	if err != nil {
		return err
	}
	logger.Info(ctx, "fruit collection deleted", "id", collectionID)
	return nil
}

// List returns collections visible to the caller.
func (s *Service) List(ctx context.Context, filter domain.ListFilter) (domain.ListResult[*Collection], error) {
	agentID, err := security.NewAccessScope(ctx).AgentFilter(filter.AgentID)
	if err != nil {
		return domain.ListResult[*Collection]{}, err
	}
	filter.AgentID = agentID
	if err := filter.Period.Validate(); err != nil {
		return domain.ListResult[*Collection]{}, apperror.NewValidation(err.Error())
	}
	filter.Normalize()
	return s.repo.List(ctx, filter)
}
