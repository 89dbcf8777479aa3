package orders

import (
	"context"
	"fmt"

	"palmledger/internal/core/apperror"
	appctx "palmledger/internal/core/context"
	"palmledger/internal/core/id"
	"palmledger/internal/core/security"
	"palmledger/internal/domain"
	"palmledger/internal/domain/audit"
	"palmledger/pkg/logger"
)

// CreateCustomer stores a new customer.
func (s *Service) CreateCustomer(ctx context.Context, c *Customer) error {
	if err := security.NewAccessScope(ctx).RequireAdmin(); err != nil {
		return err
	}
	if err := c.Validate(ctx); err != nil {
		return err
	}
	c.Stamp(appctx.GetUserID(ctx), s.now())

	err := s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		if err := s.customers.Create(ctx, c); err != nil {
			return fmt.Errorf("create customer: %w", err)
		}
		return s.audit.LogChange(ctx, customerEntity, c.ID, audit.ActionCreate, map[string]any{"new": c})
	})
	if err != nil {
		return err
	}
	logger.Info(ctx, "customer created", "id", c.ID)
	return nil
}

// UpdateCustomer overwrites name and contact fields.
func (s *Service) UpdateCustomer(ctx context.Context, c *Customer) error {
	if err := security.NewAccessScope(ctx).RequireAdmin(); err != nil {
		return err
	}
	if err := c.Validate(ctx); err != nil {
		return err
	}
	existing, err := s.customers.GetByID(ctx, c.ID)
	if err != nil {
		return err
	}
	c.CreatedAt, c.CreatedBy = existing.CreatedAt, existing.CreatedBy
	if c.Version == 0 {
		c.Version = existing.Version
	}
	c.Stamp(appctx.GetUserID(ctx), s.now())

	err = s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		if err := s.customers.Update(ctx, c); err != nil {
			return fmt.Errorf("update customer: %w", err)
		}
		return s.audit.LogChange(ctx, customerEntity, c.ID, audit.ActionUpdate, map[string]any{"old": existing, "new": c})
	})
	if err != nil {
		return err
	}
	c.Version++
	return nil
}

// GetCustomer returns one customer.
func (s *Service) GetCustomer(ctx context.Context, customerID id.ID) (*Customer, error) {
	if err := security.NewAccessScope(ctx).RequireAdmin(); err != nil {
		return nil, err
	}
	return s.customers.GetByID(ctx, customerID)
}

// ListCustomers returns a page of customers matching filter.Search.
func (s *Service) ListCustomers(ctx context.Context, filter domain.ListFilter) (domain.ListResult[*Customer], error) {
	if err := security.NewAccessScope(ctx).RequireAdmin(); err != nil {
		return domain.ListResult[*Customer]{}, err
	}
	filter.AgentID = nil
	filter.Normalize()
	return s.customers.List(ctx, filter)
}

// DeleteCustomer removes a customer without orders.
func (s *Service) DeleteCustomer(ctx context.Context, customerID id.ID) error {
	if err := security.NewAccessScope(ctx).RequireAdmin(); err != nil {
		return err
	}
	existing, err := s.customers.GetByID(ctx, customerID)
	if err != nil {
		return err
	}
	n, err := s.repo.CountByCustomer(ctx, customerID)
	if err != nil {
		return fmt.Errorf("count orders: %w", err)
	}
	if n > 0 {
		return apperror.NewConflict("customer has orders and cannot be deleted").WithDetail("orders", n)
	}
	return s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		if err := s.customers.Delete(ctx, customerID); err != nil {
			return fmt.Errorf("delete customer: %w", err)
		}
		return s.audit.LogChange(ctx, customerEntity, customerID, audit.ActionDelete, map[string]any{"old": existing})
	})
}
