package orders

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"palmledger/internal/core/apperror"
	appctx "palmledger/internal/core/context"
	"palmledger/internal/core/id"
	"palmledger/internal/core/numerator"
	"palmledger/internal/core/security"
	"palmledger/internal/core/tx"
	"palmledger/internal/domain"
	"palmledger/internal/domain/audit"
	"palmledger/pkg/logger"
)

const (
	orderEntity    = "order"
	customerEntity = "customer"
	paymentEntity  = "payment"
	receiptEntity  = "receipt"
)

// Service runs the order lifecycle. Every operation is restricted to admins.
type Service struct {
	repo      Repository
	customers CustomerRepository
	txManager tx.Manager
	numbers   numerator.Generator
	audit     audit.Recorder
	now       func() time.Time
}

// NewService creates the order service.
func NewService(
	repo Repository,
	customers CustomerRepository,
	txManager tx.Manager,
	numbers numerator.Generator,
	rec audit.Recorder,
) *Service {
	if rec == nil {
		rec = audit.Nop{}
	}
	return &Service{
		repo:      repo,
		customers: customers,
		txManager: txManager,
		numbers:   numbers,
		audit:     rec,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Draft is the editable part of an order.
type Draft struct {
	CustomerID id.ID
	OrderDate  time.Time
	Notes      *string
	Items      []OrderItem
	// Version enables the optimistic lock check on update when non-zero.
	Version int
}

func buildItems(orderID id.ID, items []OrderItem) []OrderItem {
	out := make([]OrderItem, len(items))
	for i, it := range items {
		it.ID = id.New()
		it.OrderID = orderID
		it.LineNo = i + 1
		out[i] = it
	}
	return out
}

// CreateOrder stores a PENDING order with its items and a new order number.
func (s *Service) CreateOrder(ctx context.Context, d Draft) (*Order, error) {
	if err := security.NewAccessScope(ctx).RequireAdmin(); err != nil {
		return nil, err
	}

	o := &Order{
		CustomerID:     d.CustomerID,
		OrderDate:      d.OrderDate,
		Notes:          d.Notes,
		DeliveryStatus: DeliveryPending,
	}
	o.Stamp(appctx.GetUserID(ctx), s.now())
	o.Items = buildItems(o.ID, d.Items)
	if err := o.Validate(ctx); err != nil {
		return nil, err
	}
	o.Recompute(decimal.Zero)

	if _, err := s.customers.GetByID(ctx, o.CustomerID); err != nil {
		return nil, err
	}

	err := s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		number, err := s.numbers.GetNextNumber(ctx, numerator.OrderConfig(), numerator.OrderOptions(), o.OrderDate)
		if err != nil {
			return fmt.Errorf("generate order number: %w", err)
		}
		o.OrderNumber = number

		if err := s.repo.Create(ctx, o); err != nil {
			return fmt.Errorf("create order: %w", err)
		}
		if err := s.repo.ReplaceItems(ctx, o.ID, o.Items); err != nil {
			return fmt.Errorf("create order items: %w", err)
		}
		return s.audit.LogChange(ctx, orderEntity, o.ID, audit.ActionCreate, map[string]any{"new": o})
	})
	if err != nil {
		return nil, err
	}

	logger.Info(ctx, "order created",
		"id", o.ID,
		"number", o.OrderNumber,
		"total", o.TotalAmount.String())
	return o, nil
}

// UpdateOrder replaces header and items, recomputing total and balance against the
// payments already recorded.
func (s *Service) UpdateOrder(ctx context.Context, orderID id.ID, d Draft) (*Order, error) {
	if err := security.NewAccessScope(ctx).RequireAdmin(); err != nil {
		return nil, err
	}

	var updated *Order
	err := s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		existing, err := s.repo.Lock(ctx, orderID)
		if err != nil {
			return err
		}
		if existing.DeliveryStatus == DeliveryCancelled {
			return apperror.NewBusinessRule(apperror.CodeOrderCancelled, "cancelled orders cannot be changed")
		}
		if d.Version != 0 && d.Version != existing.Version {
			return apperror.NewConcurrentModification(orderEntity, orderID.String())
		}

		o := *existing
		o.CustomerID = d.CustomerID
		o.OrderDate = d.OrderDate
		o.Notes = d.Notes
		o.Items = buildItems(o.ID, d.Items)
		if err := o.Validate(ctx); err != nil {
			return err
		}
		if o.CustomerID != existing.CustomerID {
			if _, err := s.customers.GetByID(ctx, o.CustomerID); err != nil {
				return err
			}
		}

		paid, err := s.repo.SumPayments(ctx, orderID)
		if err != nil {
			return fmt.Errorf("sum payments: %w", err)
		}
		o.Recompute(paid)
		if o.BalanceDue.IsNegative() {
			return apperror.NewBusinessRule(apperror.CodeOverpayment, "order total is below the amount already paid").
				WithDetail("total", o.TotalAmount.String()).
				WithDetail("amount_paid", paid.String())
		}

		o.Stamp(appctx.GetUserID(ctx), s.now())
		if err := s.repo.Update(ctx, &o); err != nil {
			return fmt.Errorf("update order: %w", err)
		}
		if err := s.repo.ReplaceItems(ctx, o.ID, o.Items); err != nil {
			return fmt.Errorf("replace order items: %w", err)
		}
		o.Version++
		updated = &o
		return s.audit.LogChange(ctx, orderEntity, o.ID, audit.ActionUpdate, map[string]any{"old": existing, "new": &o})
	})
	if err != nil {
		return nil, err
	}

	logger.Info(ctx, "order updated", "id", orderID, "total", updated.TotalAmount.String())
	return updated, nil
}

// DeleteOrder removes an order that has no payments. Paid orders are cancelled instead.
func (s *Service) DeleteOrder(ctx context.Context, orderID id.ID) error {
	if err := security.NewAccessScope(ctx).RequireAdmin(); err != nil {
		return err
	}
	err := s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		existing, err := s.repo.Lock(ctx, orderID)
		if err != nil {
			return err
		}
		if existing.AmountPaid.IsPositive() {
			return apperror.NewBusinessRule(apperror.CodeBusinessRule, "orders with payments cannot be deleted, cancel them instead")
		}
		if err := s.repo.Delete(ctx, orderID); err != nil {
			return fmt.Errorf("delete order: %w", err)
		}
		return s.audit.LogChange(ctx, orderEntity, orderID, audit.ActionDelete, map[string]any{"old": existing})
	})
	if err != nil {
		return err
	}
	logger.Info(ctx, "order deleted", "id", orderID)
	return nil
}

// GetOrder returns the order header.
func (s *Service) GetOrder(ctx context.Context, orderID id.ID) (*Order, error) {
	if err := security.NewAccessScope(ctx).RequireAdmin(); err != nil {
		return nil, err
	}
	return s.repo.GetByID(ctx, orderID)
}

// ListOrders returns a page of orders.
func (s *Service) ListOrders(ctx context.Context, filter OrderFilter) (domain.ListResult[*Order], error) {
	if err := security.NewAccessScope(ctx).RequireAdmin(); err != nil {
		return domain.ListResult[*Order]{}, err
	}
	if filter.DeliveryStatus != "" && !filter.DeliveryStatus.IsValid() {
		return domain.ListResult[*Order]{}, apperror.NewInvalidInput("deliveryStatus", "unknown delivery status")
	}
	if err := filter.Period.Validate(); err != nil {
		return domain.ListResult[*Order]{}, apperror.NewValidation(err.Error())
	}
	page := domain.ListFilter{Limit: filter.Limit, Offset: filter.Offset}
	page.Normalize()
	filter.Limit, filter.Offset = page.Limit, page.Offset
	return s.repo.List(ctx, filter)
}

// GetDetail loads the order and everything attached to it concurrently.
func (s *Service) GetDetail(ctx context.Context, orderID id.ID) (*Detail, error) {
	if err := security.NewAccessScope(ctx).RequireAdmin(); err != nil {
		return nil, err
	}

	d := &Detail{}
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		o, err := s.repo.GetByID(gctx, orderID)
		if err != nil {
			return err
		}
		c, err := s.customers.GetByID(gctx, o.CustomerID)
		if err != nil {
			return fmt.Errorf("get customer: %w", err)
		}
		d.Order, d.Customer = o, c
		return nil
	})
	g.Go(func() error {
		items, err := s.repo.Items(gctx, orderID)
		if err != nil {
			return fmt.Errorf("get items: %w", err)
		}
		d.Items = items
		return nil
	})
	g.Go(func() error {
		payments, err := s.repo.Payments(gctx, orderID)
		if err != nil {
			return fmt.Errorf("get payments: %w", err)
		}
		d.Payments = payments
		return nil
	})
	g.Go(func() error {
		receipts, err := s.repo.Receipts(gctx, orderID)
		if err != nil {
			return fmt.Errorf("get receipts: %w", err)
		}
		d.Receipts = receipts
		return nil
	})
	g.Go(func() error {
		events, err := s.repo.DeliveryEvents(gctx, orderID)
		if err != nil {
			return fmt.Errorf("get delivery events: %w", err)
		}
		d.Events = events
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	d.Order.Items = d.Items
	return d, nil
}
