package orders

import (
	"context"
	"fmt"

	"palmledger/internal/core/apperror"
	appctx "palmledger/internal/core/context"
	"palmledger/internal/core/id"
	"palmledger/internal/core/security"
	"palmledger/internal/domain/audit"
	"palmledger/pkg/logger"
)

// settle recomputes amount_paid and balance_due of a locked order from its payments.
func (s *Service) settle(ctx context.Context, o *Order) error {
	paid, err := s.repo.SumPayments(ctx, o.ID)
	if err != nil {
		return fmt.Errorf("sum payments: %w", err)
	}
	o.ApplyPaid(paid)
	if err := s.repo.SetAmounts(ctx, o.ID, o.AmountPaid, o.BalanceDue); err != nil {
		return fmt.Errorf("update balance: %w", err)
	}
	o.Version++
	return nil
}

// AddPayment records a payment and recomputes the balance under a row lock on the order.
// Payments on cancelled orders and payments larger than the balance are refused.
func (s *Service) AddPayment(ctx context.Context, orderID id.ID, p *Payment) (*Order, error) {
	if err := security.NewAccessScope(ctx).RequireAdmin(); err != nil {
		return nil, err
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}

	var order *Order
	err := s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		o, err := s.repo.Lock(ctx, orderID)
		if err != nil {
			return err
		}
		if o.DeliveryStatus == DeliveryCancelled {
			return apperror.NewBusinessRule(apperror.CodeOrderCancelled, "payments cannot be recorded on a cancelled order")
		}
		if p.Amount.GreaterThan(o.BalanceDue) {
			return apperror.NewBusinessRule(apperror.CodeOverpayment, "payment exceeds the balance due").
				WithDetail("amount", p.Amount.String()).
				WithDetail("balance_due", o.BalanceDue.String())
		}

		now := s.now()
		p.ID = id.New()
		p.OrderID = orderID
		p.ReceivedBy = appctx.GetUserID(ctx)
		p.CreatedAt = now
		if p.PaidAt.IsZero() {
			p.PaidAt = now
		}
		if err := s.repo.InsertPayment(ctx, p); err != nil {
			return fmt.Errorf("insert payment: %w", err)
		}
		if err := s.settle(ctx, o); err != nil {
			return err
		}
		order = o
		return s.audit.LogChange(ctx, paymentEntity, p.ID, audit.ActionCreate, map[string]any{
			"new":         p,
			"amount_paid": o.AmountPaid.String(),
			"balance_due": o.BalanceDue.String(),
		})
	})
	if err != nil {
		return nil, err
	}

	logger.Info(ctx, "payment recorded",
		"order_id", orderID,
		"payment_id", p.ID,
		"amount", p.Amount.String(),
		"balance_due", order.BalanceDue.String())
	return order, nil
}

// DeletePayment removes a payment of orderID and recomputes the order balance.
// A payment recorded against another order reads as not found.
func (s *Service) DeletePayment(ctx context.Context, orderID, paymentID id.ID) (*Order, error) {
	if err := security.NewAccessScope(ctx).RequireAdmin(); err != nil {
		return nil, err
	}

	var order *Order
	err := s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		p, err := s.repo.GetPayment(ctx, paymentID)
		if err != nil {
			return err
		}
		if p.OrderID != orderID {
			return apperror.NewNotFound(paymentEntity, paymentID.String())
		}
		o, err := s.repo.Lock(ctx, orderID)
		if err != nil {
			return err
		}
		if err := s.repo.DeletePayment(ctx, paymentID); err != nil {
			return fmt.Errorf("delete payment: %w", err)
		}
		if err := s.settle(ctx, o); err != nil {
			return err
		}
		order = o
		return s.audit.LogChange(ctx, paymentEntity, paymentID, audit.ActionDelete, map[string]any{
			"old":         p,
			"amount_paid": o.AmountPaid.String(),
			"balance_due": o.BalanceDue.String(),
		})
	})
	if err != nil {
		return nil, err
	}

	logger.Info(ctx, "payment deleted",
		"order_id", order.ID,
		"payment_id", paymentID,
		"balance_due", order.BalanceDue.String())
	return order, nil
}
