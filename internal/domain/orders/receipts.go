package orders

import (
	"context"
	"fmt"
	"strings"

	"palmledger/internal/core/apperror"
	appctx "palmledger/internal/core/context"
	"palmledger/internal/core/id"
	"palmledger/internal/core/numerator"
	"palmledger/internal/core/security"
	"palmledger/internal/domain/audit"
	"palmledger/pkg/logger"
)

// IssueReceipt issues a receipt for the amount paid so far. The number is allocated on the
// same transaction, so a rolled back issue leaves no gap.
func (s *Service) IssueReceipt(ctx context.Context, orderID id.ID) (*Receipt, error) {
	if err := security.NewAccessScope(ctx).RequireAdmin(); err != nil {
		return nil, err
	}
	var r *Receipt
	err := s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		var err error
		r, err = s.issue(ctx, orderID)
		return err
	})
	if err != nil {
		return nil, err
	}
	logger.Info(ctx, "receipt issued", "order_id", orderID, "number", r.ReceiptNumber, "amount", r.Amount.String())
	return r, nil
}

func (s *Service) issue(ctx context.Context, orderID id.ID) (*Receipt, error) {
	o, err := s.repo.Lock(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if o.DeliveryStatus == DeliveryCancelled {
		return nil, apperror.NewBusinessRule(apperror.CodeOrderCancelled, "receipts cannot be issued for a cancelled order")
	}
	if !o.AmountPaid.IsPositive() {
		return nil, apperror.NewBusinessRule(apperror.CodeBusinessRule, "nothing has been paid on this order")
	}
	active, err := s.repo.ActiveReceipt(ctx, orderID)
	if err != nil {
		return nil, fmt.Errorf("check active receipt: %w", err)
	}
	if active != nil {
		return nil, apperror.NewBusinessRule(apperror.CodeActiveReceiptExists, "order already has an active receipt").
			WithDetail("receipt_number", active.ReceiptNumber)
	}

	now := s.now()
	number, err := s.numbers.GetNextNumber(ctx, numerator.ReceiptConfig(), nil, now)
	if err != nil {
		return nil, fmt.Errorf("generate receipt number: %w", err)
	}
	r := &Receipt{
		ID:            id.New(),
		OrderID:       orderID,
		ReceiptNumber: number,
		Amount:        o.AmountPaid,
		IssuedAt:      now,
		IssuedBy:      appctx.GetUserID(ctx),
		Status:        ReceiptActive,
	}
	if err := s.repo.InsertReceipt(ctx, r); err != nil {
		return nil, fmt.Errorf("insert receipt: %w", err)
	}
	if err := s.audit.LogChange(ctx, receiptEntity, r.ID, audit.ActionCreate, map[string]any{"new": r}); err != nil {
		return nil, err
	}
	return r, nil
}

// VoidReceipt marks an ACTIVE receipt VOID.
func (s *Service) VoidReceipt(ctx context.Context, receiptID id.ID, reason string) (*Receipt, error) {
	if err := security.NewAccessScope(ctx).RequireAdmin(); err != nil {
		return nil, err
	}
	var r *Receipt
	err := s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		existing, err := s.repo.GetReceipt(ctx, receiptID)
		if err != nil {
			return err
		}
		if _, err := s.repo.Lock(ctx, existing.OrderID); err != nil {
			return err
		}
		r, err = s.void(ctx, existing, reason)
		return err
	})
	if err != nil {
		return nil, err
	}
	logger.Info(ctx, "receipt voided", "receipt_id", receiptID, "number", r.ReceiptNumber)
	return r, nil
}

func (s *Service) void(ctx context.Context, r *Receipt, reason string) (*Receipt, error) {
	if r.Status == ReceiptVoid {
		return nil, apperror.NewConflict("receipt is already void").WithDetail("receipt_number", r.ReceiptNumber)
	}
	now := s.now()
	by := appctx.GetUserID(ctx)
	var why *string
	if reason = strings.TrimSpace(reason); reason != "" {
		why = &reason
	}
	if err := s.repo.VoidReceipt(ctx, r.ID, now, by, why); err != nil {
		return nil, fmt.Errorf("void receipt: %w", err)
	}

	voided := *r
	voided.Status = ReceiptVoid
	voided.VoidedAt = &now
	voided.VoidedBy = &by
	voided.VoidReason = why
	if err := s.audit.LogChange(ctx, receiptEntity, r.ID, audit.ActionStatus, map[string]any{
		"from":   ReceiptActive,
		"to":     ReceiptVoid,
		"reason": reason,
	}); err != nil {
		return nil, err
	}
	return &voided, nil
}

// ReissueReceipt voids the active receipt, if any, and issues a new one for the current
// amount paid, in one transaction.
func (s *Service) ReissueReceipt(ctx context.Context, orderID id.ID, reason string) (*Receipt, error) {
	if err := security.NewAccessScope(ctx).RequireAdmin(); err != nil {
		return nil, err
	}
	var r *Receipt
	err := s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		if _, err := s.repo.Lock(ctx, orderID); err != nil {
			return err
		}
		active, err := s.repo.ActiveReceipt(ctx, orderID)
		if err != nil {
			return fmt.Errorf("check active receipt: %w", err)
		}
		if active != nil {
			if _, err := s.void(ctx, active, reason); err != nil {
				return err
			}
		}
		r, err = s.issue(ctx, orderID)
		return err
	})
	if err != nil {
		return nil, err
	}
	logger.Info(ctx, "receipt reissued", "order_id", orderID, "number", r.ReceiptNumber)
	return r, nil
}

// ReceiptWithDetail returns a receipt together with its order detail, for rendering.
func (s *Service) ReceiptWithDetail(ctx context.Context, receiptID id.ID) (*Receipt, *Detail, error) {
	if err := security.NewAccessScope(ctx).RequireAdmin(); err != nil {
		return nil, nil, err
	}
	r, err := s.repo.GetReceipt(ctx, receiptID)
	if err != nil {
		return nil, nil, err
	}
	d, err := s.GetDetail(ctx, r.OrderID)
	if err != nil {
		return nil, nil, err
	}
	return r, d, nil
}
