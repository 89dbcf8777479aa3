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

// UpdateDelivery moves the order to u.Status, updating its snapshot and appending a
// DeliveryEvent in the same transaction.
func (s *Service) UpdateDelivery(ctx context.Context, orderID id.ID, u DeliveryUpdate) (*Order, error) {
	if err := security.NewAccessScope(ctx).RequireAdmin(); err != nil {
		return nil, err
	}
	if !u.Status.IsValid() {
		return nil, apperror.NewInvalidInput("status", "unknown delivery status")
	}
	if u.Status == DeliveryDelivered && u.Date == nil {
		return nil, apperror.NewValidation("delivery date is required").WithDetail("field", "deliveryDate")
	}

	var order *Order
	var event *DeliveryEvent
	err := s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		o, err := s.repo.Lock(ctx, orderID)
		if err != nil {
			return err
		}
		from := o.DeliveryStatus
		if !CanTransition(from, u.Status) {
			return apperror.NewBusinessRule(apperror.CodeInvalidTransition,
				fmt.Sprintf("cannot move delivery from %s to %s", from, u.Status)).
				WithDetail("from", from).
				WithDetail("to", u.Status)
		}

		now := s.now()
		o.DeliveryStatus = u.Status
		if u.Date != nil {
			o.DeliveryDate = u.Date
		}
		if u.DeliveredBy != nil {
			o.DeliveredBy = u.DeliveredBy
		}
		if u.Notes != nil {
			o.DeliveryNotes = u.Notes
		}
		o.Stamp(appctx.GetUserID(ctx), now)
		if err := s.repo.SetDelivery(ctx, o); err != nil {
			return fmt.Errorf("update delivery: %w", err)
		}
		o.Version++

		occurred := now
		if u.Date != nil {
			occurred = *u.Date
		}
		event = &DeliveryEvent{
			ID:          id.New(),
			OrderID:     orderID,
			FromStatus:  from,
			Status:      u.Status,
			OccurredAt:  occurred,
			DeliveredBy: u.DeliveredBy,
			Notes:       u.Notes,
			RecordedBy:  appctx.GetUserID(ctx),
		}
		if err := s.repo.InsertDeliveryEvent(ctx, event); err != nil {
			return fmt.Errorf("insert delivery event: %w", err)
		}
		order = o
		return s.audit.LogChange(ctx, orderEntity, orderID, audit.ActionStatus, map[string]any{
			"from": from,
			"to":   u.Status,
		})
	})
	if err != nil {
		return nil, err
	}

	logger.Info(ctx, "delivery updated", "order_id", orderID, "from", event.FromStatus, "to", event.Status)
	return order, nil
}
