package orders

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"palmledger/internal/core/id"
	"palmledger/internal/domain"
)

// Repository stores orders and the records attached to them. Mutating methods join the
// transaction in ctx.
type Repository interface {
	Create(ctx context.Context, o *Order) error
	// Update writes header and amounts, applying optimistic locking on Version.
	Update(ctx context.Context, o *Order) error
	GetByID(ctx context.Context, id id.ID) (*Order, error)
	// Lock reads the order with SELECT ... FOR UPDATE. Only valid inside a transaction.
	Lock(ctx context.Context, id id.ID) (*Order, error)
	// Delete removes the order with its items, payments, receipts and events.
	Delete(ctx context.Context, id id.ID) error
	List(ctx context.Context, filter OrderFilter) (domain.ListResult[*Order], error)
	CountByCustomer(ctx context.Context, customerID id.ID) (int64, error)

	// ReplaceItems deletes the order's items and inserts items.
	ReplaceItems(ctx context.Context, orderID id.ID, items []OrderItem) error
	Items(ctx context.Context, orderID id.ID) ([]OrderItem, error)

	InsertPayment(ctx context.Context, p *Payment) error
	GetPayment(ctx context.Context, id id.ID) (*Payment, error)
	DeletePayment(ctx context.Context, id id.ID) error
	Payments(ctx context.Context, orderID id.ID) ([]Payment, error)
	SumPayments(ctx context.Context, orderID id.ID) (decimal.Decimal, error)
	// SetAmounts writes amount_paid and balance_due and bumps the version.
	SetAmounts(ctx context.Context, orderID id.ID, paid, balance decimal.Decimal) error

	// SetDelivery writes the delivery snapshot fields and bumps the version.
	SetDelivery(ctx context.Context, o *Order) error
	InsertDeliveryEvent(ctx context.Context, e *DeliveryEvent) error
	DeliveryEvents(ctx context.Context, orderID id.ID) ([]DeliveryEvent, error)

	InsertReceipt(ctx context.Context, r *Receipt) error
	GetReceipt(ctx context.Context, id id.ID) (*Receipt, error)
	// ActiveReceipt returns nil without error when the order has none.
	ActiveReceipt(ctx context.Context, orderID id.ID) (*Receipt, error)
	VoidReceipt(ctx context.Context, receiptID id.ID, at time.Time, by string, reason *string) error
	Receipts(ctx context.Context, orderID id.ID) ([]Receipt, error)
}

// CustomerRepository stores customers.
type CustomerRepository interface {
	Create(ctx context.Context, c *Customer) error
	Update(ctx context.Context, c *Customer) error
	GetByID(ctx context.Context, id id.ID) (*Customer, error)
	Delete(ctx context.Context, id id.ID) error
	List(ctx context.Context, filter domain.ListFilter) (domain.ListResult[*Customer], error)
}
