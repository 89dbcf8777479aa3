// Package orders manages customer orders: items, payments, receipts and delivery.
package orders

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"palmledger/internal/core/apperror"
	"palmledger/internal/core/entity"
	"palmledger/internal/core/id"
	"palmledger/internal/core/types"
)

// DeliveryStatus is the delivery state of an order.
type DeliveryStatus string

const (
	DeliveryPending   DeliveryStatus = "PENDING"
	DeliveryPartial   DeliveryStatus = "PARTIALLY_DELIVERED"
	DeliveryDelivered DeliveryStatus = "DELIVERED"
	DeliveryCancelled DeliveryStatus = "CANCELLED"
)

var transitions = map[DeliveryStatus][]DeliveryStatus{
	DeliveryPending: {DeliveryPartial, DeliveryDelivered, DeliveryCancelled},
	DeliveryPartial: {DeliveryPartial, DeliveryDelivered, DeliveryCancelled},
}

// IsValid reports whether s is a known status.
func (s DeliveryStatus) IsValid() bool {
	switch s {
	case DeliveryPending, DeliveryPartial, DeliveryDelivered, DeliveryCancelled:
		return true
	}
	return false
}

// IsTerminal reports whether no transition leaves s.
func (s DeliveryStatus) IsTerminal() bool {
	return s == DeliveryDelivered || s == DeliveryCancelled
}

// CanTransition reports whether an order may move from one delivery status to another.
func CanTransition(from, to DeliveryStatus) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Customer buys from the company.
type Customer struct {
	entity.BaseEntity
	Name    string  `db:"name" json:"name"`
	Phone   *string `db:"phone" json:"phone,omitempty"`
	Address *string `db:"address" json:"address,omitempty"`
}

// Validate checks customer invariants.
func (c *Customer) Validate(ctx context.Context) error {
	c.Name = strings.TrimSpace(c.Name)
	if c.Name == "" {
		return apperror.NewValidation("name is required").WithDetail("field", "name")
	}
	if len(c.Name) > 200 {
		return apperror.NewValidation("name is too long").WithDetail("field", "name")
	}
	return nil
}

// Order is the header of a customer order. AmountPaid and BalanceDue are derived from
// payments and items and never set by callers.
type Order struct {
	entity.BaseEntity
	CustomerID  id.ID       `db:"customer_id" json:"customerId"`
	OrderNumber string      `db:"order_number" json:"orderNumber"`
	OrderDate   time.Time   `db:"order_date" json:"orderDate"`
	TotalAmount types.Money `db:"total_amount" json:"totalAmount"`
	AmountPaid  types.Money `db:"amount_paid" json:"amountPaid"`
	BalanceDue  types.Money `db:"balance_due" json:"balanceDue"`
	Notes       *string     `db:"notes" json:"notes,omitempty"`

	DeliveryStatus DeliveryStatus `db:"delivery_status" json:"deliveryStatus"`
	DeliveryDate   *time.Time     `db:"delivery_date" json:"deliveryDate,omitempty"`
	DeliveredBy    *string        `db:"delivered_by" json:"deliveredBy,omitempty"`
	DeliveryNotes  *string        `db:"delivery_notes" json:"deliveryNotes,omitempty"`

	Items []OrderItem `db:"-" json:"items,omitempty"`
}

// Validate checks header invariants.
func (o *Order) Validate(ctx context.Context) error {
	if id.IsNil(o.CustomerID) {
		return apperror.NewValidation("customer is required").WithDetail("field", "customerId")
	}
	if o.OrderDate.IsZero() {
		return apperror.NewValidation("order date is required").WithDetail("field", "orderDate")
	}
	for i := range o.Items {
		if err := o.Items[i].Validate(i); err != nil {
			return err
		}
	}
	return nil
}

// Recompute sets TotalAmount from the items and derives the balance from paid.
// Line totals are rounded half away from zero to whole cents.
func (o *Order) Recompute(paid decimal.Decimal) {
	total := decimal.Zero
	for i := range o.Items {
		o.Items[i].LineTotal = o.Items[i].Quantity.Mul(o.Items[i].UnitPrice).Round(types.MoneyPlaces)
		total = total.Add(o.Items[i].LineTotal)
	}
	o.TotalAmount = total
	o.ApplyPaid(paid)
}

// ApplyPaid sets AmountPaid and BalanceDue = TotalAmount − paid.
func (o *Order) ApplyPaid(paid decimal.Decimal) {
	o.AmountPaid = paid
	o.BalanceDue = o.TotalAmount.Sub(paid)
}

// OrderItem is one line of an order.
type OrderItem struct {
	ID          id.ID       `db:"id" json:"id"`
	OrderID     id.ID       `db:"order_id" json:"orderId"`
	LineNo      int         `db:"line_no" json:"lineNo"`
	Description string      `db:"description" json:"description"`
	Quantity    types.Money `db:"quantity" json:"quantity"`
	UnitPrice   types.Money `db:"unit_price" json:"unitPrice"`
	LineTotal   types.Money `db:"line_total" json:"lineTotal"`
}

// Validate checks one item; i is its position for error details.
func (it *OrderItem) Validate(i int) error {
	it.Description = strings.TrimSpace(it.Description)
	if it.Description == "" {
		return apperror.NewValidation("description is required").WithDetail("field", itemField(i, "description"))
	}
	if !it.Quantity.IsPositive() {
		return apperror.NewValidation("quantity must be greater than zero").WithDetail("field", itemField(i, "quantity"))
	}
	if it.UnitPrice.IsNegative() {
		return apperror.NewValidation("unit price must not be negative").WithDetail("field", itemField(i, "unitPrice"))
	}
	if !types.FitsScale(it.Quantity, types.WeightPlaces) {
		return apperror.NewValidation("quantity allows at most 3 decimal places").WithDetail("field", itemField(i, "quantity"))
	}
	if !types.FitsScale(it.UnitPrice, types.MoneyPlaces) {
		return apperror.NewValidation("unit price allows at most 2 decimal places").WithDetail("field", itemField(i, "unitPrice"))
	}
	return nil
}

func itemField(i int, name string) string {
	return "items[" + strconv.Itoa(i) + "]." + name
}

// PaymentMethod is how a customer paid.
type PaymentMethod string

const (
	PaymentCash PaymentMethod = "CASH"
	PaymentMomo PaymentMethod = "MOMO"
	PaymentBank PaymentMethod = "BANK"
)

// Payment is money received against an order.
type Payment struct {
	ID         id.ID         `db:"id" json:"id"`
	OrderID    id.ID         `db:"order_id" json:"orderId"`
	Amount     types.Money   `db:"amount" json:"amount"`
	Method     PaymentMethod `db:"method" json:"method"`
	Reference  *string       `db:"reference" json:"reference,omitempty"`
	PaidAt     time.Time     `db:"paid_at" json:"paidAt"`
	ReceivedBy string        `db:"received_by" json:"receivedBy"`
	CreatedAt  time.Time     `db:"created_at" json:"createdAt"`
}

// Validate checks payment invariants.
func (p *Payment) Validate() error {
	if !p.Amount.IsPositive() {
		return apperror.NewValidation("amount must be greater than zero").WithDetail("field", "amount")
	}
	if !types.FitsScale(p.Amount, types.MoneyPlaces) {
		return apperror.NewValidation("amount allows at most 2 decimal places").WithDetail("field", "amount")
	}
	switch p.Method {
	case PaymentCash, PaymentMomo, PaymentBank:
	case "":
		p.Method = PaymentCash
	default:
		return apperror.NewValidation("unknown payment method").WithDetail("field", "method")
	}
	return nil
}

// ReceiptStatus is ACTIVE until voided.
type ReceiptStatus string

const (
	ReceiptActive ReceiptStatus = "ACTIVE"
	ReceiptVoid   ReceiptStatus = "VOID"
)

// Receipt acknowledges the amount paid on an order at issue time.
type Receipt struct {
	ID            id.ID         `db:"id" json:"id"`
	OrderID       id.ID         `db:"order_id" json:"orderId"`
	ReceiptNumber string        `db:"receipt_number" json:"receiptNumber"`
	Amount        types.Money   `db:"amount" json:"amount"`
	IssuedAt      time.Time     `db:"issued_at" json:"issuedAt"`
	IssuedBy      string        `db:"issued_by" json:"issuedBy"`
	Status        ReceiptStatus `db:"status" json:"status"`
	VoidedAt      *time.Time    `db:"voided_at" json:"voidedAt,omitempty"`
	VoidedBy      *string       `db:"voided_by" json:"voidedBy,omitempty"`
	VoidReason    *string       `db:"void_reason" json:"voidReason,omitempty"`
}

// DeliveryEvent is an immutable record of one delivery transition.
type DeliveryEvent struct {
	ID          id.ID          `db:"id" json:"id"`
	OrderID     id.ID          `db:"order_id" json:"orderId"`
	FromStatus  DeliveryStatus `db:"from_status" json:"fromStatus"`
	Status      DeliveryStatus `db:"status" json:"status"`
	OccurredAt  time.Time      `db:"occurred_at" json:"occurredAt"`
	DeliveredBy *string        `db:"delivered_by" json:"deliveredBy,omitempty"`
	Notes       *string        `db:"notes" json:"notes,omitempty"`
	RecordedBy  string         `db:"recorded_by" json:"recordedBy"`
}

// DeliveryUpdate is a requested delivery transition.
type DeliveryUpdate struct {
	Status      DeliveryStatus
	Date        *time.Time
	DeliveredBy *string
	Notes       *string
}

// Detail is an order with everything attached to it.
type Detail struct {
	Order    *Order          `json:"order"`
	Customer *Customer       `json:"customer"`
	Items    []OrderItem     `json:"items"`
	Payments []Payment       `json:"payments"`
	Receipts []Receipt       `json:"receipts"`
	Events   []DeliveryEvent `json:"deliveryEvents"`
}

// ActiveReceipt returns the ACTIVE receipt, if any.
func (d *Detail) ActiveReceipt() *Receipt {
	for i := range d.Receipts {
		if d.Receipts[i].Status == ReceiptActive {
			return &d.Receipts[i]
		}
	}
	return nil
}

// OrderFilter selects orders.
type OrderFilter struct {
	CustomerID     *id.ID
	DeliveryStatus DeliveryStatus
	Period         types.DateRange
	Search         string
	// Unpaid keeps orders with a positive balance.
	Unpaid bool
	Limit  int
	Offset int
}
