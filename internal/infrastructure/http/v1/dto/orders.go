package dto

import (
	"time"

	"palmledger/internal/core/entity"
	"palmledger/internal/core/id"
	"palmledger/internal/core/types"
	"palmledger/internal/domain/orders"
)

// --- Customers ---

// CustomerRequest creates or updates a customer.
type CustomerRequest struct {
	Name    string  `json:"name" binding:"required,max=200"`
	Phone   *string `json:"phone" binding:"omitempty,max=40"`
	Address *string `json:"address" binding:"omitempty,max=500"`
	Version int     `json:"version" binding:"omitempty,min=1"`
}

// ToCustomer builds the customer, keeping identity and audit fields of existing when given.
func (r *CustomerRequest) ToCustomer(existing *orders.Customer) *orders.Customer {
	var base *entity.BaseEntity
	if existing != nil {
		base = &existing.BaseEntity
	}
	return &orders.Customer{
		BaseEntity: baseFor(base, r.Version),
		Name:       r.Name,
		Phone:      trimmed(r.Phone),
		Address:    trimmed(r.Address),
	}
}

// --- Orders ---

// OrderItemRequest is one order line.
type OrderItemRequest struct {
	Description string      `json:"description" binding:"required,max=500"`
	Quantity    types.Money `json:"quantity"`
	UnitPrice   types.Money `json:"unitPrice"`
}

// OrderRequest creates or edits an order.
type OrderRequest struct {
	CustomerID id.ID              `json:"customerId" binding:"required"`
	OrderDate  Date               `json:"orderDate"`
	Notes      *string            `json:"notes" binding:"omitempty,max=1000"`
	Items      []OrderItemRequest `json:"items" binding:"max=200"`
	Version    int                `json:"version" binding:"omitempty,min=1"`
}

// ToDraft converts the request to the domain draft.
func (r *OrderRequest) ToDraft() orders.Draft {
	items := make([]orders.OrderItem, len(r.Items))
	for i, it := range r.Items {
		items[i] = orders.OrderItem{
			Description: it.Description,
			Quantity:    it.Quantity,
			UnitPrice:   it.UnitPrice,
		}
	}
	return orders.Draft{
		CustomerID: r.CustomerID,
		OrderDate:  r.OrderDate.Time,
		Notes:      trimmed(r.Notes),
		Items:      items,
		Version:    r.Version,
	}
}

// OrderListQuery filters orders.
type OrderListQuery struct {
	CustomerID     *string               `form:"customerId" binding:"omitempty,uuid"`
	DeliveryStatus orders.DeliveryStatus `form:"deliveryStatus" binding:"omitempty,oneof=PENDING PARTIALLY_DELIVERED DELIVERED CANCELLED"`
	Search         string                `form:"search" binding:"max=200"`
	Unpaid         bool                  `form:"unpaid"`
	Limit          int                   `form:"limit" binding:"omitempty,min=1,max=500"`
	Offset         int                   `form:"offset" binding:"omitempty,min=0"`
}

// ToFilter converts to the domain filter.
func (q *OrderListQuery) ToFilter(period types.DateRange) orders.OrderFilter {
	f := orders.OrderFilter{
		DeliveryStatus: q.DeliveryStatus,
		Period:         period,
		Search:         q.Search,
		Unpaid:         q.Unpaid,
		Limit:          q.Limit,
		Offset:         q.Offset,
	}
	if q.CustomerID != nil {
		if v, err := id.Parse(*q.CustomerID); err == nil {
			f.CustomerID = &v
		}
	}
	return f
}

// --- Payments ---

// PaymentRequest records money received.
type PaymentRequest struct {
	Amount    types.Money          `json:"amount"`
	Method    orders.PaymentMethod `json:"method" binding:"omitempty,oneof=CASH MOMO BANK"`
	Reference *string              `json:"reference" binding:"omitempty,max=200"`
	PaidAt    *time.Time           `json:"paidAt"`
}

// ToPayment converts to the domain payment.
func (r *PaymentRequest) ToPayment() *orders.Payment {
	p := &orders.Payment{
		Amount:    r.Amount,
		Method:    r.Method,
		Reference: trimmed(r.Reference),
	}
	if r.PaidAt != nil {
		p.PaidAt = r.PaidAt.UTC()
	}
	return p
}

// --- Delivery ---

// DeliveryRequest moves an order through its delivery lifecycle.
type DeliveryRequest struct {
	Status      orders.DeliveryStatus `json:"status" binding:"required,oneof=PENDING PARTIALLY_DELIVERED DELIVERED CANCELLED"`
	Date        *Date                 `json:"date"`
	DeliveredBy *string               `json:"deliveredBy" binding:"omitempty,max=200"`
	Notes       *string               `json:"notes" binding:"omitempty,max=1000"`
}

// ToUpdate converts to the domain update.
func (r *DeliveryRequest) ToUpdate() orders.DeliveryUpdate {
	return orders.DeliveryUpdate{
		Status:      r.Status,
		Date:        r.Date.Ptr(),
		DeliveredBy: trimmed(r.DeliveredBy),
		Notes:       trimmed(r.Notes),
	}
}

// --- Receipts ---

// ReasonRequest carries the reason of a void or reissue.
type ReasonRequest struct {
	Reason string `json:"reason" binding:"required,max=500"`
}

// PaymentResult returns the order after a payment change.
type PaymentResult struct {
	Order   *orders.Order   `json:"order"`
	Payment *orders.Payment `json:"payment,omitempty"`
}
