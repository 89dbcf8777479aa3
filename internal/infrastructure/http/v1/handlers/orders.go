package handlers

import (
	"context"

	"github.com/gin-gonic/gin"

	"palmledger/internal/core/id"
	"palmledger/internal/domain"
	"palmledger/internal/domain/orders"
	"palmledger/internal/infrastructure/export"
	"palmledger/internal/infrastructure/http/v1/dto"
)

// OrderService is the part of orders.Service used over HTTP.
type OrderService interface {
	CreateCustomer(ctx context.Context, c *orders.Customer) error
	UpdateCustomer(ctx context.Context, c *orders.Customer) error
	GetCustomer(ctx context.Context, customerID id.ID) (*orders.Customer, error)
	ListCustomers(ctx context.Context, filter domain.ListFilter) (domain.ListResult[*orders.Customer], error)
	DeleteCustomer(ctx context.Context, customerID id.ID) error

	CreateOrder(ctx context.Context, d orders.Draft) (*orders.Order, error)
	UpdateOrder(ctx context.Context, orderID id.ID, d orders.Draft) (*orders.Order, error)
	DeleteOrder(ctx context.Context, orderID id.ID) error
	GetOrder(ctx context.Context, orderID id.ID) (*orders.Order, error)
	ListOrders(ctx context.Context, filter orders.OrderFilter) (domain.ListResult[*orders.Order], error)
	GetDetail(ctx context.Context, orderID id.ID) (*orders.Detail, error)

	AddPayment(ctx context.Context, orderID id.ID, p *orders.Payment) (*orders.Order, error)
	DeletePayment(ctx context.Context, orderID, paymentID id.ID) (*orders.Order, error)
	UpdateDelivery(ctx context.Context, orderID id.ID, u orders.DeliveryUpdate) (*orders.Order, error)

	IssueReceipt(ctx context.Context, orderID id.ID) (*orders.Receipt, error)
	VoidReceipt(ctx context.Context, receiptID id.ID, reason string) (*orders.Receipt, error)
	ReissueReceipt(ctx context.Context, orderID id.ID, reason string) (*orders.Receipt, error)
	ReceiptWithDetail(ctx context.Context, receiptID id.ID) (*orders.Receipt, *orders.Detail, error)
}

var _ OrderService = (*orders.Service)(nil)

// OrderHandler serves customers, orders, payments, delivery and receipts.
type OrderHandler struct {
	*BaseHandler
	service     OrderService
	companyName string
}

// NewOrderHandler creates the order handler. companyName heads printed receipts.
func NewOrderHandler(base *BaseHandler, service OrderService, companyName string) *OrderHandler {
	return &OrderHandler{BaseHandler: base, service: service, companyName: companyName}
}

// --- Customers ---

// ListCustomers handles GET /customers
func (h *OrderHandler) ListCustomers(c *gin.Context) {
	filter, ok := h.ParseListFilter(c)
	if !ok {
		return
	}
	result, err := h.service.ListCustomers(c.Request.Context(), filter)
	if err != nil {
		h.Error(c, err)
		return
	}
	List(h.BaseHandler, c, result)
}

// GetCustomer handles GET /customers/:id
func (h *OrderHandler) GetCustomer(c *gin.Context) {
	customerID, ok := h.ParseID(c, "id")
	if !ok {
		return
	}
	customer, err := h.service.GetCustomer(c.Request.Context(), customerID)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, customer)
}

// CreateCustomer handles POST /customers
func (h *OrderHandler) CreateCustomer(c *gin.Context) {
	var req dto.CustomerRequest
	if !h.BindJSON(c, &req) {
		return
	}
	customer := req.ToCustomer(nil)
	if err := h.service.CreateCustomer(c.Request.Context(), customer); err != nil {
		h.Error(c, err)
		return
	}
	h.Created(c, customer)
}

// UpdateCustomer handles PUT /customers/:id
func (h *OrderHandler) UpdateCustomer(c *gin.Context) {
	customerID, ok := h.ParseID(c, "id")
	if !ok {
		return
	}
	var req dto.CustomerRequest
	if !h.BindJSON(c, &req) {
		return
	}

	ctx := c.Request.Context()
	existing, err := h.service.GetCustomer(ctx, customerID)
	if err != nil {
		h.Error(c, err)
		return
	}
	customer := req.ToCustomer(existing)
	if err := h.service.UpdateCustomer(ctx, customer); err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, customer)
}

// DeleteCustomer handles DELETE /customers/:id
func (h *OrderHandler) DeleteCustomer(c *gin.Context) {
	customerID, ok := h.ParseID(c, "id")
	if !ok {
		return
	}
	if err := h.service.DeleteCustomer(c.Request.Context(), customerID); err != nil {
		h.Error(c, err)
		return
	}
	h.NoContent(c)
}

// --- Orders ---

// ListOrders handles GET /orders
func (h *OrderHandler) ListOrders(c *gin.Context) {
	var q dto.OrderListQuery
	if !h.BindQuery(c, &q) {
		return
	}
	period, ok := h.ParsePeriod(c)
	if !ok {
		return
	}

	result, err := h.service.ListOrders(c.Request.Context(), q.ToFilter(period))
	if err != nil {
		h.Error(c, err)
		return
	}
	List(h.BaseHandler, c, result)
}

// GetOrder handles GET /orders/:id with items, payments, receipts and delivery history.
func (h *OrderHandler) GetOrder(c *gin.Context) {
	orderID, ok := h.ParseID(c, "id")
	if !ok {
		return
	}
	detail, err := h.service.GetDetail(c.Request.Context(), orderID)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, detail)
}

// CreateOrder handles POST /orders
func (h *OrderHandler) CreateOrder(c *gin.Context) {
	var req dto.OrderRequest
	if !h.BindJSON(c, &req) {
		return
	}
	order, err := h.service.CreateOrder(c.Request.Context(), req.ToDraft())
	if err != nil {
		h.Error(c, err)
		return
	}
	h.Created(c, order)
}

// UpdateOrder handles PUT /orders/:id
func (h *OrderHandler) UpdateOrder(c *gin.Context) {
	orderID, ok := h.ParseID(c, "id")
	if !ok {
		return
	}
	var req dto.OrderRequest
	if !h.BindJSON(c, &req) {
		return
	}
	order, err := h.service.UpdateOrder(c.Request.Context(), orderID, req.ToDraft())
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, order)
}

// DeleteOrder handles DELETE /orders/:id
func (h *OrderHandler) DeleteOrder(c *gin.Context) {
	orderID, ok := h.ParseID(c, "id")
	if !ok {
		return
	}
	if err := h.service.DeleteOrder(c.Request.Context(), orderID); err != nil {
		h.Error(c, err)
		return
	}
	h.NoContent(c)
}

// --- Payments and delivery ---

// AddPayment handles POST /orders/:id/payments
func (h *OrderHandler) AddPayment(c *gin.Context) {
	orderID, ok := h.ParseID(c, "id")
	if !ok {
		return
	}
	var req dto.PaymentRequest
	if !h.BindJSON(c, &req) {
		return
	}

	payment := req.ToPayment()
	order, err := h.service.AddPayment(c.Request.Context(), orderID, payment)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.Created(c, dto.PaymentResult{Order: order, Payment: payment})
}

// DeletePayment handles DELETE /orders/:id/payments/:paymentId
func (h *OrderHandler) DeletePayment(c *gin.Context) {
	orderID, ok := h.ParseID(c, "id")
	if !ok {
		return
	}
	paymentID, ok := h.ParseID(c, "paymentId")
	if !ok {
		return
	}
	order, err := h.service.DeletePayment(c.Request.Context(), orderID, paymentID)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, dto.PaymentResult{Order: order})
}

// UpdateDelivery handles POST /orders/:id/delivery
func (h *OrderHandler) UpdateDelivery(c *gin.Context) {
	orderID, ok := h.ParseID(c, "id")
	if !ok {
		return
	}
	var req dto.DeliveryRequest
	if !h.BindJSON(c, &req) {
		return
	}
	order, err := h.service.UpdateDelivery(c.Request.Context(), orderID, req.ToUpdate())
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, order)
}

// --- Receipts ---

// IssueReceipt handles POST /orders/:id/receipts
func (h *OrderHandler) IssueReceipt(c *gin.Context) {
	orderID, ok := h.ParseID(c, "id")
	if !ok {
		return
	}
	receipt, err := h.service.IssueReceipt(c.Request.Context(), orderID)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.Created(c, receipt)
}

// ReissueReceipt handles POST /orders/:id/receipts/reissue
func (h *OrderHandler) ReissueReceipt(c *gin.Context) {
	orderID, ok := h.ParseID(c, "id")
	if !ok {
		return
	}
	var req dto.ReasonRequest
	if !h.BindJSON(c, &req) {
		return
	}
	receipt, err := h.service.ReissueReceipt(c.Request.Context(), orderID, req.Reason)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.Created(c, receipt)
}

// VoidReceipt handles POST /receipts/:id/void
func (h *OrderHandler) VoidReceipt(c *gin.Context) {
	receiptID, ok := h.ParseID(c, "id")
	if !ok {
		return
	}
	var req dto.ReasonRequest
	if !h.BindJSON(c, &req) {
		return
	}
	receipt, err := h.service.VoidReceipt(c.Request.Context(), receiptID, req.Reason)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, receipt)
}

// ReceiptPDF handles GET /receipts/:id/pdf
func (h *OrderHandler) ReceiptPDF(c *gin.Context) {
	receiptID, ok := h.ParseID(c, "id")
	if !ok {
		return
	}
	receipt, detail, err := h.service.ReceiptWithDetail(c.Request.Context(), receiptID)
	if err != nil {
		h.Error(c, err)
		return
	}

	doc := orders.ReceiptDocument(receipt, detail, h.companyName)
	file, err := export.Render(doc, export.FormatPDF, "receipt-"+receipt.ReceiptNumber, "")
	if err != nil {
		h.Error(c, err)
		return
	}
	h.Attachment(c, file)
}
