package handlers

import (
	"context"

	"github.com/gin-gonic/gin"

	"palmledger/internal/core/apperror"
	"palmledger/internal/core/entity"
	"palmledger/internal/core/id"
	"palmledger/internal/domain"
	"palmledger/internal/domain/advances"
	"palmledger/internal/domain/expenses"
	"palmledger/internal/domain/pricing"
	"palmledger/internal/infrastructure/http/v1/dto"
)

// LedgerService is the CRUD surface shared by advances, expenses and price changes.
type LedgerService[T entity.AgentOwned] interface {
	Create(ctx context.Context, e T) error
	GetByID(ctx context.Context, recordID id.ID) (T, error)
	Update(ctx context.Context, e T) error
	Delete(ctx context.Context, recordID id.ID) error
	List(ctx context.Context, filter domain.ListFilter) (domain.ListResult[T], error)
}

var (
	_ LedgerService[*advances.CashAdvance] = (*advances.Service)(nil)
	_ LedgerService[*expenses.Expense]     = (*expenses.Service)(nil)
	_ LedgerService[*pricing.PriceChange]  = (*pricing.Service)(nil)
)

// LedgerHandler provides generic HTTP handlers for agent-owned ledger records.
type LedgerHandler[T entity.AgentOwned, Req any] struct {
	*BaseHandler
	service LedgerService[T]

	// mapRequest builds the record from a request. existing is the zero T on create.
	mapRequest func(req Req, existing T) T
}

// LedgerHandlerConfig configures the ledger handler.
type LedgerHandlerConfig[T entity.AgentOwned, Req any] struct {
	Service    LedgerService[T]
	MapRequest func(req Req, existing T) T
}

// NewLedgerHandler creates a new ledger handler.
func NewLedgerHandler[T entity.AgentOwned, Req any](
	base *BaseHandler,
	cfg LedgerHandlerConfig[T, Req],
) *LedgerHandler[T, Req] {
	return &LedgerHandler[T, Req]{
		BaseHandler: base,
		service:     cfg.Service,
		mapRequest:  cfg.MapRequest,
	}
}

// List handles GET /{ledger} with filtering and pagination.
func (h *LedgerHandler[T, Req]) List(c *gin.Context) {
	filter, ok := h.ParseListFilter(c)
	if !ok {
		return
	}

	result, err := h.service.List(c.Request.Context(), filter)
	if err != nil {
		h.Error(c, err)
		return
	}
	List(h.BaseHandler, c, result)
}

// Get handles GET /{ledger}/:id
func (h *LedgerHandler[T, Req]) Get(c *gin.Context) {
	recordID, ok := h.ParseID(c, "id")
	if !ok {
		return
	}

	e, err := h.service.GetByID(c.Request.Context(), recordID)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, e)
}

// Create handles POST /{ledger}
func (h *LedgerHandler[T, Req]) Create(c *gin.Context) {
	var req Req
	if !h.BindJSON(c, &req) {
		return
	}

	var zero T
	e := h.mapRequest(req, zero)
	if err := h.service.Create(c.Request.Context(), e); err != nil {
		h.Error(c, err)
		return
	}
	h.Created(c, e)
}

// Update handles PUT /{ledger}/:id
func (h *LedgerHandler[T, Req]) Update(c *gin.Context) {
	recordID, ok := h.ParseID(c, "id")
	if !ok {
		return
	}

	var req Req
	if !h.BindJSON(c, &req) {
		return
	}

	ctx := c.Request.Context()
	existing, err := h.service.GetByID(ctx, recordID)
	if err != nil {
		h.Error(c, err)
		return
	}

	updated := h.mapRequest(req, existing)
	if err := h.service.Update(ctx, updated); err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, updated)
}

// Delete handles DELETE /{ledger}/:id
func (h *LedgerHandler[T, Req]) Delete(c *gin.Context) {
	recordID, ok := h.ParseID(c, "id")
	if !ok {
		return
	}

	if err := h.service.Delete(c.Request.Context(), recordID); err != nil {
		h.Error(c, err)
		return
	}
	h.NoContent(c)
}

// NewAdvanceHandler serves cash advances.
func NewAdvanceHandler(base *BaseHandler, service LedgerService[*advances.CashAdvance]) *LedgerHandler[*advances.CashAdvance, dto.AdvanceRequest] {
	return NewLedgerHandler(base, LedgerHandlerConfig[*advances.CashAdvance, dto.AdvanceRequest]{
		Service:    service,
		MapRequest: dto.AdvanceRequest.ToAdvance,
	})
}

// --- Expenses ---

// ExpenseService adds type suggestions to the ledger surface.
type ExpenseService interface {
	LedgerService[*expenses.Expense]
	SuggestTypes(ctx context.Context, agentID *id.ID, prefix string, limit int) ([]string, error)
}

var _ ExpenseService = (*expenses.Service)(nil)

// ExpenseHandler serves expenses.
type ExpenseHandler struct {
	*LedgerHandler[*expenses.Expense, dto.ExpenseRequest]
	service ExpenseService
}

// NewExpenseHandler creates the expense handler.
func NewExpenseHandler(base *BaseHandler, service ExpenseService) *ExpenseHandler {
	return &ExpenseHandler{
		LedgerHandler: NewLedgerHandler(base, LedgerHandlerConfig[*expenses.Expense, dto.ExpenseRequest]{
			Service:    service,
			MapRequest: dto.ExpenseRequest.ToExpense,
		}),
		service: service,
	}
}

// Types handles GET /expenses/types?q=&agentId=&limit=
func (h *ExpenseHandler) Types(c *gin.Context) {
	var q dto.ExpenseTypesQuery
	if !h.BindQuery(c, &q) {
		return
	}
	var agentID *id.ID
	if q.AgentID != nil {
		parsed, err := id.ParseOptional(*q.AgentID)
		if err != nil {
			h.Error(c, apperror.NewInvalidInput("agentId", "invalid id format"))
			return
		}
		agentID = parsed
	}

	types, err := h.service.SuggestTypes(c.Request.Context(), agentID, q.Prefix, q.Limit)
	if err != nil {
		h.Error(c, err)
		return
	}
	if types == nil {
		types = []string{}
	}
	h.OK(c, gin.H{"items": types})
}

// --- Price changes ---

// PriceService adds the current price lookup to the ledger surface.
type PriceService interface {
	LedgerService[*pricing.PriceChange]
	CurrentPrice(ctx context.Context, agentID id.ID) (*pricing.Current, error)
}

var _ PriceService = (*pricing.Service)(nil)

// PriceHandler serves fruit price changes.
type PriceHandler struct {
	*LedgerHandler[*pricing.PriceChange, dto.PriceChangeRequest]
	service PriceService
}

// NewPriceHandler creates the price change handler.
func NewPriceHandler(base *BaseHandler, service PriceService) *PriceHandler {
	return &PriceHandler{
		LedgerHandler: NewLedgerHandler(base, LedgerHandlerConfig[*pricing.PriceChange, dto.PriceChangeRequest]{
			Service:    service,
			MapRequest: dto.PriceChangeRequest.ToPriceChange,
		}),
		service: service,
	}
}

// Current handles GET /price-changes/current?agentId=
func (h *PriceHandler) Current(c *gin.Context) {
	agentID, ok := h.ParseOptionalIDQuery(c, "agentId")
	if !ok {
		return
	}
	if agentID == nil {
		h.Error(c, apperror.NewInvalidInput("agentId", "agentId is required"))
		return
	}

	current, err := h.service.CurrentPrice(c.Request.Context(), *agentID)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, current)
}
