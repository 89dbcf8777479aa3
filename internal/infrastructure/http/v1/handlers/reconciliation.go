package handlers

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"

	"palmledger/internal/core/apperror"
	"palmledger/internal/core/id"
	"palmledger/internal/domain"
	"palmledger/internal/domain/reconciliation"
	"palmledger/internal/infrastructure/http/v1/dto"
)

// ReconciliationService is the part of reconciliation.Service used over HTTP.
type ReconciliationService interface {
	Generate(ctx context.Context, agentID id.ID, month time.Time) (*reconciliation.Reconciliation, error)
	Get(ctx context.Context, reconciliationID id.ID) (*reconciliation.Reconciliation, error)
	List(ctx context.Context, filter reconciliation.Filter) (domain.ListResult[*reconciliation.Reconciliation], error)
	UpdateStatus(ctx context.Context, reconciliationID id.ID, status reconciliation.Status, version int) (*reconciliation.Reconciliation, error)
	UpdateComments(ctx context.Context, reconciliationID id.ID, comments string, version int) (*reconciliation.Reconciliation, error)
}

var _ ReconciliationService = (*reconciliation.Service)(nil)

// ReconciliationHandler serves monthly reconciliations.
type ReconciliationHandler struct {
	*BaseHandler
	service ReconciliationService
}

// NewReconciliationHandler creates the reconciliation handler.
func NewReconciliationHandler(base *BaseHandler, service ReconciliationService) *ReconciliationHandler {
	return &ReconciliationHandler{BaseHandler: base, service: service}
}

// List handles GET /reconciliations
func (h *ReconciliationHandler) List(c *gin.Context) {
	var q dto.ReconciliationListQuery
	if !h.BindQuery(c, &q) {
		return
	}
	filter, err := q.ToFilter()
	if err != nil {
		h.Error(c, apperror.NewValidation("invalid query parameters").WithDetail("error", err.Error()))
		return
	}

	result, err := h.service.List(c.Request.Context(), filter)
	if err != nil {
		h.Error(c, err)
		return
	}
	List(h.BaseHandler, c, result)
}

// Get handles GET /reconciliations/:id
func (h *ReconciliationHandler) Get(c *gin.Context) {
	reconciliationID, ok := h.ParseID(c, "id")
	if !ok {
		return
	}
	r, err := h.service.Get(c.Request.Context(), reconciliationID)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, r)
}

// Generate handles POST /reconciliations/generate
func (h *ReconciliationHandler) Generate(c *gin.Context) {
	var req dto.GenerateReconciliationRequest
	if !h.BindJSON(c, &req) {
		return
	}
	r, err := h.service.Generate(c.Request.Context(), req.AgentID, req.Month.Time)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, r)
}

// Patch handles PATCH /reconciliations/:id. Status is applied before comments,
// the second change using the version returned by the first.
func (h *ReconciliationHandler) Patch(c *gin.Context) {
	reconciliationID, ok := h.ParseID(c, "id")
	if !ok {
		return
	}
	var req dto.PatchReconciliationRequest
	if !h.BindJSON(c, &req) {
		return
	}
	if req.Status == nil && req.Comments == nil {
		h.Error(c, apperror.NewValidation("nothing to update").WithDetail("fields", "status, comments"))
		return
	}

	ctx := c.Request.Context()
	var (
		r   *reconciliation.Reconciliation
		err error
	)
	version := req.Version
	if req.Status != nil {
		if r, err = h.service.UpdateStatus(ctx, reconciliationID, *req.Status, version); err != nil {
			h.Error(c, err)
			return
		}
		version = r.Version
	}
	if req.Comments != nil {
		if r, err = h.service.UpdateComments(ctx, reconciliationID, *req.Comments, version); err != nil {
			h.Error(c, err)
			return
		}
	}
	h.OK(c, r)
}
