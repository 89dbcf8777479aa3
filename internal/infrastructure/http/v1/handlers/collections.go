package handlers

import (
	"context"

	"github.com/gin-gonic/gin"

	"palmledger/internal/core/id"
	"palmledger/internal/domain"
	"palmledger/internal/domain/collections"
	"palmledger/internal/infrastructure/http/v1/dto"
)

// CollectionService is the part of collections.Service used over HTTP.
type CollectionService interface {
	Create(ctx context.Context, d collections.Draft) (*collections.Collection, error)
	Update(ctx context.Context, collectionID id.ID, d collections.Draft) (*collections.Collection, error)
	GetByID(ctx context.Context, collectionID id.ID) (*collections.Collection, error)
	Delete(ctx context.Context, collectionID id.ID) error
	List(ctx context.Context, filter domain.ListFilter) (domain.ListResult[*collections.Collection], error)
}

var _ CollectionService = (*collections.Service)(nil)

// CollectionHandler serves fruit collections.
type CollectionHandler struct {
	*BaseHandler
	service CollectionService
}

// NewCollectionHandler creates the collection handler.
func NewCollectionHandler(base *BaseHandler, service CollectionService) *CollectionHandler {
	return &CollectionHandler{BaseHandler: base, service: service}
}

// List handles GET /collections
func (h *CollectionHandler) List(c *gin.Context) {
	filter, ok := h.ParseListFilter(c)
	if !ok {
		return
	}

	result, err := h.service.List(c.Request.Context(), filter)
	if err != nil {
		h.Error(c, err)
		return
	}

	items := make([]dto.CollectionResponse, len(result.Items))
	for i, item := range result.Items {
		items[i] = dto.FromCollection(item)
	}
	h.OK(c, dto.ListResponse{
		Items:      items,
		TotalCount: result.TotalCount,
		Limit:      result.Limit,
		Offset:     result.Offset,
	})
}

// Get handles GET /collections/:id
func (h *CollectionHandler) Get(c *gin.Context) {
	col, ok := h.load(c)
	if !ok {
		return
	}
	h.OK(c, dto.FromCollection(col))
}

// Breakdown handles GET /collections/:id/breakdown and returns the rows for re-editing.
func (h *CollectionHandler) Breakdown(c *gin.Context) {
	col, ok := h.load(c)
	if !ok {
		return
	}
	h.OK(c, dto.FromBreakdown(col))
}

// Create handles POST /collections
func (h *CollectionHandler) Create(c *gin.Context) {
	var req dto.CollectionRequest
	if !h.BindJSON(c, &req) {
		return
	}
	draft, err := req.ToDraft()
	if err != nil {
		h.Error(c, err)
		return
	}

	col, err := h.service.Create(c.Request.Context(), draft)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.Created(c, dto.FromCollection(col))
}

// Update handles PUT /collections/:id
func (h *CollectionHandler) Update(c *gin.Context) {
	collectionID, ok := h.ParseID(c, "id")
	if !ok {
		return
	}
	var req dto.CollectionRequest
	if !h.BindJSON(c, &req) {
		return
	}
	draft, err := req.ToDraft()
	if err != nil {
		h.Error(c, err)
		return
	}

	col, err := h.service.Update(c.Request.Context(), collectionID, draft)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, dto.FromCollection(col))
}

// Delete handles DELETE /collections/:id
func (h *CollectionHandler) Delete(c *gin.Context) {
	collectionID, ok := h.ParseID(c, "id")
	if !ok {
		return
	}
	if err := h.service.Delete(c.Request.Context(), collectionID); err != nil {
		h.Error(c, err)
		return
	}
	h.NoContent(c)
}

func (h *CollectionHandler) load(c *gin.Context) (*collections.Collection, bool) {
	collectionID, ok := h.ParseID(c, "id")
	if !ok {
		return nil, false
	}
	col, err := h.service.GetByID(c.Request.Context(), collectionID)
	if err != nil {
		h.Error(c, err)
		return nil, false
	}
	return col, true
}
