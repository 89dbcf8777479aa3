package handlers

import (
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"palmledger/internal/core/apperror"
	"palmledger/internal/core/id"
	"palmledger/internal/domain"
	"palmledger/internal/domain/agents"
	"palmledger/internal/infrastructure/http/v1/dto"
)

// AgentService is the part of agents.Service used over HTTP.
type AgentService interface {
	Create(ctx context.Context, a *agents.Agent) error
	GetByID(ctx context.Context, agentID id.ID) (*agents.Agent, error)
	Update(ctx context.Context, a *agents.Agent) error
	List(ctx context.Context, filter agents.ListFilter) (domain.ListResult[*agents.Agent], error)
	Delete(ctx context.Context, agentID id.ID) (bool, error)
	Restore(ctx context.Context, agentID id.ID) error
	UploadPhoto(ctx context.Context, agentID id.ID, data []byte) (*agents.Agent, error)
	RemovePhoto(ctx context.Context, agentID id.ID) error
	PhotoURL(ctx context.Context, agentID id.ID) (string, error)
}

var _ AgentService = (*agents.Service)(nil)

// AgentHandler serves the agent directory.
type AgentHandler struct {
	*BaseHandler
	service AgentService
}

// NewAgentHandler creates the agent handler.
func NewAgentHandler(base *BaseHandler, service AgentService) *AgentHandler {
	return &AgentHandler{BaseHandler: base, service: service}
}

// List handles GET /agents
func (h *AgentHandler) List(c *gin.Context) {
	base, ok := h.ParseListFilter(c)
	if !ok {
		return
	}
	var q dto.AgentListQuery
	if !h.BindQuery(c, &q) {
		return
	}

	result, err := h.service.List(c.Request.Context(), agents.ListFilter{
		ListFilter:      base,
		Status:          q.Status,
		IncludeArchived: q.IncludeArchived,
	})
	if err != nil {
		h.Error(c, err)
		return
	}
	List(h.BaseHandler, c, result)
}

// Get handles GET /agents/:id
func (h *AgentHandler) Get(c *gin.Context) {
	agentID, ok := h.ParseID(c, "id")
	if !ok {
		return
	}
	a, err := h.service.GetByID(c.Request.Context(), agentID)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, a)
}

// Create handles POST /agents
func (h *AgentHandler) Create(c *gin.Context) {
	var req dto.AgentRequest
	if !h.BindJSON(c, &req) {
		return
	}
	a := req.ToAgent()
	if err := h.service.Create(c.Request.Context(), a); err != nil {
		h.Error(c, err)
		return
	}
	h.Created(c, a)
}

// Update handles PUT /agents/:id
func (h *AgentHandler) Update(c *gin.Context) {
	agentID, ok := h.ParseID(c, "id")
	if !ok {
		return
	}
	var req dto.AgentRequest
	if !h.BindJSON(c, &req) {
		return
	}

	ctx := c.Request.Context()
	a, err := h.service.GetByID(ctx, agentID)
	if err != nil {
		h.Error(c, err)
		return
	}
	req.Apply(a)
	if err := h.service.Update(ctx, a); err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, a)
}

// Delete handles DELETE /agents/:id. Agents with history are archived instead.
func (h *AgentHandler) Delete(c *gin.Context) {
	agentID, ok := h.ParseID(c, "id")
	if !ok {
		return
	}
	archived, err := h.service.Delete(c.Request.Context(), agentID)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, dto.DeleteAgentResponse{ID: agentID.String(), Archived: archived})
}

// Restore handles POST /agents/:id/restore
func (h *AgentHandler) Restore(c *gin.Context) {
	agentID, ok := h.ParseID(c, "id")
	if !ok {
		return
	}
	if err := h.service.Restore(c.Request.Context(), agentID); err != nil {
		h.Error(c, err)
		return
	}
	h.Success(c, "agent restored")
}

// UploadPhoto handles POST /agents/:id/photo (multipart field "photo").
func (h *AgentHandler) UploadPhoto(c *gin.Context) {
	agentID, ok := h.ParseID(c, "id")
	if !ok {
		return
	}

	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, agents.MaxPhotoBytes+1<<20)
	fh, err := c.FormFile("photo")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			h.Error(c, apperror.NewValidation("photo is too large").WithDetail("max_bytes", agents.MaxPhotoBytes))
			return
		}
		h.Error(c, apperror.NewInvalidInput("photo", "multipart file field \"photo\" is required"))
		return
	}
	if fh.Size > agents.MaxPhotoBytes {
		h.Error(c, apperror.NewValidation("photo is too large").WithDetail("max_bytes", agents.MaxPhotoBytes))
		return
	}

	f, err := fh.Open()
	if err != nil {
		h.Error(c, apperror.NewInternal(err))
		return
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, agents.MaxPhotoBytes+1))
	if err != nil {
		h.Error(c, apperror.NewInternal(err))
		return
	}

	a, err := h.service.UploadPhoto(c.Request.Context(), agentID, data)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, a)
}

// RemovePhoto handles DELETE /agents/:id/photo
func (h *AgentHandler) RemovePhoto(c *gin.Context) {
	agentID, ok := h.ParseID(c, "id")
	if !ok {
		return
	}
	if err := h.service.RemovePhoto(c.Request.Context(), agentID); err != nil {
		h.Error(c, err)
		return
	}
	h.NoContent(c)
}

// PhotoURL handles GET /agents/:id/photo-url
func (h *AgentHandler) PhotoURL(c *gin.Context) {
	agentID, ok := h.ParseID(c, "id")
	if !ok {
		return
	}
	url, err := h.service.PhotoURL(c.Request.Context(), agentID)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, dto.PhotoURLResponse{URL: url})
}
