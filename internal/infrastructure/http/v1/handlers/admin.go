package handlers

import (
	"context"

	"github.com/gin-gonic/gin"

	"palmledger/internal/core/id"
	"palmledger/internal/domain/auth"
	"palmledger/internal/infrastructure/http/v1/dto"
)

// AccountService is the part of auth.Service used by account administration.
type AccountService interface {
	ListUsers(ctx context.Context, filter auth.UserFilter) ([]auth.User, int, error)
	CreateAdmin(ctx context.Context, req auth.NewAccountRequest) (*auth.IssuedAccount, error)
	CreateAgentUser(ctx context.Context, req auth.NewAccountRequest) (*auth.IssuedAccount, error)
	DisableUser(ctx context.Context, userID id.ID) error
	EnableUser(ctx context.Context, userID id.ID) error
	RemoveUser(ctx context.Context, userID id.ID) error
	ResetPassword(ctx context.Context, userID id.ID) (*auth.IssuedAccount, error)
}

var _ AccountService = (*auth.Service)(nil)

// AdminHandler administers logins. Every route is admin only.
type AdminHandler struct {
	*BaseHandler
	service AccountService
}

// NewAdminHandler creates the account administration handler.
func NewAdminHandler(base *BaseHandler, service AccountService) *AdminHandler {
	return &AdminHandler{BaseHandler: base, service: service}
}

// ListUsers handles GET /admin/users
func (h *AdminHandler) ListUsers(c *gin.Context) {
	var q dto.UserListQuery
	if !h.BindQuery(c, &q) {
		return
	}

	users, total, err := h.service.ListUsers(c.Request.Context(), q.ToFilter())
	if err != nil {
		h.Error(c, err)
		return
	}

	items := make([]*dto.UserResponse, len(users))
	for i := range users {
		items[i] = dto.FromUser(&users[i])
	}
	h.OK(c, dto.ListResponse{
		Items:      items,
		TotalCount: int64(total),
		Limit:      q.Limit,
		Offset:     q.Offset,
	})
}

// CreateAdmin handles POST /admin/admins
func (h *AdminHandler) CreateAdmin(c *gin.Context) {
	var req dto.CreateAdminRequest
	if !h.BindJSON(c, &req) {
		return
	}

	account, err := h.service.CreateAdmin(c.Request.Context(), req.ToAccountRequest())
	if err != nil {
		h.Error(c, err)
		return
	}
	h.Created(c, dto.FromIssuedAccount(account))
}

// CreateAgentUser handles POST /admin/agent-users
func (h *AdminHandler) CreateAgentUser(c *gin.Context) {
	var req dto.CreateAgentUserRequest
	if !h.BindJSON(c, &req) {
		return
	}

	account, err := h.service.CreateAgentUser(c.Request.Context(), req.ToAccountRequest())
	if err != nil {
		h.Error(c, err)
		return
	}
	h.Created(c, dto.FromIssuedAccount(account))
}

// Disable handles POST /admin/users/:id/disable
func (h *AdminHandler) Disable(c *gin.Context) {
	h.userAction(c, h.service.DisableUser, "user disabled")
}

// Enable handles POST /admin/users/:id/enable
func (h *AdminHandler) Enable(c *gin.Context) {
	h.userAction(c, h.service.EnableUser, "user enabled")
}

// Remove handles DELETE /admin/users/:id
func (h *AdminHandler) Remove(c *gin.Context) {
	userID, ok := h.ParseID(c, "id")
	if !ok {
		return
	}
	if err := h.service.RemoveUser(c.Request.Context(), userID); err != nil {
		h.Error(c, err)
		return
	}
	h.NoContent(c)
}

// ResetPassword handles POST /admin/users/:id/reset-password
func (h *AdminHandler) ResetPassword(c *gin.Context) {
	userID, ok := h.ParseID(c, "id")
	if !ok {
		return
	}
	account, err := h.service.ResetPassword(c.Request.Context(), userID)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, dto.FromIssuedAccount(account))
}

func (h *AdminHandler) userAction(c *gin.Context, fn func(context.Context, id.ID) error, message string) {
	userID, ok := h.ParseID(c, "id")
	if !ok {
		return
	}
	if err := fn(c.Request.Context(), userID); err != nil {
		h.Error(c, err)
		return
	}
	h.Success(c, message)
}

// RegisterRoutes registers admin routes on a group already restricted to admins.
func (h *AdminHandler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/users", h.ListUsers)
	rg.POST("/admins", h.CreateAdmin)
	rg.POST("/agent-users", h.CreateAgentUser)
	rg.POST("/users/:id/disable", h.Disable)
	rg.POST("/users/:id/enable", h.Enable)
	rg.POST("/users/:id/reset-password", h.ResetPassword)
	rg.DELETE("/users/:id", h.Remove)
}
