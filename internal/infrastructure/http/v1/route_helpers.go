// Package v1 provides HTTP API version 1.
package v1

import (
	"github.com/gin-gonic/gin"

	appctx "palmledger/internal/core/context"
	"palmledger/internal/infrastructure/http/v1/middleware"
)

// CRUDRouteHandler defines the interface for record handlers with standard CRUD routes.
type CRUDRouteHandler interface {
	List(c *gin.Context)
	Create(c *gin.Context)
	Get(c *gin.Context)
	Update(c *gin.Context)
	Delete(c *gin.Context)
}

// RegisterCRUDRoutes registers standard CRUD routes on group. Reads are open to every
// authenticated user (services narrow them to the caller's agent); write guards, when
// given, run before Create, Update and Delete.
//
// Usage:
//
//	repo := document_repo.NewAdvanceRepo(cfg.TxManager)
//	service := advances.NewService(repo, cfg.TxManager, cfg.Audit)
//	handler := handlers.NewAdvanceHandler(baseHandler, service)
//	RegisterCRUDRoutes(protected.Group("/advances"), handler)
func RegisterCRUDRoutes(group *gin.RouterGroup, handler CRUDRouteHandler, writeGuards ...gin.HandlerFunc) {
	write := func(h gin.HandlerFunc) []gin.HandlerFunc {
		return append(append([]gin.HandlerFunc{}, writeGuards...), h)
	}

	group.GET("", handler.List)
	group.GET("/:id", handler.Get)
	group.POST("", write(handler.Create)...)
	group.PUT("/:id", write(handler.Update)...)
	group.DELETE("/:id", write(handler.Delete)...)
}

// adminOnly restricts a route to administrators.
func adminOnly() gin.HandlerFunc {
	return middleware.RequireRole(appctx.RoleAdmin)
}
