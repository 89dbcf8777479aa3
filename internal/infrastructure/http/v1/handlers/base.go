// Package handlers provides HTTP request handlers.
package handlers

import (
	"encoding/json"
	"errors"
	"mime"
	"net/http"
	"reflect"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"

	"palmledger/internal/core/apperror"
	appctx "palmledger/internal/core/context"
	"palmledger/internal/core/id"
	"palmledger/internal/core/types"
	"palmledger/internal/domain"
	"palmledger/internal/infrastructure/export"
	"palmledger/internal/infrastructure/http/v1/dto"
	"palmledger/internal/infrastructure/http/v1/middleware"
)

func init() {
	// Field errors are reported under their JSON names.
	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		v.RegisterTagNameFunc(func(f reflect.StructField) string {
			for _, tag := range []string{"json", "form"} {
				name := strings.SplitN(f.Tag.Get(tag), ",", 2)[0]
				if name != "" && name != "-" {
					return name
				}
			}
			return f.Name
		})
	}
}

// BaseHandler provides common handler utilities.
type BaseHandler struct{}

// NewBaseHandler creates a new base handler.
func NewBaseHandler() *BaseHandler {
	return &BaseHandler{}
}

// BindJSON binds and validates JSON request body.
func (h *BaseHandler) BindJSON(c *gin.Context, obj any) bool {
	if err := c.ShouldBindJSON(obj); err != nil {
		h.Error(c, bindError("invalid request body", err))
		return false
	}
	return true
}

// BindQuery binds and validates query parameters.
func (h *BaseHandler) BindQuery(c *gin.Context, obj any) bool {
	if err := c.ShouldBindQuery(obj); err != nil {
		h.Error(c, bindError("invalid query parameters", err))
		return false
	}
	return true
}

// bindError turns binding failures into a validation error with field → tag details.
func bindError(message string, err error) *apperror.AppError {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		appErr := apperror.NewValidation(message)
		for _, fe := range verrs {
			appErr = appErr.WithDetail(fieldPath(fe), fe.Tag())
		}
		return appErr
	}

	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &typeErr) {
		return apperror.NewInvalidInput(typeErr.Field, "expected "+typeErr.Type.String())
	}
	return apperror.NewValidation(message).WithDetail("error", err.Error())
}

// fieldPath drops the top-level struct name from the validator namespace.
func fieldPath(fe validator.FieldError) string {
	ns := fe.Namespace()
	if i := strings.IndexByte(ns, '.'); i >= 0 {
		return ns[i+1:]
	}
	return fe.Field()
}

// Error processes error and sends appropriate response.
func (h *BaseHandler) Error(c *gin.Context, err error) {
	h.HandleError(c, err)
}

// HandleError registers error on Gin context and aborts request.
// Actual JSON response is produced by middleware.ErrorHandler (single source of truth).
func (h *BaseHandler) HandleError(c *gin.Context, err error) {
	_ = c.Error(err)
	c.Abort()
}

// ParseIntQuery parses integer query parameter with default value.
func (h *BaseHandler) ParseIntQuery(c *gin.Context, key string, defaultVal int) int {
	val := c.Query(key)
	if val == "" {
		return defaultVal
	}
	parsed, err := strconv.Atoi(val)
	if err != nil {
		return defaultVal
	}
	return parsed
}

// ParseID parses the named path parameter as an id.
func (h *BaseHandler) ParseID(c *gin.Context, param string) (id.ID, bool) {
	v, err := id.Parse(c.Param(param))
	if err != nil {
		h.Error(c, apperror.NewInvalidInput(param, "invalid id format"))
		return id.ID{}, false
	}
	return v, true
}

// ParseOptionalIDQuery parses an optional id query parameter.
func (h *BaseHandler) ParseOptionalIDQuery(c *gin.Context, key string) (*id.ID, bool) {
	v, err := id.ParseOptional(c.Query(key))
	if err != nil {
		h.Error(c, apperror.NewInvalidInput(key, "invalid id format"))
		return nil, false
	}
	return v, true
}

// ParsePeriod reads the from and to date query parameters.
func (h *BaseHandler) ParsePeriod(c *gin.Context) (types.DateRange, bool) {
	var r types.DateRange
	var err error
	if r.From, err = types.ParseDate(c.Query("from")); err != nil {
		h.Error(c, apperror.NewInvalidInput("from", "expected YYYY-MM-DD"))
		return r, false
	}
	if r.To, err = types.ParseDate(c.Query("to")); err != nil {
		h.Error(c, apperror.NewInvalidInput("to", "expected YYYY-MM-DD"))
		return r, false
	}
	return r, true
}

// ParseListFilter reads the common list query parameters:
// agentId, from, to, search, orderBy, limit and offset.
func (h *BaseHandler) ParseListFilter(c *gin.Context) (domain.ListFilter, bool) {
	agentID, ok := h.ParseOptionalIDQuery(c, "agentId")
	if !ok {
		return domain.ListFilter{}, false
	}
	period, ok := h.ParsePeriod(c)
	if !ok {
		return domain.ListFilter{}, false
	}
	return domain.ListFilter{
		AgentID: agentID,
		Period:  period,
		Search:  strings.TrimSpace(c.Query("search")),
		OrderBy: c.Query("orderBy"),
		Limit:   h.ParseIntQuery(c, "limit", 50),
		Offset:  h.ParseIntQuery(c, "offset", 0),
	}, true
}

// GetUserID extracts user ID from request context.
func (h *BaseHandler) GetUserID(c *gin.Context) string {
	return appctx.GetUserID(c.Request.Context())
}

// CompleteIdempotency marks the idempotency key as completed with the same HTTP semantics
// (status code + content type + body) for correct replay.
func (h *BaseHandler) CompleteIdempotency(c *gin.Context, statusCode int, contentType string, response any) {
	var body []byte
	if response != nil {
		raw, err := json.Marshal(response)
		if err != nil {
			return
		}
		body = raw
	}
	middleware.CompleteIdempotency(c, statusCode, contentType, body)
}

// Created sends 201 response with data.
func (h *BaseHandler) Created(c *gin.Context, data any) {
	h.CompleteIdempotency(c, http.StatusCreated, "application/json; charset=utf-8", data)
	c.JSON(http.StatusCreated, data)
}

// OK sends 200 response with data.
func (h *BaseHandler) OK(c *gin.Context, data any) {
	h.CompleteIdempotency(c, http.StatusOK, "application/json; charset=utf-8", data)
	c.JSON(http.StatusOK, data)
}

// NoContent sends 204 response.
func (h *BaseHandler) NoContent(c *gin.Context) {
	// 204 must replay as 204 with empty body.
	h.CompleteIdempotency(c, http.StatusNoContent, "", nil)
	c.Status(http.StatusNoContent)
}

// Success sends success response.
func (h *BaseHandler) Success(c *gin.Context, message string) {
	h.OK(c, dto.SuccessResponse{Success: true, Message: message})
}

// Attachment sends a rendered file as a download.
func (h *BaseHandler) Attachment(c *gin.Context, f *export.File) {
	c.Header("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": f.Name}))
	c.Data(http.StatusOK, f.ContentType, f.Body)
}

// List sends a page of results.
func List[T any](h *BaseHandler, c *gin.Context, result domain.ListResult[T]) {
	items := result.Items
	if items == nil {
		items = []T{}
	}
	h.OK(c, dto.ListResponse{
		Items:      items,
		TotalCount: result.TotalCount,
		Limit:      result.Limit,
		Offset:     result.Offset,
	})
}
