package middleware

import (
	"encoding/json"
	"net/http"

	"github.com/gin-gonic/gin"

	"palmledger/internal/core/apperror"
	"palmledger/pkg/logger"
)

// errorBody is the JSON shape of every error response.
type errorBody struct {
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
}

// ErrorHandler middleware transforms errors into consistent JSON responses.
// Hides internal errors from clients while logging full details.
func ErrorHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 {
			return
		}
		err := c.Errors.Last().Err

		// If response already written by handler, do not override it.
		if c.Writer.Written() {
			return
		}

		status, body := renderError(c, err)
		raw, marshalErr := json.Marshal(body)
		if marshalErr != nil {
			logger.Error(c.Request.Context(), "marshal error response", "error", marshalErr)
			status = http.StatusInternalServerError
			raw = []byte(`{"code":"` + apperror.CodeInternal + `","message":"Internal server error"}`)
		}

		failIdempotency(c, status, raw)
		c.Data(status, "application/json; charset=utf-8", raw)
	}
}

func renderError(c *gin.Context, err error) (int, errorBody) {
	ctx := c.Request.Context()

	if appErr, ok := apperror.AsAppError(err); ok {
		if appErr.Err != nil || appErr.HTTPStatus >= http.StatusInternalServerError {
			logger.Error(ctx, "request error",
				"code", appErr.Code,
				"status", appErr.HTTPStatus,
				"cause", appErr.Err,
			)
		}
		if appErr.HTTPStatus >= http.StatusInternalServerError {
			return appErr.HTTPStatus, errorBody{
				Code:    appErr.Code,
				Message: "Internal server error",
				Details: map[string]any{"request_id": c.GetString("request_id")},
			}
		}
		return appErr.HTTPStatus, errorBody{
			Code:    appErr.Code,
			Message: appErr.Message,
			Details: appErr.Details,
		}
	}

	logger.Error(ctx, "unhandled error", "error", err)
	return http.StatusInternalServerError, errorBody{
		Code:    apperror.CodeInternal,
		Message: "Internal server error",
		Details: map[string]any{"request_id": c.GetString("request_id")},
	}
}
