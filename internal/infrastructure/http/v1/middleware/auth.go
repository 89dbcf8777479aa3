package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	"palmledger/internal/core/apperror"
	appctx "palmledger/internal/core/context"
)

// JWTValidator interface for token validation.
type JWTValidator interface {
	ValidateToken(tokenString string) (*appctx.UserContext, error)
}

// Auth middleware validates JWT tokens and populates user context.
func Auth(validator JWTValidator) gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenString, ok := bearerToken(c.GetHeader("Authorization"))
		if !ok {
			abortUnauthorized(c, "missing or malformed authorization header")
			return
		}

		user, err := validator.ValidateToken(tokenString)
		if err != nil {
			abortUnauthorized(c, "invalid token")
			return
		}

		ctx := appctx.WithUser(c.Request.Context(), user)
		c.Request = c.Request.WithContext(ctx)
		c.Set("user_id", user.UserID)
		c.Set("role", user.Role)

		c.Next()
	}
}

// PasswordChangeGate blocks every route but allowed while the caller must change their
// password. allowed holds route patterns as returned by gin's FullPath.
func PasswordChangeGate(allowed ...string) gin.HandlerFunc {
	open := make(map[string]struct{}, len(allowed))
	for _, p := range allowed {
		open[p] = struct{}{}
	}
	return func(c *gin.Context) {
		user := appctx.GetUser(c.Request.Context())
		if user == nil || !user.MustChangePassword {
			c.Next()
			return
		}
		if _, ok := open[c.FullPath()]; ok {
			c.Next()
			return
		}
		_ = c.Error(apperror.NewMustChangePassword())
		c.Abort()
	}
}

// RequireRole middleware checks that the caller holds one of roles.
func RequireRole(roles ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		user := appctx.GetUser(c.Request.Context())
		if user == nil {
			abortUnauthorized(c, "authentication required")
			return
		}

		for _, required := range roles {
			if user.Role == required {
				c.Next()
				return
			}
		}
		_ = c.Error(
			apperror.NewForbidden("insufficient permissions").
				WithDetail("required_roles", roles),
		)
		c.Abort()
	}
}

func bearerToken(header string) (string, bool) {
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
		return "", false
	}
	token := strings.TrimSpace(parts[1])
	return token, token != ""
}

func abortUnauthorized(c *gin.Context, message string) {
	_ = c.Error(apperror.NewUnauthorized(message))
	c.Abort()
}
