// Package context carries request-scoped identity and tracing values.
package context

import (
	"context"
)

// Roles known to the role map.
const (
	RoleAdmin = "ADMIN"
	RoleAgent = "AGENT"
)

// UserContext is the authenticated caller, resolved from the access token.
type UserContext struct {
	UserID             string
	Email              string
	Role               string
	AgentID            string // set only for RoleAgent
	MustChangePassword bool
	SessionID          string
}

// IsAdmin reports whether the caller holds the ADMIN role.
func (u *UserContext) IsAdmin() bool {
	return u != nil && u.Role == RoleAdmin
}

type userContextKey struct{}

// WithUser adds UserContext to context.
func WithUser(ctx context.Context, user *UserContext) context.Context {
	return context.WithValue(ctx, userContextKey{}, user)
}

// GetUser returns UserContext from context.
func GetUser(ctx context.Context) *UserContext {
	if v, ok := ctx.Value(userContextKey{}).(*UserContext); ok {
		return v
	}
	return nil
}

// GetUserID returns user ID from context or empty string.
func GetUserID(ctx context.Context) string {
	if u := GetUser(ctx); u != nil {
		return u.UserID
	}
	return ""
}

// HasRole checks the caller's role.
func HasRole(ctx context.Context, role string) bool {
	u := GetUser(ctx)
	return u != nil && u.Role == role
}
