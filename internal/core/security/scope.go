// Package security resolves what the current caller may see and change.
package security

import (
	"context"

	"palmledger/internal/core/apperror"
	appctx "palmledger/internal/core/context"
	"palmledger/internal/core/id"
)

// AccessScope is the visibility boundary of the current request.
// An admin sees every agent; an agent sees only the records of the agent they represent.
type AccessScope struct {
	UserID  string
	Role    string
	AgentID *id.ID
}

// NewAccessScope builds the scope from the user in ctx. A missing user yields an empty scope
// that can see nothing.
func NewAccessScope(ctx context.Context) *AccessScope {
	user := appctx.GetUser(ctx)
	if user == nil {
		return &AccessScope{}
	}
	scope := &AccessScope{UserID: user.UserID, Role: user.Role}
	if user.AgentID != "" {
		if agentID, err := id.Parse(user.AgentID); err == nil {
			scope.AgentID = &agentID
		}
	}
	return scope
}

// IsAdmin reports whether the scope is unrestricted.
func (s *AccessScope) IsAdmin() bool {
	return s.Role == appctx.RoleAdmin
}

// CanAccessAgent checks whether records of agentID are visible.
func (s *AccessScope) CanAccessAgent(agentID id.ID) bool {
	if s.IsAdmin() {
		return true
	}
	return s.AgentID != nil && *s.AgentID == agentID
}

// AgentFilter narrows a requested agent filter to what the caller may see.
// Agents always get their own id; asking for another agent is forbidden.
func (s *AccessScope) AgentFilter(requested *id.ID) (*id.ID, error) {
	if s.IsAdmin() {
		return requested, nil
	}
	if s.AgentID == nil {
		return nil, apperror.NewForbidden("no agent is linked to this account")
	}
	if requested != nil && *requested != *s.AgentID {
		return nil, apperror.NewForbidden("access to another agent's records is not allowed").
			WithDetail("agent_id", requested.String())
	}
	own := *s.AgentID
	return &own, nil
}

// RequireAgent returns a forbidden error unless agentID is visible.
func (s *AccessScope) RequireAgent(agentID id.ID) error {
	if !s.CanAccessAgent(agentID) {
		return apperror.NewForbidden("access to another agent's records is not allowed").
			WithDetail("agent_id", agentID.String())
	}
	return nil
}

// RequireAdmin returns a forbidden error unless the caller is an admin.
func (s *AccessScope) RequireAdmin() error {
	if !s.IsAdmin() {
		return apperror.NewForbidden("admin role required")
	}
	return nil
}
