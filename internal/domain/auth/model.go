package auth

import (
	"context"
	"net/mail"
	"strings"
	"time"

	"palmledger/internal/core/apperror"
	appctx "palmledger/internal/core/context"
	"palmledger/internal/core/id"
)

// User represents a login. Role and AgentID come from the role map.
type User struct {
	ID                  id.ID      `db:"id" json:"id"`
	Email               string     `db:"email" json:"email"`
	PasswordHash        string     `db:"password_hash" json:"-"`
	FullName            string     `db:"full_name" json:"fullName,omitempty"`
	IsActive            bool       `db:"is_active" json:"isActive"`
	MustChangePassword  bool       `db:"must_change_password" json:"mustChangePassword"`
	LastLoginAt         *time.Time `db:"last_login_at" json:"lastLoginAt,omitempty"`
	FailedLoginAttempts int        `db:"failed_login_attempts" json:"-"`
	LockedUntil         *time.Time `db:"locked_until" json:"-"`
	CreatedAt           time.Time  `db:"created_at" json:"createdAt"`
	UpdatedAt           time.Time  `db:"updated_at" json:"updatedAt"`
	DeletedAt           *time.Time `db:"deleted_at" json:"-"`
	Version             int        `db:"version" json:"version"`

	// Loaded from the role map
	Role    string `db:"-" json:"role"`
	AgentID *id.ID `db:"-" json:"agentId,omitempty"`
}

// NewUser creates an active user.
func NewUser(email, passwordHash string, now time.Time) *User {
	return &User{
		ID:           id.New(),
		Email:        NormalizeEmail(email),
		PasswordHash: passwordHash,
		IsActive:     true,
		CreatedAt:    now,
		UpdatedAt:    now,
		Version:      1,
	}
}

// NormalizeEmail trims and lower-cases an address.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Validate validates user data.
func (u *User) Validate(ctx context.Context) error {
	if u.Email == "" {
		return apperror.NewValidation("email is required").WithDetail("field", "email")
	}
	if _, err := mail.ParseAddress(u.Email); err != nil {
		return apperror.NewValidation("email is invalid").WithDetail("field", "email")
	}
	return nil
}

// IsLocked returns true if account is locked at now.
func (u *User) IsLocked(now time.Time) bool {
	if u.LockedUntil == nil {
		return false
	}
	return now.Before(*u.LockedUntil)
}

// CanLogin checks if user can login.
func (u *User) CanLogin(now time.Time) error {
	if u.DeletedAt != nil {
		return apperror.NewUnauthorized("invalid credentials")
	}
	if !u.IsActive {
		return apperror.NewAccountDisabled()
	}
	if u.IsLocked(now) {
		return apperror.NewForbidden("account is temporarily locked")
	}
	return nil
}

// RecordFailedLogin increments failed login counter.
func (u *User) RecordFailedLogin(maxAttempts int, lockDuration time.Duration, now time.Time) {
	u.FailedLoginAttempts++
	if u.FailedLoginAttempts >= maxAttempts {
		lockUntil := now.Add(lockDuration)
		u.LockedUntil = &lockUntil
	}
}

// RecordSuccessfulLogin resets failed login counter.
func (u *User) RecordSuccessfulLogin(now time.Time) {
	u.FailedLoginAttempts = 0
	u.LockedUntil = nil
	u.LastLoginAt = &now
}

// IsAdmin reports whether the user maps to the ADMIN role.
func (u *User) IsAdmin() bool {
	return u.Role == appctx.RoleAdmin
}

// RoleMapping maps a user to its role and, for agents, to the agent it acts for.
type RoleMapping struct {
	UserID    id.ID     `db:"user_id" json:"userId"`
	Role      string    `db:"role" json:"role"`
	AgentID   *id.ID    `db:"agent_id" json:"agentId,omitempty"`
	GrantedBy *id.ID    `db:"granted_by" json:"grantedBy,omitempty"`
	CreatedAt time.Time `db:"created_at" json:"createdAt"`
}

// Validate checks that agents carry an agent id and admins do not.
func (m *RoleMapping) Validate() error {
	switch m.Role {
	case appctx.RoleAdmin:
		if m.AgentID != nil {
			return apperror.NewValidation("admins are not linked to an agent").WithDetail("field", "agentId")
		}
	case appctx.RoleAgent:
		if m.AgentID == nil || id.IsNil(*m.AgentID) {
			return apperror.NewValidation("agent logins require an agent").WithDetail("field", "agentId")
		}
	default:
		return apperror.NewValidation("unknown role").WithDetail("field", "role")
	}
	return nil
}

// RefreshToken represents a refresh token for JWT refresh.
type RefreshToken struct {
	ID            id.ID      `db:"id"`
	UserID        id.ID      `db:"user_id"`
	TokenHash     string     `db:"token_hash"`
	ExpiresAt     time.Time  `db:"expires_at"`
	CreatedAt     time.Time  `db:"created_at"`
	RevokedAt     *time.Time `db:"revoked_at"`
	RevokedReason *string    `db:"revoked_reason"`
	UserAgent     string     `db:"user_agent"`
	IPAddress     string     `db:"ip_address"`
}

// IsValid checks if refresh token is valid at now.
func (t *RefreshToken) IsValid(now time.Time) bool {
	if t.RevokedAt != nil {
		return false
	}
	return now.Before(t.ExpiresAt)
}

// TokenPair contains access and refresh tokens.
type TokenPair struct {
	AccessToken        string    `json:"accessToken"`
	RefreshToken       string    `json:"refreshToken"`
	ExpiresAt          time.Time `json:"expiresAt"`
	TokenType          string    `json:"tokenType"`
	MustChangePassword bool      `json:"mustChangePassword"`
}

// Credentials for login.
type Credentials struct {
	Email     string `json:"email"`
	Password  string `json:"password"`
	UserAgent string `json:"-"`
	IPAddress string `json:"-"`
}

// NewAccountRequest is an admin request to create a login.
type NewAccountRequest struct {
	Email    string
	FullName string
	// AgentID is required for agent logins and ignored for admins.
	AgentID id.ID
}

// IssuedAccount is a created or reset login with its one-time temporary password.
type IssuedAccount struct {
	User              *User  `json:"user"`
	TemporaryPassword string `json:"temporaryPassword"`
}
