package dto

import (
	"time"

	"palmledger/internal/core/id"
	"palmledger/internal/domain/auth"
)

// --- Request DTOs ---

// LoginRequest for user login.
type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

// ToCredentials converts to domain credentials.
func (r *LoginRequest) ToCredentials(userAgent, ip string) auth.Credentials {
	return auth.Credentials{
		Email:     r.Email,
		Password:  r.Password,
		UserAgent: userAgent,
		IPAddress: ip,
	}
}

// RefreshTokenRequest for token refresh.
type RefreshTokenRequest struct {
	RefreshToken string `json:"refreshToken" binding:"required"`
}

// ChangePasswordRequest replaces the caller's password.
type ChangePasswordRequest struct {
	CurrentPassword string `json:"currentPassword" binding:"required"`
	NewPassword     string `json:"newPassword" binding:"required,min=8,max=72"`
}

// CreateAdminRequest creates a co-admin.
type CreateAdminRequest struct {
	Email    string `json:"email" binding:"required,email"`
	FullName string `json:"fullName" binding:"max=200"`
}

// ToAccountRequest converts to the domain request.
func (r *CreateAdminRequest) ToAccountRequest() auth.NewAccountRequest {
	return auth.NewAccountRequest{Email: r.Email, FullName: r.FullName}
}

// CreateAgentUserRequest creates an agent login.
type CreateAgentUserRequest struct {
	Email    string `json:"email" binding:"required,email"`
	FullName string `json:"fullName" binding:"max=200"`
	AgentID  id.ID  `json:"agentId" binding:"required"`
}

// ToAccountRequest converts to the domain request.
func (r *CreateAgentUserRequest) ToAccountRequest() auth.NewAccountRequest {
	return auth.NewAccountRequest{Email: r.Email, FullName: r.FullName, AgentID: r.AgentID}
}

// UserListQuery filters the user list.
type UserListQuery struct {
	Search   string `form:"search"`
	IsActive *bool  `form:"isActive"`
	Role     string `form:"role" binding:"omitempty,oneof=ADMIN AGENT"`
	Limit    int    `form:"limit" binding:"omitempty,min=1,max=200"`
	Offset   int    `form:"offset" binding:"omitempty,min=0"`
}

// ToFilter converts to the domain filter.
func (q *UserListQuery) ToFilter() auth.UserFilter {
	return auth.UserFilter{
		Search:   q.Search,
		IsActive: q.IsActive,
		Role:     q.Role,
		Limit:    q.Limit,
		Offset:   q.Offset,
	}
}

// --- Response DTOs ---

// TokenResponse represents token pair response.
type TokenResponse struct {
	AccessToken        string    `json:"accessToken"`
	RefreshToken       string    `json:"refreshToken"`
	ExpiresAt          time.Time `json:"expiresAt"`
	TokenType          string    `json:"tokenType"`
	MustChangePassword bool      `json:"mustChangePassword"`
}

// FromTokenPair creates response from domain token pair.
func FromTokenPair(tp *auth.TokenPair) *TokenResponse {
	return &TokenResponse{
		AccessToken:        tp.AccessToken,
		RefreshToken:       tp.RefreshToken,
		ExpiresAt:          tp.ExpiresAt,
		TokenType:          tp.TokenType,
		MustChangePassword: tp.MustChangePassword,
	}
}

// UserResponse represents user in API response.
type UserResponse struct {
	ID                 string     `json:"id"`
	Email              string     `json:"email"`
	FullName           string     `json:"fullName,omitempty"`
	Role               string     `json:"role"`
	AgentID            *string    `json:"agentId,omitempty"`
	IsActive           bool       `json:"isActive"`
	MustChangePassword bool       `json:"mustChangePassword"`
	LastLoginAt        *time.Time `json:"lastLoginAt,omitempty"`
	CreatedAt          time.Time  `json:"createdAt"`
}

// FromUser creates response from domain user.
func FromUser(u *auth.User) *UserResponse {
	resp := &UserResponse{
		ID:                 u.ID.String(),
		Email:              u.Email,
		FullName:           u.FullName,
		Role:               u.Role,
		IsActive:           u.IsActive,
		MustChangePassword: u.MustChangePassword,
		LastLoginAt:        u.LastLoginAt,
		CreatedAt:          u.CreatedAt,
	}
	if u.AgentID != nil {
		s := u.AgentID.String()
		resp.AgentID = &s
	}
	return resp
}

// LoginResponse represents login response.
type LoginResponse struct {
	Tokens *TokenResponse `json:"tokens"`
	User   *UserResponse  `json:"user"`
}

// IssuedAccountResponse returns a created or reset login with its one-time password.
type IssuedAccountResponse struct {
	User              *UserResponse `json:"user"`
	TemporaryPassword string        `json:"temporaryPassword"`
}

// FromIssuedAccount creates response from the domain result.
func FromIssuedAccount(a *auth.IssuedAccount) *IssuedAccountResponse {
	return &IssuedAccountResponse{User: FromUser(a.User), TemporaryPassword: a.TemporaryPassword}
}
