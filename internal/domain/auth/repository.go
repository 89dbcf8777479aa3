package auth

import (
	"context"
	"time"

	"palmledger/internal/core/id"
)

// UserRepository defines user storage operations.
type UserRepository interface {
	// Create creates a new user.
	Create(ctx context.Context, user *User) error

	// GetByID retrieves a non-deleted user by ID.
	GetByID(ctx context.Context, userID id.ID) (*User, error)

	// GetByEmail retrieves a non-deleted user by normalized email.
	GetByEmail(ctx context.Context, email string) (*User, error)

	// Update updates user data.
	Update(ctx context.Context, user *User) error

	// Delete soft-deletes a user.
	Delete(ctx context.Context, userID id.ID) error

	// List retrieves users with filtering, role mapping included.
	List(ctx context.Context, filter UserFilter) ([]User, int, error)

	// Exists checks if email is taken by a non-deleted user.
	Exists(ctx context.Context, email string) (bool, error)

	// LoadRole loads the user's role mapping, NotFound when the user has none.
	LoadRole(ctx context.Context, userID id.ID) (*RoleMapping, error)

	// SetRole inserts or replaces the user's role mapping.
	SetRole(ctx context.Context, m *RoleMapping) error

	// CountActiveAdmins counts enabled, non-deleted admins.
	CountActiveAdmins(ctx context.Context) (int, error)
}

// TokenRepository defines token storage operations.
type TokenRepository interface {
	// SaveRefreshToken saves a refresh token.
	SaveRefreshToken(ctx context.Context, token *RefreshToken) error

	// GetRefreshToken retrieves refresh token by hash.
	GetRefreshToken(ctx context.Context, tokenHash string) (*RefreshToken, error)

	// RevokeRefreshToken revokes a refresh token.
	RevokeRefreshToken(ctx context.Context, tokenID id.ID, reason string) error

	// RevokeAllUserTokens revokes all tokens for a user.
	RevokeAllUserTokens(ctx context.Context, userID id.ID, reason string) error

	// CleanupExpiredTokens removes tokens expired or revoked before cutoff.
	CleanupExpiredTokens(ctx context.Context, cutoff time.Time) (int, error)
}

// AgentChecker confirms that an agent exists and accepts new records.
type AgentChecker interface {
	RequireActive(ctx context.Context, agentID id.ID) error
}

// UserFilter for listing users.
type UserFilter struct {
	Search   string
	IsActive *bool
	Role     string
	Limit    int
	Offset   int
}
