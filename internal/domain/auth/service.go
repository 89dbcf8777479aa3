package auth

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"math/big"
	"time"

	"golang.org/x/crypto/bcrypt"

	"palmledger/internal/core/apperror"
	appctx "palmledger/internal/core/context"
	"palmledger/internal/core/id"
	"palmledger/internal/core/security"
	"palmledger/internal/core/tx"
	"palmledger/pkg/logger"
)

// ServiceConfig holds auth service configuration.
type ServiceConfig struct {
	MaxLoginAttempts   int
	LockDuration       time.Duration
	PasswordMinLength  int
	RefreshTokenExpiry time.Duration
	BcryptCost         int
}

// DefaultServiceConfig returns default configuration.
func DefaultServiceConfig() ServiceConfig {
	return ServiceConfig{
		MaxLoginAttempts:   5,
		LockDuration:       15 * time.Minute,
		PasswordMinLength:  8,
		RefreshTokenExpiry: 7 * 24 * time.Hour, // 7 days
		BcryptCost:         bcrypt.DefaultCost,
	}
}

// Service provides authentication and account administration.
type Service struct {
	userRepo   UserRepository
	tokenRepo  TokenRepository
	agents     AgentChecker
	txManager  tx.Manager
	jwtService *JWTService
	config     ServiceConfig
	now        func() time.Time
}

// NewService creates a new auth service.
func NewService(
	userRepo UserRepository,
	tokenRepo TokenRepository,
	agents AgentChecker,
	txManager tx.Manager,
	jwtService *JWTService,
	config ServiceConfig,
) *Service {
	if config.BcryptCost == 0 {
		config.BcryptCost = bcrypt.DefaultCost
	}
	return &Service{
		userRepo:   userRepo,
		tokenRepo:  tokenRepo,
		agents:     agents,
		txManager:  txManager,
		jwtService: jwtService,
		config:     config,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// Login authenticates user and returns tokens.
func (s *Service) Login(ctx context.Context, creds Credentials) (*TokenPair, *User, error) {
	now := s.now()

	user, err := s.userRepo.GetByEmail(ctx, NormalizeEmail(creds.Email))
	if err != nil {
		if apperror.IsNotFound(err) {
			return nil, nil, apperror.NewUnauthorized("invalid credentials")
		}
		return nil, nil, fmt.Errorf("find user: %w", err)
	}
	if err := user.CanLogin(now); err != nil {
		return nil, nil, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(creds.Password)); err != nil {
		user.RecordFailedLogin(s.config.MaxLoginAttempts, s.config.LockDuration, now)
		if err := s.userRepo.Update(ctx, user); err != nil {
			logger.Warn(ctx, "record failed login", "user_id", user.ID, "error", err)
		}
		return nil, nil, apperror.NewUnauthorized("invalid credentials")
	}

	if err := s.loadRole(ctx, user); err != nil {
		return nil, nil, err
	}

	tokens, err := s.generateTokenPair(ctx, user, creds.UserAgent, creds.IPAddress)
	if err != nil {
		return nil, nil, fmt.Errorf("generate tokens: %w", err)
	}

	user.RecordSuccessfulLogin(now)
	if err := s.userRepo.Update(ctx, user); err != nil {
		logger.Warn(ctx, "record successful login", "user_id", user.ID, "error", err)
	}

	logger.Info(ctx, "user logged in",
		"user_id", user.ID,
		"role", user.Role)

	return tokens, user, nil
}

// RefreshToken rotates a refresh token and issues a new pair.
func (s *Service) RefreshToken(ctx context.Context, refreshToken string) (*TokenPair, error) {
	token, err := s.tokenRepo.GetRefreshToken(ctx, hashToken(refreshToken))
	if err != nil {
		return nil, apperror.NewUnauthorized("invalid refresh token")
	}
	if !token.IsValid(s.now()) {
		return nil, apperror.NewUnauthorized("refresh token expired or revoked")
	}

	user, err := s.userRepo.GetByID(ctx, token.UserID)
	if err != nil {
		return nil, apperror.NewUnauthorized("user not found")
	}
	if err := user.CanLogin(s.now()); err != nil {
		return nil, err
	}
	if err := s.loadRole(ctx, user); err != nil {
		return nil, err
	}

	if err := s.tokenRepo.RevokeRefreshToken(ctx, token.ID, "refreshed"); err != nil {
		return nil, fmt.Errorf("revoke refresh token: %w", err)
	}
	return s.generateTokenPair(ctx, user, token.UserAgent, token.IPAddress)
}

// Logout revokes all user's refresh tokens.
func (s *Service) Logout(ctx context.Context, userID id.ID) error {
	return s.tokenRepo.RevokeAllUserTokens(ctx, userID, "logout")
}

// Me returns the calling user.
func (s *Service) Me(ctx context.Context) (*User, error) {
	userID, err := id.Parse(appctx.GetUserID(ctx))
	if err != nil {
		return nil, apperror.NewUnauthorized("authentication required")
	}
	return s.GetUserByID(ctx, userID)
}

// ChangePassword replaces the caller's password, clears the forced-change flag, revokes
// other sessions and returns fresh tokens.
func (s *Service) ChangePassword(ctx context.Context, currentPassword, newPassword string) (*TokenPair, error) {
	user, err := s.Me(ctx)
	if err != nil {
		return nil, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(currentPassword)); err != nil {
		return nil, apperror.NewValidation("current password is incorrect").WithDetail("field", "currentPassword")
	}
	if currentPassword == newPassword {
		return nil, apperror.NewValidation("new password must differ from the current one").WithDetail("field", "newPassword")
	}
	hash, err := s.hashPassword(newPassword)
	if err != nil {
		return nil, err
	}

	user.PasswordHash = hash
	user.MustChangePassword = false
	user.UpdatedAt = s.now()

	var tokens *TokenPair
	err = s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		if err := s.userRepo.Update(ctx, user); err != nil {
			return fmt.Errorf("update user: %w", err)
		}
		if err := s.tokenRepo.RevokeAllUserTokens(ctx, user.ID, "password changed"); err != nil {
			return fmt.Errorf("revoke tokens: %w", err)
		}
		tokens, err = s.generateTokenPair(ctx, user, "", "")
		return err
	})
	if err != nil {
		return nil, err
	}

	logger.Info(ctx, "password changed", "user_id", user.ID)
	return tokens, nil
}

// GetUserByID retrieves user with its role mapping.
func (s *Service) GetUserByID(ctx context.Context, userID id.ID) (*User, error) {
	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if err := s.loadRole(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

// ListUsers lists users with filtering. Admin only.
func (s *Service) ListUsers(ctx context.Context, filter UserFilter) ([]User, int, error) {
	if err := security.NewAccessScope(ctx).RequireAdmin(); err != nil {
		return nil, 0, err
	}
	if filter.Limit <= 0 || filter.Limit > 200 {
		filter.Limit = 50
	}
	return s.userRepo.List(ctx, filter)
}

// CreateAdmin creates a co-admin with a temporary password that must be changed on first login.
func (s *Service) CreateAdmin(ctx context.Context, req NewAccountRequest) (*IssuedAccount, error) {
	return s.createAccount(ctx, req, appctx.RoleAdmin)
}

// CreateAgentUser creates an AGENT login mapped to an existing, active agent.
func (s *Service) CreateAgentUser(ctx context.Context, req NewAccountRequest) (*IssuedAccount, error) {
	if err := security.NewAccessScope(ctx).RequireAdmin(); err != nil {
		return nil, err
	}
	if id.IsNil(req.AgentID) {
		return nil, apperror.NewValidation("agent logins require an agent").WithDetail("field", "agentId")
	}
	if s.agents != nil {
		if err := s.agents.RequireActive(ctx, req.AgentID); err != nil {
			return nil, err
		}
	}
	return s.createAccount(ctx, req, appctx.RoleAgent)
}

func (s *Service) createAccount(ctx context.Context, req NewAccountRequest, role string) (*IssuedAccount, error) {
	scope := security.NewAccessScope(ctx)
	if err := scope.RequireAdmin(); err != nil {
		return nil, err
	}

	password, err := generateTemporaryPassword(12)
	if err != nil {
		return nil, fmt.Errorf("generate password: %w", err)
	}
	hash, err := s.hashPassword(password)
	if err != nil {
		return nil, err
	}

	user := NewUser(req.Email, hash, s.now())
	user.FullName = req.FullName
	user.MustChangePassword = true
	user.Role = role
	if err := user.Validate(ctx); err != nil {
		return nil, err
	}

	mapping := &RoleMapping{UserID: user.ID, Role: role, CreatedAt: user.CreatedAt}
	if role == appctx.RoleAgent {
		agentID := req.AgentID
		mapping.AgentID = &agentID
		user.AgentID = &agentID
	}
	if grantedBy, err := id.Parse(scope.UserID); err == nil {
		mapping.GrantedBy = &grantedBy
	}
	if err := mapping.Validate(); err != nil {
		return nil, err
	}

	exists, err := s.userRepo.Exists(ctx, user.Email)
	if err != nil {
		return nil, fmt.Errorf("check email exists: %w", err)
	}
	if exists {
		return nil, apperror.NewDuplicate("user", "email", user.Email)
	}

	err = s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		if err := s.userRepo.Create(ctx, user); err != nil {
			return fmt.Errorf("create user: %w", err)
		}
		if err := s.userRepo.SetRole(ctx, mapping); err != nil {
			return fmt.Errorf("set role: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	logger.Info(ctx, "user created", "user_id", user.ID, "role", role)
	return &IssuedAccount{User: user, TemporaryPassword: password}, nil
}

// DisableUser blocks logins and revokes sessions. The last active admin cannot be disabled.
func (s *Service) DisableUser(ctx context.Context, userID id.ID) error {
	return s.adminAction(ctx, userID, "disable", func(ctx context.Context, user *User) error {
		if !user.IsActive {
			return nil
		}
		if err := s.guardLastAdmin(ctx, user); err != nil {
			return err
		}
		user.IsActive = false
		if err := s.userRepo.Update(ctx, user); err != nil {
			return fmt.Errorf("update user: %w", err)
		}
		return s.tokenRepo.RevokeAllUserTokens(ctx, user.ID, "disabled")
	})
}

// EnableUser re-enables logins and clears a lockout.
func (s *Service) EnableUser(ctx context.Context, userID id.ID) error {
	return s.adminAction(ctx, userID, "enable", func(ctx context.Context, user *User) error {
		user.IsActive = true
		user.FailedLoginAttempts = 0
		user.LockedUntil = nil
		return s.userRepo.Update(ctx, user)
	})
}

// RemoveUser soft-deletes a user. The last active admin cannot be removed.
func (s *Service) RemoveUser(ctx context.Context, userID id.ID) error {
	return s.adminAction(ctx, userID, "remove", func(ctx context.Context, user *User) error {
		if user.IsActive {
			if err := s.guardLastAdmin(ctx, user); err != nil {
				return err
			}
		}
		if err := s.tokenRepo.RevokeAllUserTokens(ctx, user.ID, "removed"); err != nil {
			return fmt.Errorf("revoke tokens: %w", err)
		}
		return s.userRepo.Delete(ctx, user.ID)
	})
}

// ResetPassword issues a new temporary password and forces a change on next login.
func (s *Service) ResetPassword(ctx context.Context, userID id.ID) (*IssuedAccount, error) {
	var issued *IssuedAccount
	err := s.adminAction(ctx, userID, "reset password", func(ctx context.Context, user *User) error {
		password, err := generateTemporaryPassword(12)
		if err != nil {
			return fmt.Errorf("generate password: %w", err)
		}
		hash, err := s.hashPassword(password)
		if err != nil {
			return err
		}
		user.PasswordHash = hash
		user.MustChangePassword = true
		user.FailedLoginAttempts = 0
		user.LockedUntil = nil
		if err := s.userRepo.Update(ctx, user); err != nil {
			return fmt.Errorf("update user: %w", err)
		}
		if err := s.tokenRepo.RevokeAllUserTokens(ctx, user.ID, "password reset"); err != nil {
			return fmt.Errorf("revoke tokens: %w", err)
		}
		issued = &IssuedAccount{User: user, TemporaryPassword: password}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return issued, nil
}

// CleanupExpiredTokens removes refresh tokens that expired or were revoked before cutoff.
func (s *Service) CleanupExpiredTokens(ctx context.Context, cutoff time.Time) (int, error) {
	return s.tokenRepo.CleanupExpiredTokens(ctx, cutoff)
}

func (s *Service) adminAction(ctx context.Context, userID id.ID, action string, fn func(ctx context.Context, user *User) error) error {
	scope := security.NewAccessScope(ctx)
	if err := scope.RequireAdmin(); err != nil {
		return err
	}
	if scope.UserID == userID.String() && action != "enable" {
		return apperror.NewBusinessRule(apperror.CodeBusinessRule, fmt.Sprintf("you cannot %s your own account", action))
	}

	err := s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		user, err := s.GetUserByID(ctx, userID)
		if err != nil {
			return err
		}
		user.UpdatedAt = s.now()
		return fn(ctx, user)
	})
	if err != nil {
		return err
	}

	logger.Info(ctx, "user account changed", "user_id", userID, "action", action)
	return nil
}

func (s *Service) guardLastAdmin(ctx context.Context, user *User) error {
	if !user.IsAdmin() {
		return nil
	}
	n, err := s.userRepo.CountActiveAdmins(ctx)
	if err != nil {
		return fmt.Errorf("count admins: %w", err)
	}
	if n <= 1 {
		return apperror.NewBusinessRule(apperror.CodeBusinessRule, "the last active admin cannot be disabled or removed")
	}
	return nil
}

func (s *Service) loadRole(ctx context.Context, user *User) error {
	m, err := s.userRepo.LoadRole(ctx, user.ID)
	if err != nil {
		if apperror.IsNotFound(err) {
			// a login without a role map entry has no access
			return apperror.NewForbidden("no role is assigned to this account")
		}
		return fmt.Errorf("load role: %w", err)
	}
	user.Role = m.Role
	user.AgentID = m.AgentID
	return nil
}

func (s *Service) hashPassword(password string) (string, error) {
	if len(password) < s.config.PasswordMinLength {
		return "", apperror.NewValidation(
			fmt.Sprintf("password must be at least %d characters", s.config.PasswordMinLength),
		).WithDetail("field", "password")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.config.BcryptCost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hash), nil
}

// HashPassword hashes password with the default cost. Used by the seed command.
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hash), nil
}

// generateTokenPair creates access and refresh tokens.
func (s *Service) generateTokenPair(ctx context.Context, user *User, userAgent, ip string) (*TokenPair, error) {
	accessToken, expiresAt, err := s.jwtService.GenerateAccessToken(user)
	if err != nil {
		return nil, fmt.Errorf("generate access token: %w", err)
	}

	refreshTokenRaw, err := generateRandomToken(32)
	if err != nil {
		return nil, fmt.Errorf("generate refresh token: %w", err)
	}

	now := s.now()
	refreshToken := &RefreshToken{
		ID:        id.New(),
		UserID:    user.ID,
		TokenHash: hashToken(refreshTokenRaw),
		ExpiresAt: now.Add(s.config.RefreshTokenExpiry),
		CreatedAt: now,
		UserAgent: userAgent,
		IPAddress: ip,
	}
	if err := s.tokenRepo.SaveRefreshToken(ctx, refreshToken); err != nil {
		return nil, fmt.Errorf("save refresh token: %w", err)
	}

	return &TokenPair{
		AccessToken:        accessToken,
		RefreshToken:       refreshTokenRaw,
		ExpiresAt:          expiresAt,
		TokenType:          "Bearer",
		MustChangePassword: user.MustChangePassword,
	}, nil
}

// hashToken creates SHA256 hash of token.
func hashToken(token string) string {
	hash := sha256.Sum256([]byte(token))
	return hex.EncodeToString(hash[:])
}

// generateRandomToken generates a random token string.
func generateRandomToken(length int) (string, error) {
	bytes := make([]byte, length)
	if _, err := rand.Read(bytes); err != nil {
		return "", err
	}
	return hex.EncodeToString(bytes), nil
}

// no 0/O and 1/l/I
const passwordAlphabet = "abcdefghijkmnpqrstuvwxyzABCDEFGHJKLMNPQRSTUVWXYZ23456789"

func generateTemporaryPassword(n int) (string, error) {
	out := make([]byte, n)
	max := big.NewInt(int64(len(passwordAlphabet)))
	for i := range out {
		k, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		out[i] = passwordAlphabet[k.Int64()]
	}
	return string(out), nil
}
