package auth

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"palmledger/internal/core/apperror"
	appctx "palmledger/internal/core/context"
	"palmledger/internal/core/id"
	"palmledger/internal/core/tx"
)

type memUsers struct {
	mu    sync.Mutex
	users map[id.ID]*User
	roles map[id.ID]*RoleMapping
}

func newMemUsers() *memUsers {
	return &memUsers{users: map[id.ID]*User{}, roles: map[id.ID]*RoleMapping{}}
}

func (m *memUsers) Create(_ context.Context, u *User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *u
	m.users[u.ID] = &cp
	return nil
}

func (m *memUsers) GetByID(_ context.Context, userID id.ID) (*User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[userID]
	if !ok || u.DeletedAt != nil {
		return nil, apperror.NewNotFound("user", userID.String())
	}
	cp := *u
	return &cp, nil
}

func (m *memUsers) GetByEmail(_ context.Context, email string) (*User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.Email == email && u.DeletedAt == nil {
			cp := *u
			return &cp, nil
		}
	}
	return nil, apperror.NewNotFound("user", email)
}

func (m *memUsers) Update(ctx context.Context, u *User) error {
	return m.Create(ctx, u)
}

func (m *memUsers) Delete(_ context.Context, userID id.ID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := time.Now()
	m.users[userID].DeletedAt = &now
	return nil
}

func (m *memUsers) List(context.Context, UserFilter) ([]User, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]User, 0, len(m.users))
	for _, u := range m.users {
		out = append(out, *u)
	}
	return out, len(out), nil
}

func (m *memUsers) Exists(ctx context.Context, email string) (bool, error) {
	_, err := m.GetByEmail(ctx, email)
	return err == nil, nil
}

func (m *memUsers) LoadRole(_ context.Context, userID id.ID) (*RoleMapping, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.roles[userID]
	if !ok {
		return nil, apperror.NewNotFound("role", userID.String())
	}
	cp := *r
	return &cp, nil
}

func (m *memUsers) SetRole(_ context.Context, r *RoleMapping) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *r
	m.roles[r.UserID] = &cp
	return nil
}

func (m *memUsers) CountActiveAdmins(context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for uid, r := range m.roles {
		u := m.users[uid]
		if r.Role == appctx.RoleAdmin && u.IsActive && u.DeletedAt == nil {
			n++
		}
	}
	return n, nil
}

type memTokens struct {
	mu     sync.Mutex
	tokens map[string]*RefreshToken
}

func (m *memTokens) SaveRefreshToken(_ context.Context, t *RefreshToken) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.tokens == nil {
		m.tokens = map[string]*RefreshToken{}
	}
	cp := *t
	m.tokens[t.TokenHash] = &cp
	return nil
}

func (m *memTokens) GetRefreshToken(_ context.Context, hash string) (*RefreshToken, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tokens[hash]
	if !ok {
		return nil, apperror.NewNotFound("refresh token", "")
	}
	cp := *t
	return &cp, nil
}

func (m *memTokens) RevokeRefreshToken(_ context.Context, tokenID id.ID, reason string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, t := range m.tokens {
		if t.ID == tokenID {
			now := time.Now()
			t.RevokedAt, t.RevokedReason = &now, &reason
		}
	}
	return nil
}

func (m *memTokens) RevokeAllUserTokens(_ context.Context, userID id.ID, reason string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, t := range m.tokens {
		if t.UserID == userID && t.RevokedAt == nil {
			now := time.Now()
			t.RevokedAt, t.RevokedReason = &now, &reason
		}
	}
	return nil
}

func (m *memTokens) CleanupExpiredTokens(context.Context, time.Time) (int, error) { return 0, nil }

type agentsStub struct{ archived map[id.ID]bool }

func (a agentsStub) RequireActive(_ context.Context, agentID id.ID) error {
	if a.archived[agentID] {
		return apperror.NewBusinessRule(apperror.CodeBusinessRule, "agent is archived")
	}
	return nil
}

type fixture struct {
	svc    *Service
	users  *memUsers
	tokens *memTokens
	jwt    *JWTService
	admin  *User
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	users, tokens := newMemUsers(), &memTokens{}
	jwtSvc := NewJWTService(DefaultJWTConfig("test-secret"))
	cfg := DefaultServiceConfig()
	cfg.BcryptCost = bcrypt.MinCost
	cfg.MaxLoginAttempts = 3
	svc := NewService(users, tokens, agentsStub{}, tx.Nop{}, jwtSvc, cfg)

	hash, err := bcrypt.GenerateFromPassword([]byte("owner-pass-1"), bcrypt.MinCost)
	require.NoError(t, err)
	admin := NewUser("Owner@Example.com ", string(hash), time.Now())
	require.NoError(t, users.Create(context.Background(), admin))
	require.NoError(t, users.SetRole(context.Background(), &RoleMapping{UserID: admin.ID, Role: appctx.RoleAdmin}))
	admin.Role = appctx.RoleAdmin

	return &fixture{svc: svc, users: users, tokens: tokens, jwt: jwtSvc, admin: admin}
}

func userCtx(u *User) context.Context {
	uc := &appctx.UserContext{UserID: u.ID.String(), Email: u.Email, Role: u.Role}
	if u.AgentID != nil {
		uc.AgentID = u.AgentID.String()
	}
	return appctx.WithUser(context.Background(), uc)
}

func TestLogin_TokensCarryRole(t *testing.T) {
	f := newFixture(t)
	pair, user, err := f.svc.Login(context.Background(), Credentials{Email: "owner@example.com", Password: "owner-pass-1"})
	require.NoError(t, err)
	assert.Equal(t, appctx.RoleAdmin, user.Role)
	assert.Equal(t, "Bearer", pair.TokenType)

	uc, err := f.jwt.ValidateToken(pair.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, f.admin.ID.String(), uc.UserID)
	assert.Equal(t, appctx.RoleAdmin, uc.Role)
	assert.False(t, uc.MustChangePassword)
	assert.NotEmpty(t, uc.SessionID)
}

func TestLogin_LocksAfterFailedAttempts(t *testing.T) {
	f := newFixture(t)
	for i := 0; i < 3; i++ {
		_, _, err := f.svc.Login(context.Background(), Credentials{Email: "owner@example.com", Password: "wrong"})
		assert.True(t, apperror.HasCode(err, apperror.CodeUnauthorized))
	}
	_, _, err := f.svc.Login(context.Background(), Credentials{Email: "owner@example.com", Password: "owner-pass-1"})
	assert.True(t, apperror.HasCode(err, apperror.CodeForbidden))

	_, _, err = f.svc.Login(context.Background(), Credentials{Email: "nobody@example.com", Password: "x"})
	assert.True(t, apperror.HasCode(err, apperror.CodeUnauthorized))
}

func TestRefreshToken_Rotates(t *testing.T) {
	f := newFixture(t)
	pair, _, err := f.svc.Login(context.Background(), Credentials{Email: "owner@example.com", Password: "owner-pass-1"})
	require.NoError(t, err)

	next, err := f.svc.RefreshToken(context.Background(), pair.RefreshToken)
	require.NoError(t, err)
	assert.NotEqual(t, pair.RefreshToken, next.RefreshToken)

	_, err = f.svc.RefreshToken(context.Background(), pair.RefreshToken)
	assert.True(t, apperror.HasCode(err, apperror.CodeUnauthorized), "old token is revoked")
}

func TestCreateAgentUser_ForcedPasswordChange(t *testing.T) {
	f := newFixture(t)
	agentID := id.New()

	issued, err := f.svc.CreateAgentUser(userCtx(f.admin), NewAccountRequest{Email: "ama@example.com", FullName: "Ama", AgentID: agentID})
	require.NoError(t, err)
	assert.Len(t, issued.TemporaryPassword, 12)
	assert.True(t, issued.User.MustChangePassword)

	pair, user, err := f.svc.Login(context.Background(), Credentials{Email: "ama@example.com", Password: issued.TemporaryPassword})
	require.NoError(t, err)
	assert.True(t, pair.MustChangePassword)
	require.NotNil(t, user.AgentID)
	assert.Equal(t, agentID, *user.AgentID)

	uc, err := f.jwt.ValidateToken(pair.AccessToken)
	require.NoError(t, err)
	assert.True(t, uc.MustChangePassword)
	assert.Equal(t, agentID.String(), uc.AgentID)

	ctx := appctx.WithUser(context.Background(), uc)
	_, err = f.svc.ChangePassword(ctx, "wrong", "brand-new-pass")
	assert.True(t, apperror.HasCode(err, apperror.CodeValidation))
	_, err = f.svc.ChangePassword(ctx, issued.TemporaryPassword, "short")
	assert.True(t, apperror.HasCode(err, apperror.CodeValidation))

	fresh, err := f.svc.ChangePassword(ctx, issued.TemporaryPassword, "brand-new-pass")
	require.NoError(t, err)
	assert.False(t, fresh.MustChangePassword)

	_, err = f.svc.RefreshToken(context.Background(), pair.RefreshToken)
	assert.Error(t, err, "sessions from before the change are revoked")
}

func TestCreateAccount_Rules(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.CreateAgentUser(userCtx(f.admin), NewAccountRequest{Email: "x@example.com"})
	assert.True(t, apperror.HasCode(err, apperror.CodeValidation))

	archived := id.New()
	f.svc.agents = agentsStub{archived: map[id.ID]bool{archived: true}}
	_, err = f.svc.CreateAgentUser(userCtx(f.admin), NewAccountRequest{Email: "x@example.com", AgentID: archived})
	assert.True(t, apperror.HasCode(err, apperror.CodeBusinessRule))

	_, err = f.svc.CreateAdmin(userCtx(f.admin), NewAccountRequest{Email: "owner@example.com"})
	assert.True(t, apperror.HasCode(err, apperror.CodeDuplicate))

	_, err = f.svc.CreateAdmin(userCtx(f.admin), NewAccountRequest{Email: "not-an-email"})
	assert.True(t, apperror.HasCode(err, apperror.CodeValidation))

	agent := &User{ID: id.New(), Role: appctx.RoleAgent}
	_, err = f.svc.CreateAdmin(userCtx(agent), NewAccountRequest{Email: "co@example.com"})
	assert.True(t, apperror.HasCode(err, apperror.CodeForbidden))
}

func TestAdminActions(t *testing.T) {
	f := newFixture(t)
	ctx := userCtx(f.admin)

	co, err := f.svc.CreateAdmin(ctx, NewAccountRequest{Email: "co@example.com", FullName: "Co Admin"})
	require.NoError(t, err)

	assert.True(t, apperror.HasCode(f.svc.DisableUser(ctx, f.admin.ID), apperror.CodeBusinessRule), "not yourself")

	require.NoError(t, f.svc.DisableUser(ctx, co.User.ID))
	_, _, err = f.svc.Login(context.Background(), Credentials{Email: "co@example.com", Password: co.TemporaryPassword})
	assert.True(t, apperror.HasCode(err, apperror.CodeAccountDisabled))

	require.NoError(t, f.svc.EnableUser(ctx, co.User.ID))
	reset, err := f.svc.ResetPassword(ctx, co.User.ID)
	require.NoError(t, err)
	assert.NotEqual(t, co.TemporaryPassword, reset.TemporaryPassword)
	_, _, err = f.svc.Login(context.Background(), Credentials{Email: "co@example.com", Password: reset.TemporaryPassword})
	require.NoError(t, err)

	coCtx := userCtx(&User{ID: co.User.ID, Role: appctx.RoleAdmin})
	require.NoError(t, f.svc.RemoveUser(ctx, co.User.ID))
	_, err = f.svc.GetUserByID(ctx, co.User.ID)
	assert.True(t, apperror.IsNotFound(err))
	assert.True(t, apperror.HasCode(f.svc.DisableUser(coCtx, f.admin.ID), apperror.CodeBusinessRule), "last active admin")
}
