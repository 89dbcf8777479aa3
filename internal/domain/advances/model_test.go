package advances

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"palmledger/internal/core/apperror"
	appctx "palmledger/internal/core/context"
	"palmledger/internal/core/id"
	"palmledger/internal/core/tx"
	"palmledger/internal/core/types"
	"palmledger/internal/domain"
	"palmledger/internal/domain/audit"
)

type memRepo struct {
	mu         sync.Mutex
	rows       map[id.ID]*CashAdvance
	lastFilter domain.ListFilter
}

func newMemRepo() *memRepo { return &memRepo{rows: map[id.ID]*CashAdvance{}} }

func (r *memRepo) Create(_ context.Context, a *CashAdvance) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *a
	r.rows[a.ID] = &cp
	return nil
}

func (r *memRepo) GetByID(_ context.Context, advanceID id.ID) (*CashAdvance, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.rows[advanceID]
	if !ok {
		return nil, apperror.NewNotFound("cash advance", advanceID.String())
	}
	cp := *a
	return &cp, nil
}

func (r *memRepo) Update(_ context.Context, a *CashAdvance) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.rows[a.ID]
	if !ok {
		return apperror.NewNotFound("cash advance", a.ID.String())
	}
	if stored.Version != a.Version {
		return apperror.NewConcurrentModification("cash advance", a.ID)
	}
	cp := *a
	cp.Version++
	r.rows[a.ID] = &cp
	return nil
}

func (r *memRepo) Delete(_ context.Context, advanceID id.ID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.rows, advanceID)
	return nil
}

func (r *memRepo) List(_ context.Context, filter domain.ListFilter) (domain.ListResult[*CashAdvance], error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lastFilter = filter
	var out []*CashAdvance
	for _, a := range r.rows {
		if filter.AgentID == nil || a.AgentID == *filter.AgentID {
			cp := *a
			out = append(out, &cp)
		}
	}
	return domain.ListResult[*CashAdvance]{Items: out, TotalCount: int64(len(out)), Limit: filter.Limit}, nil
}

type recorder struct {
	actions []audit.Action
}

func (r *recorder) LogChange(_ context.Context, _ string, _ id.ID, action audit.Action, _ map[string]any) error {
	r.actions = append(r.actions, action)
	return nil
}

func adminCtx() context.Context {
	return appctx.WithUser(context.Background(), &appctx.UserContext{UserID: "admin-1", Role: appctx.RoleAdmin})
}

func agentCtx(agentID id.ID) context.Context {
	return appctx.WithUser(context.Background(), &appctx.UserContext{
		UserID: "agent-user", Role: appctx.RoleAgent, AgentID: agentID.String(),
	})
}

func advance(agentID id.ID, amount string) *CashAdvance {
	return &CashAdvance{
		AgentID: agentID,
		Date:    time.Date(2024, 5, 2, 0, 0, 0, 0, time.UTC),
		Amount:  types.MustMoney(amount),
	}
}

func TestCreateStampsAndAudits(t *testing.T) {
	repo := newMemRepo()
	rec := &recorder{}
	svc := NewService(repo, tx.Nop{}, rec)
	agentID := id.New()

	a := advance(agentID, "250.00")
	require.NoError(t, svc.Create(agentCtx(agentID), a))

	stored, err := repo.GetByID(context.Background(), a.ID)
	require.NoError(t, err)
	assert.Equal(t, MethodCash, stored.Method)
	assert.Equal(t, "agent-user", stored.CreatedBy)
	assert.Equal(t, 1, stored.Version)
	assert.Equal(t, []audit.Action{audit.ActionCreate}, rec.actions)
}

func TestAgentCannotWriteForAnotherAgent(t *testing.T) {
	svc := NewService(newMemRepo(), tx.Nop{}, nil)

	err := svc.Create(agentCtx(id.New()), advance(id.New(), "10"))
	assert.True(t, apperror.HasCode(err, apperror.CodeForbidden))
}

func TestValidationRejectsNonPositiveAmount(t *testing.T) {
	repo := newMemRepo()
	svc := NewService(repo, tx.Nop{}, nil)

	err := svc.Create(adminCtx(), advance(id.New(), "0"))
	assert.True(t, apperror.HasCode(err, apperror.CodeValidation))
	assert.Empty(t, repo.rows)
}

func TestValidationRejectsFractionalCents(t *testing.T) {
	repo := newMemRepo()
	svc := NewService(repo, tx.Nop{}, nil)

	err := svc.Create(adminCtx(), advance(id.New(), "10.005"))
	assert.True(t, apperror.HasCode(err, apperror.CodeValidation))
	assert.Empty(t, repo.rows)
}

func TestOtherAgentsRecordReadsAsNotFound(t *testing.T) {
	repo := newMemRepo()
	svc := NewService(repo, tx.Nop{}, nil)
	owner := id.New()
	a := advance(owner, "90")
	require.NoError(t, svc.Create(adminCtx(), a))

	_, err := svc.GetByID(agentCtx(id.New()), a.ID)
	assert.True(t, apperror.IsNotFound(err))

	err = svc.Delete(agentCtx(id.New()), a.ID)
	assert.True(t, apperror.IsNotFound(err))
	assert.Len(t, repo.rows, 1)
}

func TestListIsScopedToCallersAgent(t *testing.T) {
	repo := newMemRepo()
	svc := NewService(repo, tx.Nop{}, nil)
	own, other := id.New(), id.New()
	require.NoError(t, svc.Create(adminCtx(), advance(own, "10")))
	require.NoError(t, svc.Create(adminCtx(), advance(other, "20")))

	result, err := svc.List(agentCtx(own), domain.ListFilter{})
	require.NoError(t, err)
	require.Len(t, result.Items, 1)
	assert.Equal(t, own, result.Items[0].AgentID)
	require.NotNil(t, repo.lastFilter.AgentID)
	assert.Equal(t, own, *repo.lastFilter.AgentID)
	assert.Equal(t, 50, repo.lastFilter.Limit)

	_, err = svc.List(agentCtx(own), domain.ListFilter{AgentID: &other})
	assert.True(t, apperror.HasCode(err, apperror.CodeForbidden))
}

func TestBeforeCreateHookCanRefuse(t *testing.T) {
	repo := newMemRepo()
	svc := NewService(repo, tx.Nop{}, nil)
	svc.Hooks().OnBeforeCreate(func(context.Context, *CashAdvance) error {
		return errors.New("agent is archived")
	})

	err := svc.Create(adminCtx(), advance(id.New(), "10"))
	require.Error(t, err)
	assert.Empty(t, repo.rows)
}

func TestUpdateDetectsStaleVersion(t *testing.T) {
	repo := newMemRepo()
	svc := NewService(repo, tx.Nop{}, nil)
	a := advance(id.New(), "10")
	require.NoError(t, svc.Create(adminCtx(), a))

	first := *a
	first.Amount = types.MustMoney("15")
	require.NoError(t, svc.Update(adminCtx(), &first))

	stale := *a
	stale.Amount = types.MustMoney("20")
	err := svc.Update(adminCtx(), &stale)
	assert.True(t, apperror.HasCode(err, apperror.CodeConcurrentModification))
}
