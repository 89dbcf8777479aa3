package main

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appctx "palmledger/internal/core/context"
	"palmledger/pkg/logger"
)

type fakeRefresher struct {
	month time.Time
	user  *appctx.UserContext
	err   error
}

func (f *fakeRefresher) RefreshMonth(ctx context.Context, month time.Time) (int, error) {
	f.month = month
	f.user = appctx.GetUser(ctx)
	return 2, f.err
}

type fakeTokens struct{ cutoff time.Time }

func (f *fakeTokens) CleanupExpiredTokens(_ context.Context, cutoff time.Time) (int, error) {
	f.cutoff = cutoff
	return 1, nil
}

type fakeKeys struct{ calls int }

func (f *fakeKeys) CleanupExpired(context.Context) (int64, error) {
	f.calls++
	return 0, errors.New("table missing")
}

func TestWorkerRefreshesCurrentMonthAsSystemAdmin(t *testing.T) {
	refresher := &fakeRefresher{}
	w := NewWorker(WorkerConfig{Reconciliations: refresher}, logger.NewNop())
	w.now = func() time.Time { return time.Date(2024, 3, 17, 9, 30, 0, 0, time.UTC) }

	w.refreshReconciliations(context.Background())

	assert.Equal(t, time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC), refresher.month)
	require.NotNil(t, refresher.user)
	assert.Equal(t, systemUserID, refresher.user.UserID)
	assert.Equal(t, appctx.RoleAdmin, refresher.user.Role)
}

func TestWorkerCleanupRunsEverySweep(t *testing.T) {
	now := time.Date(2024, 3, 17, 9, 30, 0, 0, time.UTC)
	tokens := &fakeTokens{}
	keys := &fakeKeys{}
	w := NewWorker(WorkerConfig{Tokens: tokens, Idempotency: keys}, logger.NewNop())
	w.now = func() time.Time { return now }

	w.cleanup(context.Background())

	assert.Equal(t, now, tokens.cutoff)
	assert.Equal(t, 1, keys.calls)
}

func TestNewWorkerDefaultsTick(t *testing.T) {
	w := NewWorker(WorkerConfig{}, logger.NewNop())
	assert.Equal(t, 5*time.Minute, w.cfg.Tick)
}
