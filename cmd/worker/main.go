// Package main is the entry point for the PalmLedger background worker.
// It refreshes the current month's reconciliations and sweeps expired rows.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"palmledger/internal/config"
	appctx "palmledger/internal/core/context"
	"palmledger/internal/domain/agents"
	"palmledger/internal/domain/auth"
	"palmledger/internal/domain/reconciliation"
	"palmledger/internal/infrastructure/lock"
	"palmledger/internal/infrastructure/storage/postgres"
	"palmledger/internal/infrastructure/storage/postgres/auth_repo"
	"palmledger/internal/infrastructure/storage/postgres/catalog_repo"
	"palmledger/internal/infrastructure/storage/postgres/register_repo"
	"palmledger/internal/infrastructure/storage/postgres/report_repo"
	"palmledger/pkg/logger"
)

// systemUserID marks audit rows written by the worker.
const systemUserID = "system"

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("invalid configuration: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(logger.Config{
		Level:       cfg.LogLevel,
		Development: cfg.LogDevelopment,
	})
	if err != nil {
		fmt.Printf("failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	logger.SetDefault(log)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	log.Info("starting palmledger worker")

	poolCfg := postgres.DefaultPoolConfig(cfg.DatabaseURL)
	poolCfg.MaxConns = 4
	poolCfg.MinConns = 1
	poolCfg.ApplicationName = "palmledger-worker"
	pool, err := postgres.NewPool(ctx, poolCfg)
	if err != nil {
		log.Fatalw("failed to connect to database", "error", err)
	}
	defer pool.Close()

	txManager := postgres.NewTxManager(pool, cfg.DBStatementTimeout)
	auditService, err := postgres.NewAuditService(txManager)
	if err != nil {
		log.Fatalw("failed to initialize audit log", "error", err)
	}

	var locker reconciliation.Locker = reconciliation.NopLocker{}
	if cfg.RedisAddr != "" {
		rdb, err := lock.NewRedisClient(ctx, cfg.RedisAddr)
		if err != nil {
			log.Fatalw("failed to connect to redis", "error", err)
		}
		defer rdb.Close()
		locker = lock.NewRedisLocker(rdb)
	}

	agentRepo := catalog_repo.NewAgentRepo(txManager)
	reconciliations := reconciliation.NewService(reconciliation.Config{
		Repo:      register_repo.NewReconciliationRepo(txManager),
		Sources:   report_repo.NewReportRepo(txManager),
		Agents:    agentRepo,
		TxManager: txManager,
		Locker:    locker,
		Audit:     auditService,
		Policy:    cfg.ReconciliationPolicy,
	})
	authService := auth.NewService(
		auth_repo.NewUserRepo(txManager),
		auth_repo.NewTokenRepo(txManager),
		agents.NewService(agentRepo, txManager, auditService, nil, nil),
		txManager,
		auth.NewJWTService(auth.DefaultJWTConfig(cfg.JWTSecret)),
		auth.DefaultServiceConfig(),
	)

	worker := NewWorker(WorkerConfig{
		Tick:            cfg.WorkerTick,
		Reconciliations: reconciliations,
		Tokens:          authService,
		Idempotency:     postgres.NewIdempotencyStore(txManager, cfg.IdempotencyTTL),
		Pool:            pool,
	}, log)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		worker.Run(ctx)
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down worker...")
	cancel()

	wg.Wait()
	log.Info("worker stopped")
}

// MonthRefresher regenerates a month of reconciliations.
type MonthRefresher interface {
	RefreshMonth(ctx context.Context, month time.Time) (int, error)
}

// TokenSweeper removes dead refresh tokens.
type TokenSweeper interface {
	CleanupExpiredTokens(ctx context.Context, cutoff time.Time) (int, error)
}

// IdempotencySweeper removes expired idempotency keys.
type IdempotencySweeper interface {
	CleanupExpired(ctx context.Context) (int64, error)
}

// StatsLogger reports connection pool usage.
type StatsLogger interface {
	LogStats(ctx context.Context)
}

// WorkerConfig wires the worker jobs.
type WorkerConfig struct {
	Tick            time.Duration
	Reconciliations MonthRefresher
	Tokens          TokenSweeper
	Idempotency     IdempotencySweeper
	Pool            StatsLogger
}

// Worker runs periodic jobs until its context ends.
type Worker struct {
	cfg WorkerConfig
	log *logger.Logger
	now func() time.Time
}

// NewWorker creates a worker. A non-positive tick means five minutes.
func NewWorker(cfg WorkerConfig, log *logger.Logger) *Worker {
	if cfg.Tick <= 0 {
		cfg.Tick = 5 * time.Minute
	}
	return &Worker{
		cfg: cfg,
		log: log.WithComponent("worker"),
		now: func() time.Time { return time.Now().UTC() },
	}
}

// Run executes every job once, then again on each tick.
func (w *Worker) Run(ctx context.Context) {
	ticker := time.NewTicker(w.cfg.Tick)
	defer ticker.Stop()

	cleanupTicker := time.NewTicker(1 * time.Hour)
	defer cleanupTicker.Stop()

	w.refreshReconciliations(ctx)
	w.cleanup(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.refreshReconciliations(ctx)
		case <-cleanupTicker.C:
			w.cleanup(ctx)
		}
	}
}

func (w *Worker) refreshReconciliations(ctx context.Context) {
	if w.cfg.Reconciliations == nil {
		return
	}
	now := w.now()
	month := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)

	ctx = appctx.WithUser(ctx, &appctx.UserContext{UserID: systemUserID, Role: appctx.RoleAdmin})
	done, err := w.cfg.Reconciliations.RefreshMonth(ctx, month)
	if err != nil {
		w.log.Errorw("reconciliation refresh incomplete", "month", month.Format("2006-01"), "refreshed", done, "error", err)
		return
	}
	if done > 0 {
		w.log.Infow("reconciliations refreshed", "month", month.Format("2006-01"), "count", done)
	}
}

func (w *Worker) cleanup(ctx context.Context) {
	if w.cfg.Tokens != nil {
		n, err := w.cfg.Tokens.CleanupExpiredTokens(ctx, w.now())
		if err != nil {
			w.log.Errorw("refresh token cleanup failed", "error", err)
		} else if n > 0 {
			w.log.Infow("cleaned up expired sessions", "count", n)
		}
	}
	if w.cfg.Idempotency != nil {
		n, err := w.cfg.Idempotency.CleanupExpired(ctx)
		if err != nil {
			w.log.Errorw("idempotency cleanup failed", "error", err)
		} else if n > 0 {
			w.log.Infow("cleaned up idempotency keys", "count", n)
		}
	}
	if w.cfg.Pool != nil {
		w.cfg.Pool.LogStats(ctx)
	}
}
