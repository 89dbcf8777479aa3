// Package main is the entry point for the PalmLedger API server.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"palmledger/internal/config"
	"palmledger/internal/core/id"
	"palmledger/internal/domain"
	"palmledger/internal/domain/advances"
	"palmledger/internal/domain/agents"
	"palmledger/internal/domain/auth"
	"palmledger/internal/domain/collections"
	"palmledger/internal/domain/expenses"
	"palmledger/internal/domain/orders"
	"palmledger/internal/domain/pricing"
	"palmledger/internal/domain/reconciliation"
	"palmledger/internal/domain/reports"
	"palmledger/internal/infrastructure/cache"
	"palmledger/internal/infrastructure/filestore"
	v1 "palmledger/internal/infrastructure/http/v1"
	"palmledger/internal/infrastructure/lock"
	"palmledger/internal/infrastructure/numerator"
	"palmledger/internal/infrastructure/storage/postgres"
	"palmledger/internal/infrastructure/storage/postgres/auth_repo"
	"palmledger/internal/infrastructure/storage/postgres/catalog_repo"
	"palmledger/internal/infrastructure/storage/postgres/document_repo"
	"palmledger/internal/infrastructure/storage/postgres/register_repo"
	"palmledger/internal/infrastructure/storage/postgres/report_repo"
	"palmledger/pkg/logger"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

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

	ctx := context.Background()
	log.Infow("starting palmledger server", "version", version, "env", cfg.AppEnv)

	// --- Database ---
	poolCfg := postgres.DefaultPoolConfig(cfg.DatabaseURL)
	poolCfg.MaxConns = cfg.DBMaxConns
	poolCfg.MinConns = cfg.DBMinConns
	pool, err := postgres.NewPool(ctx, poolCfg)
	if err != nil {
		log.Fatalw("failed to connect to database", "error", err)
	}
	defer pool.Close()
	log.Info("database connection established")

	txManager := postgres.NewTxManager(pool, cfg.DBStatementTimeout)
	auditService, err := postgres.NewAuditService(txManager)
	if err != nil {
		log.Fatalw("failed to initialize audit log", "error", err)
	}
	numbers := numerator.NewWithTxManager(txManager)

	// --- Optional infrastructure ---
	var (
		photos agents.PhotoStore
		images agents.ImageProcessor
	)
	if cfg.GCSBucket != "" {
		store, err := filestore.NewGCSStore(ctx, filestore.GCSConfig{
			Bucket:          cfg.GCSBucket,
			CredentialsJSON: cfg.GCSCredentialsJSON,
			URLTTL:          cfg.PhotoURLTTL,
		})
		if err != nil {
			log.Fatalw("failed to open photo bucket", "bucket", cfg.GCSBucket, "error", err)
		}
		defer store.Close()
		photos = store
		images = filestore.NewJPEGProcessor(cfg.PhotoMaxWidth, 85)
		log.Infow("photo storage enabled", "bucket", cfg.GCSBucket)
	} else {
		log.Warn("GCS_BUCKET not set, agent photos are disabled")
	}

	var locker reconciliation.Locker = reconciliation.NopLocker{}
	if cfg.RedisAddr != "" {
		rdb, err := lock.NewRedisClient(ctx, cfg.RedisAddr)
		if err != nil {
			log.Fatalw("failed to connect to redis", "error", err)
		}
		defer rdb.Close()
		locker = lock.NewRedisLocker(rdb)
		log.Infow("reconciliation lock enabled", "redis", cfg.RedisAddr)
	}

	// --- Repositories ---
	agentRepo := catalog_repo.NewAgentRepo(txManager)
	customerRepo := catalog_repo.NewCustomerRepo(txManager)
	reportRepo := report_repo.NewReportRepo(txManager)

	agentNames := cache.NewAgentNames(agentRepo, pool.Pool)
	if err := agentNames.Start(ctx); err != nil {
		log.Warnw("agent name cache invalidation unavailable", "error", err)
	}
	defer agentNames.Stop()

	// --- Services ---
	agentService := agents.NewService(agentRepo, txManager, auditService, photos, images)
	advanceService := advances.NewService(document_repo.NewAdvanceRepo(txManager), txManager, auditService)
	expenseService := expenses.NewService(document_repo.NewExpenseRepo(txManager), txManager, auditService)
	priceService := pricing.NewService(document_repo.NewPriceChangeRepo(txManager), txManager, auditService)
	collectionService := collections.NewService(document_repo.NewCollectionRepo(txManager), txManager, auditService)

	// New ledger records must reference an active agent.
	requireActiveAgent(advanceService.Hooks(), agentService)
	requireActiveAgent(expenseService.Hooks(), agentService)
	requireActiveAgent(priceService.Hooks(), agentService)
	requireActiveAgent(collectionService.Hooks(), agentService)

	orderService := orders.NewService(document_repo.NewOrderRepo(txManager), customerRepo, txManager, numbers, auditService)
	reportService := reports.NewService(reportRepo, agentNames)
	reconciliationService := reconciliation.NewService(reconciliation.Config{
		Repo:      register_repo.NewReconciliationRepo(txManager),
		Sources:   reportRepo,
		Agents:    agentRepo,
		TxManager: txManager,
		Locker:    locker,
		Audit:     auditService,
		Policy:    cfg.ReconciliationPolicy,
	})

	jwtConfig := auth.DefaultJWTConfig(cfg.JWTSecret)
	jwtConfig.AccessTokenTTL = cfg.JWTAccessTTL
	jwtService := auth.NewJWTService(jwtConfig)

	authConfig := auth.DefaultServiceConfig()
	authConfig.RefreshTokenExpiry = cfg.JWTRefreshTTL
	authService := auth.NewService(
		auth_repo.NewUserRepo(txManager),
		auth_repo.NewTokenRepo(txManager),
		agentService,
		txManager,
		jwtService,
		authConfig,
	)

	// --- Router ---
	router := v1.NewRouter(v1.RouterConfig{
		Logger:       log,
		JWTValidator: jwtService,
		Services: v1.Services{
			Auth:           authService,
			Accounts:       authService,
			Agents:         agentService,
			Advances:       advanceService,
			Expenses:       expenseService,
			Prices:         priceService,
			Collections:    collectionService,
			Orders:         orderService,
			Reconciliation: reconciliationService,
			Reports:        reportService,
		},
		IdempotencyStore: postgres.NewIdempotencyStore(txManager, cfg.IdempotencyTTL),
		HealthDB:         pool,
		CORSOrigins:      cfg.CORSOrigins,
		CompanyName:      cfg.CompanyName,
		Version:          version,
	})

	// --- HTTP Server ---
	server := &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Infow("server starting", "addr", cfg.HTTPAddr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalw("server failed", "error", err)
		}
	}()

	// --- Graceful shutdown ---
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down server...")

	// Give outstanding requests 30 seconds to complete
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Errorw("server forced to shutdown", "error", err)
	}

	log.Info("server stopped")
}

func requireActiveAgent[T interface{ AgentRef() id.ID }](hooks *domain.HookRegistry[T], agents auth.AgentChecker) {
	hooks.OnBeforeCreate(func(ctx context.Context, e T) error {
		return agents.RequireActive(ctx, e.AgentRef())
	})
}
