// Package main provides a CLI tool for preparing a database: it creates the first
// administrator and brings the receipt sequence in line with issued receipts.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/jackc/pgx/v5"

	"palmledger/internal/config"
	"palmledger/internal/core/apperror"
	appctx "palmledger/internal/core/context"
	corenumerator "palmledger/internal/core/numerator"
	"palmledger/internal/domain/agents"
	"palmledger/internal/domain/auth"
	"palmledger/internal/infrastructure/numerator"
	"palmledger/internal/infrastructure/storage/postgres"
	"palmledger/internal/infrastructure/storage/postgres/auth_repo"
	"palmledger/internal/infrastructure/storage/postgres/catalog_repo"
	"palmledger/pkg/logger"
)

func main() {
	log, err := logger.New(logger.Config{
		Level:       "info",
		Development: true,
	})
	if err != nil {
		fmt.Printf("failed to create logger: %v\n", err)
		os.Exit(1)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalw("invalid configuration", "error", err)
	}

	ctx := context.Background()

	pool, err := postgres.NewPool(ctx, postgres.DefaultPoolConfig(cfg.DatabaseURL))
	if err != nil {
		log.Fatalw("failed to connect to database", "error", err)
	}
	defer pool.Close()

	log.Info("connected to database")

	txManager := postgres.NewTxManager(pool, cfg.DBStatementTimeout)

	adminID, err := seedAdminUser(ctx, txManager, log)
	if err != nil {
		log.Fatalw("failed to seed admin user", "error", err)
	}

	if err := syncReceiptSequence(ctx, txManager, log, time.Now().UTC()); err != nil {
		log.Fatalw("failed to sync receipt sequence", "error", err)
	}

	if os.Getenv("SEED_DEMO_DATA") == "true" {
		ctx := appctx.WithUser(ctx, &appctx.UserContext{UserID: adminID, Role: appctx.RoleAdmin})
		if err := seedDemoAgents(ctx, txManager, log); err != nil {
			log.Fatalw("failed to seed demo data", "error", err)
		}
	}

	log.Info("seeding completed successfully")
}

// seedAdminUser creates ADMIN_EMAIL with the ADMIN role unless the login already exists.
func seedAdminUser(ctx context.Context, txManager *postgres.TxManager, log *logger.Logger) (string, error) {
	adminEmail := os.Getenv("ADMIN_EMAIL")
	if adminEmail == "" {
		adminEmail = "admin@palmledger.local"
	}

	adminPassword := os.Getenv("ADMIN_PASSWORD")
	if adminPassword == "" {
		return "", errors.New("ADMIN_PASSWORD environment variable is required")
	}

	users := auth_repo.NewUserRepo(txManager)

	existing, err := users.GetByEmail(ctx, auth.NormalizeEmail(adminEmail))
	if err == nil {
		log.Infow("admin user already exists", "email", existing.Email, "user_id", existing.ID)
		return existing.ID.String(), nil
	}
	if !apperror.IsNotFound(err) {
		return "", fmt.Errorf("check admin exists: %w", err)
	}

	passwordHash, err := auth.HashPassword(adminPassword)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}

	user := auth.NewUser(adminEmail, passwordHash, time.Now().UTC())
	user.FullName = "Administrator"

	err = txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		if err := users.Create(ctx, user); err != nil {
			return fmt.Errorf("insert admin user: %w", err)
		}
		return users.SetRole(ctx, &auth.RoleMapping{
			UserID:    user.ID,
			Role:      appctx.RoleAdmin,
			CreatedAt: user.CreatedAt,
		})
	})
	if err != nil {
		return "", err
	}

	log.Infow("admin user created",
		"email", user.Email,
		"user_id", user.ID,
	)

	return user.ID.String(), nil
}

// syncReceiptSequence moves this year's receipt counter up to the highest number already
// issued, so imported receipts never collide with new ones. It never lowers the counter.
func syncReceiptSequence(ctx context.Context, txManager *postgres.TxManager, log *logger.Logger, now time.Time) error {
	cfg := corenumerator.ReceiptConfig()

	var last string
	err := txManager.GetQuerier(ctx).QueryRow(ctx, `
		SELECT receipt_number FROM order_receipts
		WHERE receipt_number LIKE $1
		ORDER BY receipt_number DESC
		LIMIT 1
	`, fmt.Sprintf("%s-%d-%%", cfg.Prefix, now.Year())).Scan(&last)
	if errors.Is(err, pgx.ErrNoRows) {
		log.Info("no receipts issued this year, sequence left as is")
		return nil
	}
	if err != nil {
		return fmt.Errorf("query last receipt: %w", err)
	}

	parsed, err := cfg.Parse(last)
	if err != nil {
		return err
	}

	numbers := numerator.NewWithTxManager(txManager)
	if err := numbers.RaiseNextNumber(ctx, cfg, now, parsed.Seq); err != nil {
		return err
	}

	log.Infow("receipt sequence synced", "key", cfg.Key(now), "last", last)
	return nil
}

// seedDemoAgents adds two agents to an empty directory.
func seedDemoAgents(ctx context.Context, txManager *postgres.TxManager, log *logger.Logger) error {
	repo := catalog_repo.NewAgentRepo(txManager)
	ids, err := repo.ActiveIDs(ctx)
	if err != nil {
		return err
	}
	if len(ids) > 0 {
		log.Infow("agents already present, skipping demo data", "count", len(ids))
		return nil
	}

	svc := agents.NewService(repo, txManager, nil, nil, nil)
	for _, a := range []*agents.Agent{
		agents.NewAgent("Kwame Mensah", "+233 20 000 0001", "Kade"),
		agents.NewAgent("Abena Owusu", "+233 20 000 0002", "Akim Oda"),
	} {
		if err := svc.Create(ctx, a); err != nil {
			return fmt.Errorf("create agent %s: %w", a.FullName, err)
		}
		log.Infow("demo agent created", "name", a.FullName, "agent_id", a.ID)
	}
	return nil
}
