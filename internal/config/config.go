// Package config loads process configuration from the environment. A .env file in the
// working directory is read first when present; real environment variables win.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"palmledger/internal/domain/reconciliation"
)

// Config is the server and worker configuration.
type Config struct {
	AppEnv      string
	HTTPAddr    string
	CompanyName string

	DatabaseURL        string
	DBMaxConns         int32
	DBMinConns         int32
	DBStatementTimeout time.Duration

	JWTSecret     string
	JWTAccessTTL  time.Duration
	JWTRefreshTTL time.Duration

	LogLevel       string
	LogDevelopment bool

	RedisAddr string

	GCSBucket          string
	GCSCredentialsJSON string
	PhotoURLTTL        time.Duration
	PhotoMaxWidth      int

	ReconciliationPolicy reconciliation.StatusPolicy

	CORSOrigins    []string
	WorkerTick     time.Duration
	IdempotencyTTL time.Duration
}

// Load reads .env (if any) and the environment.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}
	return FromEnv(os.Getenv)
}

// FromEnv builds a Config from a lookup function.
func FromEnv(getenv func(string) string) (*Config, error) {
	e := env{get: getenv}

	cfg := &Config{
		AppEnv:      e.str("APP_ENV", "development"),
		HTTPAddr:    e.str("HTTP_ADDR", ":8080"),
		CompanyName: e.str("COMPANY_NAME", "PalmLedger"),

		DatabaseURL:        e.required("DATABASE_URL"),
		DBMaxConns:         int32(e.int("DB_MAX_CONNS", 25)),
		DBMinConns:         int32(e.int("DB_MIN_CONNS", 2)),
		DBStatementTimeout: e.duration("DB_STATEMENT_TIMEOUT", 30*time.Second),

		JWTSecret:     e.required("JWT_SECRET"),
		JWTAccessTTL:  e.duration("JWT_ACCESS_TTL", 15*time.Minute),
		JWTRefreshTTL: e.duration("JWT_REFRESH_TTL", 7*24*time.Hour),

		LogLevel:       e.str("LOG_LEVEL", "info"),
		LogDevelopment: e.bool("LOG_DEVELOPMENT", false),

		RedisAddr: e.str("REDIS_ADDR", ""),

		GCSBucket:          e.str("GCS_BUCKET", ""),
		GCSCredentialsJSON: e.str("GCS_CREDENTIALS_JSON", ""),
		PhotoURLTTL:        e.duration("PHOTO_URL_TTL", 15*time.Minute),
		PhotoMaxWidth:      e.int("PHOTO_MAX_WIDTH", 1024),

		CORSOrigins:    e.list("CORS_ORIGINS"),
		WorkerTick:     e.duration("WORKER_TICK", 15*time.Minute),
		IdempotencyTTL: e.duration("IDEMPOTENCY_TTL", 24*time.Hour),
	}

	policy, err := reconciliation.ParseStatusPolicy(e.str("RECONCILIATION_STATUS_POLICY", ""))
	if err != nil {
		e.errs = append(e.errs, fmt.Errorf("RECONCILIATION_STATUS_POLICY: %w", err))
	}
	cfg.ReconciliationPolicy = policy

	if cfg.DBMinConns > cfg.DBMaxConns {
		e.errs = append(e.errs, fmt.Errorf("DB_MIN_CONNS (%d) exceeds DB_MAX_CONNS (%d)", cfg.DBMinConns, cfg.DBMaxConns))
	}
	if len(e.errs) > 0 {
		return nil, errors.Join(e.errs...)
	}
	return cfg, nil
}

// IsDevelopment reports whether APP_ENV is development.
func (c *Config) IsDevelopment() bool {
	return c.AppEnv == "development"
}

type env struct {
	get  func(string) string
	errs []error
}

func (e *env) str(key, def string) string {
	if v := strings.TrimSpace(e.get(key)); v != "" {
		return v
	}
	return def
}

func (e *env) required(key string) string {
	v := strings.TrimSpace(e.get(key))
	if v == "" {
		e.errs = append(e.errs, fmt.Errorf("required environment variable %s not set", key))
	}
	return v
}

func (e *env) int(key string, def int) int {
	v := strings.TrimSpace(e.get(key))
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		e.errs = append(e.errs, fmt.Errorf("%s: %q is not an integer", key, v))
		return def
	}
	return n
}

func (e *env) bool(key string, def bool) bool {
	v := strings.TrimSpace(e.get(key))
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		e.errs = append(e.errs, fmt.Errorf("%s: %q is not a boolean", key, v))
		return def
	}
	return b
}

func (e *env) duration(key string, def time.Duration) time.Duration {
	v := strings.TrimSpace(e.get(key))
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		e.errs = append(e.errs, fmt.Errorf("%s: %q is not a duration", key, v))
		return def
	}
	return d
}

func (e *env) list(key string) []string {
	var out []string
	for _, part := range strings.Split(e.get(key), ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
