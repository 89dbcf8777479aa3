package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"palmledger/internal/domain/reconciliation"
)

func lookup(values map[string]string) func(string) string {
	return func(key string) string { return values[key] }
}

func TestFromEnv_Defaults(t *testing.T) {
	cfg, err := FromEnv(lookup(map[string]string{
		"DATABASE_URL": "postgres://localhost/palm",
		"JWT_SECRET":   "s3cret",
	}))
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.HTTPAddr)
	assert.Equal(t, int32(25), cfg.DBMaxConns)
	assert.Equal(t, 30*time.Second, cfg.DBStatementTimeout)
	assert.Equal(t, 15*time.Minute, cfg.JWTAccessTTL)
	assert.Equal(t, reconciliation.PolicyReset, cfg.ReconciliationPolicy)
	assert.Empty(t, cfg.CORSOrigins)
	assert.True(t, cfg.IsDevelopment())
}

func TestFromEnv_Overrides(t *testing.T) {
	cfg, err := FromEnv(lookup(map[string]string{
		"DATABASE_URL":                 "postgres://db/palm",
		"JWT_SECRET":                   "s3cret",
		"APP_ENV":                      "production",
		"DB_MAX_CONNS":                 "40",
		"JWT_REFRESH_TTL":              "72h",
		"LOG_DEVELOPMENT":              "true",
		"RECONCILIATION_STATUS_POLICY": "Preserve",
		"CORS_ORIGINS":                 "https://a.example, https://b.example,",
	}))
	require.NoError(t, err)

	assert.Equal(t, int32(40), cfg.DBMaxConns)
	assert.Equal(t, 72*time.Hour, cfg.JWTRefreshTTL)
	assert.True(t, cfg.LogDevelopment)
	assert.Equal(t, reconciliation.PolicyPreserve, cfg.ReconciliationPolicy)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.CORSOrigins)
	assert.False(t, cfg.IsDevelopment())
}

func TestFromEnv_CollectsErrors(t *testing.T) {
	_, err := FromEnv(lookup(map[string]string{
		"DB_MAX_CONNS":                 "many",
		"WORKER_TICK":                  "soon",
		"RECONCILIATION_STATUS_POLICY": "sometimes",
	}))
	require.Error(t, err)

	msg := err.Error()
	assert.Contains(t, msg, "DATABASE_URL")
	assert.Contains(t, msg, "JWT_SECRET")
	assert.Contains(t, msg, "DB_MAX_CONNS")
	assert.Contains(t, msg, "WORKER_TICK")
	assert.Contains(t, msg, "RECONCILIATION_STATUS_POLICY")
}
