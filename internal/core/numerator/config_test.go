package numerator

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func date(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 12, 0, 0, 0, time.UTC)
}

func TestReceiptConfig_Format(t *testing.T) {
	cfg := ReceiptConfig()
	assert.Equal(t, "EDC-REC-2024-000001", cfg.Format(date(2024, 1, 5), 1))
	assert.Equal(t, "EDC-REC-2024-123456", cfg.Format(date(2024, 1, 5), 123456))
	assert.Equal(t, "EDC-REC_2024", cfg.Key(date(2024, 12, 31)))
}

func TestReceiptConfig_Parse(t *testing.T) {
	cfg := ReceiptConfig()

	p, err := cfg.Parse("EDC-REC-2024-000007")
	require.NoError(t, err)
	assert.Equal(t, 2024, p.Year)
	assert.Equal(t, int64(7), p.Seq)

	for _, bad := range []string{"", "INV-2024-000001", "EDC-REC-24-000001", "EDC-REC-2024-abc", "EDC-REC-000001"} {
		_, err := cfg.Parse(bad)
		assert.Error(t, err, bad)
	}
}

func TestNext_SameYearIncrements(t *testing.T) {
	cfg := ReceiptConfig()
	assert.Equal(t, "EDC-REC-2024-000008", cfg.Next("EDC-REC-2024-000007", date(2024, 6, 1)))
}

func TestNext_NewYearRestarts(t *testing.T) {
	cfg := ReceiptConfig()
	// A naive global increment would yield EDC-REC-2024-000100 here.
	assert.Equal(t, "EDC-REC-2024-000001", cfg.Next("EDC-REC-2023-000099", date(2024, 1, 1)))
}

func TestNext_NoPrevious(t *testing.T) {
	cfg := ReceiptConfig()
	assert.Equal(t, "EDC-REC-2025-000001", cfg.Next("", date(2025, 3, 1)))
	assert.Equal(t, "EDC-REC-2025-000001", cfg.Next("garbage", date(2025, 3, 1)))
}

func TestNext_NeverReset(t *testing.T) {
	cfg := Config{Prefix: "ORD", PadWidth: 4, ResetPeriod: ResetNever}
	assert.Equal(t, "ORD-0043", cfg.Next("ORD-0042", date(2030, 1, 1)))
}

func TestMockGenerator_ScopesByYear(t *testing.T) {
	ctx := context.Background()
	gen := &MockGenerator{}
	cfg := ReceiptConfig()

	require.NoError(t, gen.SetNextNumber(ctx, cfg, date(2024, 1, 1), 7))

	n, err := gen.GetNextNumber(ctx, cfg, nil, date(2024, 11, 2))
	require.NoError(t, err)
	assert.Equal(t, "EDC-REC-2024-000008", n)

	n, err = gen.GetNextNumber(ctx, cfg, nil, date(2025, 1, 1))
	require.NoError(t, err)
	assert.Equal(t, "EDC-REC-2025-000001", n)
}
