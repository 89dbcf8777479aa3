// Package numerator provides the PostgreSQL implementation of core/numerator.Generator.
package numerator

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"

	corenumerator "palmledger/internal/core/numerator"
	"palmledger/internal/infrastructure/storage/postgres"
)

// Querier is the subset of a connection the service needs.
type Querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type cachedRange struct {
	current int64
	max     int64
}

// Service allocates numbers from the sys_sequences table.
type Service struct {
	querier func(ctx context.Context) Querier
	// ranges are reserved outside the caller's transaction so a rollback cannot
	// hand out a range twice
	rangeQuerier func(ctx context.Context) Querier

	// cacheMu protects ranges
	cacheMu sync.Mutex
	ranges  map[string]*cachedRange
}

// Ensure compile-time interface compliance.
var _ corenumerator.Generator = (*Service)(nil)

// New creates a service bound to a fixed querier.
func New(querier Querier) *Service {
	fixed := func(context.Context) Querier { return querier }
	return &Service{
		querier:      fixed,
		rangeQuerier: fixed,
		ranges:       make(map[string]*cachedRange),
	}
}

// NewWithTxManager creates a service that allocates inside the caller's transaction when
// there is one, so a rolled back document releases its number.
func NewWithTxManager(txManager *postgres.TxManager) *Service {
	return &Service{
		querier: func(ctx context.Context) Querier { return txManager.GetQuerier(ctx) },
		// A context without a transaction resolves to the pool.
		rangeQuerier: func(context.Context) Querier { return txManager.GetQuerier(context.Background()) },
		ranges:       make(map[string]*cachedRange),
	}
}

// GetNextNumber generates the next number, e.g. EDC-REC-2024-000001.
func (s *Service) GetNextNumber(ctx context.Context, cfg corenumerator.Config, opts *corenumerator.Options, period time.Time) (string, error) {
	if s == nil {
		return "", fmt.Errorf("numerator service is not initialized")
	}
	if opts == nil {
		opts = corenumerator.DefaultOptions()
	}

	key := cfg.Key(period)
	var (
		num int64
		err error
	)
	switch opts.Strategy {
	case corenumerator.StrategyCached:
		num, err = s.getNextCached(ctx, key, opts)
	default:
		num, err = s.getNextStrict(ctx, key)
	}
	if err != nil {
		return "", err
	}
	return cfg.Format(period, num), nil
}

// getNextStrict increments the sequence row with UPSERT + RETURNING.
func (s *Service) getNextStrict(ctx context.Context, key string) (int64, error) {
	var num int64
	err := s.querier(ctx).QueryRow(ctx, `
		INSERT INTO sys_sequences (key, current_val)
		VALUES ($1, 1)
		ON CONFLICT (key) DO UPDATE SET current_val = sys_sequences.current_val + 1, updated_at = now()
		RETURNING current_val
	`, key).Scan(&num)
	if err != nil {
		return 0, fmt.Errorf("strict next %s: %w", key, err)
	}
	return num, nil
}

// getNextCached serves numbers from memory, reserving a new range when exhausted.
func (s *Service) getNextCached(ctx context.Context, key string, opts *corenumerator.Options) (int64, error) {
	s.cacheMu.Lock()
	defer s.cacheMu.Unlock()

	rng, exists := s.ranges[key]
	if !exists {
		rng = &cachedRange{}
		s.ranges[key] = rng
	}

	if rng.current >= rng.max {
		size := opts.RangeSize
		if size <= 0 {
			size = 50
		}

		var newMax int64
		err := s.rangeQuerier(ctx).QueryRow(ctx, `
			INSERT INTO sys_sequences (key, current_val)
			VALUES ($1, $2)
			ON CONFLICT (key) DO UPDATE SET current_val = sys_sequences.current_val + $2, updated_at = now()
			RETURNING current_val
		`, key, size).Scan(&newMax)
		if err != nil {
			return 0, fmt.Errorf("reserve range %s: %w", key, err)
		}

		// The reserved range is (newMax-size, newMax].
		rng.current = newMax - size
		rng.max = newMax
	}

	rng.current++
	return rng.current, nil
}

// SetNextNumber sets the last allocated value of period's sequence.
func (s *Service) SetNextNumber(ctx context.Context, cfg corenumerator.Config, period time.Time, value int64) error {
	return s.storeValue(ctx, cfg, period, value, `
		INSERT INTO sys_sequences (key, current_val)
		VALUES ($1, $2)
		ON CONFLICT (key) DO UPDATE SET current_val = EXCLUDED.current_val, updated_at = now()
		RETURNING current_val
	`)
}

// RaiseNextNumber moves period's sequence up to value. A sequence already past value is
// left alone.
func (s *Service) RaiseNextNumber(ctx context.Context, cfg corenumerator.Config, period time.Time, value int64) error {
	return s.storeValue(ctx, cfg, period, value, `
		INSERT INTO sys_sequences (key, current_val)
		VALUES ($1, $2)
		ON CONFLICT (key) DO UPDATE
			SET current_val = GREATEST(sys_sequences.current_val, EXCLUDED.current_val), updated_at = now()
		RETURNING current_val
	`)
}

func (s *Service) storeValue(ctx context.Context, cfg corenumerator.Config, period time.Time, value int64, sql string) error {
	key := cfg.Key(period)

	var result int64
	err := s.querier(ctx).QueryRow(ctx, sql, key, value).Scan(&result)

	s.cacheMu.Lock()
	delete(s.ranges, key)
	s.cacheMu.Unlock()

	if err != nil {
		return fmt.Errorf("set sequence %s: %w", key, err)
	}
	return nil
}
