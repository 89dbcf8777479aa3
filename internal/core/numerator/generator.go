package numerator

import (
	"context"
	"time"
)

// Generator allocates sequential numbers. Implementations live in infrastructure/numerator.
type Generator interface {
	// GetNextNumber allocates and formats the next number for period.
	GetNextNumber(ctx context.Context, cfg Config, opts *Options, period time.Time) (string, error)

	// SetNextNumber overwrites the last allocated value of period's sequence. Used when
	// importing existing numbers.
	SetNextNumber(ctx context.Context, cfg Config, period time.Time, value int64) error
}
