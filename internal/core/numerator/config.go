// Package numerator defines human-readable sequential numbers such as EDC-REC-2024-000001.
package numerator

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Strategy defines how numbers are allocated.
type Strategy int

const (
	// StrategyStrict increments the sequence row for every number. Gapless when run
	// inside the caller's transaction.
	StrategyStrict Strategy = iota

	// StrategyCached reserves ranges in memory. Restarts leave gaps.
	StrategyCached
)

// Reset periods.
const (
	ResetYear  = "year"
	ResetMonth = "month"
	ResetNever = "never"
)

// Options configures allocation.
type Options struct {
	Strategy Strategy
	// RangeSize is the number of values reserved at once by StrategyCached (default 50).
	RangeSize int64
}

// DefaultOptions returns the strict strategy.
func DefaultOptions() *Options {
	return &Options{Strategy: StrategyStrict}
}

// OrderOptions allocates order numbers from cached ranges. Order numbers may skip values;
// receipts keep the strict default.
func OrderOptions() *Options {
	return &Options{Strategy: StrategyCached, RangeSize: 20}
}

// Config describes the number format.
type Config struct {
	// Prefix added to all numbers, e.g. "EDC-REC"
	Prefix string

	// IncludeYear inserts the period year after the prefix
	IncludeYear bool

	// PadWidth is the minimum width of the sequence part (default 5)
	PadWidth int

	// ResetPeriod is one of ResetYear, ResetMonth, ResetNever
	ResetPeriod string
}

// ReceiptPrefix is the prefix of order receipt numbers.
const ReceiptPrefix = "EDC-REC"

// ReceiptConfig is the format of receipt numbers: EDC-REC-<year>-<6 digits>, restarting every year.
func ReceiptConfig() Config {
	return Config{
		Prefix:      ReceiptPrefix,
		IncludeYear: true,
		PadWidth:    6,
		ResetPeriod: ResetYear,
	}
}

// OrderPrefix is the prefix of customer order numbers.
const OrderPrefix = "EDC-ORD"

// OrderConfig is the format of order numbers: EDC-ORD-<year>-<5 digits>.
func OrderConfig() Config {
	return DefaultConfig(OrderPrefix)
}

// DefaultConfig returns a yearly numbering for prefix.
func DefaultConfig(prefix string) Config {
	return Config{
		Prefix:      prefix,
		IncludeYear: true,
		PadWidth:    5,
		ResetPeriod: ResetYear,
	}
}

// Key is the sequence key that scopes numbering to the reset period of period.
func (c Config) Key(period time.Time) string {
	switch c.ResetPeriod {
	case ResetMonth:
		return fmt.Sprintf("%s_%s", c.Prefix, period.Format("2006_01"))
	case ResetYear:
		return fmt.Sprintf("%s_%s", c.Prefix, period.Format("2006"))
	default:
		return c.Prefix
	}
}

// Format renders seq for period.
func (c Config) Format(period time.Time, seq int64) string {
	width := c.PadWidth
	if width == 0 {
		width = 5
	}
	if c.IncludeYear {
		return fmt.Sprintf("%s-%s-%0*d", c.Prefix, period.Format("2006"), width, seq)
	}
	return fmt.Sprintf("%s-%0*d", c.Prefix, width, seq)
}

// Parsed is a number split into its parts. Year is 0 when the format has no year.
type Parsed struct {
	Year int
	Seq  int64
}

// Parse splits a formatted number produced by c.
func (c Config) Parse(formatted string) (Parsed, error) {
	rest, ok := strings.CutPrefix(formatted, c.Prefix+"-")
	if !ok {
		return Parsed{}, fmt.Errorf("number %q does not start with %q", formatted, c.Prefix)
	}

	var p Parsed
	if c.IncludeYear {
		yearPart, seqPart, found := strings.Cut(rest, "-")
		if !found {
			return Parsed{}, fmt.Errorf("number %q has no year part", formatted)
		}
		year, err := strconv.Atoi(yearPart)
		if err != nil || len(yearPart) != 4 {
			return Parsed{}, fmt.Errorf("number %q has invalid year %q", formatted, yearPart)
		}
		p.Year = year
		rest = seqPart
	}

	seq, err := strconv.ParseInt(rest, 10, 64)
	if err != nil || seq < 0 {
		return Parsed{}, fmt.Errorf("number %q has invalid sequence %q", formatted, rest)
	}
	p.Seq = seq
	return p, nil
}

// Next derives the number following last within the reset period of period.
// When last belongs to an earlier period (or is empty or unparsable) numbering restarts at 1.
func (c Config) Next(last string, period time.Time) string {
	if last == "" {
		return c.Format(period, 1)
	}
	p, err := c.Parse(last)
	if err != nil {
		return c.Format(period, 1)
	}
	if c.ResetPeriod == ResetYear && c.IncludeYear && p.Year != period.Year() {
		return c.Format(period, 1)
	}
	return c.Format(period, p.Seq+1)
}
