// Package types holds the numeric and calendar value types shared by every domain.
package types

import (
	"encoding/json"
	"math"
	"strings"

	"github.com/shopspring/decimal"
)

// Money is an exact monetary amount.
type Money = decimal.Decimal

// Weight is an exact weight in kilograms.
type Weight = decimal.Decimal

// MustMoney parses s and panics on error. Constants and tests only.
func MustMoney(s string) Money {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

// Storage scales of the NUMERIC columns.
const (
	MoneyPlaces  = 2
	WeightPlaces = 3
)

// FitsScale reports whether d has at most places fractional digits.
func FitsScale(d decimal.Decimal, places int32) bool {
	return d.Equal(d.Truncate(places))
}

// Zero returns the zero amount.
func Zero() Money {
	return decimal.Zero
}

// Coerce converts a loosely typed stored value into a decimal.
// Missing, empty, non-numeric and non-finite inputs become zero; this never fails.
func Coerce(v any) decimal.Decimal {
	switch x := v.(type) {
	case nil:
		return decimal.Zero
	case decimal.Decimal:
		return x
	case *decimal.Decimal:
		if x == nil {
			return decimal.Zero
		}
		return *x
	case decimal.NullDecimal:
		if !x.Valid {
			return decimal.Zero
		}
		return x.Decimal
	case string:
		return CoerceString(x)
	case *string:
		if x == nil {
			return decimal.Zero
		}
		return CoerceString(*x)
	case json.Number:
		return CoerceString(string(x))
	case float64:
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return decimal.Zero
		}
		return decimal.NewFromFloat(x)
	case float32:
		return Coerce(float64(x))
	case int:
		return decimal.NewFromInt(int64(x))
	case int64:
		return decimal.NewFromInt(x)
	case int32:
		return decimal.NewFromInt32(x)
	default:
		return decimal.Zero
	}
}

// CoerceString parses s as a decimal, returning zero when it is not a number.
func CoerceString(s string) decimal.Decimal {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}

// FirstNonNull coerces the first non-nil candidate, so an empty or non-numeric
// value yields zero rather than falling through. ok is false when every candidate is nil.
func FirstNonNull(candidates ...*string) (decimal.Decimal, bool) {
	for _, c := range candidates {
		if c != nil {
			return CoerceString(*c), true
		}
	}
	return decimal.Zero, false
}

// Sum adds up values.
func Sum(values ...decimal.Decimal) decimal.Decimal {
	total := decimal.Zero
	for _, v := range values {
		total = total.Add(v)
	}
	return total
}
