package types

import (
	"fmt"
	"time"
)

// DateLayout is the wire format for calendar dates.
const DateLayout = "2006-01-02"

// MonthOf returns the first day of t's month at UTC midnight.
func MonthOf(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
}

// DateRange is an inclusive calendar date range. A zero bound is open.
type DateRange struct {
	From time.Time
	To   time.Time
}

// MonthRange spans the calendar month containing t.
func MonthRange(t time.Time) DateRange {
	start := MonthOf(t)
	return DateRange{From: start, To: start.AddDate(0, 1, -1)}
}

// Validate checks that From is not after To.
func (r DateRange) Validate() error {
	if !r.From.IsZero() && !r.To.IsZero() && r.From.After(r.To) {
		return fmt.Errorf("from date %s is after to date %s", r.From.Format(DateLayout), r.To.Format(DateLayout))
	}
	return nil
}

// Contains reports whether t falls within the range, comparing dates only.
func (r DateRange) Contains(t time.Time) bool {
	d := truncateDay(t)
	if !r.From.IsZero() && d.Before(truncateDay(r.From)) {
		return false
	}
	if !r.To.IsZero() && d.After(truncateDay(r.To)) {
		return false
	}
	return true
}

// ParseDate parses a YYYY-MM-DD string; an empty string yields the zero time.
func ParseDate(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	return time.Parse(DateLayout, s)
}

func truncateDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
