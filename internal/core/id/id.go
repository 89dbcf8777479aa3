// Package id generates and parses entity identifiers (UUIDv7, time-ordered).
package id

import (
	"github.com/google/uuid"
)

// ID is the identifier type of every entity.
type ID = uuid.UUID

// New returns a UUIDv7, falling back to a random v4 if the clock source fails.
func New() ID {
	v, err := uuid.NewV7()
	if err != nil {
		return uuid.New()
	}
	return v
}

// Parse converts a string to an ID.
func Parse(s string) (ID, error) {
	return uuid.Parse(s)
}

// ParseOptional parses s, returning nil for an empty string.
func ParseOptional(s string) (*ID, error) {
	if s == "" {
		return nil, nil
	}
	v, err := uuid.Parse(s)
	if err != nil {
		return nil, err
	}
	return &v, nil
}

// MustParse converts a string to an ID and panics on error. Tests and constants only.
func MustParse(s string) ID {
	return uuid.MustParse(s)
}

// IsNil checks for the zero ID.
func IsNil(v ID) bool {
	return v == uuid.Nil
}
