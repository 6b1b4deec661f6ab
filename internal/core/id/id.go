// Package id generates the UUIDv7 identifiers used for ledger entries,
// snapshots, and workflow records.
package id

import (
	"github.com/google/uuid"
)

// ID identifies one persisted record.
type ID = uuid.UUID

// New returns a UUIDv7. The leading timestamp bits keep movement ids roughly
// in commit order, so index inserts stay appends instead of random writes.
func New() ID {
	v, err := uuid.NewV7()
	if err != nil {
		// NewV7 only fails if the random source does; fall back to v4
		// rather than panic in a commit path.
		return uuid.New()
	}
	return v
}

// Parse converts a string to an ID with validation.
func Parse(s string) (ID, error) {
	return uuid.Parse(s)
}

// MustParse converts a string to an ID, panicking on error. Test use only.
func MustParse(s string) ID {
	return uuid.MustParse(s)
}

// Nil returns the zero-value ID.
func Nil() ID {
	return uuid.Nil
}

// IsNil reports whether id is the zero value.
func IsNil(id ID) bool {
	return id == uuid.Nil
}
