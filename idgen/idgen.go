// Package idgen generates the identifiers that name persisted entities.
//
// Every entity constructor takes its ID from a Generator so that the
// strategy is chosen once at startup. Identifiers are always UUID strings:
// the snapshot format promises that an entity id parses as a UUID.
package idgen

import (
	"fmt"

	"github.com/google/uuid"
)

// Generator produces unique string identifiers.
type Generator func() string

// UUIDv4 returns a Generator that produces random RFC 9562 UUID v4 strings.
// This matches snapshots written by earlier tools that used random UUIDs.
func UUIDv4() Generator {
	return func() string {
		return uuid.Must(uuid.NewRandom()).String()
	}
}

// UUIDv7 returns a Generator that produces RFC 9562 UUID v7 strings.
// Time-sortable, so snapshot keys of one kind sort by creation order.
func UUIDv7() Generator {
	return func() string {
		return uuid.Must(uuid.NewV7()).String()
	}
}

// Default is the generator used by entity constructors.
var Default Generator = UUIDv7()

// New produces an ID using the Default generator.
func New() string {
	return Default()
}

// Parse validates a UUID string and returns its canonical lowercase form.
func Parse(s string) (string, error) {
	u, err := uuid.Parse(s)
	if err != nil {
		return "", fmt.Errorf("idgen: invalid UUID %q: %w", s, err)
	}
	return u.String(), nil
}

// Valid reports whether s parses as a UUID.
func Valid(s string) bool {
	return uuid.Validate(s) == nil
}

// Version returns the UUID version of s, or 0 if s is not a UUID.
func Version(s string) int {
	u, err := uuid.Parse(s)
	if err != nil {
		return 0
	}
	return int(u.Version())
}
