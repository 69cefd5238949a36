package storage

import (
	"errors"
	"fmt"
)

// ErrSnapshotMissing is returned when the backend holds no snapshot yet.
var ErrSnapshotMissing = errors.New("storage: snapshot not found")

// ErrSnapshotCorrupt is returned when the snapshot cannot be decoded or one
// of its records cannot be reconstructed.
var ErrSnapshotCorrupt = errors.New("storage: snapshot corrupt")

// ErrUnknownKind is returned by Registry lookups for a tag with no factory.
var ErrUnknownKind = errors.New("storage: unknown kind")

// DeserializationError reports a record that could not be turned back into
// an entity: a missing type tag, a missing field, or malformed timestamp
// text.
type DeserializationError struct {
	Key   string // snapshot key, empty when reconstructing outside a load
	Field string
	Err   error
}

func (e *DeserializationError) Error() string {
	msg := "storage: deserialize"
	if e.Key != "" {
		msg += " " + e.Key
	}
	if e.Field != "" {
		msg += fmt.Sprintf(" field %q", e.Field)
	}
	return fmt.Sprintf("%s: %v", msg, e.Err)
}

func (e *DeserializationError) Unwrap() error { return e.Err }
