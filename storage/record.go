package storage

import (
	"fmt"
	"maps"
	"slices"
)

// ClassField is the record field holding the type tag.
const ClassField = "__class__"

// Record is the flat JSON-compatible form of one entity.
type Record map[string]any

// Kind returns the record's type tag, or "" when absent or not a string.
func (r Record) Kind() string {
	s, _ := r[ClassField].(string)
	return s
}

// Text returns a string field. ok is false if the field is absent or not
// a string.
func (r Record) Text(field string) (string, bool) {
	s, ok := r[field].(string)
	return s, ok
}

// Fields returns the record's field names in sorted order.
func (r Record) Fields() []string {
	return slices.Sorted(maps.Keys(r))
}

// Object is what the engine stores. Kind and ID must not change once the
// object has been registered, since together they form its key.
type Object interface {
	Kind() string
	ID() string
	ToRecord() Record
}

// Key returns the snapshot key of obj: "{Kind}.{ID}".
func Key(obj Object) string {
	return KeyOf(obj.Kind(), obj.ID())
}

// KeyOf builds a snapshot key from its parts.
func KeyOf(kind, id string) string {
	return fmt.Sprintf("%s.%s", kind, id)
}
