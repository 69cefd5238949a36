package storage

import (
	"fmt"
	"maps"
	"slices"

	"github.com/hazyhaar/hbnb/horosafe"
)

// Factory rebuilds an entity from its record. The engine performing the
// load is passed in so the rebuilt entity can persist itself later; the
// factory must not register the entity, the load does that.
type Factory func(eng *Engine, rec Record) (Object, error)

// Registry maps a type tag to the factory for that kind. It is fixed once
// handed to NewEngine.
type Registry map[string]Factory

// Register adds a factory for kind. The tag must be a valid identifier
// and must not already be registered.
func (r Registry) Register(kind string, f Factory) error {
	if err := horosafe.ValidateIdentifier(kind); err != nil {
		return fmt.Errorf("storage: register kind: %w", err)
	}
	if f == nil {
		return fmt.Errorf("storage: register %s: nil factory", kind)
	}
	if _, dup := r[kind]; dup {
		return fmt.Errorf("storage: register %s: already registered", kind)
	}
	r[kind] = f
	return nil
}

// Lookup returns the factory for kind or ErrUnknownKind.
func (r Registry) Lookup(kind string) (Factory, error) {
	f, ok := r[kind]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownKind, kind)
	}
	return f, nil
}

// Kinds returns the registered tags in sorted order.
func (r Registry) Kinds() []string {
	return slices.Sorted(maps.Keys(r))
}
