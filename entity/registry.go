package entity

import (
	"fmt"

	"github.com/hazyhaar/hbnb/storage"
)

// Kinds lists every entity kind this package defines.
var Kinds = []string{KindBaseModel}

// Registry returns the factories the engine uses to rebuild each kind.
func Registry() storage.Registry {
	return storage.Registry{
		KindBaseModel: func(eng *storage.Engine, rec storage.Record) (storage.Object, error) {
			m, err := Reconstruct(eng, rec)
			if err != nil {
				return nil, err
			}
			return m, nil
		},
	}
}

var constructors = map[string]func(Store, ...Option) Model{
	KindBaseModel: func(s Store, opts ...Option) Model { return New(s, opts...) },
}

// Create constructs and registers a fresh entity of the given kind.
func Create(kind string, store Store, opts ...Option) (Model, error) {
	ctor, ok := constructors[kind]
	if !ok {
		return nil, fmt.Errorf("%w: %q", storage.ErrUnknownKind, kind)
	}
	return ctor(store, opts...), nil
}

// As returns the BaseModel inside obj, if obj is an entity of this package.
func As(obj storage.Object) (*BaseModel, bool) {
	m, ok := obj.(Model)
	if !ok {
		return nil, false
	}
	return m.base(), true
}
