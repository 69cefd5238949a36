// Package entity defines the persisted domain objects and their record
// form. Every kind embeds BaseModel, which carries identity, timestamps and
// free-form attributes, and talks to the storage engine through Store.
package entity

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"maps"
	"time"

	"github.com/hazyhaar/hbnb/horosafe"
	"github.com/hazyhaar/hbnb/idgen"
	"github.com/hazyhaar/hbnb/storage"
)

// Record field names shared by every kind.
const (
	FieldID        = "id"
	FieldCreatedAt = "created_at"
	FieldUpdatedAt = "updated_at"
)

// KindBaseModel is the type tag of BaseModel.
const KindBaseModel = "BaseModel"

// ErrDetached is returned by Save on an entity built without a Store.
var ErrDetached = errors.New("entity: not attached to a store")

// ErrReservedAttribute is returned by Set for names the record format owns.
var ErrReservedAttribute = errors.New("entity: reserved attribute name")

// ErrUnencodable is returned by Set for values the snapshot cannot hold.
var ErrUnencodable = errors.New("entity: attribute value not encodable")

// Store is the part of the engine an entity needs: registration on
// creation and a full flush on save. *storage.Engine implements it.
type Store interface {
	New(obj storage.Object)
	Save(ctx context.Context) error
}

// Model is implemented by every entity kind. The unexported method keeps
// the set of kinds closed to this package.
type Model interface {
	storage.Object
	Save(ctx context.Context) error
	String() string
	base() *BaseModel
}

// BaseModel is the root entity: a UUID, creation and update timestamps,
// and user attributes. Attributes are any record field other than the
// three fixed ones and the type tag.
type BaseModel struct {
	id        string
	createdAt time.Time
	updatedAt time.Time
	attrs     map[string]any

	store Store
	now   func() time.Time
	newID idgen.Generator
}

// Option configures a freshly constructed entity.
type Option func(*BaseModel)

// WithIDGenerator sets the generator used for the entity id.
func WithIDGenerator(gen idgen.Generator) Option {
	return func(m *BaseModel) { m.newID = gen }
}

// WithClock sets the time source for CreatedAt and later saves.
func WithClock(now func() time.Time) Option {
	return func(m *BaseModel) { m.now = now }
}

func newBase(store Store, opts ...Option) *BaseModel {
	m := &BaseModel{
		attrs: make(map[string]any),
		store: store,
		now:   time.Now,
		newID: idgen.Default,
	}
	for _, o := range opts {
		o(m)
	}
	return m
}

// New creates a BaseModel with a new id and CreatedAt == UpdatedAt, and
// registers it with store. A nil store yields a detached entity that can
// be converted to a record but not saved.
func New(store Store, opts ...Option) *BaseModel {
	m := newBase(store, opts...)
	m.id = m.newID()
	m.createdAt = stamp(m.now())
	m.updatedAt = m.createdAt
	if store != nil {
		store.New(m)
	}
	return m
}

// Reconstruct rebuilds a BaseModel from a record. The type tag is ignored,
// timestamps are parsed with TimeFormat and every other field becomes an
// attribute under its stored name, whatever the name. The entity is bound
// to store but not registered.
func Reconstruct(store Store, rec storage.Record) (*BaseModel, error) {
	m := newBase(store)
	if err := m.fromRecord(rec); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *BaseModel) fromRecord(rec storage.Record) error {
	id, ok := rec.Text(FieldID)
	if !ok || id == "" {
		return &storage.DeserializationError{Field: FieldID, Err: errors.New("missing or not a string")}
	}
	m.id = id

	var err error
	if m.createdAt, err = recordTime(rec, FieldCreatedAt); err != nil {
		return err
	}
	if m.updatedAt, err = recordTime(rec, FieldUpdatedAt); err != nil {
		return err
	}
	if m.updatedAt.Before(m.createdAt) {
		return &storage.DeserializationError{Field: FieldUpdatedAt, Err: errors.New("precedes created_at")}
	}

	for k, v := range rec {
		if reserved(k) {
			continue
		}
		m.attrs[k] = v
	}
	return nil
}

func recordTime(rec storage.Record, field string) (time.Time, error) {
	s, ok := rec.Text(field)
	if !ok {
		return time.Time{}, &storage.DeserializationError{Field: field, Err: errors.New("missing or not a string")}
	}
	t, err := ParseTime(s)
	if err != nil {
		return time.Time{}, &storage.DeserializationError{Field: field, Err: err}
	}
	return t, nil
}

func reserved(name string) bool {
	switch name {
	case storage.ClassField, FieldID, FieldCreatedAt, FieldUpdatedAt:
		return true
	}
	return false
}

func (m *BaseModel) base() *BaseModel { return m }

// Kind returns the type tag.
func (m *BaseModel) Kind() string { return KindBaseModel }

// ID returns the entity id.
func (m *BaseModel) ID() string { return m.id }

// CreatedAt returns the creation time.
func (m *BaseModel) CreatedAt() time.Time { return m.createdAt }

// UpdatedAt returns the time of the last save.
func (m *BaseModel) UpdatedAt() time.Time { return m.updatedAt }

// Get returns a user attribute.
func (m *BaseModel) Get(name string) (any, bool) {
	v, ok := m.attrs[name]
	return v, ok
}

// Set assigns a user attribute. The change is persisted by the next Save.
// Names must be identifiers and values must encode as JSON.
func (m *BaseModel) Set(name string, v any) error {
	if reserved(name) {
		return fmt.Errorf("%w: %q", ErrReservedAttribute, name)
	}
	if err := horosafe.ValidateIdentifier(name); err != nil {
		return fmt.Errorf("entity: attribute: %w", err)
	}
	if _, err := json.Marshal(v); err != nil {
		return fmt.Errorf("%w: %q: %w", ErrUnencodable, name, err)
	}
	m.attrs[name] = v
	return nil
}

// Attributes returns a copy of the user attributes.
func (m *BaseModel) Attributes() map[string]any {
	return maps.Clone(m.attrs)
}

// Save stamps UpdatedAt and flushes the whole store. UpdatedAt always
// moves forward, by one microsecond if the clock has not.
func (m *BaseModel) Save(ctx context.Context) error {
	if m.store == nil {
		return ErrDetached
	}
	t := stamp(m.now())
	if !t.After(m.updatedAt) {
		t = m.updatedAt.Add(time.Microsecond)
	}
	m.updatedAt = t
	return m.store.Save(ctx)
}

// ToRecord returns the record form: attributes, the fixed fields with
// timestamps in TimeFormat, and the type tag.
func (m *BaseModel) ToRecord() storage.Record {
	rec := make(storage.Record, len(m.attrs)+4)
	maps.Copy(rec, m.attrs)
	rec[FieldID] = m.id
	rec[FieldCreatedAt] = FormatTime(m.createdAt)
	rec[FieldUpdatedAt] = FormatTime(m.updatedAt)
	rec[storage.ClassField] = m.Kind()
	return rec
}

// String is a diagnostic form: "[BaseModel] (<id>) map[...]".
func (m *BaseModel) String() string {
	fields := maps.Clone(m.attrs)
	if fields == nil {
		fields = make(map[string]any)
	}
	fields[FieldID] = m.id
	fields[FieldCreatedAt] = m.createdAt
	fields[FieldUpdatedAt] = m.updatedAt
	return fmt.Sprintf("[%s] (%s) %v", m.Kind(), m.id, fields)
}
