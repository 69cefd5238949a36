package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"maps"
	"slices"
	"sync"
	"sync/atomic"
	"time"
)

// Engine owns the table of live entities and its snapshot. Entities hold a
// reference to the engine to register and persist themselves; they never
// reach into the table.
//
// The table is guarded by a mutex so a background reload (see package
// watch) can run alongside the console. Concurrent writers in separate
// processes are not coordinated.
type Engine struct {
	mu       sync.RWMutex
	objects  map[string]Object
	registry Registry
	backend  Backend
	log      *slog.Logger

	saves    atomic.Int64
	loads    atomic.Int64
	skipped  atomic.Int64
	lastSave atomic.Int64 // unix nanos
}

// Option configures an Engine.
type Option func(*Engine)

// WithBackend sets where snapshots are stored.
func WithBackend(b Backend) Option {
	return func(e *Engine) { e.backend = b }
}

// WithPath stores snapshots in the JSON file at path.
func WithPath(path string) Option {
	return func(e *Engine) { e.backend = NewFileBackend(path) }
}

// WithLogger overrides the default slog logger.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) { e.log = l }
}

// NewEngine returns an engine with an empty table. The registry is copied;
// later changes to reg do not affect the engine. Without WithBackend or
// WithPath the snapshot lives in DefaultPath.
func NewEngine(reg Registry, opts ...Option) *Engine {
	e := &Engine{
		objects:  make(map[string]Object),
		registry: maps.Clone(reg),
		backend:  NewFileBackend(DefaultPath),
		log:      slog.Default(),
	}
	if e.registry == nil {
		e.registry = Registry{}
	}
	for _, o := range opts {
		o(e)
	}
	return e
}

// Backend returns the snapshot backend.
func (e *Engine) Backend() Backend { return e.backend }

// Kinds returns the type tags the engine can reload.
func (e *Engine) Kinds() []string { return e.registry.Kinds() }

// All returns every live entity keyed by "{Kind}.{ID}". The map is a copy;
// the entities are not.
func (e *Engine) All() map[string]Object {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return maps.Clone(e.objects)
}

// Get returns the entity stored under key.
func (e *Engine) Get(key string) (Object, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	obj, ok := e.objects[key]
	return obj, ok
}

// Len returns the number of live entities.
func (e *Engine) Len() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.objects)
}

// New registers obj under its key. Registering the same key again
// replaces the previous entity.
func (e *Engine) New(obj Object) {
	key := Key(obj)
	e.mu.Lock()
	e.objects[key] = obj
	e.mu.Unlock()
}

// Save writes every live entity to the backend as one document, replacing
// whatever was stored before. Entities present in the old snapshot but not
// in the table are dropped.
func (e *Engine) Save(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	doc := make(map[string]Record, len(e.objects))
	for key, obj := range e.objects {
		doc[key] = obj.ToRecord()
	}
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("storage: save: encode: %w", err)
	}
	if err := e.backend.Write(ctx, data); err != nil {
		return fmt.Errorf("storage: save: %w", err)
	}

	e.saves.Add(1)
	e.lastSave.Store(time.Now().UnixNano())
	e.log.Debug("storage: snapshot saved", "snapshot", e.backend.String(), "objects", len(doc), "bytes", len(data))
	return nil
}

// Load reads the snapshot and merges its entities into the table, keyed by
// the stored keys. Records whose tag has no factory are skipped.
//
// Load is all-or-nothing: if the document is malformed or any record fails
// to rebuild, the table is left as it was and the error wraps
// ErrSnapshotCorrupt. A missing snapshot yields ErrSnapshotMissing; an
// empty one is not an error.
func (e *Engine) Load(ctx context.Context) error {
	data, err := e.backend.Read(ctx)
	if err != nil {
		return err
	}
	if len(bytes.TrimSpace(data)) == 0 {
		e.log.Debug("storage: snapshot empty", "snapshot", e.backend.String())
		return nil
	}

	doc, err := decodeDocument(data)
	if err != nil {
		return fmt.Errorf("%w: %s: %w", ErrSnapshotCorrupt, e.backend, err)
	}

	staged := make(map[string]Object, len(doc))
	var skipped int64
	for _, key := range slices.Sorted(maps.Keys(doc)) {
		rec := doc[key]
		kind := rec.Kind()
		if kind == "" {
			return fmt.Errorf("%w: %w", ErrSnapshotCorrupt,
				&DeserializationError{Key: key, Field: ClassField, Err: errors.New("missing type tag")})
		}
		factory, ok := e.registry[kind]
		if !ok {
			skipped++
			e.log.Debug("storage: skipping record of unknown kind", "key", key, "kind", kind)
			continue
		}
		obj, err := factory(e, rec)
		if err != nil {
			return fmt.Errorf("%w: %w", ErrSnapshotCorrupt, withKey(err, key))
		}
		staged[key] = obj
	}

	e.mu.Lock()
	maps.Copy(e.objects, staged)
	e.mu.Unlock()

	e.loads.Add(1)
	e.skipped.Add(skipped)
	e.log.Debug("storage: snapshot loaded", "snapshot", e.backend.String(), "objects", len(staged), "skipped", skipped)
	return nil
}

// Reload is Load with the recoverable failures absorbed: a missing or
// corrupt snapshot is logged and the table keeps its current state. Other
// errors, such as a permission failure, are returned.
func (e *Engine) Reload(ctx context.Context) error {
	err := e.Load(ctx)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, ErrSnapshotMissing):
		e.log.Info("storage: no snapshot to reload", "snapshot", e.backend.String())
		return nil
	case errors.Is(err, ErrSnapshotCorrupt):
		e.log.Warn("storage: snapshot unreadable, keeping current state", "snapshot", e.backend.String(), "error", err)
		return nil
	}
	return err
}

// Stats are point-in-time counters.
type Stats struct {
	Objects  int       `json:"objects"`
	Saves    int64     `json:"saves"`
	Loads    int64     `json:"loads"`
	Skipped  int64     `json:"skipped_unknown"`
	LastSave time.Time `json:"last_save"`
}

// Stats returns the current counters.
func (e *Engine) Stats() Stats {
	s := Stats{
		Objects: e.Len(),
		Saves:   e.saves.Load(),
		Loads:   e.loads.Load(),
		Skipped: e.skipped.Load(),
	}
	if ns := e.lastSave.Load(); ns > 0 {
		s.LastSave = time.Unix(0, ns)
	}
	return s
}

// decodeDocument parses a whole snapshot. Numbers are kept as json.Number
// so integer attributes survive a reload unchanged.
func decodeDocument(data []byte) (map[string]Record, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var doc map[string]Record
	if err := dec.Decode(&doc); err != nil {
		return nil, err
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return nil, errors.New("trailing data after snapshot document")
	}
	return doc, nil
}

func withKey(err error, key string) error {
	var de *DeserializationError
	if errors.As(err, &de) {
		if de.Key == "" {
			de.Key = key
		}
		return err
	}
	return &DeserializationError{Key: key, Err: err}
}
