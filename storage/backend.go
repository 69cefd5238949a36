package storage

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/hazyhaar/hbnb/horosafe"
)

// DefaultPath is the snapshot file used when no backend is configured.
const DefaultPath = "file.json"

// DefaultMaxBytes caps how much of a snapshot file Read will accept.
const DefaultMaxBytes int64 = 64 << 20

// Backend stores the snapshot document. Write replaces the whole document.
// Read returns an error wrapping ErrSnapshotMissing when nothing has been
// written yet. Version returns a token that changes whenever the stored
// document changes, for change detection.
type Backend interface {
	Read(ctx context.Context) ([]byte, error)
	Write(ctx context.Context, data []byte) error
	Version(ctx context.Context) (int64, error)
	String() string
}

// FileBackend keeps the snapshot in a single JSON file.
type FileBackend struct {
	Path string
	// MaxBytes bounds reads. Zero means DefaultMaxBytes, negative disables.
	MaxBytes int64
}

// NewFileBackend returns a FileBackend for path.
func NewFileBackend(path string) *FileBackend {
	return &FileBackend{Path: path}
}

func (b *FileBackend) String() string { return b.Path }

// Read returns the file contents.
func (b *FileBackend) Read(ctx context.Context) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f, err := os.Open(b.Path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrSnapshotMissing, b.Path)
	}
	if err != nil {
		return nil, fmt.Errorf("storage: open %s: %w", b.Path, err)
	}
	defer f.Close()

	limit := b.MaxBytes
	if limit == 0 {
		limit = DefaultMaxBytes
	}
	data, err := horosafe.ReadLimited(f, limit)
	if errors.Is(err, horosafe.ErrTooLarge) {
		return nil, fmt.Errorf("%w: %s: %w", ErrSnapshotCorrupt, b.Path, err)
	}
	if err != nil {
		return nil, fmt.Errorf("storage: read %s: %w", b.Path, err)
	}
	return data, nil
}

// Write replaces the file via a temp file and rename, so readers never
// observe a half-written snapshot.
func (b *FileBackend) Write(ctx context.Context, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if dir := filepath.Dir(b.Path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("storage: mkdir %s: %w", dir, err)
		}
	}

	tmp := b.Path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("storage: write tmp: %w", err)
	}
	if err := os.Rename(tmp, b.Path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("storage: rename: %w", err)
	}
	return nil
}

// Version returns the file modification time in nanoseconds, or 0 when
// the file does not exist.
func (b *FileBackend) Version(ctx context.Context) (int64, error) {
	fi, err := os.Stat(b.Path)
	if errors.Is(err, fs.ErrNotExist) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return fi.ModTime().UnixNano(), nil
}
