package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite" // registers "sqlite" driver

	"github.com/hazyhaar/hbnb/dbopen"
)

const snapshotSchema = `
CREATE TABLE IF NOT EXISTS snapshot (
    id        INTEGER PRIMARY KEY CHECK (id = 1),
    document  TEXT NOT NULL,
    saved_at  TEXT NOT NULL
);`

// SQLiteBackend keeps the snapshot document in a single-row SQLite table.
// The document is the same JSON a FileBackend would write; SQLite only
// adds transactional replacement and cross-process change detection.
type SQLiteBackend struct {
	db   *sql.DB
	name string
	own  bool
}

// OpenSQLiteBackend opens (or creates) the database at path.
func OpenSQLiteBackend(path string) (*SQLiteBackend, error) {
	db, err := dbopen.Open(path, dbopen.WithMkdirAll(), dbopen.WithSchema(snapshotSchema))
	if err != nil {
		return nil, fmt.Errorf("storage: open sqlite backend: %w", err)
	}
	// PRAGMA data_version is per connection; one connection keeps Version stable.
	db.SetMaxOpenConns(1)
	return &SQLiteBackend{db: db, name: path, own: true}, nil
}

// NewSQLiteBackend uses an already opened database. The caller keeps
// ownership: Close does not close db.
func NewSQLiteBackend(ctx context.Context, db *sql.DB) (*SQLiteBackend, error) {
	if _, err := dbopen.Exec(ctx, db, snapshotSchema); err != nil {
		return nil, fmt.Errorf("storage: migrate sqlite backend: %w", err)
	}
	return &SQLiteBackend{db: db, name: "sqlite"}, nil
}

func (b *SQLiteBackend) String() string { return "sqlite:" + b.name }

// DB returns the underlying database.
func (b *SQLiteBackend) DB() *sql.DB { return b.db }

// Close closes the database if the backend opened it.
func (b *SQLiteBackend) Close() error {
	if !b.own {
		return nil
	}
	return b.db.Close()
}

// Read returns the stored document.
func (b *SQLiteBackend) Read(ctx context.Context) ([]byte, error) {
	var doc string
	err := b.db.QueryRowContext(ctx, `SELECT document FROM snapshot WHERE id = 1`).Scan(&doc)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrSnapshotMissing, b)
	}
	if err != nil {
		return nil, fmt.Errorf("storage: read %s: %w", b, err)
	}
	return []byte(doc), nil
}

// Write replaces the stored document in one transaction.
func (b *SQLiteBackend) Write(ctx context.Context, data []byte) error {
	savedAt := time.Now().UTC().Format(time.RFC3339Nano)
	return dbopen.RunTx(ctx, b.db, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO snapshot (id, document, saved_at) VALUES (1, ?, ?)
			ON CONFLICT(id) DO UPDATE SET document = excluded.document, saved_at = excluded.saved_at`,
			string(data), savedAt)
		return err
	})
}

// Version returns PRAGMA data_version, which moves when another
// connection commits to the same database file.
func (b *SQLiteBackend) Version(ctx context.Context) (int64, error) {
	var v int64
	err := b.db.QueryRowContext(ctx, "PRAGMA data_version").Scan(&v)
	return v, err
}
