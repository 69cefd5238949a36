// Package watch runs a "poll a version token, debounce, reload" loop. It
// keeps an engine in step with a snapshot that another process rewrites.
//
// Typical usage:
//
//	w := watch.New(eng.Backend().Version, watch.Options{Interval: time.Second})
//	go w.OnChange(ctx, eng.Reload)
package watch

import (
	"context"
	"database/sql"
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"sync"
	"sync/atomic"
	"time"
)

// Detector reads a version token. Two calls that return different values
// mean "something changed".
type Detector func(ctx context.Context) (int64, error)

// Action is run after a change settles. Returning an error keeps the old
// version so the action is retried on the next poll.
type Action func(ctx context.Context) error

// Options tunes the watcher behaviour.
type Options struct {
	// Interval is the polling frequency. Default: 1s.
	Interval time.Duration
	// Debounce is the quiet period after a change before the action fires.
	// Further changes inside the window restart it. 0 fires immediately.
	Debounce time.Duration
	// Wake, when set, triggers an immediate check on each receive, on top
	// of the polling ticker. See Notify.
	Wake <-chan struct{}
	// Logger overrides the default slog logger.
	Logger *slog.Logger
}

func (o *Options) defaults() {
	if o.Interval <= 0 {
		o.Interval = time.Second
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
}

// Watcher polls a Detector and runs an action when the token changes. It
// is safe for concurrent use.
type Watcher struct {
	detect Detector
	opts   Options

	version atomic.Int64

	// versionMu + versionCond broadcast when the version advances,
	// enabling WaitForVersion.
	versionMu   sync.Mutex
	versionCond *sync.Cond

	checks   atomic.Int64
	changes  atomic.Int64
	errors   atomic.Int64
	reloads  atomic.Int64
	reloadNs atomic.Int64
}

// Stats are point-in-time counters.
type Stats struct {
	Checks          int64         `json:"checks"`
	ChangesDetected int64         `json:"changes_detected"`
	Errors          int64         `json:"errors"`
	Reloads         int64         `json:"reloads"`
	AvgReloadTime   time.Duration `json:"avg_reload_time"`
}

// New creates a Watcher. Call OnChange to start the loop.
func New(detect Detector, opts Options) *Watcher {
	opts.defaults()
	w := &Watcher{detect: detect, opts: opts}
	w.versionCond = sync.NewCond(&w.versionMu)
	return w
}

// Stats returns the current counters.
func (w *Watcher) Stats() Stats {
	s := Stats{
		Checks:          w.checks.Load(),
		ChangesDetected: w.changes.Load(),
		Errors:          w.errors.Load(),
		Reloads:         w.reloads.Load(),
	}
	if s.Reloads > 0 {
		s.AvgReloadTime = time.Duration(w.reloadNs.Load() / s.Reloads)
	}
	return s
}

// Version returns the last version whose action succeeded.
func (w *Watcher) Version() int64 { return w.version.Load() }

// Sync records the detector's current token without running the action.
// Call it after writing the snapshot yourself to avoid reloading your own
// write.
func (w *Watcher) Sync(ctx context.Context) error {
	v, err := w.detect(ctx)
	if err != nil {
		return err
	}
	w.setVersion(v)
	return nil
}

// OnChange blocks until ctx is cancelled, polling at opts.Interval and
// running action once each change has been quiet for opts.Debounce.
func (w *Watcher) OnChange(ctx context.Context, action Action) {
	log := w.opts.Logger

	if err := w.Sync(ctx); err != nil {
		log.Warn("watch: initial version check failed", "error", err)
	}

	ticker := time.NewTicker(w.opts.Interval)
	defer ticker.Stop()

	var debounceTimer *time.Timer
	var debounceCh <-chan time.Time
	pendingVersion := int64(-1)
	pending := false

	check := func() {
		w.checks.Add(1)
		cur, err := w.detect(ctx)
		if err != nil {
			w.errors.Add(1)
			log.Warn("watch: version check failed", "error", err)
			return
		}
		if cur == w.version.Load() || (pending && cur == pendingVersion) {
			return
		}
		w.changes.Add(1)
		pendingVersion, pending = cur, true

		if w.opts.Debounce <= 0 {
			w.fire(ctx, log, action, pendingVersion)
			pending = false
			return
		}
		// Restart the window only when the pending version moved.
		if debounceTimer != nil {
			debounceTimer.Stop()
		}
		debounceTimer = time.NewTimer(w.opts.Debounce)
		debounceCh = debounceTimer.C
		log.Debug("watch: change detected, debouncing", "pending_version", cur)
	}

	log.Info("watch: started", "interval", w.opts.Interval, "debounce", w.opts.Debounce)

	for {
		select {
		case <-ctx.Done():
			log.Info("watch: stopped")
			if debounceTimer != nil {
				debounceTimer.Stop()
			}
			return

		case <-ticker.C:
			check()

		case <-w.opts.Wake:
			check()

		case <-debounceCh:
			debounceCh = nil
			if pending {
				w.fire(ctx, log, action, pendingVersion)
				pending = false
			}
		}
	}
}

// WaitForVersion blocks until the watcher has processed a version >=
// target, or ctx expires.
func (w *Watcher) WaitForVersion(ctx context.Context, target int64) error {
	if w.version.Load() >= target {
		return nil
	}

	done := ctx.Done()
	w.versionMu.Lock()
	defer w.versionMu.Unlock()

	for w.version.Load() < target {
		// Wake the cond wait when ctx is cancelled.
		ch := make(chan struct{})
		go func() {
			select {
			case <-done:
				w.versionCond.Broadcast()
			case <-ch:
			}
		}()

		w.versionCond.Wait()
		close(ch)

		if ctx.Err() != nil {
			return ctx.Err()
		}
	}
	return nil
}

func (w *Watcher) fire(ctx context.Context, log *slog.Logger, action Action, ver int64) {
	log.Info("watch: reloading", "old_version", w.version.Load(), "new_version", ver)
	start := time.Now()
	if err := action(ctx); err != nil {
		w.errors.Add(1)
		log.Error("watch: reload failed", "error", err, "version", ver)
		return
	}
	elapsed := time.Since(start)
	w.reloads.Add(1)
	w.reloadNs.Add(int64(elapsed))
	w.setVersion(ver)
	log.Info("watch: reload complete", "version", ver, "duration", elapsed)
}

func (w *Watcher) setVersion(v int64) {
	w.versionMu.Lock()
	w.version.Store(v)
	w.versionMu.Unlock()
	w.versionCond.Broadcast()
}

// ---------- Built-in detectors ----------

// FileModTime reports the modification time of path in nanoseconds, or 0
// while the file does not exist.
func FileModTime(path string) Detector {
	return func(ctx context.Context) (int64, error) {
		fi, err := os.Stat(path)
		if errors.Is(err, fs.ErrNotExist) {
			return 0, nil
		}
		if err != nil {
			return 0, err
		}
		return fi.ModTime().UnixNano(), nil
	}
}

// PragmaDataVersion uses PRAGMA data_version, which increments whenever
// another connection writes to the same database file.
func PragmaDataVersion(db *sql.DB) Detector {
	return pragma(db, "PRAGMA data_version")
}

// PragmaUserVersion uses PRAGMA user_version, an application-controlled
// integer. Callers bump it explicitly after writes.
func PragmaUserVersion(db *sql.DB) Detector {
	return pragma(db, "PRAGMA user_version")
}

func pragma(db *sql.DB, query string) Detector {
	return func(ctx context.Context) (int64, error) {
		var v int64
		err := db.QueryRowContext(ctx, query).Scan(&v)
		return v, err
	}
}
