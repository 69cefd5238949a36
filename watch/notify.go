package watch

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
)

// Notify watches the directory holding path and signals on the returned
// channel whenever path is created, written, renamed or removed. Pass the
// channel as Options.Wake so file writes are picked up before the next
// poll. The directory is watched rather than the file because an atomic
// rename replaces the inode. The goroutine and the OS watcher are released
// when ctx is done.
func Notify(ctx context.Context, path string, logger *slog.Logger) (<-chan struct{}, error) {
	if logger == nil {
		logger = slog.Default()
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("watch: notify %s: %w", path, err)
	}
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("watch: notify: %w", err)
	}
	if err := fw.Add(filepath.Dir(abs)); err != nil {
		fw.Close()
		return nil, fmt.Errorf("watch: notify %s: %w", path, err)
	}

	wake := make(chan struct{}, 1)
	go func() {
		defer fw.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-fw.Events:
				if !ok {
					return
				}
				if filepath.Clean(ev.Name) != abs || ev.Op == fsnotify.Chmod {
					continue
				}
				select {
				case wake <- struct{}{}:
				default: // a wake-up is already pending
				}
			case err, ok := <-fw.Errors:
				if !ok {
					return
				}
				logger.Warn("watch: notify error", "path", abs, "error", err)
			}
		}
	}()
	return wake, nil
}
