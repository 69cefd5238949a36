// Command hbnb manages the persisted object store: an interactive console
// plus one-shot subcommands.
//
// Usage:
//
//	hbnb                               # interactive console on file.json
//	hbnb --config hbnb.yaml            # run with config file
//	hbnb --backend sqlite --snapshot hbnb.db dump
//	hbnb create BaseModel              # create, save, print id and exit
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/hazyhaar/hbnb/config"
	"github.com/hazyhaar/hbnb/entity"
	"github.com/hazyhaar/hbnb/storage"
	"github.com/hazyhaar/hbnb/watch"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := newRootCmd(os.Stdin, os.Stdout, os.Stderr).ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

// flags are shared by every subcommand.
type flags struct {
	configPath string
	snapshot   string
	backend    string
}

// app is the wired runtime: config, logger, backend and engine.
type app struct {
	cfg     *config.Config
	log     *slog.Logger
	backend storage.Backend
	eng     *storage.Engine
	close   func() error
}

func newRootCmd(in io.Reader, out, errOut io.Writer) *cobra.Command {
	var f flags
	root := &cobra.Command{
		Use:   "hbnb",
		Short: "Persisted object store with an interactive console",
		Long: `hbnb keeps every object in memory and persists them as one JSON
snapshot, either in a file or in a single-row SQLite table.

Run without arguments to start the interactive console.`,
		SilenceUsage: true,
		Args:         cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd.Context(), f, errOut, func(a *app) error {
				return a.runConsole(cmd.Context(), in, out)
			})
		},
	}
	root.SetIn(in)
	root.SetOut(out)
	root.SetErr(errOut)

	pf := root.PersistentFlags()
	pf.StringVar(&f.configPath, "config", "", "path to hbnb.yaml config file")
	pf.StringVar(&f.snapshot, "snapshot", "", "snapshot file or database (overrides config and "+config.EnvSnapshot+")")
	pf.StringVar(&f.backend, "backend", "", "snapshot backend: file or sqlite")

	root.AddCommand(
		&cobra.Command{
			Use:   "dump",
			Short: "Print every stored record as JSON",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return withApp(cmd.Context(), f, errOut, func(a *app) error {
					return a.dump(out)
				})
			},
		},
		&cobra.Command{
			Use:   "create <Kind>",
			Short: "Create and save an entity, then print its id",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return withApp(cmd.Context(), f, errOut, func(a *app) error {
					m, err := entity.Create(args[0], a.eng)
					if err != nil {
						return err
					}
					if err := m.Save(cmd.Context()); err != nil {
						return err
					}
					fmt.Fprintln(out, m.ID())
					return nil
				})
			},
		},
		&cobra.Command{
			Use:   "stats",
			Short: "Print engine counters after loading the snapshot",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return withApp(cmd.Context(), f, errOut, func(a *app) error {
					enc := json.NewEncoder(out)
					enc.SetIndent("", "  ")
					return enc.Encode(map[string]any{
						"backend": a.backend.String(),
						"kinds":   a.eng.Kinds(),
						"engine":  a.eng.Stats(),
					})
				})
			},
		},
	)
	return root
}

// openApp loads the configuration, applies the flags, installs the logger
// and reloads the engine from its backend.
func openApp(ctx context.Context, f flags, logOut io.Writer) (*app, error) {
	cfg, err := config.LoadConfig(f.configPath, config.WithBackend(f.backend))
	if err != nil {
		return nil, err
	}
	if f.snapshot != "" {
		cfg.SetSnapshot(f.snapshot)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	logger := slog.New(slog.NewJSONHandler(logOut, &slog.HandlerOptions{Level: cfg.Level()}))
	slog.SetDefault(logger)

	backend, closeFn, err := cfg.OpenBackend()
	if err != nil {
		return nil, err
	}
	eng := storage.NewEngine(entity.Registry(),
		storage.WithBackend(backend),
		storage.WithLogger(logger))
	if err := eng.Reload(ctx); err != nil {
		return nil, errors.Join(err, closeFn())
	}
	logger.Debug("hbnb: snapshot loaded", "backend", backend.String(), "objects", eng.Len())
	return &app{cfg: cfg, log: logger, backend: backend, eng: eng, close: closeFn}, nil
}

func (a *app) Close() error { return a.close() }

// withApp opens the app, runs fn and closes the app. A close failure is
// returned alongside fn's error.
func withApp(ctx context.Context, f flags, logOut io.Writer, fn func(*app) error) error {
	a, err := openApp(ctx, f, logOut)
	if err != nil {
		return err
	}
	return a.run(fn)
}

func (a *app) run(fn func(*app) error) (err error) {
	defer func() {
		err = errors.Join(err, a.Close())
	}()
	return fn(a)
}

// runConsole runs the console and, when enabled, the snapshot watcher
// until the console exits or ctx is cancelled.
func (a *app) runConsole(ctx context.Context, in io.Reader, out io.Writer) error {
	g, gctx := errgroup.WithContext(ctx)
	watchCtx, stopWatch := context.WithCancel(gctx)
	defer stopWatch()

	c := newConsole(a.eng, out)
	if a.cfg.Watch.Enabled {
		w := a.watcher(watchCtx)
		c.afterSave = func(ctx context.Context) {
			if err := w.Sync(ctx); err != nil {
				a.log.Warn("hbnb: watch sync failed", "error", err)
			}
		}
		g.Go(func() error {
			w.OnChange(watchCtx, a.eng.Reload)
			return nil
		})
	}
	g.Go(func() error {
		defer stopWatch()
		return c.run(gctx, in)
	})
	return g.Wait()
}

func (a *app) watcher(ctx context.Context) *watch.Watcher {
	opts := watch.Options{
		Interval: a.cfg.Watch.Interval,
		Debounce: a.cfg.Watch.Debounce,
		Logger:   a.log,
	}
	if fb, ok := a.backend.(*storage.FileBackend); ok {
		wake, err := watch.Notify(ctx, fb.Path, a.log)
		if err != nil {
			// Polling alone still works.
			a.log.Warn("hbnb: file notifications unavailable", "error", err)
		} else {
			opts.Wake = wake
		}
	}
	return watch.New(a.backend.Version, opts)
}

// dump writes every record keyed as in the snapshot.
func (a *app) dump(out io.Writer) error {
	records := make(map[string]storage.Record, a.eng.Len())
	for key, obj := range a.eng.All() {
		records[key] = obj.ToRecord()
	}
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(records)
}
