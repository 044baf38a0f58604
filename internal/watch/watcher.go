package watch

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/hupe1980/fieldexport/internal/diff"
	"github.com/hupe1980/fieldexport/internal/export"
)

// RunFunc is called each time the watcher triggers an export.
type RunFunc func(ctx context.Context) (*RunResult, error)

// RunResult holds the output of a single export so the watcher can report
// what changed since the previous run.
type RunResult struct {
	Rows       int
	OutputPath string
	Changes    diff.Summary
}

// Options configures the watch behaviour.
type Options struct {
	// LayerPath is the layer file to watch.
	LayerPath string

	// ExtraFiles are additional files to watch (e.g. the config file).
	ExtraFiles []string

	// Debounce is the quiet period before triggering an export.
	Debounce time.Duration

	// Logger is used for structured logging.
	Logger *slog.Logger

	// Out is the writer for user-facing status messages.
	Out io.Writer
}

// DefaultOptions returns sensible default watch options.
func DefaultOptions() Options {
	return Options{
		Debounce: 500 * time.Millisecond,
		Logger:   slog.Default(),
		Out:      os.Stderr,
	}
}

// Run starts the file watcher and blocks until the context is cancelled
// or a SIGINT/SIGTERM signal is received.
func Run(ctx context.Context, opts Options, runFn RunFunc) error {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	if opts.Out == nil {
		opts.Out = io.Discard
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating watcher: %w", err)
	}
	defer watcher.Close()

	targets, err := addFiles(watcher, append([]string{opts.LayerPath}, opts.ExtraFiles...))
	if err != nil {
		return err
	}

	// Trap SIGINT / SIGTERM for graceful shutdown.
	sigCtx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	fmt.Fprintf(opts.Out, "watching %s (debounce=%s)\n", opts.LayerPath, opts.Debounce)

	// Initial export.
	doRun(sigCtx, opts, runFn, "(initial)")

	debouncer := NewDebouncer(opts.Debounce, func(path string) {
		doRun(sigCtx, opts, runFn, filepath.Base(path))
	})
	defer debouncer.Stop()

	for {
		select {
		case <-sigCtx.Done():
			fmt.Fprintln(opts.Out, "\nshutting down watcher")
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}

			if !isRelevant(event, targets) {
				continue
			}

			opts.Logger.Debug("layer changed", slog.String("path", event.Name), slog.String("op", event.Op.String()))
			debouncer.Trigger(event.Name)

		case watchErr, ok := <-watcher.Errors:
			if !ok {
				return nil
			}

			opts.Logger.Error("watcher error", slog.String("error", watchErr.Error()))
		}
	}
}

// doRun executes a single export and prints the status line.
func doRun(ctx context.Context, opts Options, runFn RunFunc, trigger string) {
	now := time.Now().Format("15:04:05")

	result, err := runFn(ctx)
	if err != nil {
		if kind, ok := export.KindOf(err); ok {
			fmt.Fprintf(opts.Out, "[%s] %s → FAILED (%s)\n", now, trigger, kind)
			return
		}

		fmt.Fprintf(opts.Out, "[%s] %s → ERROR: %v\n", now, trigger, err)

		return
	}

	fmt.Fprintf(opts.Out, "[%s] %s → OK (%d plots written to %s)\n",
		now, trigger, result.Rows, result.OutputPath)

	if !result.Changes.Empty() {
		fmt.Fprintf(opts.Out, "  plots: %s\n", result.Changes)
	}
}

// addFiles watches the directories holding files and returns the absolute
// paths to react to. Directories are watched instead of the files so that
// editors replacing a file by rename keep being observed.
func addFiles(watcher *fsnotify.Watcher, files []string) (map[string]bool, error) {
	targets := make(map[string]bool, len(files))

	for _, f := range files {
		if f == "" {
			continue
		}

		abs, err := filepath.Abs(f)
		if err != nil {
			return nil, fmt.Errorf("resolving %q: %w", f, err)
		}

		info, err := os.Stat(abs)
		if err != nil {
			return nil, fmt.Errorf("watching file %q: %w", f, err)
		}

		if info.IsDir() {
			return nil, fmt.Errorf("watching file %q: is a directory", f)
		}

		if err := watcher.Add(filepath.Dir(abs)); err != nil {
			return nil, fmt.Errorf("watching directory of %q: %w", f, err)
		}

		targets[abs] = true
	}

	return targets, nil
}

// isRelevant reports whether event changes one of the watched files.
func isRelevant(event fsnotify.Event, targets map[string]bool) bool {
	if event.Op == 0 {
		return false
	}

	// Only care about write, create, remove, rename.
	if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) &&
		!event.Has(fsnotify.Remove) && !event.Has(fsnotify.Rename) {
		return false
	}

	abs, err := filepath.Abs(event.Name)
	if err != nil {
		return false
	}

	return targets[abs]
}
