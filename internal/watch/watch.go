// Package watch re-renders a layer whenever one of its local input files
// changes.
package watch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultDebounce is the quiet period after the last change to a file
// before a render starts.
const DefaultDebounce = 300 * time.Millisecond

// ErrNothingToWatch is returned when no input file is local.
var ErrNothingToWatch = errors.New("no local input files to watch")

type Config struct {
	Paths    []string // input files
	Debounce time.Duration
	Render   RenderFunc
	Logger   *slog.Logger
}

// Run renders once, then again after every debounced change to one of the
// input files, until ctx is canceled. Render errors are logged and do not
// stop the watch.
func Run(ctx context.Context, cfg Config) error {
	if cfg.Render == nil {
		return fmt.Errorf("watch: no render function")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	delay := cfg.Debounce
	if delay <= 0 {
		delay = DefaultDebounce
	}

	targets, dirs, err := resolve(cfg.Paths)
	if err != nil {
		return err
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating watcher: %w", err)
	}
	defer w.Close()

	for _, dir := range dirs {
		if err := w.Add(dir); err != nil {
			return fmt.Errorf("watching %s: %w", dir, err)
		}
		logger.Info("watching", "dir", dir)
	}

	r := newRunner(ctx, cfg.Render, logger)
	db := newDebouncer(delay, func(path string) {
		r.trigger(filepath.Base(path))
	})

	r.trigger("initial")
	eventLoop(ctx, w, db, targets, logger)

	db.stop()
	r.stop()
	logger.Info("watch stopped")
	return nil
}

// resolve makes the input paths absolute and returns them along with the
// distinct directories holding them.
func resolve(paths []string) (map[string]bool, []string, error) {
	targets := make(map[string]bool, len(paths))
	var dirs []string
	seen := make(map[string]bool)
	for _, p := range paths {
		abs, err := filepath.Abs(p)
		if err != nil {
			return nil, nil, fmt.Errorf("resolving %s: %w", p, err)
		}
		targets[abs] = true
		dir := filepath.Dir(abs)
		if !seen[dir] {
			seen[dir] = true
			dirs = append(dirs, dir)
		}
	}
	if len(targets) == 0 {
		return nil, nil, ErrNothingToWatch
	}
	return targets, dirs, nil
}

func eventLoop(ctx context.Context, w *fsnotify.Watcher, db *debouncer, targets map[string]bool, logger *slog.Logger) {
	for {
		select {
		case <-ctx.Done():
			return

		case ev, ok := <-w.Events:
			if !ok {
				return
			}
			name, err := filepath.Abs(ev.Name)
			if err != nil || !targets[name] {
				continue
			}
			if ev.Has(fsnotify.Remove) {
				logger.Warn("input removed", "path", name)
				continue
			}
			// An atomic replace renames the old file away; the new one
			// arrives as a Create on the same name.
			if ev.Has(fsnotify.Rename) {
				if _, err := os.Stat(name); err != nil {
					continue
				}
			}
			if ev.Has(fsnotify.Chmod) && !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) {
				continue
			}
			logger.Debug("input changed", "path", name, "op", ev.Op.String())
			db.trigger(name)

		case err, ok := <-w.Errors:
			if !ok {
				return
			}
			logger.Error("watcher error", "error", err)
		}
	}
}
