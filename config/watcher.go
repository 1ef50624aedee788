package config

import (
	"context"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// watchDebounce is how long the watcher waits for more filesystem events
// before re-resolving the config. Editors and the atomic writer both emit
// bursts of events per save.
const watchDebounce = 500 * time.Millisecond

// Watcher watches the config file's directory and invokes a callback with
// the freshly resolved config after each change settles. The directory, not
// the file, is watched: atomic rename-over replaces the inode.
type Watcher struct {
	path     string
	watcher  *fsnotify.Watcher
	logger   *slog.Logger
	onChange func(*Resolved)
}

// NewWatcher creates a watcher for the config file at path. onChange is
// invoked from the watcher goroutine; it must not block for long.
func NewWatcher(path string, logger *slog.Logger, onChange func(*Resolved)) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Watcher{
		path:     path,
		watcher:  fsw,
		logger:   logger,
		onChange: onChange,
	}, nil
}

// Start begins watching. It returns an error if the config directory does
// not exist; a default-source config has no directory to watch yet, which
// callers treat as watching disabled.
func (w *Watcher) Start(ctx context.Context) error {
	dir := filepath.Dir(w.path)
	if err := w.watcher.Add(dir); err != nil {
		return err
	}

	go w.run(ctx)

	w.logger.Info("config watcher started", "path", w.path, "debounce", watchDebounce)
	return nil
}

// Stop closes the underlying filesystem watcher.
func (w *Watcher) Stop() error {
	return w.watcher.Close()
}

func (w *Watcher) run(ctx context.Context) {
	var timer *time.Timer
	var timerC <-chan time.Time

	base := filepath.Base(w.path)

	for {
		select {
		case <-ctx.Done():
			return

		case ev, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			// Temp files from the atomic writer share the config file's
			// base name prefix; the rename target is what matters.
			if filepath.Base(ev.Name) != base {
				continue
			}
			if ev.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Rename) == 0 {
				continue
			}
			w.logger.Debug("config change detected", "op", ev.Op.String())
			if timer == nil {
				timer = time.NewTimer(watchDebounce)
				timerC = timer.C
			} else {
				if !timer.Stop() {
					select {
					case <-timer.C:
					default:
					}
				}
				timer.Reset(watchDebounce)
			}

		case <-timerC:
			timer = nil
			timerC = nil
			resolved, err := Resolve(w.path)
			if err != nil {
				w.logger.Warn("config reload failed, keeping previous", "path", w.path, "error", err)
				continue
			}
			w.logger.Info("config reloaded", "path", w.path, "source", resolved.Source)
			w.onChange(resolved)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Warn("config watcher error", "error", err)
		}
	}
}
