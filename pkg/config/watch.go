package config

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Watcher observes the configuration file for changes and delivers reloaded
// configurations through a callback. Rapid successive writes (editors often
// write a file several times) are debounced into a single reload.
//
// A reload that fails to parse or validate is logged and dropped; the
// previous configuration stays in effect.
type Watcher struct {
	path     string
	debounce time.Duration
	logger   *slog.Logger

	watcher *fsnotify.Watcher

	mu      sync.Mutex
	running bool
	timer   *time.Timer
}

// DefaultDebounceInterval is the delay applied before reloading after a
// change is detected.
const DefaultDebounceInterval = 250 * time.Millisecond

// NewWatcher creates a watcher for the configuration file at path.
// If debounce is 0, DefaultDebounceInterval is used.
func NewWatcher(path string, debounce time.Duration, logger *slog.Logger) (*Watcher, error) {
	if debounce <= 0 {
		debounce = DefaultDebounceInterval
	}
	if logger == nil {
		logger = slog.Default()
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create fsnotify watcher: %w", err)
	}

	return &Watcher{
		path:     path,
		debounce: debounce,
		logger:   logger.With("component", "config.watcher"),
		watcher:  fw,
	}, nil
}

// Watch blocks processing file events until the context is cancelled.
// onReload is invoked with each successfully reloaded configuration.
func (w *Watcher) Watch(ctx context.Context, onReload func(*Config)) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return fmt.Errorf("watcher already running")
	}
	w.running = true
	w.mu.Unlock()

	// Watch the directory rather than the file itself: editors replace
	// files by rename, which drops a direct file watch.
	dir := filepath.Dir(w.path)
	if err := w.watcher.Add(dir); err != nil {
		return fmt.Errorf("failed to watch %q: %w", dir, err)
	}

	w.logger.Info("config watcher started",
		"path", w.path,
		"debounce_ms", w.debounce.Milliseconds(),
	)

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("config watcher stopped")
			return w.watcher.Close()

		case event, ok := <-w.watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != filepath.Clean(w.path) {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			w.scheduleReload(onReload)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("config watcher error", "error", err)
		}
	}
}

// scheduleReload arms the debounce timer, replacing any pending reload.
func (w *Watcher) scheduleReload(onReload func(*Config)) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.timer != nil {
		w.timer.Stop()
	}

	w.timer = time.AfterFunc(w.debounce, func() {
		cfg, err := LoadConfig(w.path)
		if err != nil {
			w.logger.Warn("config reload failed, keeping previous configuration",
				"path", w.path,
				"error", err,
			)
			return
		}

		w.logger.Info("configuration reloaded", "path", w.path)
		onReload(cfg)
	})
}
