package catalog

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

const reloadDebounce = 300 * time.Millisecond

// Watcher reloads a markets file into a Store whenever it changes on disk.
// A file that fails to parse leaves the previous snapshot in place.
type Watcher struct {
	path     string
	store    *Store
	logger   *slog.Logger
	onReload func()
}

// NewWatcher creates a Watcher for path. onReload, if non-nil, runs after
// every successful reload.
func NewWatcher(path string, store *Store, logger *slog.Logger, onReload func()) *Watcher {
	return &Watcher{
		path:     path,
		store:    store,
		logger:   logger.With(slog.String("component", "catalog_watcher")),
		onReload: onReload,
	}
}

// Run watches until ctx is cancelled. The parent directory is watched so
// editors that replace the file via rename are picked up.
func (w *Watcher) Run(ctx context.Context) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("catalog: watch init: %w", err)
	}
	defer fw.Close()

	if err := fw.Add(filepath.Dir(w.path)); err != nil {
		return fmt.Errorf("catalog: watch %s: %w", w.path, err)
	}
	target := filepath.Clean(w.path)

	var timer *time.Timer
	reload := make(chan struct{}, 1)
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != target {
				continue
			}
			if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Rename) {
				continue
			}
			if timer != nil {
				timer.Stop()
			}
			timer = time.AfterFunc(reloadDebounce, func() {
				select {
				case reload <- struct{}{}:
				default:
				}
			})
		case <-reload:
			w.Reload()
		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("watch error", slog.String("error", err.Error()))
		}
	}
}

// Reload parses the file once and installs it on success.
func (w *Watcher) Reload() bool {
	m, err := LoadMarkets(w.path)
	if err != nil {
		w.logger.Error("markets reload failed, keeping previous catalog",
			slog.String("path", w.path),
			slog.String("error", err.Error()),
		)
		return false
	}
	w.store.Replace(m)
	w.logger.Info("markets reloaded",
		slog.String("path", w.path),
		slog.Int("exchanges", len(m.Exchanges)),
		slog.Int("environments", len(m.Environments)),
	)
	if w.onReload != nil {
		w.onReload()
	}
	return true
}
