package catalog

import (
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Reloader watches a JSON catalog file and swaps it into a MemoryStore whenever
// it changes on disk.
type Reloader struct {
	path     string
	store    *MemoryStore
	debounce time.Duration
	logger   *slog.Logger

	watcher  *fsnotify.Watcher
	stopCh   chan struct{}
	stopOnce sync.Once
	onReload func(n int, err error)
}

// NewReloader creates a reloader for path. The file's directory is watched so
// editors that replace the file atomically are handled.
func NewReloader(path string, store *MemoryStore, logger *slog.Logger) (*Reloader, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create watcher: %w", err)
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		w.Close()
		return nil, fmt.Errorf("failed to resolve catalog path: %w", err)
	}
	if err := w.Add(filepath.Dir(abs)); err != nil {
		w.Close()
		return nil, fmt.Errorf("failed to watch %s: %w", filepath.Dir(abs), err)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Reloader{
		path:     abs,
		store:    store,
		debounce: 200 * time.Millisecond,
		logger:   logger.With("component", "catalog", "path", abs),
		watcher:  w,
		stopCh:   make(chan struct{}),
	}, nil
}

// OnReload sets a callback invoked after every reload attempt, from the watcher
// goroutine.
func (r *Reloader) OnReload(fn func(n int, err error)) {
	r.onReload = fn
}

// Start begins watching in a background goroutine.
func (r *Reloader) Start() {
	go r.watchLoop()
}

// Stop stops the watcher goroutine and releases the watcher.
func (r *Reloader) Stop() error {
	var err error
	r.stopOnce.Do(func() {
		close(r.stopCh)
		err = r.watcher.Close()
	})
	return err
}

func (r *Reloader) watchLoop() {
	var timer *time.Timer
	var fire <-chan time.Time

	for {
		select {
		case <-r.stopCh:
			if timer != nil {
				timer.Stop()
			}
			return
		case ev, ok := <-r.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(ev.Name) != r.path {
				continue
			}
			if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Rename) {
				continue
			}
			// Editors emit several events per save.
			if timer == nil {
				timer = time.NewTimer(r.debounce)
			} else {
				timer.Reset(r.debounce)
			}
			fire = timer.C
		case err, ok := <-r.watcher.Errors:
			if !ok {
				return
			}
			r.logger.Warn("watch error", "error", err)
		case <-fire:
			fire = nil
			r.reload()
		}
	}
}

// reload keeps the previous catalog when the new file does not parse.
func (r *Reloader) reload() {
	cards, err := LoadFile(r.path)
	if err != nil {
		r.logger.Warn("catalog reload failed, keeping previous catalog", "error", err)
	} else {
		r.store.Replace(cards)
		r.logger.Info("catalog reloaded", "cards", len(cards))
	}
	if r.onReload != nil {
		r.onReload(len(cards), err)
	}
}
