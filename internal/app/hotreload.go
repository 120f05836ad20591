package app

import (
	"os"
	"path/filepath"
	"sync"
	"syscall"

	"github.com/fsnotify/fsnotify"
)

// HotReloader watches the running binary and triggers a callback when it is
// rebuilt, so a development session can restart into the new version.
type HotReloader struct {
	execPath    string
	watcher     *fsnotify.Watcher
	stopOnce    sync.Once
	stopCh      chan struct{}
	onNewBinary func() // Called when newer binary detected
}

// NewHotReloader creates a reloader for the current executable. Returns nil if
// the executable path cannot be determined or watched.
func NewHotReloader() *HotReloader {
	execPath, err := os.Executable()
	if err != nil {
		return nil
	}

	// go build replaces the file; resolve symlinks so the real directory is watched.
	if realPath, err := filepath.EvalSymlinks(execPath); err == nil {
		execPath = realPath
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil
	}
	if err := w.Add(filepath.Dir(execPath)); err != nil {
		w.Close()
		return nil
	}

	return &HotReloader{
		execPath: execPath,
		watcher:  w,
		stopCh:   make(chan struct{}),
	}
}

// OnNewBinary sets the callback to invoke when a newer binary is detected.
// The callback is called from a background goroutine.
func (h *HotReloader) OnNewBinary(callback func()) {
	h.onNewBinary = callback
}

// ExecPath returns the path to the current executable.
func (h *HotReloader) ExecPath() string {
	return h.execPath
}

// Start begins watching in a background goroutine.
func (h *HotReloader) Start() {
	go h.watchLoop()
}

// Stop stops the watcher goroutine.
func (h *HotReloader) Stop() {
	h.stopOnce.Do(func() {
		close(h.stopCh)
		h.watcher.Close()
	})
}

func (h *HotReloader) watchLoop() {
	for {
		select {
		case <-h.stopCh:
			return
		case ev, ok := <-h.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(ev.Name) != h.execPath {
				continue
			}
			if ev.Has(fsnotify.Write) || ev.Has(fsnotify.Create) {
				if h.onNewBinary != nil {
					h.onNewBinary()
				}
				// Only trigger once
				return
			}
		case _, ok := <-h.watcher.Errors:
			if !ok {
				return
			}
		}
	}
}

// Restart replaces the current process with a new instance of the binary.
// This function does not return on success.
func (h *HotReloader) Restart() error {
	return syscall.Exec(h.execPath, os.Args, os.Environ())
}
