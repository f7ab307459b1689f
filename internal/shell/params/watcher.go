package params

import (
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/VIDIPKUMAR/DefectDetectAI/internal/core/detect"
)

// debounce coalesces the burst of write events editors emit on save.
const debounce = 500 * time.Millisecond

// Watcher watches the params file and reports validated reloads.
type Watcher struct {
	path     string
	onReload func(detect.Params, error)
	logger   *slog.Logger

	fw      *fsnotify.Watcher
	done    chan struct{}
	mu      sync.RWMutex
	current detect.Params
	reloads atomic.Uint32
}

// NewWatcher loads the params file and starts watching it for changes.
// onReload is called after every change: with the new parameters when the
// file is valid, or with an error when it is not (the previous parameters
// stay in effect).
func NewWatcher(path string, logger *slog.Logger, onReload func(detect.Params, error)) (*Watcher, error) {
	initial, err := Load(path)
	if err != nil {
		return nil, fmt.Errorf("params: initial load: %w", err)
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("params: create watcher: %w", err)
	}
	if err := fw.Add(path); err != nil {
		fw.Close()
		return nil, fmt.Errorf("params: watch %s: %w", path, err)
	}

	w := &Watcher{
		path:     path,
		onReload: onReload,
		logger:   logger,
		fw:       fw,
		done:     make(chan struct{}),
		current:  initial,
	}

	go w.watch()
	return w, nil
}

// Current returns the last successfully loaded parameters.
func (w *Watcher) Current() detect.Params {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.current
}

// ReloadCount returns the number of reload attempts so far.
func (w *Watcher) ReloadCount() uint32 {
	return w.reloads.Load()
}

// Close stops watching. It does not wait for an in-flight reload callback.
func (w *Watcher) Close() error {
	close(w.done)
	return w.fw.Close()
}

func (w *Watcher) watch() {
	var timer *time.Timer

	for {
		select {
		case <-w.done:
			return

		case event, ok := <-w.fw.Events:
			if !ok {
				return
			}
			// Some editors replace the file instead of writing in place.
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			if timer != nil {
				timer.Stop()
			}
			timer = time.AfterFunc(debounce, w.reload)

		case err, ok := <-w.fw.Errors:
			if !ok {
				return
			}
			w.logger.Error("params watcher error", "error", err)
		}
	}
}

func (w *Watcher) reload() {
	count := w.reloads.Add(1)
	w.logger.Info("reloading detection params", "path", w.path, "count", count)

	p, err := Load(w.path)
	if err != nil {
		w.logger.Error("params reload failed, keeping previous values", "error", err)
		w.onReload(detect.Params{}, err)
		return
	}

	w.mu.Lock()
	w.current = p
	w.mu.Unlock()

	w.logger.Info("detection params reloaded", "count", count)
	w.onReload(p, nil)
}
