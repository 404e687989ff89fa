package config

import (
	"context"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/VplusR/VplusReforged/errors"
)

// DefaultDebounce is how long the watcher waits for more writes before firing.
const DefaultDebounce = 500 * time.Millisecond

// Watcher calls its handler when the settings file changes.
//
// The containing directory is watched so that editors replacing the file by
// rename are observed. Bursts of events are collapsed into one handler call.
type Watcher struct {
	path     string
	handler  func(ctx context.Context)
	debounce time.Duration
	logger   *slog.Logger

	mu       sync.Mutex
	watcher  *fsnotify.Watcher
	done     chan struct{}
	stopOnce sync.Once
}

// NewWatcher creates a watcher for the settings file at path
func NewWatcher(path string, handler func(ctx context.Context), debounce time.Duration, logger *slog.Logger) *Watcher {
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Watcher{
		path:     filepath.Clean(path),
		handler:  handler,
		debounce: debounce,
		logger:   logger.With("component", "config-watcher"),
		done:     make(chan struct{}),
	}
}

// Start begins watching. The handler runs on the watcher goroutine until ctx
// is done or Stop is called.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.watcher != nil {
		return errors.WrapInvalid(errors.ErrAlreadyStarted, "Watcher", "Start", "state check")
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return errors.WrapTransient(err, "Watcher", "Start", "create fsnotify watcher")
	}
	if err := fw.Add(filepath.Dir(w.path)); err != nil {
		_ = fw.Close()
		return errors.WrapInvalid(err, "Watcher", "Start", "watch settings directory")
	}
	w.watcher = fw

	go w.loop(ctx, fw)
	return nil
}

// Stop ends watching. It is safe to call more than once.
func (w *Watcher) Stop() error {
	var err error
	w.stopOnce.Do(func() {
		close(w.done)
		w.mu.Lock()
		defer w.mu.Unlock()
		if w.watcher != nil {
			err = w.watcher.Close()
		}
	})
	return err
}

func (w *Watcher) loop(ctx context.Context, fw *fsnotify.Watcher) {
	var timer *time.Timer
	var fire <-chan time.Time

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.done:
			return
		case event, ok := <-fw.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != w.path {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(w.debounce)
			} else {
				timer.Reset(w.debounce)
			}
			fire = timer.C
		case err, ok := <-fw.Errors:
			if !ok {
				return
			}
			w.logger.Warn("Settings watcher error", "error", err)
		case <-fire:
			fire = nil
			w.logger.Info("Settings file changed", "path", w.path)
			w.handler(ctx)
		}
	}
}
