// Package watch re-runs generation when the config file changes.
package watch

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"time"

	"romgen/internal/logging"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// DefaultDebounce absorbs the burst of events an editor save produces.
const DefaultDebounce = 500 * time.Millisecond

// Stats tracks watcher activity.
type Stats struct {
	Events        int
	Triggered     int
	Errors        int
	LastEventTime time.Time
	LastEventType string
}

// ConfigWatcher watches one file and calls OnChange after changes settle.
// It watches the parent directory so that editors which replace the file
// by rename are still observed.
type ConfigWatcher struct {
	mu          sync.Mutex
	watcher     *fsnotify.Watcher
	path        string
	onChange    func(ctx context.Context) error
	pending     time.Time
	debounceDur time.Duration
	stopCh      chan struct{}
	doneCh      chan struct{}
	started     bool
	stopped     bool

	stats Stats
}

// New creates a watcher for path. onChange runs on the watcher goroutine;
// changes arriving while it runs are coalesced into one further call.
func New(path string, onChange func(ctx context.Context) error) (*ConfigWatcher, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	return &ConfigWatcher{
		watcher:     w,
		path:        abs,
		onChange:    onChange,
		debounceDur: DefaultDebounce,
		stopCh:      make(chan struct{}),
		doneCh:      make(chan struct{}),
	}, nil
}

// SetDebounce changes the settle time. Call before Start.
func (cw *ConfigWatcher) SetDebounce(d time.Duration) {
	cw.mu.Lock()
	cw.debounceDur = d
	cw.mu.Unlock()
}

// Start begins watching. It is non-blocking.
func (cw *ConfigWatcher) Start(ctx context.Context) error {
	cw.mu.Lock()
	defer cw.mu.Unlock()
	if cw.started || cw.stopped {
		return nil
	}

	dir := filepath.Dir(cw.path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}
	if err := cw.watcher.Add(dir); err != nil {
		return err
	}
	logging.Get(logging.CategoryWatch).Info("watching config", zap.String("path", cw.path))

	cw.started = true
	go cw.run(ctx)
	return nil
}

// Stop stops the watcher, waits for the event loop to exit and releases the
// underlying notifier. It is safe to call more than once.
func (cw *ConfigWatcher) Stop() {
	cw.mu.Lock()
	if cw.stopped {
		cw.mu.Unlock()
		return
	}
	cw.stopped = true
	started := cw.started
	cw.mu.Unlock()

	if started {
		close(cw.stopCh)
		<-cw.doneCh
	}

	if err := cw.watcher.Close(); err != nil {
		logging.Get(logging.CategoryWatch).Error("failed to close watcher", zap.Error(err))
	}
}

// Done is closed when the event loop exits. It is never closed if Start was
// not called.
func (cw *ConfigWatcher) Done() <-chan struct{} {
	return cw.doneCh
}

// Stats returns a snapshot of watcher activity.
func (cw *ConfigWatcher) Stats() Stats {
	cw.mu.Lock()
	defer cw.mu.Unlock()
	return cw.stats
}

func (cw *ConfigWatcher) run(ctx context.Context) {
	defer close(cw.doneCh)
	log := logging.Get(logging.CategoryWatch)

	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-cw.stopCh:
			return

		case event, ok := <-cw.watcher.Events:
			if !ok {
				return
			}
			cw.handleEvent(event)

		case err, ok := <-cw.watcher.Errors:
			if !ok {
				return
			}
			log.Error("watcher error", zap.Error(err))
			cw.mu.Lock()
			cw.stats.Errors++
			cw.mu.Unlock()

		case <-ticker.C:
			cw.fireIfSettled(ctx)
		}
	}
}

func (cw *ConfigWatcher) handleEvent(event fsnotify.Event) {
	if filepath.Clean(event.Name) != cw.path {
		return
	}

	var eventType string
	switch {
	case event.Op&fsnotify.Create != 0:
		eventType = "create"
	case event.Op&fsnotify.Write != 0:
		eventType = "modify"
	case event.Op&fsnotify.Rename != 0:
		eventType = "rename"
	default:
		return // remove and chmod do not trigger a run
	}

	logging.Get(logging.CategoryWatch).Debug("config event", zap.String("type", eventType))

	cw.mu.Lock()
	cw.pending = time.Now()
	cw.stats.Events++
	cw.stats.LastEventTime = cw.pending
	cw.stats.LastEventType = eventType
	cw.mu.Unlock()
}

func (cw *ConfigWatcher) fireIfSettled(ctx context.Context) {
	cw.mu.Lock()
	if cw.pending.IsZero() || time.Since(cw.pending) < cw.debounceDur {
		cw.mu.Unlock()
		return
	}
	cw.pending = time.Time{}
	cw.stats.Triggered++
	cw.mu.Unlock()

	log := logging.Get(logging.CategoryWatch)
	log.Info("config changed, regenerating")
	if err := cw.onChange(ctx); err != nil {
		log.Error("regeneration failed", zap.Error(err))
	}
}
