package correction

import (
	"context"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// Watcher reloads the correction store when its backing file changes on disk,
// so corrections taught through one process become visible to another sharing
// the same file. Events are debounced because editors and atomic renames
// produce bursts of create/write/rename events for a single logical change.
type Watcher struct {
	mu       sync.Mutex
	store    *Store
	fsw      *fsnotify.Watcher
	logger   *zap.Logger
	debounce time.Duration
	pending  time.Time
	stopCh   chan struct{}
	doneCh   chan struct{}
	running  bool
}

// NewWatcher creates a watcher for the store's backing file. Call Start to
// begin watching.
func NewWatcher(store *Store, logger *zap.Logger) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Watcher{
		store:    store,
		fsw:      fsw,
		logger:   logger,
		debounce: 250 * time.Millisecond,
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}, nil
}

// Start watches the directory containing the store file. The directory is
// watched rather than the file itself because atomic rename replaces the
// inode, which would silently detach a file-level watch.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return nil
	}
	w.running = true
	w.mu.Unlock()

	dir := filepath.Dir(w.store.Path())
	if err := w.fsw.Add(dir); err != nil {
		w.mu.Lock()
		w.running = false
		w.mu.Unlock()
		return err
	}
	w.logger.Debug("correction watcher started", zap.String("dir", dir))

	go w.run(ctx)
	return nil
}

// Stop halts the watcher and waits for the event loop to exit. It releases
// the underlying fsnotify watcher even when Start was never called or failed.
func (w *Watcher) Stop() {
	w.mu.Lock()
	running := w.running
	w.running = false
	w.mu.Unlock()

	if running {
		close(w.stopCh)
		<-w.doneCh
	}
	if err := w.fsw.Close(); err != nil {
		w.logger.Warn("correction watcher close", zap.Error(err))
	}
}

func (w *Watcher) run(ctx context.Context) {
	defer close(w.doneCh)

	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	target := filepath.Clean(w.store.Path())

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stopCh:
			return
		case event, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != target {
				continue
			}
			if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Rename) == 0 {
				continue
			}
			w.mu.Lock()
			w.pending = time.Now()
			w.mu.Unlock()
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			w.logger.Warn("correction watcher error", zap.Error(err))
		case <-ticker.C:
			w.mu.Lock()
			due := !w.pending.IsZero() && time.Since(w.pending) >= w.debounce
			if due {
				w.pending = time.Time{}
			}
			w.mu.Unlock()
			if due {
				w.store.load()
				w.logger.Debug("correction store reloaded",
					zap.String("path", w.store.Path()))
			}
		}
	}
}
