// Package watch wraps fsnotify with a per-file debounce window. Sequencer
// control software tends to write a sample sheet in short bursts; each
// burst should trigger one re-validation, not five.
package watch

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// Op classifies a settled filesystem change.
type Op string

const (
	OpCreate Op = "create"
	OpModify Op = "modify"
	OpRemove Op = "remove"
)

// Callback receives each settled change after its debounce window closes.
// It runs on the watcher goroutine; slow work should be handed off.
type Callback func(path string, op Op)

// Stats tracks watcher activity.
type Stats struct {
	Created       int
	Modified      int
	Removed       int
	Triggered     int
	Errors        int
	LastEventTime time.Time
	LastEventPath string
	LastEventOp   Op
}

// Options tunes the watcher. Zero values fall back to a 500ms debounce
// and a .csv extension filter.
type Options struct {
	Debounce   time.Duration
	Extensions []string
}

// Watcher monitors one directory, non-recursively, for sample sheet
// changes. Safe for concurrent use.
type Watcher struct {
	mu          sync.RWMutex
	fsw         *fsnotify.Watcher
	dir         string
	extensions  map[string]bool
	callback    Callback
	pending     map[string]pendingEvent
	debounceDur time.Duration
	stopCh      chan struct{}
	doneCh      chan struct{}
	running     bool
	closed      bool
	logger      *zap.Logger
	stats       Stats
}

type pendingEvent struct {
	at time.Time
	op Op
}

// New creates a watcher over dir. The callback fires once per file after
// events settle.
func New(dir string, opts Options, logger *zap.Logger, callback Callback) (*Watcher, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create watcher: %w", err)
	}

	debounce := opts.Debounce
	if debounce <= 0 {
		debounce = 500 * time.Millisecond
	}
	exts := opts.Extensions
	if len(exts) == 0 {
		exts = []string{".csv"}
	}
	extSet := make(map[string]bool, len(exts))
	for _, ext := range exts {
		extSet[strings.ToLower(ext)] = true
	}

	return &Watcher{
		fsw:         fsw,
		dir:         dir,
		extensions:  extSet,
		callback:    callback,
		pending:     make(map[string]pendingEvent),
		debounceDur: debounce,
		stopCh:      make(chan struct{}),
		doneCh:      make(chan struct{}),
		logger:      logger,
	}, nil
}

// Dir returns the watched directory.
func (w *Watcher) Dir() string { return w.dir }

// Start begins watching. Non-blocking; the event loop runs until the
// context is cancelled or Stop is called. Starting a running watcher is
// a no-op.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return fmt.Errorf("watcher is stopped")
	}
	if w.running {
		w.mu.Unlock()
		return nil
	}
	w.running = true
	w.mu.Unlock()

	if err := w.fsw.Add(w.dir); err != nil {
		w.mu.Lock()
		w.running = false
		w.mu.Unlock()
		return fmt.Errorf("failed to watch %s: %w", w.dir, err)
	}
	w.logger.Info("watching directory", zap.String("dir", w.dir))

	go w.run(ctx)
	return nil
}

// Stop halts the event loop and releases the filesystem handle. Safe to
// call multiple times, with or without a prior Start.
func (w *Watcher) Stop() {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return
	}
	w.closed = true
	wasRunning := w.running
	w.running = false
	w.mu.Unlock()

	if wasRunning {
		close(w.stopCh)
		<-w.doneCh
	}
	if err := w.fsw.Close(); err != nil {
		w.logger.Error("failed to close watcher", zap.Error(err))
	}
	w.logger.Info("watcher stopped", zap.String("dir", w.dir))
}

// Stats returns a snapshot of the activity counters.
func (w *Watcher) Stats() Stats {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.stats
}

// run is the event loop: raw events land in the pending map, and a ticker
// flushes entries whose debounce window has closed.
func (w *Watcher) run(ctx context.Context) {
	defer close(w.doneCh)

	flushTicker := time.NewTicker(100 * time.Millisecond)
	defer flushTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.logger.Debug("watcher context cancelled")
			return

		case <-w.stopCh:
			return

		case event, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			w.handleEvent(event)

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			w.logger.Error("watch error", zap.Error(err))
			w.mu.Lock()
			w.stats.Errors++
			w.mu.Unlock()

		case <-flushTicker.C:
			w.flush()
		}
	}
}

// handleEvent records one raw filesystem event in the pending map.
func (w *Watcher) handleEvent(event fsnotify.Event) {
	if !w.extensions[strings.ToLower(filepath.Ext(event.Name))] {
		return
	}

	var op Op
	switch {
	case event.Op&fsnotify.Create != 0:
		op = OpCreate
	case event.Op&fsnotify.Write != 0:
		op = OpModify
	case event.Op&fsnotify.Remove != 0, event.Op&fsnotify.Rename != 0:
		op = OpRemove
	default:
		return // chmod and friends
	}

	w.mu.Lock()
	w.stats.LastEventTime = time.Now()
	w.stats.LastEventPath = event.Name
	w.stats.LastEventOp = op
	switch op {
	case OpCreate:
		w.stats.Created++
	case OpModify:
		w.stats.Modified++
	case OpRemove:
		w.stats.Removed++
	}

	prev, hasPrev := w.pending[event.Name]
	w.pending[event.Name] = pendingEvent{at: time.Now(), op: mergeOp(prev.op, hasPrev, op)}
	w.mu.Unlock()

	w.logger.Debug("raw event", zap.String("path", event.Name), zap.String("op", string(op)))
}

// mergeOp folds a new raw event into the pending op for a path. A freshly
// created file stays "create" through its follow-up writes; a remove wipes
// whatever preceded it; a create right after a remove is a replacement and
// reports as modify.
func mergeOp(prev Op, hasPrev bool, next Op) Op {
	if !hasPrev {
		return next
	}
	switch {
	case next == OpRemove:
		return OpRemove
	case prev == OpRemove:
		return OpModify
	case prev == OpCreate:
		return OpCreate
	default:
		return next
	}
}

// flush fires the callback for every pending path whose debounce window
// has closed. Callbacks run outside the lock.
func (w *Watcher) flush() {
	type settled struct {
		path string
		op   Op
	}

	w.mu.Lock()
	now := time.Now()
	var due []settled
	for path, ev := range w.pending {
		if now.Sub(ev.at) >= w.debounceDur {
			due = append(due, settled{path, ev.op})
			delete(w.pending, path)
		}
	}
	w.stats.Triggered += len(due)
	w.mu.Unlock()

	for _, s := range due {
		w.logger.Debug("settled event", zap.String("path", s.path), zap.String("op", string(s.op)))
		if w.callback != nil {
			w.callback(s.path, s.op)
		}
	}
}
