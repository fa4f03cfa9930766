// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package session

import (
	"context"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// =============================================================================
// EXTERNAL CHANGE WATCHER
// =============================================================================

// Watcher marks tracked files as written when something outside the toolset
// modifies them, so the next mutating tool call demands a fresh read.
//
// Only the parent directories of tracked paths are watched. An event counts as
// an external change when the file's fingerprint differs from the one taken at
// the last read or write the tracker knows about, which filters out the
// events caused by the toolset's own writes.
type Watcher struct {
	tracker *Tracker
	fsw     *fsnotify.Watcher
	logger  *zap.Logger

	mu   sync.Mutex
	dirs map[string]bool

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewWatcher creates a watcher feeding t.
func NewWatcher(t *Tracker, logger *zap.Logger) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Watcher{
		tracker: t,
		fsw:     fsw,
		logger:  logger,
		dirs:    make(map[string]bool),
		ctx:     ctx,
		cancel:  cancel,
	}, nil
}

// Start begins processing events until Close.
func (w *Watcher) Start() {
	for _, p := range w.tracker.Paths() {
		if err := w.Watch(p); err != nil {
			w.logger.Debug("cannot watch tracked path", zap.String("path", p), zap.Error(err))
		}
	}

	w.wg.Add(1)
	go w.processEvents()
}

// Watch adds the directory containing path to the watch set.
func (w *Watcher) Watch(path string) error {
	dir := filepath.Dir(Key(path))

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.dirs[dir] {
		return nil
	}
	if err := w.fsw.Add(dir); err != nil {
		return err
	}
	w.dirs[dir] = true
	return nil
}

// Close stops the watcher and releases resources.
func (w *Watcher) Close() error {
	w.cancel()
	err := w.fsw.Close()
	w.wg.Wait()
	return err
}

func (w *Watcher) processEvents() {
	defer w.wg.Done()

	for {
		select {
		case <-w.ctx.Done():
			return

		case event, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			w.handle(event)

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			w.logger.Warn("file watcher error", zap.Error(err))
		}
	}
}

func (w *Watcher) handle(event fsnotify.Event) {
	if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) &&
		!event.Has(fsnotify.Remove) && !event.Has(fsnotify.Rename) {
		return
	}

	key := Key(event.Name)
	rec, ok := w.tracker.Get(key)
	if !ok {
		return
	}

	if w.tracker.MarkModified(key, w.tracker.fingerprint(key)) {
		w.logger.Info("file changed outside the toolset, re-read required",
			zap.String("path", key),
			zap.String("op", event.Op.String()),
			zap.Time("last_read_at", rec.LastReadAt))
	}
}

// MarkModified records an external modification of path when fp differs from
// the fingerprint taken at its last read or write. It reports whether it did.
func (t *Tracker) MarkModified(path string, fp Fingerprint) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	rec, ok := t.records[Key(path)]
	if !ok || rec.File.Equal(fp) {
		return false
	}
	rec.File = fp
	rec.LastWrittenAt = t.tick()
	return true
}
