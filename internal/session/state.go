// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package session

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// State is the shared state of one tool session: the staleness tracker and
// the pending result redirect. One State is created per session and handed
// to every tool built for it.
//
// A nil *State is valid and means "no shared state": tracking calls are
// skipped, AssertFresh always passes and no redirect is ever armed.
type State struct {
	ID        string
	CreatedAt time.Time

	tracker *Tracker
	watcher *Watcher

	mu           sync.Mutex
	resultToFile string
}

// AttachWatcher makes every subsequently read path watched by w.
func (s *State) AttachWatcher(w *Watcher) {
	if s == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.watcher = w
}

// New returns a State with a fresh random ID.
func New() *State {
	return NewWithID(uuid.NewString())
}

// NewWithID returns a State with the given ID.
func NewWithID(id string) *State {
	return &State{
		ID:        id,
		CreatedAt: time.Now(),
		tracker:   NewTracker(),
	}
}

// Enabled reports whether s carries real state.
func (s *State) Enabled() bool {
	return s != nil
}

// Tracker returns the session's tracker, or nil for a nil State.
func (s *State) Tracker() *Tracker {
	if s == nil {
		return nil
	}
	return s.tracker
}

// RecordRead records a read of path.
func (s *State) RecordRead(path string) {
	if s == nil {
		return
	}
	s.tracker.RecordRead(path)

	s.mu.Lock()
	w := s.watcher
	s.mu.Unlock()
	if w != nil {
		_ = w.Watch(path)
	}
}

// RecordWrite records a write of path.
func (s *State) RecordWrite(path string) {
	if s == nil {
		return
	}
	s.tracker.RecordWrite(path)
}

// AssertFresh checks path against the tracker.
func (s *State) AssertFresh(path string) error {
	if s == nil {
		return nil
	}
	return s.tracker.AssertFresh(path)
}

// =============================================================================
// RESULT REDIRECT
// =============================================================================

// EnableResultToFile arms a redirect: the next tool result is written to path.
func (s *State) EnableResultToFile(path string) {
	if s == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.resultToFile = path
}

// ResultToFile returns the armed redirect path, or "".
func (s *State) ResultToFile() string {
	if s == nil {
		return ""
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.resultToFile
}

// DisableResultToFile clears the redirect.
func (s *State) DisableResultToFile() {
	if s == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.resultToFile = ""
}

// Reset forgets every tracked path and clears the redirect.
func (s *State) Reset() {
	if s == nil {
		return
	}
	s.tracker.Clear()
	s.DisableResultToFile()
}
