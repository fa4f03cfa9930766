// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package session

import (
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/toolshop-ai/toolshop/internal/util"
)

// =============================================================================
// SESSION MANAGER
// =============================================================================

// Manager owns one State for the lifetime of a CLI run, REPL or server. It
// persists the state after every change when a Store is configured and tracks
// idle time so long-running surfaces can drop abandoned sessions.
type Manager struct {
	mu sync.Mutex

	state   *State
	store   *Store
	watcher *Watcher
	logger  *zap.Logger

	startTime    time.Time
	lastActivity time.Time

	// Zero disables expiry.
	idleTimeout time.Duration

	isDirty   bool
	lastSaved time.Time
}

// Config holds configuration for the session manager.
type Config struct {
	// ID resumes a stored session. Empty starts a new one.
	ID string

	// StorePath is the BoltDB file used for persistence. Empty keeps the
	// session in memory only.
	StorePath string

	// WatchExternalChanges enables the fsnotify watcher.
	WatchExternalChanges bool

	// IdleTimeout expires the session after this much inactivity.
	IdleTimeout time.Duration
}

// DefaultConfig returns the default session configuration.
func DefaultConfig() Config {
	return Config{
		IdleTimeout: 30 * time.Minute,
	}
}

// NewManager opens or creates the session described by cfg.
func NewManager(cfg Config, logger *zap.Logger) (*Manager, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	m := &Manager{
		logger:      logger,
		idleTimeout: cfg.IdleTimeout,
	}

	if cfg.StorePath != "" {
		store, err := OpenStore(cfg.StorePath)
		if err != nil {
			return nil, err
		}
		m.store = store
	}

	switch {
	case m.store != nil && cfg.ID != "":
		st, err := m.store.LoadOrCreate(cfg.ID)
		if err != nil {
			m.store.Close()
			return nil, err
		}
		m.state = st
	case cfg.ID != "":
		m.state = NewWithID(cfg.ID)
	default:
		m.state = New()
	}

	if cfg.WatchExternalChanges {
		w, err := NewWatcher(m.state.Tracker(), logger)
		if err != nil {
			logger.Warn("external change watcher disabled", zap.Error(err))
		} else {
			m.watcher = w
			m.state.AttachWatcher(w)
			w.Start()
		}
	}

	now := time.Now()
	m.startTime = now
	m.lastActivity = now
	m.lastSaved = now
	return m, nil
}

// State returns the managed state.
func (m *Manager) State() *State {
	return m.state
}

// SessionID returns the current session ID.
func (m *Manager) SessionID() string {
	return m.state.ID
}

// Persistent reports whether the session is backed by a Store.
func (m *Manager) Persistent() bool {
	return m.store != nil
}

// Store returns the backing store, or nil.
func (m *Manager) Store() *Store {
	return m.store
}

// =============================================================================
// ACTIVITY TRACKING
// =============================================================================

// RecordActivity updates the last activity timestamp.
func (m *Manager) RecordActivity() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lastActivity = time.Now()
}

// MarkDirty marks the state as changed since the last save.
func (m *Manager) MarkDirty() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.isDirty = true
}

// IsDirty returns whether there are unsaved changes.
func (m *Manager) IsDirty() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.isDirty
}

// IsExpired returns whether the idle timeout has passed.
func (m *Manager) IsExpired() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.idleTimeout > 0 && time.Since(m.lastActivity) >= m.idleTimeout
}

// ExpireIfIdle resets the session once the idle timeout has passed, so read
// records left by an abandoned client cannot authorize a later edit. It
// reports whether the session expired. Long-running surfaces call it before
// every tool call.
func (m *Manager) ExpireIfIdle() (bool, error) {
	if !m.IsExpired() {
		return false, nil
	}

	m.mu.Lock()
	idle := time.Since(m.lastActivity)
	m.mu.Unlock()
	m.logger.Info("session idle timeout passed, read records dropped",
		zap.String("session", m.SessionID()),
		zap.Duration("idle", idle))

	if err := m.Reset(); err != nil {
		return true, err
	}
	m.RecordActivity()
	return true, nil
}

// Touch records activity and saves the state. Call it after every tool call.
func (m *Manager) Touch() error {
	m.RecordActivity()
	m.MarkDirty()
	return m.Save()
}

// Save persists the state if a store is configured and something changed.
func (m *Manager) Save() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.store == nil || !m.isDirty {
		return nil
	}
	if err := m.store.Save(m.state); err != nil {
		return err
	}
	m.isDirty = false
	m.lastSaved = time.Now()
	return nil
}

// Reset discards every record of the current session, keeping its ID.
func (m *Manager) Reset() error {
	m.mu.Lock()
	id := m.state.ID
	m.state.Reset()
	m.isDirty = true
	m.mu.Unlock()

	if m.store != nil {
		if err := m.store.Delete(id); err != nil && !errors.Is(err, ErrSessionNotFound) {
			return err
		}
	}
	return m.Save()
}

// Close saves pending changes and releases the store and watcher.
func (m *Manager) Close() error {
	err := m.Save()
	if m.watcher != nil {
		if werr := m.watcher.Close(); werr != nil && err == nil {
			err = werr
		}
	}
	if m.store != nil {
		if serr := m.store.Close(); serr != nil && err == nil {
			err = serr
		}
	}
	return err
}

// =============================================================================
// SESSION STATUS
// =============================================================================

// Status represents the current session status.
type Status struct {
	SessionID    string
	StartTime    time.Time
	Duration     time.Duration
	IdleTime     time.Duration
	TrackedPaths int
	ResultToFile string
	Persistent   bool
	IsDirty      bool
	IsExpired    bool
}

// GetStatus returns the current session status.
func (m *Manager) GetStatus() Status {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now()
	idle := now.Sub(m.lastActivity)

	return Status{
		SessionID:    m.state.ID,
		StartTime:    m.startTime,
		Duration:     now.Sub(m.startTime),
		IdleTime:     idle,
		TrackedPaths: len(m.state.Tracker().Paths()),
		ResultToFile: m.state.ResultToFile(),
		Persistent:   m.store != nil,
		IsDirty:      m.isDirty,
		IsExpired:    m.idleTimeout > 0 && idle >= m.idleTimeout,
	}
}

// FormatDuration returns a human-readable duration string.
func FormatDuration(d time.Duration) string {
	if d < time.Minute {
		secs := int(d.Seconds())
		return util.IntToString(secs) + "s"
	}
	mins := int(d.Minutes())
	secs := int(d.Seconds()) % 60
	if secs == 0 {
		return util.IntToString(mins) + "m"
	}
	return util.IntToString(mins) + "m " + util.IntToString(secs) + "s"
}
