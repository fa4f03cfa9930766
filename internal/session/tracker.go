// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package session

import (
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/toolshop-ai/toolshop/internal/linestore"
	"github.com/toolshop-ai/toolshop/internal/toolerr"
)

// =============================================================================
// STALENESS TRACKER
// =============================================================================

// Record holds the read/write timestamps of one path. A zero time means the
// event never happened. File is the file's fingerprint as of the last read or
// write the tracker saw.
type Record struct {
	LastReadAt    time.Time   `json:"last_read_at,omitempty"`
	LastWrittenAt time.Time   `json:"last_written_at,omitempty"`
	File          Fingerprint `json:"file"`
}

// Read reports whether the path has ever been read.
func (r Record) Read() bool { return !r.LastReadAt.IsZero() }

// Written reports whether the path has ever been written.
func (r Record) Written() bool { return !r.LastWrittenAt.IsZero() }

// Stale reports whether a write happened after the last read.
func (r Record) Stale() bool {
	return r.Written() && r.LastWrittenAt.After(r.LastReadAt)
}

// Tracker records when each path was last read and written and refuses
// writes against content the caller has not seen.
//
// The mutex guards the map for the external change watcher. It does not make
// concurrent edits of one file safe.
type Tracker struct {
	mu      sync.Mutex
	records     map[string]*Record
	last        time.Time
	now         func() time.Time
	fingerprint func(path string) Fingerprint
}

// NewTracker returns an empty tracker.
func NewTracker() *Tracker {
	return &Tracker{
		records:     make(map[string]*Record),
		now:         time.Now,
		fingerprint: StatFingerprint,
	}
}

// RecordRead marks path as read now.
func (t *Tracker) RecordRead(path string) {
	fp := t.fingerprint(Key(path))

	t.mu.Lock()
	defer t.mu.Unlock()
	rec := t.record(path)
	rec.LastReadAt = t.tick()
	rec.File = fp
}

// RecordWrite marks path as written now.
func (t *Tracker) RecordWrite(path string) {
	fp := t.fingerprint(Key(path))

	t.mu.Lock()
	defer t.mu.Unlock()
	rec := t.record(path)
	rec.LastWrittenAt = t.tick()
	rec.File = fp
}

// AssertFresh fails unless path was read and not written since.
func (t *Tracker) AssertFresh(path string) error {
	key := Key(path)

	t.mu.Lock()
	rec, ok := t.records[key]
	var snapshot Record
	if ok {
		snapshot = *rec
	}
	t.mu.Unlock()

	if !snapshot.Read() {
		return toolerr.New(toolerr.ErrPrecondition, "assert_fresh", key,
			"You must read the file before writing to it.")
	}
	if snapshot.Stale() {
		return toolerr.New(toolerr.ErrPrecondition, "assert_fresh", key,
			"File %s must be re-read first.", key)
	}
	return nil
}

// Get returns the record for path.
func (t *Tracker) Get(path string) (Record, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	rec, ok := t.records[Key(path)]
	if !ok {
		return Record{}, false
	}
	return *rec, true
}

// Tracked reports whether path has a record.
func (t *Tracker) Tracked(path string) bool {
	_, ok := t.Get(path)
	return ok
}

// Paths returns every tracked path in sorted order.
func (t *Tracker) Paths() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	paths := make([]string, 0, len(t.records))
	for p := range t.records {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths
}

// Snapshot returns a copy of every record keyed by path.
func (t *Tracker) Snapshot() map[string]Record {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make(map[string]Record, len(t.records))
	for p, rec := range t.records {
		out[p] = *rec
	}
	return out
}

// Restore merges records into the tracker, typically from a Store.
func (t *Tracker) Restore(records map[string]Record) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for p, rec := range records {
		r := rec
		t.records[p] = &r
		if r.LastReadAt.After(t.last) {
			t.last = r.LastReadAt
		}
		if r.LastWrittenAt.After(t.last) {
			t.last = r.LastWrittenAt
		}
	}
}

// Clear drops every record.
func (t *Tracker) Clear() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.records = make(map[string]*Record)
}

func (t *Tracker) record(path string) *Record {
	key := Key(path)
	rec, ok := t.records[key]
	if !ok {
		rec = &Record{}
		t.records[key] = rec
	}
	return rec
}

// tick returns a timestamp strictly after every one handed out before, so a
// read and a write in the same clock tick still order correctly.
func (t *Tracker) tick() time.Time {
	now := t.now()
	if !now.After(t.last) {
		now = t.last.Add(time.Nanosecond)
	}
	t.last = now
	return now
}

// Key normalizes path into the tracker's map key: home-expanded, absolute and
// cleaned.
func Key(path string) string {
	path = linestore.ExpandHome(path)
	if abs, err := filepath.Abs(path); err == nil {
		return abs
	}
	return filepath.Clean(path)
}
