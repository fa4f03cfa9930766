// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package session

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	bolt "go.etcd.io/bbolt"

	"github.com/toolshop-ai/toolshop/internal/toolerr"
)

var (
	sessionsBucket = []byte("sessions")
	recordsBucket  = []byte("records")
	metaKey        = []byte("meta")
)

// ErrSessionNotFound is returned by Store.Load for an unknown ID.
var ErrSessionNotFound = toolerr.New(toolerr.ErrNotFound, "session", "", "session not found")

// storedMeta is the per-session header persisted next to its records.
type storedMeta struct {
	ID           string    `json:"id"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
	ResultToFile string    `json:"result_to_file,omitempty"`
}

// Summary describes a stored session.
type Summary struct {
	ID        string
	CreatedAt time.Time
	UpdatedAt time.Time
	Paths     int
}

// =============================================================================
// BOLT STORE
// =============================================================================

// Store persists session state in a BoltDB file so separate processes can
// continue the same session.
//
// Layout: sessions/<id>/meta holds storedMeta, sessions/<id>/records/<path>
// holds one JSON Record per tracked path.
type Store struct {
	db   *bolt.DB
	path string
}

// OpenStore opens (or creates) the store at path.
func OpenStore(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, fmt.Errorf("failed to create session directory: %w", err)
	}

	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: 2 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open session store %s: %w", path, err)
	}

	if err := db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(sessionsBucket)
		return err
	}); err != nil {
		db.Close()
		return nil, err
	}

	return &Store{db: db, path: path}, nil
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.path
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Save writes the full state of st, replacing what was stored for its ID.
func (s *Store) Save(st *State) error {
	if st == nil {
		return nil
	}

	meta, err := json.Marshal(storedMeta{
		ID:           st.ID,
		CreatedAt:    st.CreatedAt,
		UpdatedAt:    time.Now(),
		ResultToFile: st.ResultToFile(),
	})
	if err != nil {
		return err
	}
	records := st.Tracker().Snapshot()

	return s.db.Update(func(tx *bolt.Tx) error {
		root := tx.Bucket(sessionsBucket)
		if root.Bucket([]byte(st.ID)) != nil {
			if err := root.DeleteBucket([]byte(st.ID)); err != nil {
				return err
			}
		}
		bkt, err := root.CreateBucket([]byte(st.ID))
		if err != nil {
			return err
		}
		if err := bkt.Put(metaKey, meta); err != nil {
			return err
		}
		recs, err := bkt.CreateBucket(recordsBucket)
		if err != nil {
			return err
		}
		for path, rec := range records {
			raw, err := json.Marshal(rec)
			if err != nil {
				return err
			}
			if err := recs.Put([]byte(path), raw); err != nil {
				return err
			}
		}
		return nil
	})
}

// Load rebuilds the State stored under id.
func (s *Store) Load(id string) (*State, error) {
	var (
		meta    storedMeta
		records = make(map[string]Record)
	)

	err := s.db.View(func(tx *bolt.Tx) error {
		bkt := tx.Bucket(sessionsBucket).Bucket([]byte(id))
		if bkt == nil {
			return ErrSessionNotFound
		}
		if raw := bkt.Get(metaKey); raw != nil {
			if err := json.Unmarshal(raw, &meta); err != nil {
				return fmt.Errorf("corrupt session meta: %w", err)
			}
		}
		recs := bkt.Bucket(recordsBucket)
		if recs == nil {
			return nil
		}
		return recs.ForEach(func(k, v []byte) error {
			var rec Record
			if err := json.Unmarshal(v, &rec); err != nil {
				return fmt.Errorf("corrupt record for %s: %w", k, err)
			}
			records[string(k)] = rec
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	st := NewWithID(id)
	if !meta.CreatedAt.IsZero() {
		st.CreatedAt = meta.CreatedAt
	}
	st.tracker.Restore(records)
	if meta.ResultToFile != "" {
		st.EnableResultToFile(meta.ResultToFile)
	}
	return st, nil
}

// LoadOrCreate loads id, or returns a fresh State with that ID when absent.
func (s *Store) LoadOrCreate(id string) (*State, error) {
	st, err := s.Load(id)
	if errors.Is(err, toolerr.ErrNotFound) {
		return NewWithID(id), nil
	}
	return st, err
}

// Delete removes a stored session.
func (s *Store) Delete(id string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		root := tx.Bucket(sessionsBucket)
		if root.Bucket([]byte(id)) == nil {
			return ErrSessionNotFound
		}
		return root.DeleteBucket([]byte(id))
	})
}

// List returns a summary of every stored session, newest first.
func (s *Store) List() ([]Summary, error) {
	var out []Summary

	err := s.db.View(func(tx *bolt.Tx) error {
		root := tx.Bucket(sessionsBucket)
		return root.ForEach(func(k, v []byte) error {
			bkt := root.Bucket(k)
			if v != nil || bkt == nil {
				return nil
			}
			sum := Summary{ID: string(k)}
			if raw := bkt.Get(metaKey); raw != nil {
				var meta storedMeta
				if err := json.Unmarshal(raw, &meta); err == nil {
					sum.CreatedAt = meta.CreatedAt
					sum.UpdatedAt = meta.UpdatedAt
				}
			}
			if recs := bkt.Bucket(recordsBucket); recs != nil {
				_ = recs.ForEach(func(_, _ []byte) error {
					sum.Paths++
					return nil
				})
			}
			out = append(out, sum)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(out, func(i, j int) bool {
		return out[i].UpdatedAt.After(out[j].UpdatedAt)
	})
	return out, nil
}
