// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package session

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/toolshop-ai/toolshop/internal/toolerr"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := OpenStore(filepath.Join(t.TempDir(), "nested", "sessions.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func TestStore_SaveAndLoad(t *testing.T) {
	store := openTestStore(t)

	st := NewWithID("abc")
	st.RecordRead("/w/a.txt")
	st.RecordRead("/w/b.txt")
	st.RecordWrite("/w/b.txt")
	st.EnableResultToFile("/w/out.txt")
	require.NoError(t, store.Save(st))

	loaded, err := store.Load("abc")
	require.NoError(t, err)

	assert.Equal(t, "abc", loaded.ID)
	assert.NoError(t, loaded.AssertFresh("/w/a.txt"))
	assert.Error(t, loaded.AssertFresh("/w/b.txt"))
	assert.Equal(t, "/w/out.txt", loaded.ResultToFile())
	assert.WithinDuration(t, st.CreatedAt, loaded.CreatedAt, time.Second)
}

func TestStore_SaveReplaces(t *testing.T) {
	store := openTestStore(t)

	st := NewWithID("abc")
	st.RecordRead("/w/a.txt")
	require.NoError(t, store.Save(st))

	st.Reset()
	st.RecordRead("/w/c.txt")
	require.NoError(t, store.Save(st))

	loaded, err := store.Load("abc")
	require.NoError(t, err)
	assert.Equal(t, []string{"/w/c.txt"}, loaded.Tracker().Paths())
}

func TestStore_LoadMissing(t *testing.T) {
	store := openTestStore(t)

	_, err := store.Load("nope")
	require.Error(t, err)
	assert.True(t, errors.Is(err, toolerr.ErrNotFound))

	st, err := store.LoadOrCreate("nope")
	require.NoError(t, err)
	assert.Equal(t, "nope", st.ID)
	assert.Empty(t, st.Tracker().Paths())
}

func TestStore_ListAndDelete(t *testing.T) {
	store := openTestStore(t)

	one := NewWithID("one")
	one.RecordRead("/a")
	require.NoError(t, store.Save(one))

	two := NewWithID("two")
	two.RecordRead("/a")
	two.RecordRead("/b")
	require.NoError(t, store.Save(two))

	list, err := store.List()
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "two", list[0].ID)
	assert.Equal(t, 2, list[0].Paths)

	require.NoError(t, store.Delete("one"))
	assert.True(t, errors.Is(store.Delete("one"), ErrSessionNotFound))

	list, err = store.List()
	require.NoError(t, err)
	require.Len(t, list, 1)
}

func TestStore_FilePermissions(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sessions.db")
	store, err := OpenStore(path)
	require.NoError(t, err)
	defer store.Close()

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())
	assert.Equal(t, path, store.Path())
}
