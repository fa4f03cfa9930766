// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package linestore

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/toolshop-ai/toolshop/internal/toolerr"
)

const threeLines = "Line 1\nLine 2\nLine 3\n"

func newStore(t *testing.T, files map[string]string) *Store {
	t.Helper()
	fsys := afero.NewMemMapFs()
	for name, content := range files {
		require.NoError(t, afero.WriteFile(fsys, name, []byte(content), 0644))
	}
	return New(fsys)
}

func readAll(t *testing.T, s *Store, path string) string {
	t.Helper()
	data, err := afero.ReadFile(s.Fs(), path)
	require.NoError(t, err)
	return string(data)
}

// =============================================================================
// READ TESTS
// =============================================================================

func TestRead(t *testing.T) {
	s := newStore(t, map[string]string{"/w/a.txt": threeLines})

	tests := []struct {
		name string
		opts ReadOptions
		want string
	}{
		{"whole file", ReadOptions{}, threeLines},
		{"numbered", ReadOptions{LineNumbers: true}, "1   |Line 1\n2   |Line 2\n3   |Line 3\n"},
		{"window", ReadOptions{Start: 1, End: 2}, "Line 2\n"},
		{"numbered window keeps file positions", ReadOptions{Start: 1, End: 3, LineNumbers: true}, "2   |Line 2\n3   |Line 3\n"},
		{"first line only", ReadOptions{Start: 0, End: 1}, "Line 1\n"},
		{"start only", ReadOptions{Start: 2}, "Line 3\n"},
		{"end past eof clamps", ReadOptions{Start: 1, End: 99}, "Line 2\nLine 3\n"},
		{"start past eof is empty", ReadOptions{Start: 10}, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := s.Read("/w/a.txt", tt.opts)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestRead_Missing(t *testing.T) {
	s := newStore(t, nil)

	_, err := s.Read("/w/none.txt", ReadOptions{})
	require.Error(t, err)
	assert.True(t, errors.Is(err, toolerr.ErrNotFound))

	got, err := s.Read("/w/none.txt", ReadOptions{MissingOK: true})
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestFormatLine(t *testing.T) {
	assert.Equal(t, "1   |x\n", FormatLine(1, "x\n"))
	assert.Equal(t, "12  |x\n", FormatLine(12, "x\n"))
	assert.Equal(t, "123 |x\n", FormatLine(123, "x\n"))
	assert.Equal(t, "12345|x\n", FormatLine(12345, "x\n"))
}

// =============================================================================
// EDIT TESTS
// =============================================================================

func TestEdit(t *testing.T) {
	tests := []struct {
		name       string
		content    string
		text       string
		start, end int
		want       string
	}{
		{"insert before line 2", threeLines, "hello world\n", 1, 1, "Line 1\nhello world\nLine 2\nLine 3\n"},
		{"insert at top", threeLines, "top\n", 0, 0, "top\nLine 1\nLine 2\nLine 3\n"},
		{"append", threeLines, "end\n", -1, -1, "Line 1\nLine 2\nLine 3\nend\n"},
		{"append with unset end", threeLines, "end\n", -1, 0, "Line 1\nLine 2\nLine 3\nend\n"},
		{"insert before last", threeLines, "x\n", -2, -2, "Line 1\nLine 2\nx\nLine 3\n"},
		{"delete middle", threeLines, "", 1, 2, "Line 1\nLine 3\n"},
		{"delete first", threeLines, "", 0, 1, "Line 2\nLine 3\n"},
		{"delete last", threeLines, "", 2, 3, "Line 1\nLine 2\n"},
		{"delete all", threeLines, "", 0, 3, ""},
		{"replace first two", threeLines, "New Line 1\nNew Line 2\n", 0, 2, "New Line 1\nNew Line 2\nLine 3\n"},
		{"replace last", threeLines, "z\n", 2, 3, "Line 1\nLine 2\nz\n"},
		{"replace one with many", threeLines, "a\nb\nc\n", 1, 2, "Line 1\na\nb\nc\nLine 3\n"},
		{"single line file replace", "only\n", "new\n", 0, 1, "new\n"},
		{"single line file delete", "only\n", "", 0, 1, ""},
		{"single line file append", "only\n", "two\n", -1, -1, "only\ntwo\n"},
		{"empty file append", "", "first\n", -1, -1, "first\n"},
		{"append after unterminated last line", "a\nb", "c\n", -1, -1, "a\nb\nc\n"},
		{"end past eof clamps", threeLines, "", 1, 10, "Line 1\n"},
		{"end before start inserts", threeLines, "x\n", 2, 1, "Line 1\nLine 2\nx\nLine 3\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newStore(t, map[string]string{"/w/f.txt": tt.content})

			got, err := s.Edit("/w/f.txt", tt.text, tt.start, tt.end)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.want, readAll(t, s, "/w/f.txt"))
		})
	}
}

func TestEdit_FormatErrorLeavesFileUntouched(t *testing.T) {
	s := newStore(t, map[string]string{"/w/f.txt": threeLines})

	_, err := s.Edit("/w/f.txt", "no newline", 0, 1)
	require.Error(t, err)
	assert.True(t, errors.Is(err, toolerr.ErrFormat))
	assert.Equal(t, threeLines, readAll(t, s, "/w/f.txt"))
}

func TestEdit_Missing(t *testing.T) {
	s := newStore(t, nil)

	_, err := s.Edit("/w/none.txt", "x\n", 0, 0)
	require.Error(t, err)
	assert.True(t, errors.Is(err, toolerr.ErrNotFound))
}

func TestEdit_PreservesMode(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "script.sh")
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\n"), 0755))

	s := New(nil)
	_, err := s.Edit(path, "echo hi\n", -1, -1)
	require.NoError(t, err)

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0755), info.Mode().Perm())
}

// =============================================================================
// CREATE TESTS
// =============================================================================

func TestCreate(t *testing.T) {
	s := newStore(t, nil)

	msg, err := s.Create("/w/deep/nested/new.txt", "hello\n")
	require.NoError(t, err)
	assert.Equal(t, `Successfully wrote "/w/deep/nested/new.txt"`, msg)
	assert.Equal(t, "hello\n", readAll(t, s, "/w/deep/nested/new.txt"))
}

func TestCreate_AlreadyExists(t *testing.T) {
	s := newStore(t, map[string]string{"/w/a.txt": threeLines})

	_, err := s.Create("/w/a.txt", "overwrite\n")
	require.Error(t, err)
	assert.True(t, errors.Is(err, toolerr.ErrAlreadyExists))
	assert.Equal(t, threeLines, readAll(t, s, "/w/a.txt"))
}

// =============================================================================
// HELPER TESTS
// =============================================================================

func TestSplitLines(t *testing.T) {
	assert.Nil(t, SplitLines(""))
	assert.Equal(t, []string{"a\n"}, SplitLines("a\n"))
	assert.Equal(t, []string{"a\n", "b"}, SplitLines("a\nb"))
	assert.Equal(t, []string{"a\r\n", "\n"}, SplitLines("a\r\n\n"))
}

func TestValidateText(t *testing.T) {
	assert.NoError(t, ValidateText(""))
	assert.NoError(t, ValidateText("x\n"))
	assert.True(t, errors.Is(ValidateText("x"), toolerr.ErrFormat))
}

func TestExpandHome(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	assert.Equal(t, filepath.Join(home, "notes.txt"), ExpandHome("~/notes.txt"))
	assert.Equal(t, home, ExpandHome("~"))
	assert.Equal(t, "/abs/path", ExpandHome("/abs/path"))
	assert.Equal(t, "~user/x", ExpandHome("~user/x"))
}
