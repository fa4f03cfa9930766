// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package toolerr

import (
	"errors"
	"io/fs"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestError_Message(t *testing.T) {
	err := New(ErrAlreadyExists, "create_file", "/tmp/a.txt", "The file %q already exists", "/tmp/a.txt")
	assert.Equal(t, `create_file: The file "/tmp/a.txt" already exists`, err.Error())

	bare := &Error{Kind: ErrNotFound}
	assert.Equal(t, "not found", bare.Error())
}

func TestError_IsMatchesKindAndCause(t *testing.T) {
	err := Wrap(ErrNotFound, "read_file", "/missing", fs.ErrNotExist)

	assert.True(t, errors.Is(err, ErrNotFound))
	assert.True(t, errors.Is(err, fs.ErrNotExist))
	assert.False(t, errors.Is(err, ErrFormat))
	assert.Contains(t, err.Error(), "file does not exist")
}

func TestError_As(t *testing.T) {
	var wrapped error = Wrap(ErrPrecondition, "insert_lines", "/a", nil)
	wrapped = errors.Join(errors.New("outer"), wrapped)

	var te *Error
	require.True(t, errors.As(wrapped, &te))
	assert.Equal(t, "insert_lines", te.Op)
	assert.Equal(t, "/a", te.Path)
}

func TestKindOf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want error
	}{
		{"not found", New(ErrNotFound, "op", "", "x"), ErrNotFound},
		{"confirmation", New(ErrConfirmationDenied, "op", "", "x"), ErrConfirmationDenied},
		{"invalid", New(ErrInvalidArgument, "op", "", "x"), ErrInvalidArgument},
		{"unclassified", errors.New("boom"), nil},
		{"nil", nil, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, KindOf(tt.err))
		})
	}
}
