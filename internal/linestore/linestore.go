// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package linestore provides line-oriented read and edit primitives over text
// files.
//
// Every call re-reads the file from the backing filesystem and, for edits,
// writes the whole file back. Nothing is cached between calls and no locking
// is performed: callers must serialize mutations of a given file.
//
// Indices at this layer are 0-based and half-open. The 1-based inclusive line
// numbers used by the public tools are translated before reaching here.
package linestore

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"

	"github.com/toolshop-ai/toolshop/internal/toolerr"
)

// LineNumberWidth is the minimum width of the line number column.
const LineNumberWidth = 4

// =============================================================================
// STORE
// =============================================================================

// Store reads and edits files on an afero filesystem.
type Store struct {
	fs afero.Fs
}

// New returns a Store backed by fsys. A nil fsys uses the OS filesystem.
func New(fsys afero.Fs) *Store {
	if fsys == nil {
		fsys = afero.NewOsFs()
	}
	return &Store{fs: fsys}
}

// Fs returns the backing filesystem.
func (s *Store) Fs() afero.Fs {
	return s.fs
}

// ReadOptions controls Read.
type ReadOptions struct {
	// Start is the first line to return (0-based).
	Start int

	// End is the exclusive end of the window. Zero reads through the last line.
	End int

	// LineNumbers prefixes every line with its 1-based position.
	LineNumbers bool

	// MissingOK returns an empty result instead of a NotFound error.
	MissingOK bool
}

// Read returns the contents of path, optionally windowed and numbered.
// Line numbers always reflect the position in the whole file.
func (s *Store) Read(path string, opts ReadOptions) (string, error) {
	path = ExpandHome(path)

	if !s.exists(path) {
		if opts.MissingOK {
			return "", nil
		}
		return "", toolerr.New(toolerr.ErrNotFound, "read", path, "The file %q does not exist", path)
	}

	lines, err := s.readLines(path)
	if err != nil {
		return "", err
	}

	if opts.LineNumbers {
		for i, line := range lines {
			lines[i] = FormatLine(i+1, line)
		}
	}

	start, end := clamp(opts.Start, 0, len(lines)), len(lines)
	if opts.End > 0 {
		end = clamp(opts.End, start, len(lines))
	}

	return strings.Join(lines[start:end], ""), nil
}

// Edit replaces the window [start, end) of path with the lines of text and
// returns the complete new file contents.
//
// A negative start counts from the end of the file, so -1 appends. An end of
// zero means end == start, a pure insertion. Deleting is Edit(path, "", s, e).
func (s *Store) Edit(path, text string, start, end int) (string, error) {
	path = ExpandHome(path)

	if !s.exists(path) {
		return "", toolerr.New(toolerr.ErrNotFound, "edit", path, "The file %q does not exist", path)
	}
	if err := ValidateText(text); err != nil {
		return "", err
	}

	info, err := s.fs.Stat(path)
	if err != nil {
		return "", fmt.Errorf("failed to stat %s: %w", path, err)
	}

	lines, err := s.readLines(path)
	if err != nil {
		return "", err
	}

	lines = Splice(lines, SplitLines(text), start, end)

	if err := afero.WriteFile(s.fs, path, []byte(strings.Join(lines, "")), info.Mode().Perm()); err != nil {
		return "", fmt.Errorf("failed to write %s: %w", path, err)
	}

	data, err := afero.ReadFile(s.fs, path)
	if err != nil {
		return "", fmt.Errorf("failed to re-read %s: %w", path, err)
	}
	return string(data), nil
}

// Create writes contents to a new file, creating parent directories as needed.
func (s *Store) Create(path, contents string) (string, error) {
	path = ExpandHome(path)

	if s.exists(path) {
		return "", toolerr.New(toolerr.ErrAlreadyExists, "create", path, "The file %q already exists", path)
	}

	if dir := filepath.Dir(path); dir != "" {
		if err := s.fs.MkdirAll(dir, 0755); err != nil {
			return "", fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}

	f, err := s.fs.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
	if err != nil {
		if errors.Is(err, fs.ErrExist) {
			return "", toolerr.New(toolerr.ErrAlreadyExists, "create", path, "The file %q already exists", path)
		}
		return "", fmt.Errorf("failed to create %s: %w", path, err)
	}
	defer f.Close()

	if _, err := f.WriteString(contents); err != nil {
		return "", fmt.Errorf("failed to write %s: %w", path, err)
	}

	return fmt.Sprintf("Successfully wrote %q", path), nil
}

func (s *Store) exists(path string) bool {
	_, err := s.fs.Stat(path)
	return err == nil
}

func (s *Store) readLines(path string) ([]string, error) {
	data, err := afero.ReadFile(s.fs, path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, toolerr.Wrap(toolerr.ErrNotFound, "read", path, err)
		}
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return SplitLines(string(data)), nil
}

// =============================================================================
// LINE HELPERS
// =============================================================================

// FormatLine renders one numbered line, e.g. "12  |text\n".
func FormatLine(n int, line string) string {
	return fmt.Sprintf("%-*d|%s", LineNumberWidth, n, line)
}

// SplitLines splits s after every "\n". Each line keeps its terminator; the
// last one may lack it. An empty string has no lines.
func SplitLines(s string) []string {
	if s == "" {
		return nil
	}
	lines := strings.SplitAfter(s, "\n")
	if lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}
	return lines
}

// ValidateText checks that non-empty replacement text ends with a newline.
func ValidateText(text string) error {
	if text != "" && !strings.HasSuffix(text, "\n") {
		return toolerr.New(toolerr.ErrFormat, "edit", "", "The text must end with a newline character.")
	}
	return nil
}

// Splice replaces lines[start:end] with repl and returns the new sequence.
//
// start < 0 is reinterpreted as len(lines)+start+1 and end == 0 as start.
// A negative end counts from the end of the file. Both bounds clamp to the
// file and an end below start collapses the window to an insertion.
func Splice(lines, repl []string, start, end int) []string {
	n := len(lines)

	if start < 0 {
		start = n + start + 1
	}
	if end == 0 {
		end = start
	} else if end < 0 {
		end = n + end
	}
	start = clamp(start, 0, n)
	end = clamp(end, start, n)

	// Text placed after an unterminated final line must not merge into it.
	if start == n && n > 0 && len(repl) > 0 && !strings.HasSuffix(lines[n-1], "\n") {
		lines[n-1] += "\n"
	}

	out := make([]string, 0, n-(end-start)+len(repl))
	out = append(out, lines[:start]...)
	out = append(out, repl...)
	out = append(out, lines[end:]...)
	return out
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// ExpandHome replaces a leading "~" with the user's home directory.
func ExpandHome(path string) string {
	if path != "~" && !strings.HasPrefix(path, "~/") && !strings.HasPrefix(path, `~\`) {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, path[1:])
}
