// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package toolerr defines the error taxonomy shared by every toolshop tool.
//
// Callers match on the sentinel kinds with errors.Is:
//
//	if errors.Is(err, toolerr.ErrPrecondition) {
//		// re-read the file and try again
//	}
package toolerr

import (
	"errors"
	"fmt"
)

// =============================================================================
// ERROR KINDS
// =============================================================================

var (
	// ErrNotFound means a path that had to exist does not.
	ErrNotFound = errors.New("not found")

	// ErrAlreadyExists means a path that must not exist does.
	ErrAlreadyExists = errors.New("already exists")

	// ErrFormat means supplied text does not satisfy the line format contract.
	ErrFormat = errors.New("format error")

	// ErrPrecondition means the call was issued out of order (stale read) or
	// with a contradictory configuration.
	ErrPrecondition = errors.New("precondition failed")

	// ErrConfirmationDenied means a tool requiring confirmation was not confirmed.
	ErrConfirmationDenied = errors.New("confirmation denied")

	// ErrInvalidArgument means a parameter was missing, mistyped or out of range.
	ErrInvalidArgument = errors.New("invalid argument")
)

// =============================================================================
// ERROR TYPE
// =============================================================================

// Error carries a kind plus the operation and path it happened on.
type Error struct {
	Kind    error  // One of the Err* sentinels
	Op      string // Tool or primitive name, e.g. "replace_lines"
	Path    string // Affected path, if any
	Message string // Human readable detail
	Err     error  // Underlying cause, if any
}

// Error implements the error interface.
func (e *Error) Error() string {
	msg := e.Message
	if msg == "" && e.Kind != nil {
		msg = e.Kind.Error()
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	if e.Op != "" {
		return e.Op + ": " + msg
	}
	return msg
}

// Unwrap exposes both the kind and the cause to errors.Is / errors.As.
func (e *Error) Unwrap() []error {
	errs := make([]error, 0, 2)
	if e.Kind != nil {
		errs = append(errs, e.Kind)
	}
	if e.Err != nil {
		errs = append(errs, e.Err)
	}
	return errs
}

// =============================================================================
// CONSTRUCTORS
// =============================================================================

// New returns an *Error of the given kind.
func New(kind error, op, path, format string, args ...interface{}) *Error {
	return &Error{
		Kind:    kind,
		Op:      op,
		Path:    path,
		Message: fmt.Sprintf(format, args...),
	}
}

// Wrap returns an *Error of the given kind wrapping cause.
func Wrap(kind error, op, path string, cause error) *Error {
	return &Error{
		Kind: kind,
		Op:   op,
		Path: path,
		Err:  cause,
	}
}

// KindOf returns the sentinel kind of err, or nil when err is not classified.
func KindOf(err error) error {
	for _, kind := range []error{
		ErrNotFound,
		ErrAlreadyExists,
		ErrFormat,
		ErrPrecondition,
		ErrConfirmationDenied,
		ErrInvalidArgument,
	} {
		if errors.Is(err, kind) {
			return kind
		}
	}
	return nil
}
