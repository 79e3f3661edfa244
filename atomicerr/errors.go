// Copyright 2026 The atomicexec Authors
// This file is part of the atomicexec library.
//
// The atomicexec library is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// The atomicexec library is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with the atomicexec library. If not, see <http://www.gnu.org/licenses/>.

// Package atomicerr implements the error taxonomy of the atomic
// execution protocol (spec §7): every failure that crosses a registry
// or coordinator method boundary carries one of a fixed set of codes.
package atomicerr

import (
	"fmt"

	"github.com/pkg/errors"
)

// Code is the stable error taxonomy. Callers across the actor boundary
// are expected to switch on Code, not on error string content.
type Code int

const (
	// Unspecified is the catch-all for propagated storage/serialization errors.
	Unspecified Code = iota
	// IllegalArgument covers malformed params, unresolvable addresses, and
	// a caller missing from an `actors` set.
	IllegalArgument
	// IllegalState covers broken registry invariants: CID mismatches,
	// unknown input/exec IDs, nonce exhaustion, and lock discipline
	// violations (StateLocked/AlreadyLocked/NotLocked all surface as this).
	IllegalState
	// Forbidden covers caller-authentication failures.
	Forbidden
	// UnhandledMessage covers an unrecognized method number.
	UnhandledMessage
)

func (c Code) String() string {
	switch c {
	case IllegalArgument:
		return "IllegalArgument"
	case IllegalState:
		return "IllegalState"
	case Forbidden:
		return "Forbidden"
	case UnhandledMessage:
		return "UnhandledMessage"
	default:
		return "Unspecified"
	}
}

// codedError pairs a Code with a wrapped underlying error so that
// errors.Cause (pkg/errors) still reaches the root cause for logging.
type codedError struct {
	code Code
	err  error
}

func (e *codedError) Error() string { return fmt.Sprintf("%s: %v", e.code, e.err) }
func (e *codedError) Cause() error  { return e.err }
func (e *codedError) Unwrap() error { return e.err }

// New builds a coded error from a message.
func New(code Code, msg string) error {
	return &codedError{code: code, err: errors.New(msg)}
}

// Newf builds a coded error from a format string.
func Newf(code Code, format string, args ...interface{}) error {
	return &codedError{code: code, err: errors.Errorf(format, args...)}
}

// Wrap attaches a code to an existing error, preserving it as the cause.
func Wrap(code Code, err error, msg string) error {
	if err == nil {
		return nil
	}
	return &codedError{code: code, err: errors.Wrap(err, msg)}
}

// Wrapf attaches a code to an existing error with a formatted message.
func Wrapf(code Code, err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return &codedError{code: code, err: errors.Wrapf(err, format, args...)}
}

// CodeOf extracts the Code from err, defaulting to Unspecified for
// errors that never passed through this package (e.g. a bare storage
// error propagated unwrapped).
func CodeOf(err error) Code {
	var ce *codedError
	if errors.As(err, &ce) {
		return ce.code
	}
	return Unspecified
}

// Is reports whether err carries the given code.
func Is(err error, code Code) bool {
	return err != nil && CodeOf(err) == code
}

var (
	// ErrUnknownInputID is returned by cancel/prepare when the registry
	// has no AtomicInputEntry for the given AtomicInputID.
	ErrUnknownInputID = New(IllegalState, "unknown atomic input id")
	// ErrUnknownExecID is returned by commit/rollback when the registry
	// has no AtomicOutputEntry for the given AtomicExecID.
	ErrUnknownExecID = New(IllegalState, "unknown atomic exec id")
	// ErrStateCidMismatch is returned by prepare when a state slice
	// drifted between init and prepare (I2).
	ErrStateCidMismatch = New(IllegalState, "state cid does not match value recorded at init")
	// ErrAlreadyLocked is returned by lock() on an already-locked state,
	// and by init when a referenced slice is already locked.
	ErrAlreadyLocked = New(IllegalState, "state already locked")
	// ErrNotLocked is returned by unlock() on a state that isn't locked.
	ErrNotLocked = New(IllegalState, "state not locked")
	// ErrStateLocked is returned by get_mut/modify on a locked state.
	ErrStateLocked = New(IllegalState, "state locked")
	// ErrNonceExhausted guards the registry's monotonic u64 nonce.
	ErrNonceExhausted = New(IllegalState, "registry nonce exhausted")
)
