// Copyright 2014 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package errkind defines the closed set of failure kinds that every
// fallible core operation in ravel returns. There is no free-form error
// text in the core: every failure is exactly one of these kinds, wrapped
// in an error so that callers can still use errors.Is/As and %w chains
// for diagnostics while switching on Kind for behavior.
package errkind

import (
	"errors"
	"fmt"
)

// Kind is a closed enumeration of core failure categories.
type Kind int

const (
	_ Kind = iota
	ProcFSUnavailable
	PermissionDenied
	ProcessNotFound
	InvalidAddress
	OutOfMemory
	ReadFailed
	WriteFailed
	PartialRead
)

func (k Kind) String() string {
	switch k {
	case ProcFSUnavailable:
		return "proc-fs-unavailable"
	case PermissionDenied:
		return "permission-denied"
	case ProcessNotFound:
		return "process-not-found"
	case InvalidAddress:
		return "invalid-address"
	case OutOfMemory:
		return "out-of-memory"
	case ReadFailed:
		return "read-failed"
	case WriteFailed:
		return "write-failed"
	case PartialRead:
		return "partial-read"
	default:
		return "unknown-error-kind"
	}
}

// Error wraps a Kind so it satisfies the error interface while still
// being comparable with errors.Is and recoverable with errors.As.
type Error struct {
	Kind Kind
	// Cause is the underlying platform or parse error, if any. It is
	// never shown to the UI as core error text; it exists only for
	// log-level diagnostics.
	Cause error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Kind, e.Cause)
	}
	return e.Kind.String()
}

func (e *Error) Unwrap() error { return e.Cause }

// Is reports whether target is a bare sentinel (an *Error with no Cause,
// as produced by New) of the same Kind. This lets callers write
// errors.Is(err, errkind.New(errkind.ProcessNotFound)) instead of
// type-asserting.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && t.Cause == nil
}

// New returns a bare sentinel error of the given kind, suitable for use
// with errors.Is as the target (e.g. errkind.New(errkind.ProcessNotFound)).
func New(k Kind) error {
	return &Error{Kind: k}
}

// Wrap returns an error of the given kind that remembers cause for
// diagnostics without leaking cause's text into the core's contract.
func Wrap(k Kind, cause error) error {
	if cause == nil {
		return New(k)
	}
	return &Error{Kind: k, Cause: cause}
}

// KindOf extracts the Kind from err, or returns false if err is not one
// of ours (e.g. it escaped a non-core boundary).
func KindOf(err error) (Kind, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind, true
	}
	return 0, false
}
