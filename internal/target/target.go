// Copyright 2014 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package target unifies "live process" and "file image" behind one
// capability set, the way program.Program unifies a local or remote
// debuggee in the teacher tree — but narrowed to the read/write/regions
// operations this analysis core needs, with no breakpoint or stepping
// surface.
package target

import "github.com/bibles-org/ravel/internal/region"

// Target is the capability every analysis component (scanner, strings
// analyzer, xref engine) reads through.
type Target interface {
	// Read copies up to len(buf) bytes starting at addr into buf.
	// Short reads return errkind.PartialRead with n set to the number of
	// real bytes copied into buf[0:n].
	Read(addr uint64, buf []byte) (int, error)

	// Write writes buf at addr. File targets always fail with
	// ErrWriteUnsupported; live targets may fail with a core error such
	// as permission-denied.
	Write(addr uint64, buf []byte) (int, error)

	Regions() ([]region.Region, error)
	IsLive() bool
	Name() string

	// EntryPoint returns the target's entry point address, if known.
	EntryPoint() (uint64, bool)
}

// LiveTarget is the superset of Target exposed only by process targets.
type LiveTarget interface {
	Target
	EnumerateProcesses() ([]region.Process, error)
	Attach(pid uint32) error
	Detach() error
	IsAttached() bool
	AttachedPID() (uint32, bool)
}
