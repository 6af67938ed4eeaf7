// Copyright 2014 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package platform provides OS-specific process enumeration, attach,
// memory-region listing, and memory read/write. Each platform's
// implementation lives behind a build tag; New selects the one for the
// running OS.
package platform

import "github.com/bibles-org/ravel/internal/region"

// Controller is the capability set a live target needs from the
// operating system. At most one pid is attached per Controller instance;
// Attach on a new pid implicitly detaches the previous one.
type Controller interface {
	EnumerateProcesses() ([]region.Process, error)
	Attach(pid uint32) error
	Detach() error
	Regions(pid uint32) ([]region.Region, error)
	Read(pid uint32, addr uint64, buf []byte) (int, error)
	Write(pid uint32, addr uint64, buf []byte) (int, error)
	AttachedPID() (uint32, bool)
}
