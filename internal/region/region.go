// Copyright 2017 The Go Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package region holds the value types shared by every target
// implementation: a process descriptor and a memory region descriptor.
package region

import "fmt"

// Process describes one process visible to the platform controller's
// enumerate_processes operation.
type Process struct {
	PID            uint32
	ShortName      string
	ExecutablePath string // may hold a placeholder such as "[access denied]"
}

// Placeholder executable-path strings used when the OS denies the real
// path. Picked in the order the platform controller tries them.
const (
	PlaceholderSystemProcess = "[system process]"
	PlaceholderAccessDenied  = "[access denied]"
)

// ShortNamePlaceholder returns the bracketed fallback used when neither
// the real path nor the generic placeholders apply.
func ShortNamePlaceholder(shortName string) string {
	return "[" + shortName + "]"
}

// Perms is a 3-character permission string, each slot either the
// permission letter or '-': "rwx", "r--", "r-x", and so on.
type Perms [3]byte

// ParsePerms builds a Perms from the three booleans in r, w, x order.
func ParsePerms(r, w, x bool) Perms {
	p := Perms{'-', '-', '-'}
	if r {
		p[0] = 'r'
	}
	if w {
		p[1] = 'w'
	}
	if x {
		p[2] = 'x'
	}
	return p
}

func (p Perms) String() string { return string(p[:]) }

func (p Perms) Has(c byte) bool {
	for _, b := range p {
		if b == c {
			return true
		}
	}
	return false
}

func (p Perms) Readable() bool   { return p.Has('r') }
func (p Perms) Writable() bool   { return p.Has('w') }
func (p Perms) Executable() bool { return p.Has('x') }

// Region is a maximal contiguous range of virtual addresses with uniform
// permissions. Regions returned by a target never overlap and are sorted
// ascending by Base.
type Region struct {
	Base  uint64
	Size  uint64
	Perms Perms
	Name  string
}

// End returns the address just past the region.
func (r Region) End() uint64 { return r.Base + r.Size }

// Contains reports whether addr falls within [Base, Base+Size).
func (r Region) Contains(addr uint64) bool {
	return addr >= r.Base && addr < r.End()
}

// Overlaps reports whether r and other share any address.
func (r Region) Overlaps(other Region) bool {
	return r.Base < other.End() && other.Base < r.End()
}

func (r Region) String() string {
	return fmt.Sprintf("%016x-%016x %s %s", r.Base, r.End(), r.Perms, r.Name)
}

// Sorted reports whether regions is in strictly ascending order by Base,
// the invariant every target must uphold.
func Sorted(regions []Region) bool {
	for i := 1; i < len(regions); i++ {
		if regions[i].Base <= regions[i-1].Base {
			return false
		}
	}
	return true
}
