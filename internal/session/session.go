// Copyright 2014 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package session holds the process-wide context the CLI drives: the
// currently open target plus the C6/C7/C8 workers bound to it. Swapping
// targets cancels and joins every worker bound to the prior target first,
// so nothing goes on reading or writing a target nobody holds anymore.
package session

import (
	"sync"

	"github.com/bibles-org/ravel/internal/scanner"
	"github.com/bibles-org/ravel/internal/strtab"
	"github.com/bibles-org/ravel/internal/target"
	"github.com/bibles-org/ravel/internal/xref"
)

// Context is the shared state backing one ravel CLI invocation.
type Context struct {
	mu     sync.Mutex
	target target.Target

	Scanner *scanner.Scanner
	Strings *strtab.Analyzer
	Xref    *xref.Engine
}

// New returns a Context with no target open and idle workers.
func New() *Context {
	return &Context{
		Scanner: scanner.New(),
		Strings: strtab.New(),
		Xref:    xref.New(),
	}
}

// Target returns the currently open target, or nil if none is open.
func (c *Context) Target() target.Target {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.target
}

// SetTarget cancels and joins every worker bound to the prior target,
// clears their result sets, then installs t as the active target. Pass
// nil to close the current target without opening a new one.
func (c *Context) SetTarget(t target.Target) {
	c.Scanner.Reset()
	c.Strings.Clear()
	c.Xref.Clear()

	c.mu.Lock()
	c.target = t
	c.mu.Unlock()
}

// IsOpen reports whether a target is currently set.
func (c *Context) IsOpen() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.target != nil
}

// LiveTarget returns the active target narrowed to target.LiveTarget,
// if the open target is a live process target.
func (c *Context) LiveTarget() (target.LiveTarget, bool) {
	c.mu.Lock()
	t := c.target
	c.mu.Unlock()
	if t == nil {
		return nil, false
	}
	lt, ok := t.(target.LiveTarget)
	return lt, ok
}
