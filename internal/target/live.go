// Copyright 2014 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package target

import (
	"github.com/bibles-org/ravel/internal/errkind"
	"github.com/bibles-org/ravel/internal/platform"
	"github.com/bibles-org/ravel/internal/region"
)

// liveTarget is a target.LiveTarget backed by the platform controller.
// It owns at most one attached pid at a time.
type liveTarget struct {
	ctrl platform.Controller
}

// NewLive constructs an unattached live target.
func NewLive(ctrl platform.Controller) LiveTarget {
	return &liveTarget{ctrl: ctrl}
}

func (t *liveTarget) EnumerateProcesses() ([]region.Process, error) {
	return t.ctrl.EnumerateProcesses()
}

func (t *liveTarget) Attach(pid uint32) error { return t.ctrl.Attach(pid) }
func (t *liveTarget) Detach() error           { return t.ctrl.Detach() }

func (t *liveTarget) IsAttached() bool {
	_, ok := t.ctrl.AttachedPID()
	return ok
}

func (t *liveTarget) AttachedPID() (uint32, bool) { return t.ctrl.AttachedPID() }

func (t *liveTarget) Read(addr uint64, buf []byte) (int, error) {
	pid, ok := t.ctrl.AttachedPID()
	if !ok {
		return 0, errkind.New(errkind.ProcessNotFound)
	}
	return t.ctrl.Read(pid, addr, buf)
}

func (t *liveTarget) Write(addr uint64, buf []byte) (int, error) {
	pid, ok := t.ctrl.AttachedPID()
	if !ok {
		return 0, errkind.New(errkind.ProcessNotFound)
	}
	return t.ctrl.Write(pid, addr, buf)
}

func (t *liveTarget) Regions() ([]region.Region, error) {
	pid, ok := t.ctrl.AttachedPID()
	if !ok {
		return nil, errkind.New(errkind.ProcessNotFound)
	}
	return t.ctrl.Regions(pid)
}

func (t *liveTarget) IsLive() bool { return true }

func (t *liveTarget) Name() string {
	pid, ok := t.ctrl.AttachedPID()
	if !ok {
		return "<unattached>"
	}
	procs, err := t.ctrl.EnumerateProcesses()
	if err == nil {
		for _, p := range procs {
			if p.PID == pid {
				return p.ShortName
			}
		}
	}
	return "<live process>"
}

// EntryPoint is unknown for live processes: no PDB/DWARF symbol
// resolution is performed (non-goal), so there is no base-image header
// parse to source it from.
func (t *liveTarget) EntryPoint() (uint64, bool) { return 0, false }
