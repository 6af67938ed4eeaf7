// Copyright 2014 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package platform

import (
	"fmt"
	"sort"
	"sync"
	"unsafe"

	"golang.org/x/sys/windows"

	"github.com/bibles-org/ravel/internal/errkind"
	"github.com/bibles-org/ravel/internal/region"
)

// New returns the platform controller for the running OS.
func New() Controller { return &windowsController{} }

type windowsController struct {
	mu      sync.Mutex
	handle  windows.Handle
	pid     uint32
	has     bool
}

func (c *windowsController) EnumerateProcesses() ([]region.Process, error) {
	snap, err := windows.CreateToolhelp32Snapshot(windows.TH32CS_SNAPPROCESS, 0)
	if err != nil {
		return nil, errkind.Wrap(errkind.ProcFSUnavailable, err)
	}
	defer windows.CloseHandle(snap)

	var entry windows.ProcessEntry32
	entry.Size = uint32(unsafe.Sizeof(entry))
	var procs []region.Process
	for err = windows.Process32First(snap, &entry); err == nil; err = windows.Process32Next(snap, &entry) {
		pid := entry.ProcessID
		short := windows.UTF16ToString(entry.ExeFile[:])
		procs = append(procs, region.Process{
			PID:            pid,
			ShortName:      short,
			ExecutablePath: resolveImagePath(pid, short),
		})
	}
	sort.Slice(procs, func(i, j int) bool { return procs[i].PID < procs[j].PID })
	return procs, nil
}

func resolveImagePath(pid uint32, short string) string {
	h, err := windows.OpenProcess(windows.PROCESS_QUERY_LIMITED_INFORMATION, false, pid)
	if err != nil {
		return region.PlaceholderAccessDenied
	}
	defer windows.CloseHandle(h)

	buf := make([]uint16, windows.MAX_PATH)
	size := uint32(len(buf))
	if err := windows.QueryFullProcessImageName(h, 0, &buf[0], &size); err != nil {
		return region.ShortNamePlaceholder(short)
	}
	return windows.UTF16ToString(buf[:size])
}

func (c *windowsController) Attach(pid uint32) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.has {
		c.doDetach()
	}
	access := windows.PROCESS_QUERY_INFORMATION | windows.PROCESS_VM_READ |
		windows.PROCESS_VM_WRITE | windows.PROCESS_VM_OPERATION
	h, err := windows.OpenProcess(uint32(access), false, pid)
	if err != nil {
		return mapWinError(err)
	}
	c.handle, c.pid, c.has = h, pid, true
	return nil
}

func (c *windowsController) Detach() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.doDetach()
}

func (c *windowsController) doDetach() error {
	if !c.has {
		return nil
	}
	err := windows.CloseHandle(c.handle)
	c.has = false
	if err != nil {
		return errkind.Wrap(errkind.ProcessNotFound, err)
	}
	return nil
}

func (c *windowsController) AttachedPID() (uint32, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pid, c.has
}

// protectPerms implements the NOACCESS/GUARD/READONLY/... -> "rwx" table
// from the spec's Windows backend section.
func protectPerms(protect uint32) region.Perms {
	if protect&windows.PAGE_NOACCESS != 0 {
		return region.Perms{'-', '-', '-'}
	}
	if protect&windows.PAGE_GUARD != 0 {
		return region.Perms{'g', '-', '-'}
	}
	readable := protect&(windows.PAGE_READONLY|windows.PAGE_READWRITE|
		windows.PAGE_EXECUTE_READ|windows.PAGE_EXECUTE_READWRITE|
		windows.PAGE_WRITECOPY|windows.PAGE_EXECUTE_WRITECOPY) != 0
	writable := protect&(windows.PAGE_READWRITE|windows.PAGE_WRITECOPY|
		windows.PAGE_EXECUTE_READWRITE|windows.PAGE_EXECUTE_WRITECOPY) != 0
	executable := protect&(windows.PAGE_EXECUTE|windows.PAGE_EXECUTE_READ|
		windows.PAGE_EXECUTE_READWRITE|windows.PAGE_EXECUTE_WRITECOPY) != 0
	return region.ParsePerms(readable, writable, executable)
}

func (c *windowsController) Regions(pid uint32) ([]region.Region, error) {
	h, err := windows.OpenProcess(windows.PROCESS_QUERY_INFORMATION|windows.PROCESS_VM_READ, false, pid)
	if err != nil {
		return nil, mapWinError(err)
	}
	defer windows.CloseHandle(h)

	var regions []region.Region
	var addr uintptr
	for {
		var info windows.MemoryBasicInformation
		err := windows.VirtualQueryEx(h, addr, &info, unsafe.Sizeof(info))
		if err != nil {
			break
		}
		if info.State != windows.MEM_FREE && info.RegionSize > 0 {
			regions = append(regions, region.Region{
				Base:  uint64(info.BaseAddress),
				Size:  uint64(info.RegionSize),
				Perms: protectPerms(info.Protect),
				Name:  regionName(info),
			})
		}
		next := addr + uintptr(info.RegionSize)
		if next <= addr { // address wrap-around
			break
		}
		addr = next
	}
	if len(regions) == 0 {
		return nil, errkind.New(errkind.ProcessNotFound)
	}
	return regions, nil
}

func regionName(info windows.MemoryBasicInformation) string {
	switch info.Type {
	case windows.MEM_IMAGE:
		return "[image]"
	case windows.MEM_MAPPED:
		return "[mapped]"
	case windows.MEM_PRIVATE:
		return "[private]"
	default:
		return "<anonymous>"
	}
}

func (c *windowsController) Read(pid uint32, addr uint64, buf []byte) (int, error) {
	c.mu.Lock()
	h := c.handle
	c.mu.Unlock()
	var n uintptr
	err := windows.ReadProcessMemory(h, uintptr(addr), &buf[0], uintptr(len(buf)), &n)
	if err != nil {
		return int(n), mapWinError(err)
	}
	if int(n) < len(buf) {
		return int(n), errkind.New(errkind.PartialRead)
	}
	return int(n), nil
}

func (c *windowsController) Write(pid uint32, addr uint64, buf []byte) (int, error) {
	c.mu.Lock()
	h := c.handle
	c.mu.Unlock()
	var n uintptr
	err := windows.WriteProcessMemory(h, uintptr(addr), &buf[0], uintptr(len(buf)), &n)
	if err != nil {
		return int(n), mapWinError(err)
	}
	if int(n) < len(buf) {
		return int(n), errkind.New(errkind.PartialRead)
	}
	return int(n), nil
}

func mapWinError(err error) error {
	switch err {
	case windows.ERROR_ACCESS_DENIED:
		return errkind.Wrap(errkind.PermissionDenied, err)
	case windows.ERROR_INVALID_PARAMETER:
		return errkind.Wrap(errkind.InvalidAddress, err)
	case windows.ERROR_NOT_ENOUGH_MEMORY:
		return errkind.Wrap(errkind.OutOfMemory, err)
	}
	return errkind.Wrap(errkind.ReadFailed, fmt.Errorf("windows: %w", err))
}
