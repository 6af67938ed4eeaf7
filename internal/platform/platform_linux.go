// Copyright 2014 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package platform

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"
	"sync"

	"golang.org/x/sys/unix"

	"github.com/bibles-org/ravel/internal/errkind"
	"github.com/bibles-org/ravel/internal/region"
)

// New returns the platform controller for the running OS.
func New() Controller { return &linuxController{memFD: -1} }

// linuxController talks to the kernel process-info filesystem (procfs)
// and the vector-io "remote process" syscalls for the attached pid.
// Attach is a read-only accessibility check, not a debugger attach: it
// opens /proc/<pid>/mem O_RDONLY and keeps the descriptor only to prove
// (and remember) that the pid is reachable. Read/Write go through
// process_vm_readv/writev by pid, not through that descriptor.
type linuxController struct {
	mu      sync.Mutex
	memFD   int
	memFile *os.File
	pid     uint32
	has     bool
}

func (c *linuxController) EnumerateProcesses() ([]region.Process, error) {
	entries, err := os.ReadDir("/proc")
	if err != nil {
		return nil, errkind.Wrap(errkind.ProcFSUnavailable, err)
	}
	var procs []region.Process
	for _, e := range entries {
		pid, err := strconv.ParseUint(e.Name(), 10, 32)
		if err != nil {
			continue
		}
		procs = append(procs, describeProcess(uint32(pid)))
	}
	sort.Slice(procs, func(i, j int) bool { return procs[i].PID < procs[j].PID })
	return procs, nil
}

func describeProcess(pid uint32) region.Process {
	short := readShortName(pid)
	path, err := os.Readlink(fmt.Sprintf("/proc/%d/exe", pid))
	if err == nil && path != "" {
		return region.Process{PID: pid, ShortName: short, ExecutablePath: path}
	}
	if cmd := readCmdline(pid); cmd != "" {
		return region.Process{PID: pid, ShortName: short, ExecutablePath: cmd}
	}
	if os.IsPermission(err) {
		return region.Process{PID: pid, ShortName: short, ExecutablePath: region.PlaceholderAccessDenied}
	}
	return region.Process{PID: pid, ShortName: short, ExecutablePath: region.ShortNamePlaceholder(short)}
}

func readShortName(pid uint32) string {
	data, err := os.ReadFile(fmt.Sprintf("/proc/%d/comm", pid))
	if err != nil {
		return "?"
	}
	return strings.TrimSpace(string(data))
}

func readCmdline(pid uint32) string {
	data, err := os.ReadFile(fmt.Sprintf("/proc/%d/cmdline", pid))
	if err != nil || len(data) == 0 {
		return ""
	}
	fields := strings.Split(strings.TrimRight(string(data), "\x00"), "\x00")
	if len(fields) == 0 {
		return ""
	}
	return fields[0]
}

// Attach proves the pid's memory is reachable by opening
// /proc/<pid>/mem O_RDONLY; it never stops, signals, or otherwise
// controls the target. A prior attach's descriptor is closed first.
func (c *linuxController) Attach(pid uint32) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.has {
		c.doDetach()
	}
	f, err := os.Open(fmt.Sprintf("/proc/%d/mem", pid))
	if err != nil {
		return mapErrno(err, errkind.ProcFSUnavailable)
	}
	c.memFD = int(f.Fd())
	c.memFile = f
	c.pid, c.has = pid, true
	return nil
}

func (c *linuxController) Detach() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.doDetach()
}

// doDetach must be called with c.mu held.
func (c *linuxController) doDetach() error {
	if !c.has {
		return nil
	}
	if c.memFile != nil {
		c.memFile.Close()
		c.memFile = nil
	}
	c.memFD = -1
	c.has = false
	return nil
}

func (c *linuxController) AttachedPID() (uint32, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pid, c.has
}

func (c *linuxController) Regions(pid uint32) ([]region.Region, error) {
	f, err := os.Open(fmt.Sprintf("/proc/%d/maps", pid))
	if err != nil {
		return nil, mapErrno(err, errkind.ProcFSUnavailable)
	}
	defer f.Close()

	var regions []region.Region
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		r, ok := parseMapsLine(line)
		if ok {
			regions = append(regions, r)
		}
	}
	if len(regions) == 0 {
		return nil, errkind.New(errkind.ProcessNotFound)
	}
	return regions, nil
}

// parseMapsLine parses one non-blank line of /proc/<pid>/maps:
//
//	start-end perms offset dev inode name?
func parseMapsLine(line string) (region.Region, bool) {
	fields := strings.Fields(line)
	if len(fields) < 5 {
		return region.Region{}, false
	}
	addrs := strings.SplitN(fields[0], "-", 2)
	if len(addrs) != 2 {
		return region.Region{}, false
	}
	start, err1 := strconv.ParseUint(addrs[0], 16, 64)
	end, err2 := strconv.ParseUint(addrs[1], 16, 64)
	if err1 != nil || err2 != nil || end < start {
		return region.Region{}, false
	}
	permField := fields[1]
	perms := region.ParsePerms(
		strings.ContainsRune(permField, 'r'),
		strings.ContainsRune(permField, 'w'),
		strings.ContainsRune(permField, 'x'),
	)
	name := "<anonymous>"
	if len(fields) >= 6 {
		name = strings.Join(fields[5:], " ")
	}
	return region.Region{Base: start, Size: end - start, Perms: perms, Name: name}, true
}

func (c *linuxController) Read(pid uint32, addr uint64, buf []byte) (int, error) {
	local := []unix.Iovec{{Base: &buf[0], Len: uint64(len(buf))}}
	remote := []unix.RemoteIovec{{Base: uintptr(addr), Len: len(buf)}}
	n, err := unix.ProcessVMReadv(int(pid), local, remote, 0)
	if err != nil {
		return n, mapErrno(err, errkind.ReadFailed)
	}
	if n < len(buf) {
		return n, errkind.New(errkind.PartialRead)
	}
	return n, nil
}

func (c *linuxController) Write(pid uint32, addr uint64, buf []byte) (int, error) {
	local := []unix.Iovec{{Base: &buf[0], Len: uint64(len(buf))}}
	remote := []unix.RemoteIovec{{Base: uintptr(addr), Len: len(buf)}}
	n, err := unix.ProcessVMWritev(int(pid), local, remote, 0)
	if err != nil {
		return n, mapErrno(err, errkind.WriteFailed)
	}
	if n < len(buf) {
		return n, errkind.New(errkind.PartialRead)
	}
	return n, nil
}

// mapErrno applies the spec's errno-to-Kind table, falling back to
// dflt for anything not explicitly named. errors.Is unwraps the
// *fs.PathError that os.Open/os.ReadFile wrap raw errnos in, so the
// same table serves both procfs opens and the vector-io syscalls.
func mapErrno(err error, dflt errkind.Kind) error {
	switch {
	case errors.Is(err, unix.EPERM), errors.Is(err, unix.EACCES):
		return errkind.Wrap(errkind.PermissionDenied, err)
	case errors.Is(err, unix.ESRCH), errors.Is(err, unix.ENOENT):
		return errkind.Wrap(errkind.ProcessNotFound, err)
	case errors.Is(err, unix.EFAULT):
		return errkind.Wrap(errkind.InvalidAddress, err)
	case errors.Is(err, unix.ENOMEM):
		return errkind.Wrap(errkind.OutOfMemory, err)
	}
	if os.IsPermission(err) {
		return errkind.Wrap(errkind.PermissionDenied, err)
	}
	if os.IsNotExist(err) {
		return errkind.Wrap(errkind.ProcessNotFound, err)
	}
	return errkind.Wrap(dflt, err)
}
