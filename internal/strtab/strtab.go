// Copyright 2014 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package strtab implements the concurrent strings analyzer: scan
// readable memory for runs of printable bytes, keep them sorted by
// address, and serve exact-address lookups. Shares the worker/cancel/
// publish shape of internal/scanner.
package strtab

import (
	"math"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/bibles-org/ravel/internal/region"
	"github.com/bibles-org/ravel/internal/target"
)

const chunkSize = 64 * 1024

// Config configures a strings scan.
type Config struct {
	MinLength      int  // default 4
	ScanExecutable bool // default false
}

// DefaultConfig returns the spec's default configuration.
func DefaultConfig() Config { return Config{MinLength: 4} }

// Ref is one detected string: its address and byte length.
type Ref struct {
	Address uint64
	Length  uint32
}

// Analyzer is a strings scanner over one target.
type Analyzer struct {
	mu    sync.Mutex
	resMu sync.RWMutex
	refs  []Ref

	scanning atomic.Bool
	progress atomic.Uint32

	cancel chan struct{}
	done   chan struct{}
}

// New returns an idle analyzer.
func New() *Analyzer { return &Analyzer{} }

func (a *Analyzer) IsScanning() bool { return a.scanning.Load() }

func (a *Analyzer) Progress() float32 {
	return math.Float32frombits(a.progress.Load())
}

func (a *Analyzer) setProgress(p float32) { a.progress.Store(math.Float32bits(p)) }

// Count returns the number of strings found.
func (a *Analyzer) Count() int {
	a.resMu.RLock()
	defer a.resMu.RUnlock()
	return len(a.refs)
}

// GetBatch copies up to len(out) refs starting at index start into out,
// returning the number copied.
func (a *Analyzer) GetBatch(start int, out []Ref) int {
	a.resMu.RLock()
	defer a.resMu.RUnlock()
	if start < 0 || start >= len(a.refs) {
		return 0
	}
	n := copy(out, a.refs[start:])
	return n
}

// FindExact returns the Ref whose Address equals addr, if any.
func (a *Analyzer) FindExact(addr uint64) (Ref, bool) {
	a.resMu.RLock()
	defer a.resMu.RUnlock()
	i := sort.Search(len(a.refs), func(i int) bool { return a.refs[i].Address >= addr })
	if i < len(a.refs) && a.refs[i].Address == addr {
		return a.refs[i], true
	}
	return Ref{}, false
}

// Clear discards the result set and returns the analyzer to idle,
// cancelling and joining any in-flight scan first.
func (a *Analyzer) Clear() {
	a.Cancel()
	a.resMu.Lock()
	a.refs = nil
	a.resMu.Unlock()
	a.setProgress(0)
}

// Wait blocks until the current (or most recently started) scan has
// finished, without requesting cancellation.
func (a *Analyzer) Wait() {
	a.mu.Lock()
	done := a.done
	a.mu.Unlock()
	if done != nil {
		<-done
	}
}

// Cancel requests cancellation of any in-flight scan and blocks until
// the worker has joined.
func (a *Analyzer) Cancel() {
	a.mu.Lock()
	cancel, done := a.cancel, a.done
	a.cancel = nil
	a.mu.Unlock()
	if cancel == nil {
		return
	}
	close(cancel)
	<-done
}

// Scan starts a new strings scan over t, cancelling and joining any
// prior scan first.
func (a *Analyzer) Scan(t target.Target, cfg Config) {
	a.Cancel()

	a.mu.Lock()
	cancel := make(chan struct{})
	done := make(chan struct{})
	a.cancel, a.done = cancel, done
	a.mu.Unlock()

	a.scanning.Store(true)
	a.setProgress(0)

	if cfg.MinLength <= 0 {
		cfg.MinLength = 4
	}

	go func() {
		defer close(done)
		defer a.scanning.Store(false)

		regions, err := t.Regions()
		if err != nil {
			a.publish(nil)
			return
		}
		var candidates []region.Region
		for _, r := range regions {
			if !r.Perms.Readable() {
				continue
			}
			if r.Perms.Executable() && !cfg.ScanExecutable {
				continue
			}
			candidates = append(candidates, r)
		}

		var local []Ref
		for _, r := range candidates {
			select {
			case <-cancel:
				return
			default:
			}
			local = scanRegionForStrings(t, r, cfg.MinLength, local)
		}
		a.publish(local)
	}()
}

func scanRegionForStrings(t target.Target, r region.Region, minLength int, acc []Ref) []Ref {
	buf := make([]byte, chunkSize)
	inRun := false
	runStart := uint64(0)

	flush := func(end uint64) {
		if inRun && end-runStart >= uint64(minLength) {
			acc = append(acc, Ref{Address: r.Base + runStart, Length: uint32(end - runStart)})
		}
		inRun = false
	}

	for off := uint64(0); off < r.Size; off += uint64(len(buf)) {
		n := len(buf)
		if remain := r.Size - off; uint64(n) > remain {
			n = int(remain)
		}
		chunk := buf[:n]
		read, err := t.Read(r.Base+off, chunk)
		if err != nil && read == 0 {
			flush(off)
			continue
		}
		chunk = chunk[:read]
		for i, b := range chunk {
			pos := off + uint64(i)
			if isPrintable(b) {
				if !inRun {
					inRun, runStart = true, pos
				}
			} else {
				flush(pos)
			}
		}
	}
	flush(r.Size)
	return acc
}

func isPrintable(b byte) bool {
	return (b >= 0x20 && b <= 0x7E) || b == 0x09
}

func (a *Analyzer) publish(refs []Ref) {
	sort.Slice(refs, func(i, j int) bool { return refs[i].Address < refs[j].Address })
	a.resMu.Lock()
	a.refs = refs
	a.resMu.Unlock()
	a.setProgress(1)
}

// ReadString rereads length bytes at addr from t (because memory may
// have changed since the scan), capped at 256 bytes, replacing control
// characters other than tab with '.' for display. This re-sanitization
// is deliberate: the scan already asserted printability, but the target
// may have mutated since.
func ReadString(t target.Target, ref Ref) string {
	n := int(ref.Length)
	if n > 256 {
		n = 256
	}
	buf := make([]byte, n)
	read, err := t.Read(ref.Address, buf)
	if err != nil && read == 0 {
		return ""
	}
	buf = buf[:read]
	for i, b := range buf {
		if b != 0x09 && b < 0x20 {
			buf[i] = '.'
		}
	}
	return string(buf)
}
