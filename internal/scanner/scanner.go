// Copyright 2014 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package scanner implements the concurrent value scanner: first-scan
// and refinement scans over a target's writable regions, with typed
// comparisons, cooperative cancellation, and lock-guarded result
// publication. The worker lifecycle mirrors the teacher's
// dedicated-goroutine-owns-the-resource idiom (program/server/ptrace.go's
// ptraceRun), generalized from "every call blocks for one round trip" to
// "cancel, then block until the worker signals done".
package scanner

import (
	"math"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/bibles-org/ravel/internal/region"
	"github.com/bibles-org/ravel/internal/target"
)

const chunkSize = 1 << 20 // 1 MiB, per spec's first-scan chunking rule

// Result is one scanner hit: the address and the byte snapshot observed
// at scan time.
type Result struct {
	Address  uint64
	Snapshot []byte
}

// Scanner is a first-scan/refine-scan value scanner over one target. At
// most one scan runs at a time; starting a new scan cancels and joins
// the prior one first.
type Scanner struct {
	mu      sync.Mutex // serializes start/cancel against each other
	resMu   sync.RWMutex
	results []Result

	scanning  atomic.Bool
	cancelReq atomic.Bool
	progress  atomic.Uint32 // math.Float32bits

	cancel chan struct{}
	done   chan struct{}
}

// New returns an idle scanner.
func New() *Scanner { return &Scanner{} }

// IsScanning reports whether a scan is currently running.
func (s *Scanner) IsScanning() bool { return s.scanning.Load() }

// Progress returns the current scan progress in [0,1].
func (s *Scanner) Progress() float32 {
	return math.Float32frombits(s.progress.Load())
}

func (s *Scanner) setProgress(p float32) { s.progress.Store(math.Float32bits(p)) }

// ResultCount reports the number of results in the shared result set.
func (s *Scanner) ResultCount() int {
	s.resMu.RLock()
	defer s.resMu.RUnlock()
	return len(s.results)
}

// WithResults runs fn with a read lock held over the shared result
// vector, the Go realization of spec's "lock_results() -> guard".
func (s *Scanner) WithResults(fn func([]Result)) {
	s.resMu.RLock()
	defer s.resMu.RUnlock()
	fn(s.results)
}

// Reset discards the current result set and returns the scanner to idle.
// Any in-flight scan is cancelled and joined first.
func (s *Scanner) Reset() {
	s.Cancel()
	s.resMu.Lock()
	s.results = nil
	s.resMu.Unlock()
	s.setProgress(0)
}

// Wait blocks until the current (or most recently started) scan has
// finished, without requesting cancellation. It is a test/CLI
// convenience; the UI contract in spec.md never blocks on it directly.
func (s *Scanner) Wait() {
	s.mu.Lock()
	done := s.done
	s.mu.Unlock()
	if done != nil {
		<-done
	}
}

// Cancel requests cancellation of any in-flight scan and blocks until
// the worker has joined. It is a no-op if no scan is running.
func (s *Scanner) Cancel() {
	s.mu.Lock()
	cancel, done := s.cancel, s.done
	s.cancel = nil
	s.mu.Unlock()
	if cancel == nil {
		return
	}
	s.cancelReq.Store(true)
	close(cancel)
	<-done
}

// startWorker cancels and joins any prior scan, then launches run as the
// new worker under a fresh cancel/done pair.
func (s *Scanner) startWorker(run func(cancel <-chan struct{})) {
	s.Cancel()

	s.mu.Lock()
	cancel := make(chan struct{})
	done := make(chan struct{})
	s.cancel, s.done = cancel, done
	s.mu.Unlock()

	s.cancelReq.Store(false)
	s.scanning.Store(true)
	s.setProgress(0)

	go func() {
		defer close(done)
		defer s.scanning.Store(false)
		run(cancel)
	}()
}

// BeginFirstScan starts a new first scan against t. Filters to writable
// regions, scans at stride sizeof(type) when cfg.FastScan else 1 byte.
func (s *Scanner) BeginFirstScan(t target.Target, cfg Config) {
	s.startWorker(func(cancelCh <-chan struct{}) {
		literal, ok := ParseInput(cfg.ValueLiteral, cfg.DataType)
		if !ok {
			s.publish(nil)
			return
		}

		regions, err := t.Regions()
		if err != nil {
			s.publish(nil)
			return
		}
		var writable []region.Region
		for _, r := range regions {
			if r.Perms.Writable() {
				writable = append(writable, r)
			}
		}

		size := TypeSize(cfg.DataType)
		stride := 1
		if cfg.FastScan {
			stride = size
		}

		var total, done uint64
		for _, r := range writable {
			total += r.Size
		}
		if total == 0 {
			s.publish(nil)
			return
		}

		var local []Result
		for _, r := range writable {
			select {
			case <-cancelCh:
				return
			default:
			}
			local = scanRegion(t, r, size, stride, literal, cfg.DataType, cfg.Compare, local)
			done += r.Size
			s.setProgress(float32(done) / float32(total))
		}
		s.publish(local)
	})
}

// scanRegion reads r in ≤chunkSize chunks and appends matches to acc.
func scanRegion(t target.Target, r region.Region, size, stride int, literal []byte, dt DataType, cmp Compare, acc []Result) []Result {
	buf := make([]byte, chunkSize)
	for off := uint64(0); off < r.Size; off += uint64(len(buf)) {
		n := len(buf)
		if remain := r.Size - off; uint64(n) > remain {
			n = int(remain)
		}
		chunk := buf[:n]
		read, err := t.Read(r.Base+off, chunk)
		if err != nil && read == 0 {
			continue
		}
		chunk = chunk[:read]
		for pos := 0; pos+size <= len(chunk); pos += stride {
			val := chunk[pos : pos+size]
			if compareBytes(val, literal, dt, cmp) {
				snap := append([]byte(nil), val...)
				acc = append(acc, Result{Address: r.Base + off + uint64(pos), Snapshot: snap})
			}
		}
	}
	return acc
}

// BeginRefineScan re-evaluates the current input literal against every
// entry already in the result set, keeping only those whose live value
// still satisfies the comparison.
func (s *Scanner) BeginRefineScan(t target.Target, cfg Config) {
	s.startWorker(func(cancelCh <-chan struct{}) {
		literal, ok := ParseInput(cfg.ValueLiteral, cfg.DataType)
		if !ok {
			s.publish(nil)
			return
		}

		s.resMu.RLock()
		prior := append([]Result(nil), s.results...)
		s.resMu.RUnlock()

		size := TypeSize(cfg.DataType)
		total := len(prior)
		if total == 0 {
			s.publish(nil)
			return
		}

		const batch = 256
		var kept []Result
		for i := 0; i < total; i++ {
			if i%batch == 0 {
				select {
				case <-cancelCh:
					return
				default:
				}
				s.setProgress(float32(i) / float32(total))
			}
			buf := make([]byte, size)
			n, err := t.Read(prior[i].Address, buf)
			if err != nil || n < size {
				continue
			}
			if compareBytes(buf, literal, cfg.DataType, cfg.Compare) {
				kept = append(kept, Result{Address: prior[i].Address, Snapshot: append([]byte(nil), buf...)})
			}
		}
		s.publish(kept)
	})
}

// publish installs results as the shared result set, sorted ascending by
// address, and marks the scan complete. Called only from within a
// worker's run function, and only on the non-cancelled path.
func (s *Scanner) publish(results []Result) {
	sort.Slice(results, func(i, j int) bool { return results[i].Address < results[j].Address })
	s.resMu.Lock()
	s.results = results
	s.resMu.Unlock()
	s.setProgress(1)
}

// WriteValue parses text as cfg's literal would be parsed and writes
// exactly sizeof(type) bytes to addr. The returned bool is a UI-level
// validation result, not a core error: a literal that fails to parse is
// not a target-operation failure.
func WriteValue(t target.Target, addr uint64, text string, dt DataType) (ok bool, err error) {
	literal, ok := ParseInput(text, dt)
	if !ok {
		return false, nil
	}
	_, err = t.Write(addr, literal)
	return true, err
}
