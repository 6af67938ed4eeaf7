// Copyright 2014 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package xref is the disassembly-driven cross-reference engine: it
// decodes every executable region, extracts data-referencing memory
// operands via internal/disasm, and groups them into addressable items
// with back-references. Shares the worker/cancel/publish shape used by
// internal/scanner and internal/strtab.
package xref

import (
	"fmt"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/bibles-org/ravel/internal/disasm"
	"github.com/bibles-org/ravel/internal/region"
	"github.com/bibles-org/ravel/internal/target"
)

// Kind classifies how a code site references a data item.
type Kind byte

const (
	KindRead  Kind = 'r'
	KindWrite Kind = 'w'
	KindAddr  Kind = 'o'
)

// Ref is one back-reference from a code site to an item.
type Ref struct {
	SiteIP          uint64
	InstructionText string
	Kind            Kind
}

// Item is one unique data address with its machine-generated name and
// its ordered list of referencing code sites.
type Item struct {
	Address         uint64
	Name            string
	DefaultValueDef string
	Refs            []Ref
}

// Engine walks every code region, decoding instructions and resolving
// absolute operand targets that fall inside a data region.
type Engine struct {
	mu    sync.Mutex // guards items + filter + expansion set, per spec
	items map[uint64]*Item
	order []uint64

	filter    string
	expanded  map[uint64]bool

	scanning atomic.Bool
	progress atomic.Uint32

	cancel chan struct{}
	done   chan struct{}

	runMu sync.Mutex // serializes Start/Cancel against each other
}

// New returns an idle engine.
func New() *Engine {
	return &Engine{expanded: make(map[uint64]bool)}
}

func (e *Engine) IsScanning() bool { return e.scanning.Load() }

// SetFilter updates the substring filter used by Items' consumers when
// rendering a layout; the engine itself does not filter its item map.
func (e *Engine) SetFilter(s string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.filter = s
}

func (e *Engine) Filter() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.filter
}

// Expand/Collapse mutate the expansion set the UI layout consults when
// deciding whether to show an item's ref list.
func (e *Engine) Expand(addr uint64)   { e.setExpanded(addr, true) }
func (e *Engine) Collapse(addr uint64) { e.setExpanded(addr, false) }

func (e *Engine) setExpanded(addr uint64, v bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if v {
		e.expanded[addr] = true
	} else {
		delete(e.expanded, addr)
	}
}

func (e *Engine) IsExpanded(addr uint64) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.expanded[addr]
}

// Items returns a snapshot of the discovered items in ascending address
// order.
func (e *Engine) Items() []Item {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]Item, 0, len(e.order))
	for _, addr := range e.order {
		out = append(out, *e.items[addr])
	}
	return out
}

// Wait blocks until the current scan has finished, without cancelling.
func (e *Engine) Wait() {
	e.runMu.Lock()
	done := e.done
	e.runMu.Unlock()
	if done != nil {
		<-done
	}
}

// Cancel requests cancellation and blocks until the worker joins.
func (e *Engine) Cancel() {
	e.runMu.Lock()
	cancel, done := e.cancel, e.done
	e.cancel = nil
	e.runMu.Unlock()
	if cancel == nil {
		return
	}
	close(cancel)
	<-done
}

// Clear cancels and joins any in-flight scan, then discards the item
// map, returning the engine to idle.
func (e *Engine) Clear() {
	e.Cancel()
	e.mu.Lock()
	e.items, e.order = nil, nil
	e.mu.Unlock()
	e.progress.Store(0)
}

// StartScan decodes every code region of t, cancelling and joining any
// prior scan first. Completion publishes a fresh item map; cancellation
// discards all partial results, leaving the prior map (if any) in place.
func (e *Engine) StartScan(t target.Target) {
	e.Cancel()

	e.runMu.Lock()
	cancel := make(chan struct{})
	done := make(chan struct{})
	e.cancel, e.done = cancel, done
	e.runMu.Unlock()

	e.scanning.Store(true)
	e.progress.Store(0)

	go func() {
		defer close(done)
		defer e.scanning.Store(false)

		regions, err := t.Regions()
		if err != nil {
			return
		}
		var code, data []region.Region
		for _, r := range regions {
			switch {
			case r.Perms.Executable():
				code = append(code, r)
			case r.Perms.Readable():
				data = append(data, r)
			}
		}

		items := make(map[uint64]*Item)
		var order []uint64

		for _, r := range code {
			select {
			case <-cancel:
				return
			default:
			}
			if !walkCodeRegion(t, r, data, items, &order, cancel) {
				return
			}
		}

		sort.Slice(order, func(i, j int) bool { return order[i] < order[j] })
		e.mu.Lock()
		e.items, e.order = items, order
		e.mu.Unlock()
	}()
}

// walkCodeRegion decodes every byte of r, recording cross-references
// into items/order. Returns false if cancelled mid-walk.
func walkCodeRegion(t target.Target, r region.Region, data []region.Region, items map[uint64]*Item, order *[]uint64, cancel <-chan struct{}) bool {
	buf := make([]byte, r.Size)
	n, err := t.Read(r.Base, buf)
	if err != nil && n == 0 {
		return true
	}
	buf = buf[:n]

	for pos := 0; pos < len(buf); {
		if pos%4096 == 0 {
			select {
			case <-cancel:
				return false
			default:
			}
		}
		ip := r.Base + uint64(pos)
		text, inst, ok := disasm.Format(buf[pos:], ip)
		if !ok {
			pos++
			continue
		}
		recordRefs(inst, text, ip, data, items, order)
		pos += inst.Length
	}
	return true
}

func recordRefs(inst disasm.Instruction, text string, ip uint64, data []region.Region, items map[uint64]*Item, order *[]uint64) {
	for i := 0; i < inst.NumOperands(); i++ {
		mem, ok := inst.Operand(i)
		if !ok {
			continue
		}

		addr, found := operandTarget(mem, ip, inst.Length)
		if !found || !inDataRegions(addr, data) {
			continue
		}

		item, exists := items[addr]
		if !exists {
			item = &Item{
				Address:         addr,
				Name:            itemName(mem.Width, addr),
				DefaultValueDef: defaultValueDef(mem.Width),
			}
			items[addr] = item
			*order = append(*order, addr)
		}

		kind := KindRead
		switch {
		case inst.Category == disasm.CategoryLoadEffectiveAddress:
			kind = KindAddr
		case inst.Category == disasm.CategoryMove && i == 0:
			kind = KindWrite
		}
		item.Refs = append(item.Refs, Ref{SiteIP: ip, InstructionText: text, Kind: kind})
	}
}

func operandTarget(mem disasm.MemOperand, ip uint64, instLen int) (uint64, bool) {
	switch {
	case mem.BaseIsIP:
		return uint64(int64(ip) + int64(instLen) + mem.Disp), true
	case mem.NoBase && mem.NoIndex && mem.Disp != 0:
		return uint64(mem.Disp), true
	default:
		return 0, false
	}
}

func inDataRegions(addr uint64, data []region.Region) bool {
	for _, r := range data {
		if r.Contains(addr) {
			return true
		}
	}
	return false
}

func itemName(widthBits int, addr uint64) string {
	width := "unk"
	switch widthBits {
	case 8:
		width = "byte"
	case 16:
		width = "word"
	case 32:
		width = "dword"
	case 64:
		width = "qword"
	case 128:
		width = "xmm"
	}
	return fmt.Sprintf("%s_%X", width, addr)
}

func defaultValueDef(widthBits int) string {
	switch widthBits {
	case 8:
		return "db ?"
	case 16:
		return "dw ?"
	case 32:
		return "dd ?"
	case 64:
		return "dq ?"
	default:
		return "db ?"
	}
}
