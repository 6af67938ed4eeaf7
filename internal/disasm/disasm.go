// Copyright 2014 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package disasm is the facade over the third-party x86-64 instruction
// decoder. It is the only abstraction the rest of ravel uses for
// decoding bytes; any decoder able to produce {length, mnemonic,
// operand list, instruction-pointer-relative memory operands} and
// format one instruction to text would satisfy this facade's contract.
package disasm

import (
	"fmt"

	"golang.org/x/arch/x86/x86asm"
)

// Category loosely classifies a decoded instruction for callers (C8)
// that care about write/read/address-of semantics.
type Category int

const (
	CategoryOther Category = iota
	CategoryMove
	CategoryLoadEffectiveAddress
)

// Instruction is the decode result surfaced to the rest of ravel.
type Instruction struct {
	raw      x86asm.Inst
	Length   int
	Mnemonic string
	Category Category
}

// Decode decodes one instruction at code[0:]. Invalid encodings report
// ok=false rather than a synthetic single-byte opcode; callers recover by
// treating that byte as "db 0xNN" and advancing one byte, per spec.
func Decode(code []byte) (Instruction, bool) {
	inst, err := x86asm.Decode(code, 64)
	if err != nil || inst.Op == 0 { // Op 0: x86asm's one-byte prefix-only result
		return Instruction{}, false
	}
	return toInstruction(inst), true
}

func toInstruction(inst x86asm.Inst) Instruction {
	cat := CategoryOther
	switch inst.Op {
	case x86asm.MOV:
		cat = CategoryMove
	case x86asm.LEA:
		cat = CategoryLoadEffectiveAddress
	}
	return Instruction{
		raw:      inst,
		Length:   inst.Len,
		Mnemonic: inst.Op.String(),
		Category: cat,
	}
}

// Format decodes and renders one instruction in Intel syntax at pc.
func Format(code []byte, pc uint64) (text string, inst Instruction, ok bool) {
	raw, err := x86asm.Decode(code, 64)
	if err != nil || raw.Op == 0 {
		return "", Instruction{}, false
	}
	return x86asm.IntelSyntax(raw, pc, nil), toInstruction(raw), true
}

// NumOperands reports how many of the instruction's operand slots are
// populated (x86asm always allocates 4, using x86asm.Arg(nil) as filler).
func (in Instruction) NumOperands() int {
	n := 0
	for _, a := range in.raw.Args {
		if a == nil {
			break
		}
		n++
	}
	return n
}

// MemOperand describes a memory operand visible at the given index, or
// ok=false if that operand isn't a memory reference.
type MemOperand struct {
	BaseIsIP bool
	NoBase   bool
	NoIndex  bool
	Disp     int64
	Width    int // bits: 8,16,32,64,128 or 0 if unknown
}

// Operand returns the memory-operand view of args[idx], if it is one.
func (in Instruction) Operand(idx int) (MemOperand, bool) {
	if idx < 0 || idx >= len(in.raw.Args) {
		return MemOperand{}, false
	}
	mem, ok := in.raw.Args[idx].(x86asm.Mem)
	if !ok {
		return MemOperand{}, false
	}
	return MemOperand{
		BaseIsIP: mem.Base == x86asm.RIP,
		NoBase:   mem.Base == 0,
		NoIndex:  mem.Index == 0,
		Disp:     mem.Disp,
		Width:    operandWidthBits(in.raw, idx),
	}, true
}

func operandWidthBits(inst x86asm.Inst, idx int) int {
	// x86asm doesn't directly expose operand width for memory args;
	// MemBytes is the decoder's own estimate of the access size for the
	// *single* memory operand an instruction touches (each site visits at
	// most one memory operand). Address-only operands such as LEA's leave
	// MemBytes at 0; for those the destination register's width is used.
	_ = idx
	switch inst.MemBytes {
	case 1:
		return 8
	case 2:
		return 16
	case 4:
		return 32
	case 8:
		return 64
	case 16:
		return 128
	default:
		if r, ok := inst.Args[0].(x86asm.Reg); ok {
			switch {
			case r >= x86asm.RAX && r <= x86asm.R15:
				return 64
			case r >= x86asm.EAX && r <= x86asm.R15L:
				return 32
			case r >= x86asm.AX && r <= x86asm.R15W:
				return 16
			}
		}
		return 0
	}
}

// AbsoluteTarget computes the absolute target address of a RIP-relative
// or absolute-displacement memory operand, per the rule: if the operand's
// base register is the instruction pointer, target = ip + length +
// displacement; if base and index are both absent and the displacement
// is non-zero, target = displacement; otherwise there is no absolute
// target.
func AbsoluteTarget(in Instruction, ip uint64) (uint64, bool) {
	for i := range in.raw.Args {
		mem, ok := in.Operand(i)
		if !ok {
			continue
		}
		if mem.BaseIsIP {
			return uint64(int64(ip)+int64(in.Length)+mem.Disp), true
		}
		if mem.NoBase && mem.NoIndex && mem.Disp != 0 {
			return uint64(mem.Disp), true
		}
	}
	return 0, false
}

// DB0xNN renders the single-byte fallback line used when decode fails.
func DB0xNN(b byte) string {
	return fmt.Sprintf("db 0x%02X", b)
}
