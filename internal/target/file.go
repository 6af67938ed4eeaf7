// Copyright 2014 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package target

import (
	"bytes"
	"os"

	"github.com/bibles-org/ravel/internal/errkind"
	"github.com/bibles-org/ravel/internal/format/elf"
	"github.com/bibles-org/ravel/internal/format/pe"
	"github.com/bibles-org/ravel/internal/region"
)

// ErrWriteUnsupported is returned by every file target's Write: on-disk
// images are not mutated by this core.
var ErrWriteUnsupported = errkind.New(errkind.WriteFailed)

// parser is the subset of pe.Image / elf.Image the file target needs.
type parser interface {
	Regions() []region.Region
	EntryPoint() uint64
	Translate(addr uint64) (int64, bool)
	FileSize() int64
	ArchName() string
}

// fileTarget is a target.Target backed by an on-disk PE64 or ELF64 image.
type fileTarget struct {
	path   string
	data   []byte
	parser parser
}

// NewFile opens path, sniffs its format, and parses it as a PE64 or
// ELF64 image.
func NewFile(path string) (Target, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) || os.IsPermission(err) {
			return nil, errkind.Wrap(errkind.PermissionDenied, err)
		}
		return nil, errkind.Wrap(errkind.ReadFailed, err)
	}

	var p parser
	switch {
	case bytes.HasPrefix(data, []byte{0x7f, 'E', 'L', 'F'}):
		p, err = elf.Parse(data)
	case bytes.HasPrefix(data, []byte{'M', 'Z'}):
		p, err = pe.Parse(data)
	default:
		return nil, errkind.New(errkind.ReadFailed)
	}
	if err != nil {
		return nil, err
	}
	return &fileTarget{path: path, data: data, parser: p}, nil
}

func (t *fileTarget) Read(addr uint64, buf []byte) (int, error) {
	off, ok := t.parser.Translate(addr)
	if !ok {
		return 0, errkind.New(errkind.InvalidAddress)
	}
	avail := t.parser.FileSize() - off
	if avail <= 0 {
		return 0, errkind.New(errkind.InvalidAddress)
	}
	n := int64(len(buf))
	partial := n > avail
	if partial {
		n = avail
	}
	copy(buf[:n], t.data[off:off+n])
	if partial {
		return int(n), errkind.New(errkind.PartialRead)
	}
	return int(n), nil
}

func (t *fileTarget) Write(addr uint64, buf []byte) (int, error) {
	return 0, ErrWriteUnsupported
}

func (t *fileTarget) Regions() ([]region.Region, error) {
	return t.parser.Regions(), nil
}

func (t *fileTarget) IsLive() bool { return false }

func (t *fileTarget) Name() string { return t.path }

func (t *fileTarget) EntryPoint() (uint64, bool) { return t.parser.EntryPoint(), true }

// ArchName exposes the parsed architecture name for "info"-style display.
func (t *fileTarget) ArchName() string { return t.parser.ArchName() }
