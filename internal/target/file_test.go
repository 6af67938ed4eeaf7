package target

import (
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"

	"github.com/bibles-org/ravel/internal/errkind"
)

// buildELF64 mirrors the helper in internal/format/elf's tests; kept
// local here so this package's tests don't depend on elf's internals.
func buildELF64(t *testing.T, entry, vaddr, filesz, memsz uint64, fillByte byte) []byte {
	t.Helper()
	const ehsize = 64
	phentsize := 56
	phoff := uint64(ehsize)
	buf := make([]byte, ehsize+phentsize+int(filesz)+0x100)

	buf[0], buf[1], buf[2], buf[3] = 0x7f, 'E', 'L', 'F'
	buf[4] = 2
	binary.LittleEndian.PutUint16(buf[18:20], 0x3E)
	binary.LittleEndian.PutUint64(buf[24:32], entry)
	binary.LittleEndian.PutUint64(buf[32:40], phoff)
	binary.LittleEndian.PutUint16(buf[54:56], uint16(phentsize))
	binary.LittleEndian.PutUint16(buf[56:58], 1)

	off := int(phoff)
	binary.LittleEndian.PutUint32(buf[off:off+4], 1) // PT_LOAD
	binary.LittleEndian.PutUint32(buf[off+4:off+8], 5)
	fileOff := uint64(ehsize + phentsize)
	binary.LittleEndian.PutUint64(buf[off+8:off+16], fileOff)
	binary.LittleEndian.PutUint64(buf[off+16:off+24], vaddr)
	binary.LittleEndian.PutUint64(buf[off+32:off+40], filesz)
	binary.LittleEndian.PutUint64(buf[off+40:off+48], memsz)

	for i := uint64(0); i < filesz && int(fileOff+i) < len(buf); i++ {
		buf[fileOff+i] = fillByte
	}
	return buf
}

func writeTempFile(t *testing.T, data []byte) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "a.out")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	return path
}

func TestFileTargetReadAndBSSTail(t *testing.T) {
	data := buildELF64(t, 0x400000, 0x400000, 0x1000, 0x2000, 0xAB)
	path := writeTempFile(t, data)

	tg, err := NewFile(path)
	if err != nil {
		t.Fatalf("NewFile: %v", err)
	}

	buf := make([]byte, 4)
	n, err := tg.Read(0x400000, buf)
	if err != nil || n != 4 {
		t.Fatalf("Read(base) = %d, %v", n, err)
	}
	for _, b := range buf {
		if b != 0xAB {
			t.Fatalf("Read(base) contents = %x, want all 0xAB", buf)
		}
	}

	_, err = tg.Read(0x401800, make([]byte, 8))
	if k, ok := errkind.KindOf(err); !ok || k != errkind.InvalidAddress {
		t.Fatalf("Read(BSS tail) err = %v, want InvalidAddress", err)
	}
}

func TestFileTargetWriteUnsupported(t *testing.T) {
	data := buildELF64(t, 0x400000, 0x400000, 0x1000, 0x2000, 0)
	path := writeTempFile(t, data)
	tg, err := NewFile(path)
	if err != nil {
		t.Fatalf("NewFile: %v", err)
	}
	if _, err := tg.Write(0x400000, []byte{1}); err != ErrWriteUnsupported {
		t.Fatalf("Write() err = %v, want ErrWriteUnsupported", err)
	}
}

func TestFileTargetNotLive(t *testing.T) {
	data := buildELF64(t, 0x400000, 0x400000, 0x1000, 0x2000, 0)
	path := writeTempFile(t, data)
	tg, _ := NewFile(path)
	if tg.IsLive() {
		t.Fatal("file target must report IsLive() == false")
	}
}
