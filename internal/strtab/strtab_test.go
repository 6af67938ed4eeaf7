package strtab

import (
	"testing"

	"github.com/bibles-org/ravel/internal/region"
)

type memTarget struct {
	regions []region.Region
	data    map[uint64][]byte
}

func (m *memTarget) Read(addr uint64, buf []byte) (int, error) {
	for _, r := range m.regions {
		if addr >= r.Base && addr < r.End() {
			off := addr - r.Base
			n := copy(buf, m.data[r.Base][off:])
			return n, nil
		}
	}
	return 0, nil
}
func (m *memTarget) Write(addr uint64, buf []byte) (int, error) { return 0, nil }
func (m *memTarget) Regions() ([]region.Region, error)          { return m.regions, nil }
func (m *memTarget) IsLive() bool                                { return true }
func (m *memTarget) Name() string                                { return "mem" }
func (m *memTarget) EntryPoint() (uint64, bool)                  { return 0, false }

func TestScenarioS4(t *testing.T) {
	data := []byte{'H', 'e', 'l', 'l', 'o', 0, 0, 'W', 'o', 'r', 'l', 'd', 0}
	base := uint64(0x1000)
	mt := &memTarget{
		regions: []region.Region{{Base: base, Size: uint64(len(data)), Perms: region.ParsePerms(true, false, false)}},
		data:    map[uint64][]byte{base: data},
	}

	a := New()
	a.Scan(mt, Config{MinLength: 4})
	a.Wait()

	if a.Count() != 2 {
		t.Fatalf("Count() = %d, want 2", a.Count())
	}
	out := make([]Ref, 2)
	if n := a.GetBatch(0, out); n != 2 {
		t.Fatalf("GetBatch returned %d, want 2", n)
	}
	want := []Ref{{Address: base, Length: 5}, {Address: base + 7, Length: 5}}
	for i, w := range want {
		if out[i] != w {
			t.Errorf("refs[%d] = %+v, want %+v", i, out[i], w)
		}
	}
}

func TestMinLengthOneEmitsSinglePrintableBytes(t *testing.T) {
	data := []byte{0, 'A', 0, 'B', 0}
	base := uint64(0x2000)
	mt := &memTarget{
		regions: []region.Region{{Base: base, Size: uint64(len(data)), Perms: region.ParsePerms(true, false, false)}},
		data:    map[uint64][]byte{base: data},
	}
	a := New()
	a.Scan(mt, Config{MinLength: 1})
	a.Wait()
	if a.Count() != 2 {
		t.Fatalf("Count() = %d, want 2", a.Count())
	}
}

func TestExecutableRegionSkippedByDefault(t *testing.T) {
	data := []byte("Hello")
	base := uint64(0x3000)
	mt := &memTarget{
		regions: []region.Region{{Base: base, Size: uint64(len(data)), Perms: region.ParsePerms(true, false, true)}},
		data:    map[uint64][]byte{base: data},
	}
	a := New()
	a.Scan(mt, Config{MinLength: 4})
	a.Wait()
	if a.Count() != 0 {
		t.Fatalf("Count() = %d, want 0 (executable region must be skipped unless ScanExecutable)", a.Count())
	}

	a.Scan(mt, Config{MinLength: 4, ScanExecutable: true})
	a.Wait()
	if a.Count() != 1 {
		t.Fatalf("Count() = %d, want 1 with ScanExecutable", a.Count())
	}
}

func TestFindExact(t *testing.T) {
	data := []byte{'a', 'b', 'c', 'd', 0}
	base := uint64(0x4000)
	mt := &memTarget{
		regions: []region.Region{{Base: base, Size: uint64(len(data)), Perms: region.ParsePerms(true, false, false)}},
		data:    map[uint64][]byte{base: data},
	}
	a := New()
	a.Scan(mt, Config{MinLength: 4})
	a.Wait()
	ref, ok := a.FindExact(base)
	if !ok || ref.Length != 4 {
		t.Fatalf("FindExact(base) = %+v, %v; want length 4, true", ref, ok)
	}
	if _, ok := a.FindExact(base + 1); ok {
		t.Fatalf("FindExact(base+1) should not match")
	}
}

func TestReadStringSanitizesControlChars(t *testing.T) {
	data := []byte{'a', 'b', 0x01, 'c'}
	base := uint64(0x5000)
	mt := &memTarget{
		regions: []region.Region{{Base: base, Size: uint64(len(data)), Perms: region.ParsePerms(true, false, false)}},
		data:    map[uint64][]byte{base: data},
	}
	got := ReadString(mt, Ref{Address: base, Length: 4})
	if got != "ab.c" {
		t.Fatalf("ReadString = %q, want %q", got, "ab.c")
	}
}
