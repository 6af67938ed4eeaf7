package scanner

import (
	"testing"

	"github.com/bibles-org/ravel/internal/region"
)

// memTarget is an in-memory target.Target for scanner tests.
type memTarget struct {
	regions []region.Region
	mem     map[uint64][]byte // region base -> bytes
}

func (m *memTarget) Read(addr uint64, buf []byte) (int, error) {
	for _, r := range m.regions {
		if addr >= r.Base && addr < r.End() {
			data := m.mem[r.Base]
			off := addr - r.Base
			n := copy(buf, data[off:])
			return n, nil
		}
	}
	return 0, nil
}
func (m *memTarget) Write(addr uint64, buf []byte) (int, error) {
	for _, r := range m.regions {
		if addr >= r.Base && addr < r.End() {
			data := m.mem[r.Base]
			off := addr - r.Base
			copy(data[off:], buf)
			return len(buf), nil
		}
	}
	return 0, nil
}
func (m *memTarget) Regions() ([]region.Region, error)  { return m.regions, nil }
func (m *memTarget) IsLive() bool                       { return true }
func (m *memTarget) Name() string                        { return "mem" }
func (m *memTarget) EntryPoint() (uint64, bool)          { return 0, false }

func le32(v uint32) []byte { return []byte{byte(v), byte(v >> 8), byte(v >> 16), byte(v >> 24)} }

func TestFirstScanFindsExactU32(t *testing.T) {
	base := uint64(0x555555600000)
	data := make([]byte, 0x10000)
	copy(data[0x10000-0x100:], le32(0xDEADBEEF)) // arbitrary offset within the region
	copy(data[0x0:], le32(0xDEADBEEF))

	mt := &memTarget{
		regions: []region.Region{{Base: base, Size: uint64(len(data)), Perms: region.ParsePerms(true, true, false)}},
		mem:     map[uint64][]byte{base: data},
	}

	s := New()
	s.BeginFirstScan(mt, Config{DataType: U32, Compare: Exact, ValueLiteral: "0xDEADBEEF", FastScan: true})
	s.Wait()

	found := false
	s.WithResults(func(rs []Result) {
		for _, r := range rs {
			if r.Address == base {
				found = true
			}
		}
	})
	if !found {
		t.Fatalf("expected a result at region base %x", base)
	}
}

func TestFirstScanNoWritableRegions(t *testing.T) {
	mt := &memTarget{
		regions: []region.Region{{Base: 0x1000, Size: 0x1000, Perms: region.ParsePerms(true, false, true)}},
		mem:     map[uint64][]byte{0x1000: make([]byte, 0x1000)},
	}
	s := New()
	s.BeginFirstScan(mt, Config{DataType: U32, Compare: Exact, ValueLiteral: "1"})
	s.Wait()
	if got := s.Progress(); got != 1.0 {
		t.Fatalf("Progress() = %v, want 1.0 after scan with zero writable regions", got)
	}
	if s.ResultCount() != 0 {
		t.Fatalf("ResultCount() = %d, want 0", s.ResultCount())
	}
}

func TestParseFailureYieldsEmptyResults(t *testing.T) {
	mt := &memTarget{
		regions: []region.Region{{Base: 0x1000, Size: 0x10, Perms: region.ParsePerms(true, true, false)}},
		mem:     map[uint64][]byte{0x1000: make([]byte, 0x10)},
	}
	s := New()
	s.BeginFirstScan(mt, Config{DataType: U32, Compare: Exact, ValueLiteral: "not-a-number"})
	s.Wait()
	if s.ResultCount() != 0 {
		t.Fatalf("ResultCount() = %d, want 0 on parse failure", s.ResultCount())
	}
}

func TestRefineScanKeepsSubset(t *testing.T) {
	base := uint64(0x2000)
	data := make([]byte, 0x20)
	copy(data[0:4], le32(10))
	copy(data[4:8], le32(20))
	mt := &memTarget{
		regions: []region.Region{{Base: base, Size: uint64(len(data)), Perms: region.ParsePerms(true, true, false)}},
		mem:     map[uint64][]byte{base: data},
	}

	s := New()
	s.BeginFirstScan(mt, Config{DataType: U32, Compare: Greater, ValueLiteral: "5", FastScan: true})
	s.Wait()
	firstCount := s.ResultCount()
	if firstCount == 0 {
		t.Fatal("expected at least one result from first scan")
	}

	s.BeginRefineScan(mt, Config{DataType: U32, Compare: Exact, ValueLiteral: "20"})
	s.Wait()
	var addrs []uint64
	s.WithResults(func(rs []Result) {
		for _, r := range rs {
			addrs = append(addrs, r.Address)
		}
	})
	for _, a := range addrs {
		if a != base+4 {
			t.Fatalf("unexpected surviving address %x after refine to ==20", a)
		}
	}
}

func TestTypeSize(t *testing.T) {
	cases := map[DataType]int{U8: 1, I8: 1, U16: 2, I16: 2, U32: 4, I32: 4, F32: 4, U64: 8, I64: 8, F64: 8}
	for dt, want := range cases {
		if got := TypeSize(dt); got != want {
			t.Errorf("TypeSize(%v) = %d, want %d", dt, got, want)
		}
	}
}

func TestFormatValueFloats(t *testing.T) {
	b, _ := ParseInput("3.14159265", F64)
	if got := FormatValue(b, F64); got != "3.141593" {
		t.Errorf("FormatValue(f64) = %q, want 6 fractional digits", got)
	}
	b32, _ := ParseInput("3.14159265", F32)
	if got := FormatValue(b32, F32); len(got) == 0 {
		t.Errorf("FormatValue(f32) produced empty string")
	}
}
