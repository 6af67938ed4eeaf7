package region

import "testing"

func TestParsePerms(t *testing.T) {
	tests := []struct {
		r, w, x bool
		want    string
	}{
		{true, false, false, "r--"},
		{true, false, true, "r-x"},
		{true, true, true, "rwx"},
		{false, false, false, "---"},
	}
	for _, tt := range tests {
		if got := ParsePerms(tt.r, tt.w, tt.x).String(); got != tt.want {
			t.Errorf("ParsePerms(%v,%v,%v) = %q, want %q", tt.r, tt.w, tt.x, got, tt.want)
		}
	}
}

func TestContains(t *testing.T) {
	r := Region{Base: 0x1000, Size: 0x1000}
	if !r.Contains(0x1000) || !r.Contains(0x1fff) {
		t.Fatal("expected boundary addresses to be contained")
	}
	if r.Contains(0x2000) {
		t.Fatal("end address must not be contained")
	}
}

func TestSorted(t *testing.T) {
	ok := []Region{{Base: 1}, {Base: 2}, {Base: 10}}
	if !Sorted(ok) {
		t.Fatal("expected ascending regions to be Sorted")
	}
	bad := []Region{{Base: 2}, {Base: 1}}
	if Sorted(bad) {
		t.Fatal("expected descending regions to fail Sorted")
	}
	dup := []Region{{Base: 1}, {Base: 1}}
	if Sorted(dup) {
		t.Fatal("expected duplicate bases to fail Sorted (non-overlap invariant)")
	}
}
