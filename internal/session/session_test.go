package session

import (
	"testing"

	"github.com/bibles-org/ravel/internal/region"
)

type stubTarget struct{ name string }

func (s *stubTarget) Read(addr uint64, buf []byte) (int, error)  { return 0, nil }
func (s *stubTarget) Write(addr uint64, buf []byte) (int, error) { return 0, nil }
func (s *stubTarget) Regions() ([]region.Region, error)          { return nil, nil }
func (s *stubTarget) IsLive() bool                               { return false }
func (s *stubTarget) Name() string                               { return s.name }
func (s *stubTarget) EntryPoint() (uint64, bool)                 { return 0, false }

func TestSetTargetReplacesActiveTarget(t *testing.T) {
	c := New()
	if c.IsOpen() {
		t.Fatalf("new context should report not open")
	}
	c.SetTarget(&stubTarget{name: "first"})
	if !c.IsOpen() {
		t.Fatalf("expected open after SetTarget")
	}
	if got := c.Target().Name(); got != "first" {
		t.Fatalf("Name() = %q, want %q", got, "first")
	}

	c.SetTarget(&stubTarget{name: "second"})
	if got := c.Target().Name(); got != "second" {
		t.Fatalf("Name() = %q, want %q after replacement", got, "second")
	}
}

func TestSetTargetNilClosesTarget(t *testing.T) {
	c := New()
	c.SetTarget(&stubTarget{name: "first"})
	c.SetTarget(nil)
	if c.IsOpen() {
		t.Fatalf("expected closed after SetTarget(nil)")
	}
}

func TestLiveTargetNarrowsOnlyLiveTargets(t *testing.T) {
	c := New()
	c.SetTarget(&stubTarget{name: "file"})
	if _, ok := c.LiveTarget(); ok {
		t.Fatalf("a non-live target must not satisfy target.LiveTarget")
	}
}
