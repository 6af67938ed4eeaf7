package target

import (
	"testing"

	"github.com/bibles-org/ravel/internal/errkind"
	"github.com/bibles-org/ravel/internal/region"
)

// fakeController is an in-memory platform.Controller stand-in so these
// tests don't depend on a real OS process.
type fakeController struct {
	procs     []region.Process
	regions   []region.Region
	mem       map[uint64][]byte
	pid       uint32
	attached  bool
	attachErr error
}

func (f *fakeController) EnumerateProcesses() ([]region.Process, error) { return f.procs, nil }

func (f *fakeController) Attach(pid uint32) error {
	if f.attachErr != nil {
		return f.attachErr
	}
	f.pid, f.attached = pid, true
	return nil
}

func (f *fakeController) Detach() error {
	f.attached = false
	return nil
}

func (f *fakeController) AttachedPID() (uint32, bool) { return f.pid, f.attached }

func (f *fakeController) Regions(pid uint32) ([]region.Region, error) { return f.regions, nil }

func (f *fakeController) Read(pid uint32, addr uint64, buf []byte) (int, error) {
	data, ok := f.mem[addr]
	if !ok {
		return 0, errkind.New(errkind.InvalidAddress)
	}
	n := copy(buf, data)
	return n, nil
}

func (f *fakeController) Write(pid uint32, addr uint64, buf []byte) (int, error) {
	f.mem[addr] = append([]byte(nil), buf...)
	return len(buf), nil
}

func TestLiveTargetUnattachedReadFails(t *testing.T) {
	ctrl := &fakeController{mem: map[uint64][]byte{}}
	lt := NewLive(ctrl)
	if lt.IsLive() != true {
		t.Fatal("live target must report IsLive() == true")
	}
	if _, err := lt.Read(0x1000, make([]byte, 4)); err == nil {
		t.Fatal("expected read on unattached live target to fail")
	}
}

func TestLiveTargetAttachThenRead(t *testing.T) {
	ctrl := &fakeController{mem: map[uint64][]byte{0x1000: {1, 2, 3, 4}}}
	lt := NewLive(ctrl)
	if err := lt.Attach(1234); err != nil {
		t.Fatalf("Attach: %v", err)
	}
	if !lt.IsAttached() {
		t.Fatal("expected IsAttached() == true after Attach")
	}
	buf := make([]byte, 4)
	n, err := lt.Read(0x1000, buf)
	if err != nil || n != 4 {
		t.Fatalf("Read = %d, %v", n, err)
	}
}

func TestLiveTargetAttachNonexistentPID(t *testing.T) {
	ctrl := &fakeController{attachErr: errkind.New(errkind.ProcessNotFound)}
	lt := NewLive(ctrl)
	err := lt.Attach(999999)
	if k, ok := errkind.KindOf(err); !ok || k != errkind.ProcessNotFound {
		t.Fatalf("Attach(nonexistent) err = %v, want ProcessNotFound", err)
	}
}
