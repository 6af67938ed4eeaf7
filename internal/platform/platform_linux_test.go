package platform

import (
	"errors"
	"os"
	"testing"

	"golang.org/x/sys/unix"

	"github.com/bibles-org/ravel/internal/errkind"
	"github.com/bibles-org/ravel/internal/region"
)

func TestParseMapsLine(t *testing.T) {
	tests := []struct {
		line string
		want region.Region
		ok   bool
	}{
		{
			line: "555555554000-555555556000 r-xp 00000000 08:01 123456 /bin/cat",
			want: region.Region{Base: 0x555555554000, Size: 0x2000, Perms: region.Perms{'r', '-', 'x'}, Name: "/bin/cat"},
			ok:   true,
		},
		{
			line: "7ffff7ffa000-7ffff7ffc000 rw-p 00000000 00:00 0",
			want: region.Region{Base: 0x7ffff7ffa000, Size: 0x2000, Perms: region.Perms{'r', 'w', '-'}, Name: "<anonymous>"},
			ok:   true,
		},
		{line: "not a maps line", ok: false},
	}
	for _, tt := range tests {
		got, ok := parseMapsLine(tt.line)
		if ok != tt.ok {
			t.Fatalf("parseMapsLine(%q) ok = %v, want %v", tt.line, ok, tt.ok)
		}
		if ok && got != tt.want {
			t.Errorf("parseMapsLine(%q) = %+v, want %+v", tt.line, got, tt.want)
		}
	}
}

func TestMapErrno(t *testing.T) {
	tests := []struct {
		err  error
		want errkind.Kind
	}{
		{unix.EPERM, errkind.PermissionDenied},
		{unix.EACCES, errkind.PermissionDenied},
		{unix.ESRCH, errkind.ProcessNotFound},
		{unix.EFAULT, errkind.InvalidAddress},
		{unix.ENOMEM, errkind.OutOfMemory},
		{errors.New("other"), errkind.ReadFailed},
	}
	for _, tt := range tests {
		got := mapErrno(tt.err, errkind.ReadFailed)
		k, ok := errkind.KindOf(got)
		if !ok || k != tt.want {
			t.Errorf("mapErrno(%v) kind = %v, ok=%v; want %v", tt.err, k, ok, tt.want)
		}
	}
}

// mapErrno must unwrap the *fs.PathError that os.Open wraps a raw
// errno in, since Attach's accessibility check goes through os.Open
// rather than a bare syscall.
func TestMapErrnoUnwrapsPathError(t *testing.T) {
	_, rawErr := os.Open("/proc/999999999/mem")
	if rawErr == nil {
		t.Skip("expected /proc/999999999/mem to not exist")
	}
	got := mapErrno(rawErr, errkind.ProcFSUnavailable)
	k, ok := errkind.KindOf(got)
	if !ok || k != errkind.ProcessNotFound {
		t.Errorf("mapErrno(%v) kind = %v, ok=%v; want %v", rawErr, k, ok, errkind.ProcessNotFound)
	}
}

// Attach never stops or signals the target: it must succeed against
// this very test process (which is never ptrace-stopped) purely via
// the /proc/<pid>/mem accessibility check, and Detach must release the
// descriptor without issuing any ptrace call.
func TestAttachIsNonIntrusive(t *testing.T) {
	c := New().(*linuxController)
	pid := uint32(os.Getpid())
	if err := c.Attach(pid); err != nil {
		t.Fatalf("Attach(%d) = %v, want nil", pid, err)
	}
	got, has := c.AttachedPID()
	if !has || got != pid {
		t.Fatalf("AttachedPID() = (%d, %v), want (%d, true)", got, has, pid)
	}
	if err := c.Detach(); err != nil {
		t.Fatalf("Detach() = %v, want nil", err)
	}
	if _, has := c.AttachedPID(); has {
		t.Fatalf("AttachedPID() after Detach reports attached")
	}
}

// Attach against a pid that cannot exist maps to ProcessNotFound, per
// spec.md's attach error table (missing -> process-not-found).
func TestAttachMissingPID(t *testing.T) {
	c := New().(*linuxController)
	err := c.Attach(999999999)
	if err == nil {
		t.Fatal("Attach(999999999) = nil, want an error")
	}
	k, ok := errkind.KindOf(err)
	if !ok || k != errkind.ProcessNotFound {
		t.Errorf("Attach(999999999) kind = %v, ok=%v; want %v", k, ok, errkind.ProcessNotFound)
	}
}
