//go:build !windows

package pidfile

import (
	"os"
	"os/exec"
	"path/filepath"
	"testing"
)

func TestWriteReadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "run", "asgi.pid")
	if err := Write(path, 4321); err != nil {
		t.Fatalf("write: %v", err)
	}
	pid, err := Read(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if pid != 4321 {
		t.Fatalf("pid mismatch: got %d want 4321", pid)
	}
}

func TestWriteRejectsBadInput(t *testing.T) {
	if err := Write("", 1); err == nil {
		t.Fatalf("expected error for empty path")
	}
	if err := Write(filepath.Join(t.TempDir(), "x.pid"), 0); err == nil {
		t.Fatalf("expected error for pid 0")
	}
}

func TestReadMissingAndGarbage(t *testing.T) {
	dir := t.TempDir()
	if _, err := Read(filepath.Join(dir, "absent.pid")); !os.IsNotExist(err) {
		t.Fatalf("expected not-exist, got %v", err)
	}
	bad := filepath.Join(dir, "bad.pid")
	if err := os.WriteFile(bad, []byte("not-a-pid\n"), 0o600); err != nil {
		t.Fatalf("setup: %v", err)
	}
	if _, err := Read(bad); err == nil {
		t.Fatalf("expected parse error")
	}
}

func TestRemoveIsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "w.pid")
	if err := Write(path, 10); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := Remove(path); err != nil {
		t.Fatalf("first remove: %v", err)
	}
	if err := Remove(path); err != nil {
		t.Fatalf("second remove should be a no-op: %v", err)
	}
	if err := Remove(""); err != nil {
		t.Fatalf("empty path remove: %v", err)
	}
}

func TestAlive(t *testing.T) {
	if !Alive(os.Getpid()) {
		t.Fatalf("own pid should be alive")
	}
	if Alive(0) || Alive(-5) {
		t.Fatalf("non-positive pids must not be alive")
	}
}

func TestAliveAtDeadPid(t *testing.T) {
	// Run a short-lived child and wait for it so its pid is free.
	cmd := exec.Command("true")
	if err := cmd.Run(); err != nil {
		t.Fatalf("run child: %v", err)
	}
	pid := cmd.ProcessState.Pid()

	path := filepath.Join(t.TempDir(), "stale.pid")
	if err := Write(path, pid); err != nil {
		t.Fatalf("write: %v", err)
	}
	alive, err := AliveAt(path)
	if err != nil {
		t.Fatalf("aliveat: %v", err)
	}
	// The pid may be recycled by an unrelated process, but almost never
	// this quickly; tolerate by only asserting no error above.
	_ = alive

	missing, err := AliveAt(filepath.Join(t.TempDir(), "none.pid"))
	if err != nil || missing {
		t.Fatalf("missing record should be (false, nil), got (%v, %v)", missing, err)
	}
}
