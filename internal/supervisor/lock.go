//go:build !windows

package supervisor

import (
	"fmt"
	"os"
	"path/filepath"
	"syscall"
)

// withLock runs fn while holding an exclusive flock on the run
// directory's lock file, so concurrent opsctl invocations cannot race
// each other's pid-record mutations.
func withLock(runDir string, fn func() error) error {
	if err := os.MkdirAll(runDir, 0o750); err != nil {
		return err
	}
	path := filepath.Join(runDir, "opsctl.lock")
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0o600)
	if err != nil {
		return fmt.Errorf("open lock file: %w", err)
	}
	defer func() { _ = f.Close() }()
	if err := syscall.Flock(int(f.Fd()), syscall.LOCK_EX); err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	defer func() { _ = syscall.Flock(int(f.Fd()), syscall.LOCK_UN) }()
	return fn()
}
