//go:build !windows

// Package pidfile manages the per-service process-id record files.
// Presence of a record file is the only signal the supervisor uses to
// decide whether a service is known to be running.
package pidfile

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
)

// Write persists pid to path, creating parent directories as needed.
func Write(path string, pid int) error {
	if path == "" {
		return errors.New("empty pidfile path")
	}
	if pid <= 0 {
		return fmt.Errorf("invalid pid %d for %s", pid, path)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return err
	}
	return os.WriteFile(path, []byte(strconv.Itoa(pid)+"\n"), 0o600)
}

// Read returns the pid recorded at path. os.ErrNotExist passes through
// so callers can treat a missing record as "not running".
func Read(path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	s := strings.TrimSpace(strings.SplitN(string(data), "\n", 2)[0])
	pid, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("invalid pid in %s: %w", path, err)
	}
	if pid <= 0 {
		return 0, fmt.Errorf("non-positive pid in %s: %d", path, pid)
	}
	return pid, nil
}

// Remove deletes the record file. Missing file is not an error.
func Remove(path string) error {
	if path == "" {
		return nil
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// Alive reports whether a process with the given pid exists. EPERM
// counts as alive: the process is there, we just may not own it.
func Alive(pid int) bool {
	if pid <= 0 {
		return false
	}
	err := syscall.Kill(pid, 0)
	return err == nil || errors.Is(err, syscall.EPERM)
}

// AliveAt reads the record at path and probes the recorded pid.
// A missing record yields (false, nil).
func AliveAt(path string) (bool, error) {
	pid, err := Read(path)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, err
	}
	return Alive(pid), nil
}
