//go:build !windows

// Package sweep implements the force-kill fallback used by restart:
// find lingering service processes by command-line pattern and SIGKILL
// them, catching anything whose pid record went stale.
package sweep

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
)

// FindByPattern scans /proc for processes whose command line contains
// pattern. The calling process and its parent are always excluded so a
// sweep can never target the supervisor itself.
func FindByPattern(pattern string) ([]int, error) {
	if strings.TrimSpace(pattern) == "" {
		return nil, nil
	}
	entries, err := os.ReadDir("/proc")
	if err != nil {
		return nil, err
	}
	self := os.Getpid()
	parent := os.Getppid()
	var pids []int
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		pid, err := strconv.Atoi(e.Name())
		if err != nil || pid <= 0 || pid == self || pid == parent {
			continue
		}
		cmdline, err := os.ReadFile(filepath.Join("/proc", e.Name(), "cmdline"))
		if err != nil {
			continue // raced with exit or permission denied
		}
		argv := strings.ReplaceAll(string(cmdline), "\x00", " ")
		if strings.Contains(argv, pattern) {
			pids = append(pids, pid)
		}
	}
	return pids, nil
}

// KillMatching sends SIGKILL to every process matching pattern and
// returns the pids signalled. Signal delivery is best effort; a pid
// that exits between scan and kill is not an error.
func KillMatching(pattern string) ([]int, error) {
	pids, err := FindByPattern(pattern)
	if err != nil {
		return nil, err
	}
	killed := make([]int, 0, len(pids))
	for _, pid := range pids {
		if err := syscall.Kill(pid, syscall.SIGKILL); err == nil {
			killed = append(killed, pid)
		}
	}
	return killed, nil
}
