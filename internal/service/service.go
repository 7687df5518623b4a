//go:build !windows

// Package service launches and signals one managed OS process. The
// supervisor is best effort by contract: it records the pid at launch,
// signals it on request, and never monitors or relaunches children.
package service

import (
	"io"
	"os"
	"sync"
	"syscall"
	"time"

	"github.com/askanalytics/opsctl/internal/pidfile"
)

type Service struct {
	mu         sync.Mutex
	spec       Spec
	lastLaunch time.Time
	lastPID    int
}

func New(spec Spec) *Service { return &Service{spec: spec} }

func (s *Service) Spec() Spec {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.spec
}

// Start launches the service detached from the controlling terminal
// with stdout/stderr redirected to its log files, then persists the
// pid record. mergedEnv, when non-nil, fully replaces the child env.
func (s *Service) Start(mergedEnv []string) error {
	s.mu.Lock()
	spec := s.spec
	s.mu.Unlock()

	cmd := spec.BuildCommand()
	if spec.WorkDir != "" {
		cmd.Dir = spec.WorkDir
	}
	if len(mergedEnv) > 0 {
		cmd.Env = mergedEnv
	}
	// Own process group so signals target the whole service tree and
	// terminal signals never propagate to it.
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

	outW, errW := s.openLogs(spec)
	cmd.Stdout = outW
	cmd.Stderr = errW

	if err := cmd.Start(); err != nil {
		closeAll(outW, errW)
		return err
	}
	pid := cmd.Process.Pid
	s.mu.Lock()
	s.lastLaunch = time.Now()
	s.lastPID = pid
	s.mu.Unlock()
	if spec.PIDFile != "" {
		if err := pidfile.Write(spec.PIDFile, pid); err != nil {
			return err
		}
	}
	// Reap only. No exit detection or relaunch happens here; if the
	// child dies the record simply goes stale until the next stop or
	// restart sweep.
	go func() {
		_ = cmd.Wait()
		closeAll(outW, errW)
	}()
	return nil
}

// Stop sends SIGTERM to the process group recorded in the pid file and
// removes the record. Fire and forget: a missing record, a dead pid or
// an undeliverable signal are all no-ops, and the record is cleared in
// every case so a second Stop finds nothing to do.
func (s *Service) Stop() error {
	spec := s.Spec()
	pid, err := pidfile.Read(spec.PIDFile)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		// Unreadable record: clear it so the service is startable again.
		return pidfile.Remove(spec.PIDFile)
	}
	// Negative pid targets the process group created at launch. If the
	// group is already gone, fall back to the single pid; both may fail
	// when the process exited externally, which is fine by contract.
	if err := syscall.Kill(-pid, syscall.SIGTERM); err != nil {
		_ = syscall.Kill(pid, syscall.SIGTERM)
	}
	return pidfile.Remove(spec.PIDFile)
}

// Kill force-kills the recorded process group. Used by restart when
// the grace period expires.
func (s *Service) Kill() error {
	spec := s.Spec()
	pid, err := pidfile.Read(spec.PIDFile)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return pidfile.Remove(spec.PIDFile)
	}
	if err := syscall.Kill(-pid, syscall.SIGKILL); err != nil {
		_ = syscall.Kill(pid, syscall.SIGKILL)
	}
	return pidfile.Remove(spec.PIDFile)
}

// Status probes the pid record and reports the current view.
func (s *Service) Status() Status {
	s.mu.Lock()
	spec := s.spec
	launch := s.lastLaunch
	s.mu.Unlock()

	st := Status{
		Name:       spec.Name,
		Role:       spec.Role,
		PIDFile:    spec.PIDFile,
		CheckedAt:  time.Now(),
		LastLaunch: launch,
	}
	st.StdoutLog, st.StderrLog = spec.Log.Paths(spec.Name)
	if pid, err := pidfile.Read(spec.PIDFile); err == nil {
		st.PID = pid
		st.Running = pidfile.Alive(pid)
	}
	return st
}

// RecordedAlive reports whether the pid record exists and points at a
// live process.
func (s *Service) RecordedAlive() bool {
	alive, err := pidfile.AliveAt(s.Spec().PIDFile)
	return err == nil && alive
}

func (s *Service) openLogs(spec Spec) (io.WriteCloser, io.WriteCloser) {
	if spec.Log.Dir != "" {
		_ = os.MkdirAll(spec.Log.Dir, 0o750)
	}
	outW, errW := spec.Log.Writers(spec.Name)
	if outW == nil {
		outW = devNull()
	}
	if errW == nil {
		errW = devNull()
	}
	return outW, errW
}

func devNull() io.WriteCloser {
	f, _ := os.OpenFile(os.DevNull, os.O_RDWR, 0)
	return f
}

func closeAll(ws ...io.WriteCloser) {
	for _, w := range ws {
		if w != nil {
			_ = w.Close()
		}
	}
}
