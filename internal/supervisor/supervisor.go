// Package supervisor orchestrates the fixed set of deployment
// services: the ASGI server, the task worker and the task scheduler.
// It is deliberately best effort: launch, record the pid, signal on
// request. It never monitors children or relaunches them.
package supervisor

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/askanalytics/opsctl/internal/env"
	"github.com/askanalytics/opsctl/internal/metrics"
	"github.com/askanalytics/opsctl/internal/service"
	"github.com/askanalytics/opsctl/internal/store"
	"github.com/askanalytics/opsctl/internal/sweep"
)

type Supervisor struct {
	services []*service.Service
	runDir   string
	grace    time.Duration
	envM     *env.Env
	st       store.Store
	log      *slog.Logger
}

type Option func(*Supervisor)

// WithStore attaches a lifecycle history store. Schema is ensured on
// first use; a nil store disables history.
func WithStore(st store.Store) Option {
	return func(s *Supervisor) { s.st = st }
}

func WithLogger(l *slog.Logger) Option {
	return func(s *Supervisor) { s.log = l }
}

func WithGracePeriod(d time.Duration) Option {
	return func(s *Supervisor) {
		if d > 0 {
			s.grace = d
		}
	}
}

// WithGlobalEnv layers "KEY=VALUE" overrides on top of the OS
// environment for every launched service.
func WithGlobalEnv(kvs []string, useOS bool) Option {
	return func(s *Supervisor) {
		if useOS {
			s.envM.UseOS()
		}
		s.envM.SetAll(kvs)
	}
}

// New builds a supervisor over the declared services, preserving
// declaration order for launches.
func New(runDir string, specs []service.Spec, opts ...Option) (*Supervisor, error) {
	s := &Supervisor{
		runDir: runDir,
		grace:  5 * time.Second,
		envM:   env.New(),
		log:    slog.Default(),
	}
	for i := range specs {
		sp := specs[i]
		if err := sp.Validate(); err != nil {
			return nil, err
		}
		sp.ApplyDefaults(runDir)
		s.services = append(s.services, service.New(sp))
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.st != nil {
		if err := s.st.EnsureSchema(context.Background()); err != nil {
			return nil, fmt.Errorf("ensure history schema: %w", err)
		}
	}
	return s, nil
}

// StartAll launches every declared service in order. A service whose
// pid record already points at a live process is skipped with a
// warning: starting twice must never orphan the previous process. A
// launch failure (port in use, missing binary) is logged and does not
// stop the remaining launches; the first error is returned after all
// services were attempted.
func (s *Supervisor) StartAll(ctx context.Context) error {
	var firstErr error
	err := withLock(s.runDir, func() error {
		for _, svc := range s.services {
			spec := svc.Spec()
			if svc.RecordedAlive() {
				s.log.Warn("service already running, skipping start",
					"service", spec.Name, "pidfile", spec.PIDFile)
				continue
			}
			if err := svc.Start(s.envM.Merge(spec.Env)); err != nil {
				// Operator error by contract, not something we correct.
				s.log.Warn("service failed to start",
					"service", spec.Name, "error", err)
				if firstErr == nil {
					firstErr = fmt.Errorf("start %s: %w", spec.Name, err)
				}
				continue
			}
			st := svc.Status()
			s.log.Info("service started", "service", spec.Name, "pid", st.PID)
			metrics.IncStart(spec.Name)
			metrics.SetUp(spec.Name, true)
			s.record(ctx, store.Event{
				Service: spec.Name, Role: string(spec.Role),
				PID: st.PID, Type: store.EventStart,
			})
		}
		return nil
	})
	if err != nil {
		return err
	}
	return firstErr
}

// StopAll signals every service with a pid record and clears the
// records. Fire and forget: no confirmation of process death, and a
// missing record is a per-service no-op, so calling StopAll twice in a
// row succeeds.
func (s *Supervisor) StopAll(ctx context.Context) error {
	return withLock(s.runDir, func() error {
		for _, svc := range s.services {
			spec := svc.Spec()
			st := svc.Status()
			if st.PID == 0 {
				s.log.Info("service not running, nothing to stop", "service", spec.Name)
				continue
			}
			if err := svc.Stop(); err != nil {
				s.log.Warn("stop failed", "service", spec.Name, "error", err)
				continue
			}
			s.log.Info("termination signal sent", "service", spec.Name, "pid", st.PID)
			metrics.IncStop(spec.Name)
			metrics.SetUp(spec.Name, false)
			s.record(ctx, store.Event{
				Service: spec.Name, Role: string(spec.Role),
				PID: st.PID, Type: store.EventStop,
			})
		}
		return nil
	})
}

// RestartAll performs the full cycle: graceful stop, grace period,
// force-kill sweep by command pattern for anything the records missed,
// log truncation, then a fresh start.
func (s *Supervisor) RestartAll(ctx context.Context) error {
	if err := s.StopAll(ctx); err != nil {
		return err
	}
	select {
	case <-time.After(s.grace):
	case <-ctx.Done():
		return ctx.Err()
	}
	s.SweepKill(ctx)
	for _, svc := range s.services {
		spec := svc.Spec()
		if err := spec.Log.Truncate(spec.Name); err != nil {
			s.log.Warn("log truncate failed", "service", spec.Name, "error", err)
		}
	}
	return s.StartAll(ctx)
}

// SweepKill force-kills any process whose command line matches a
// service's sweep pattern. It is the fallback for stale or missing pid
// records; recorded pids were already signalled by StopAll.
func (s *Supervisor) SweepKill(ctx context.Context) {
	for _, svc := range s.services {
		spec := svc.Spec()
		killed, err := sweep.KillMatching(spec.Pattern)
		if err != nil {
			s.log.Warn("sweep failed", "service", spec.Name, "error", err)
			continue
		}
		if len(killed) == 0 {
			continue
		}
		s.log.Info("sweep killed lingering processes",
			"service", spec.Name, "pattern", spec.Pattern, "pids", killed)
		metrics.AddSweepKills(spec.Name, len(killed))
		s.record(ctx, store.Event{
			Service: spec.Name, Role: string(spec.Role),
			Type:   store.EventSweepKill,
			Detail: fmt.Sprintf("killed %d by pattern %q", len(killed), spec.Pattern),
		})
	}
}

// StatusAll probes every service's pid record.
func (s *Supervisor) StatusAll() []service.Status {
	out := make([]service.Status, 0, len(s.services))
	for _, svc := range s.services {
		st := svc.Status()
		metrics.SetUp(st.Name, st.Running)
		out = append(out, st)
	}
	return out
}

// History returns the most recent persisted events for one service.
func (s *Supervisor) History(ctx context.Context, name string, limit int) ([]store.Event, error) {
	if s.st == nil {
		return nil, nil
	}
	return s.st.Recent(ctx, name, limit)
}

func (s *Supervisor) record(ctx context.Context, ev store.Event) {
	if s.st == nil {
		return
	}
	if err := s.st.Append(ctx, ev); err != nil {
		s.log.Warn("history append failed", "service", ev.Service, "error", err)
	}
}
