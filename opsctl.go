//go:build !windows

package opsctl

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	cfg "github.com/askanalytics/opsctl/internal/config"
	"github.com/askanalytics/opsctl/internal/metrics"
	"github.com/askanalytics/opsctl/internal/server"
	"github.com/askanalytics/opsctl/internal/service"
	"github.com/askanalytics/opsctl/internal/store"
	"github.com/askanalytics/opsctl/internal/supervisor"
	"github.com/askanalytics/opsctl/internal/wsclient"
)

// Re-export core types for external consumers.
// These are aliases so conversions are zero-cost.

type Spec = service.Spec

type Status = service.Status

type Role = service.Role

const (
	RoleServer    = service.RoleServer
	RoleWorker    = service.RoleWorker
	RoleScheduler = service.RoleScheduler
)

type Event = store.Event

// Supervisor is a thin facade over internal/supervisor.Supervisor.
// It provides a stable public API for embedding.

type Supervisor struct{ inner *supervisor.Supervisor }

type SupervisorOption = supervisor.Option

func WithGracePeriod(d time.Duration) SupervisorOption { return supervisor.WithGracePeriod(d) }
func WithGlobalEnv(kvs []string, useOS bool) SupervisorOption {
	return supervisor.WithGlobalEnv(kvs, useOS)
}
func WithStore(st store.Store) SupervisorOption { return supervisor.WithStore(st) }

func New(runDir string, specs []Spec, opts ...SupervisorOption) (*Supervisor, error) {
	inner, err := supervisor.New(runDir, specs, opts...)
	if err != nil {
		return nil, err
	}
	return &Supervisor{inner: inner}, nil
}

func (s *Supervisor) StartAll(ctx context.Context) error   { return s.inner.StartAll(ctx) }
func (s *Supervisor) StopAll(ctx context.Context) error    { return s.inner.StopAll(ctx) }
func (s *Supervisor) RestartAll(ctx context.Context) error { return s.inner.RestartAll(ctx) }
func (s *Supervisor) StatusAll() []Status                  { return s.inner.StatusAll() }
func (s *Supervisor) History(ctx context.Context, name string, limit int) ([]Event, error) {
	return s.inner.History(ctx, name, limit)
}

// Socket client facade

type SocketClient = wsclient.Client

type SocketState = wsclient.State

type SocketHooks = wsclient.Hooks

type SocketOption = wsclient.Option

func NewSocketClient(url string, opts ...SocketOption) *SocketClient {
	return wsclient.New(url, opts...)
}

func WithReconnectDelay(d time.Duration) SocketOption { return wsclient.WithReconnectDelay(d) }
func WithSocketHooks(h SocketHooks) SocketOption      { return wsclient.WithHooks(h) }

func LoadConfig(path string) (*cfg.Config, error) {
	return cfg.Load(path)
}

// NewHTTPServer starts an HTTP server exposing the control plane
// using the given supervisor.
func NewHTTPServer(addr, basePath string, s *Supervisor) (*http.Server, error) {
	return server.NewServer(addr, basePath, s.inner)
}

// Metrics helpers (public facade)

func RegisterMetrics(r prometheus.Registerer) error { return metrics.Register(r) }
