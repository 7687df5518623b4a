//go:build !windows

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/askanalytics/opsctl/internal/config"
	"github.com/askanalytics/opsctl/internal/logger"
	"github.com/askanalytics/opsctl/internal/metrics"
	"github.com/askanalytics/opsctl/internal/server"
	"github.com/askanalytics/opsctl/internal/store"
	"github.com/askanalytics/opsctl/internal/supervisor"
	"github.com/askanalytics/opsctl/internal/wait"
)

type command struct {
	flags *GlobalFlags
}

// setup loads the config and wires the supervisor with its store,
// logger and merged environment.
func (c command) setup() (*supervisor.Supervisor, *config.Config, error) {
	log := logger.NewCLI(c.flags.logLevel())

	cfg, err := config.Load(c.flags.ConfigPath)
	if err != nil {
		return nil, nil, fmt.Errorf("load config %s: %w", c.flags.ConfigPath, err)
	}
	if err := os.MkdirAll(cfg.RunDir, 0o755); err != nil {
		return nil, nil, fmt.Errorf("create run dir: %w", err)
	}
	globalEnv, err := cfg.GlobalEnv()
	if err != nil {
		return nil, nil, err
	}
	st, err := store.New(cfg.Store)
	if err != nil {
		return nil, nil, fmt.Errorf("open history store: %w", err)
	}

	_ = metrics.Register(prometheus.DefaultRegisterer)

	sup, err := supervisor.New(cfg.RunDir, cfg.Services,
		supervisor.WithLogger(log),
		supervisor.WithGracePeriod(cfg.GracePeriod),
		supervisor.WithGlobalEnv(globalEnv, cfg.UseOSEnv),
		supervisor.WithStore(st),
	)
	if err != nil {
		return nil, nil, err
	}
	return sup, cfg, nil
}

func (c command) Start(cmd *cobra.Command) error {
	sup, _, err := c.setup()
	if err != nil {
		return err
	}
	return sup.StartAll(cmd.Context())
}

func (c command) Stop(cmd *cobra.Command) error {
	sup, _, err := c.setup()
	if err != nil {
		return err
	}
	return sup.StopAll(cmd.Context())
}

func (c command) Restart(cmd *cobra.Command) error {
	sup, _, err := c.setup()
	if err != nil {
		return err
	}
	return sup.RestartAll(cmd.Context())
}

func (c command) Status(cmd *cobra.Command) error {
	sup, _, err := c.setup()
	if err != nil {
		return err
	}
	return printJSON(sup.StatusAll())
}

func (c command) History(cmd *cobra.Command, f HistoryFlags) error {
	sup, _, err := c.setup()
	if err != nil {
		return err
	}
	events, err := sup.History(cmd.Context(), f.Name, f.Limit)
	if err != nil {
		return err
	}
	return printJSON(events)
}

// Serve runs the HTTP control plane until SIGINT or SIGTERM.
func (c command) Serve(cmd *cobra.Command) error {
	sup, cfg, err := c.setup()
	if err != nil {
		return err
	}
	listen := cfg.Server.Listen
	if listen == "" {
		listen = "127.0.0.1:8085"
	}
	srv, err := server.NewServer(listen, cfg.Server.BasePath, sup)
	if err != nil {
		return err
	}
	log := logger.NewCLI(c.flags.logLevel())
	log.Info("control plane listening", "addr", listen, "base_path", cfg.Server.BasePath)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	log.Info("shutting down", "signal", sig.String())

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(ctx)
}

// Wait polls the standard dependency probes built from the
// environment, with the config's attempts and interval unless
// overridden on the command line.
func (c command) Wait(cmd *cobra.Command, f WaitFlags) error {
	log := logger.NewCLI(c.flags.logLevel())

	attempts := 60
	interval := 5 * time.Second
	if cfg, err := config.Load(c.flags.ConfigPath); err == nil {
		attempts = cfg.Wait.Attempts
		interval = cfg.Wait.Interval
	}
	if f.Attempts > 0 {
		attempts = f.Attempts
	}
	if f.Interval != "" {
		d, err := time.ParseDuration(f.Interval)
		if err != nil {
			return fmt.Errorf("parse interval: %w", err)
		}
		interval = d
	}

	for _, p := range wait.FromEnv(log) {
		if err := wait.Until(cmd.Context(), log, p, attempts, interval); err != nil {
			return err
		}
	}
	log.Info("all dependencies ready")
	return nil
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
