//go:build !windows

package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
)

// GlobalFlags holds the persistent flags shared by every subcommand.
type GlobalFlags struct {
	ConfigPath string
	Verbose    bool
}

// HistoryFlags holds flags for the history command.
type HistoryFlags struct {
	Name  string
	Limit int
}

// WaitFlags holds flags for the wait command.
type WaitFlags struct {
	Attempts int
	Interval string
}

func main() {
	if err := buildRoot().Execute(); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func buildRoot() *cobra.Command {
	globalFlags := &GlobalFlags{}
	historyFlags := &HistoryFlags{}
	waitFlags := &WaitFlags{}

	cmd := command{flags: globalFlags}

	root := &cobra.Command{
		Use:           "opsctl",
		Short:         "Deployment service supervisor",
		Long:          "opsctl starts, stops and restarts the deployment's fixed service set\nand waits for its external dependencies to come up.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&globalFlags.ConfigPath, "config", "opsctl.toml", "path to TOML config")
	root.PersistentFlags().BoolVarP(&globalFlags.Verbose, "verbose", "v", false, "debug logging")

	root.AddCommand(
		createStartCommand(cmd),
		createStopCommand(cmd),
		createRestartCommand(cmd),
		createStatusCommand(cmd),
		createHistoryCommand(cmd, historyFlags),
		createServeCommand(cmd),
		createWaitCommand(cmd, waitFlags),
	)
	return root
}

func createStartCommand(c command) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start all configured services",
		RunE:  func(cmd *cobra.Command, args []string) error { return c.Start(cmd) },
	}
}

func createStopCommand(c command) *cobra.Command {
	return &cobra.Command{
		Use:   "stop",
		Short: "Stop all configured services",
		RunE:  func(cmd *cobra.Command, args []string) error { return c.Stop(cmd) },
	}
}

func createRestartCommand(c command) *cobra.Command {
	return &cobra.Command{
		Use:   "restart",
		Short: "Stop, sweep, clear logs and start all services",
		RunE:  func(cmd *cobra.Command, args []string) error { return c.Restart(cmd) },
	}
}

func createStatusCommand(c command) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the status of all configured services",
		RunE:  func(cmd *cobra.Command, args []string) error { return c.Status(cmd) },
	}
}

func createHistoryCommand(c command, f *HistoryFlags) *cobra.Command {
	hc := &cobra.Command{
		Use:   "history",
		Short: "Show recent lifecycle events for a service",
		RunE:  func(cmd *cobra.Command, args []string) error { return c.History(cmd, *f) },
	}
	hc.Flags().StringVar(&f.Name, "name", "", "service name")
	hc.Flags().IntVar(&f.Limit, "limit", 50, "maximum events to show")
	_ = hc.MarkFlagRequired("name")
	return hc
}

func createServeCommand(c command) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP control plane until interrupted",
		RunE:  func(cmd *cobra.Command, args []string) error { return c.Serve(cmd) },
	}
}

func createWaitCommand(c command, f *WaitFlags) *cobra.Command {
	wc := &cobra.Command{
		Use:   "wait",
		Short: "Block until the external dependencies answer",
		Long:  "Polls the database, cache and object storage named by the\nenvironment until they are ready or attempts run out.",
		RunE:  func(cmd *cobra.Command, args []string) error { return c.Wait(cmd, *f) },
	}
	wc.Flags().IntVar(&f.Attempts, "attempts", 0, "override poll attempts")
	wc.Flags().StringVar(&f.Interval, "interval", "", "override poll interval, e.g. 5s")
	return wc
}

func (g *GlobalFlags) logLevel() slog.Level {
	if g.Verbose {
		return slog.LevelDebug
	}
	return slog.LevelInfo
}
