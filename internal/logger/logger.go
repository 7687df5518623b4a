// Package logger provides the two logging surfaces of opsctl: rotated
// per-service stdout/stderr files for launched processes (lumberjack),
// and a colored slog handler for the CLI itself.
package logger

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	lj "gopkg.in/natefinch/lumberjack.v2"
)

const (
	DefaultMaxSizeMB  = 10
	DefaultMaxBackups = 3
	DefaultMaxAgeDays = 7
)

// Config describes log destinations for one service. When StdoutPath
// and StderrPath are empty and Dir is set, files default to
// Dir/<name>.stdout.log and Dir/<name>.stderr.log. Rotation follows
// lumberjack semantics.
type Config struct {
	Dir        string `toml:"dir" mapstructure:"dir"`
	StdoutPath string `toml:"stdout" mapstructure:"stdout"`
	StderrPath string `toml:"stderr" mapstructure:"stderr"`
	MaxSizeMB  int    `toml:"max_size_mb" mapstructure:"max_size_mb"`
	MaxBackups int    `toml:"max_backups" mapstructure:"max_backups"`
	MaxAgeDays int    `toml:"max_age_days" mapstructure:"max_age_days"`
	Compress   bool   `toml:"compress" mapstructure:"compress"`
}

// Paths resolves the stdout and stderr file paths for a service name.
// Either may be empty when no destination is configured.
func (c Config) Paths(name string) (string, string) {
	stdout := c.StdoutPath
	stderr := c.StderrPath
	if stdout == "" && c.Dir != "" {
		stdout = filepath.Join(c.Dir, fmt.Sprintf("%s.stdout.log", name))
	}
	if stderr == "" && c.Dir != "" {
		stderr = filepath.Join(c.Dir, fmt.Sprintf("%s.stderr.log", name))
	}
	return stdout, stderr
}

// Writers returns rotated writers for the service's stdout and stderr.
// A nil writer means that stream has no configured destination.
func (c Config) Writers(name string) (io.WriteCloser, io.WriteCloser) {
	stdout, stderr := c.Paths(name)
	return c.rotated(stdout), c.rotated(stderr)
}

// Truncate empties both log files for a service, as restart does before
// relaunching. Missing files are fine.
func (c Config) Truncate(name string) error {
	stdout, stderr := c.Paths(name)
	for _, p := range []string{stdout, stderr} {
		if p == "" {
			continue
		}
		if err := os.Truncate(p, 0); err != nil && !os.IsNotExist(err) {
			return err
		}
	}
	return nil
}

func (c Config) rotated(path string) io.WriteCloser {
	if path == "" {
		return nil
	}
	return &lj.Logger{
		Filename:   path,
		MaxSize:    orDefault(c.MaxSizeMB, DefaultMaxSizeMB),
		MaxBackups: orDefault(c.MaxBackups, DefaultMaxBackups),
		MaxAge:     orDefault(c.MaxAgeDays, DefaultMaxAgeDays),
		Compress:   c.Compress,
	}
}

func orDefault(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}

// NewCLI returns the slog logger used by command-line entry points.
func NewCLI(level slog.Level) *slog.Logger {
	h := NewColorHandler(os.Stderr, &slog.HandlerOptions{Level: level})
	return slog.New(h)
}
