// Package config loads the opsctl TOML configuration and .env files.
package config

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/askanalytics/opsctl/internal/logger"
	"github.com/askanalytics/opsctl/internal/service"
	"github.com/askanalytics/opsctl/internal/store"
)

const (
	DefaultRunDir      = "run"
	DefaultLogDir      = "logs"
	DefaultGracePeriod = 5 * time.Second
)

// Config is the top-level TOML structure.
type Config struct {
	Env      []string `toml:"env" mapstructure:"env"`
	EnvFiles []string `toml:"env_files" mapstructure:"env_files"`
	UseOSEnv bool     `toml:"use_os_env" mapstructure:"use_os_env"`

	RunDir      string        `toml:"run_dir" mapstructure:"run_dir"`
	GracePeriod time.Duration `toml:"grace_period" mapstructure:"grace_period"`

	Log      logger.Config  `toml:"log" mapstructure:"log"`
	Server   ServerConfig   `toml:"server" mapstructure:"server"`
	Store    store.Config   `toml:"store" mapstructure:"store"`
	Wait     WaitConfig     `toml:"wait" mapstructure:"wait"`
	Services []service.Spec `toml:"services" mapstructure:"services"`
}

type ServerConfig struct {
	Listen   string `toml:"listen" mapstructure:"listen"`
	BasePath string `toml:"base_path" mapstructure:"base_path"`
}

type WaitConfig struct {
	Attempts int           `toml:"attempts" mapstructure:"attempts"`
	Interval time.Duration `toml:"interval" mapstructure:"interval"`
}

// Load reads the TOML file at path and applies defaults. Services are
// validated and get pid-file and sweep-pattern defaults under RunDir.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("toml")
	if err := v.ReadInConfig(); err != nil {
		return nil, err
	}
	var c Config
	// viper's default decode hooks already parse "5s" strings into
	// time.Duration fields.
	if err := v.Unmarshal(&c); err != nil {
		return nil, err
	}
	c.applyDefaults()
	seen := make(map[string]bool, len(c.Services))
	for i := range c.Services {
		sp := &c.Services[i]
		if err := sp.Validate(); err != nil {
			return nil, err
		}
		if seen[sp.Name] {
			return nil, fmt.Errorf("duplicate service name %q", sp.Name)
		}
		seen[sp.Name] = true
		if sp.Log.Dir == "" && sp.Log.StdoutPath == "" && sp.Log.StderrPath == "" {
			sp.Log = c.Log
		}
		sp.ApplyDefaults(c.RunDir)
	}
	return &c, nil
}

func (c *Config) applyDefaults() {
	if c.RunDir == "" {
		c.RunDir = DefaultRunDir
	}
	if c.GracePeriod <= 0 {
		c.GracePeriod = DefaultGracePeriod
	}
	if c.Log.Dir == "" && c.Log.StdoutPath == "" && c.Log.StderrPath == "" {
		c.Log.Dir = DefaultLogDir
	}
	if c.Wait.Attempts <= 0 {
		c.Wait.Attempts = 60
	}
	if c.Wait.Interval <= 0 {
		c.Wait.Interval = 5 * time.Second
	}
}

// GlobalEnv merges the environment layers named by the config:
// optional OS base, env_files contents in order, then the top-level
// env list last.
func (c *Config) GlobalEnv() ([]string, error) {
	m := make(map[string]string)
	if c.UseOSEnv {
		for _, kv := range os.Environ() {
			if i := strings.IndexByte(kv, '='); i > 0 {
				m[kv[:i]] = kv[i+1:]
			}
		}
	}
	for _, p := range c.EnvFiles {
		pairs, err := ParseEnvFile(p)
		if err != nil {
			return nil, err
		}
		for k, v := range pairs {
			m[k] = v
		}
	}
	for _, kv := range c.Env {
		if i := strings.IndexByte(kv, '='); i > 0 {
			m[kv[:i]] = kv[i+1:]
		}
	}
	out := make([]string, 0, len(m))
	for k, v := range m {
		out = append(out, k+"="+v)
	}
	return out, nil
}

// ParseEnvFile reads a dotenv-style file: KEY=VALUE lines, # comments,
// optional single or double quotes around the value, export prefix
// tolerated.
func ParseEnvFile(path string) (map[string]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()

	out := make(map[string]string)
	sc := bufio.NewScanner(f)
	line := 0
	for sc.Scan() {
		line++
		raw := strings.TrimSpace(sc.Text())
		if raw == "" || strings.HasPrefix(raw, "#") {
			continue
		}
		raw = strings.TrimPrefix(raw, "export ")
		i := strings.IndexByte(raw, '=')
		if i <= 0 {
			return nil, fmt.Errorf("%s:%d: malformed line %q", path, line, raw)
		}
		k := strings.TrimSpace(raw[:i])
		v := strings.TrimSpace(raw[i+1:])
		if n := len(v); n >= 2 {
			if (v[0] == '\'' && v[n-1] == '\'') || (v[0] == '"' && v[n-1] == '"') {
				v = v[1 : n-1]
			}
		}
		out[k] = v
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// ServiceByName finds a declared service.
func (c *Config) ServiceByName(name string) (*service.Spec, error) {
	for i := range c.Services {
		if c.Services[i].Name == name {
			return &c.Services[i], nil
		}
	}
	return nil, errors.New("unknown service: " + name)
}
