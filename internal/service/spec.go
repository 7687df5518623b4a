package service

import (
	"errors"
	"fmt"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/askanalytics/opsctl/internal/logger"
)

// Role classifies a managed service. It is informational; Name keys
// the registry.
type Role string

const (
	RoleServer    Role = "server"
	RoleWorker    Role = "worker"
	RoleScheduler Role = "scheduler"
)

func ParseRole(s string) (Role, error) {
	switch Role(strings.ToLower(strings.TrimSpace(s))) {
	case RoleServer:
		return RoleServer, nil
	case RoleWorker:
		return RoleWorker, nil
	case RoleScheduler:
		return RoleScheduler, nil
	}
	return "", fmt.Errorf("unknown role %q (want server, worker or scheduler)", s)
}

// Spec declares one service of the deployment.
type Spec struct {
	Name    string        `json:"name" toml:"name" mapstructure:"name"`
	Role    Role          `json:"role" toml:"role" mapstructure:"role"`
	Command string        `json:"command" toml:"command" mapstructure:"command"`
	WorkDir string        `json:"work_dir,omitempty" toml:"workdir" mapstructure:"workdir"`
	Env     []string      `json:"env,omitempty" toml:"env" mapstructure:"env"`
	PIDFile string        `json:"pid_file" toml:"pidfile" mapstructure:"pidfile"`
	Pattern string        `json:"pattern,omitempty" toml:"pattern" mapstructure:"pattern"`
	Log     logger.Config `json:"log" toml:"log" mapstructure:"log"`
}

func (s *Spec) Validate() error {
	if strings.TrimSpace(s.Name) == "" {
		return errors.New("service requires a name")
	}
	if strings.TrimSpace(s.Command) == "" {
		return fmt.Errorf("service %s requires a command", s.Name)
	}
	if _, err := ParseRole(string(s.Role)); err != nil {
		return fmt.Errorf("service %s: %w", s.Name, err)
	}
	return nil
}

// SweepPattern is the argv substring used by the restart force-kill
// sweep. It defaults to the first token of the command line.
func (s *Spec) SweepPattern() string {
	if s.Pattern != "" {
		return s.Pattern
	}
	fields := strings.Fields(s.Command)
	if len(fields) == 0 {
		return ""
	}
	return fields[0]
}

// ApplyDefaults fills PIDFile and Pattern from the run directory and
// command when the config omitted them.
func (s *Spec) ApplyDefaults(runDir string) {
	if s.PIDFile == "" && s.Name != "" {
		s.PIDFile = filepath.Join(runDir, s.Name+".pid")
	}
	if s.Pattern == "" {
		s.Pattern = s.SweepPattern()
	}
}

// BuildCommand constructs the exec.Cmd for the command line. Shell
// metacharacters force a /bin/sh -c wrapper; a plain argv is split and
// executed directly to avoid an extra shell layer.
func (s *Spec) BuildCommand() *exec.Cmd {
	cmdStr := strings.TrimSpace(s.Command)
	if cmdStr == "" {
		// #nosec G204
		return exec.Command("/bin/true")
	}
	if strings.ContainsAny(cmdStr, "|&;<>*?`$\"'(){}[]~") {
		// #nosec G204
		return exec.Command("/bin/sh", "-c", cmdStr)
	}
	parts := strings.Fields(cmdStr)
	// #nosec G204
	return exec.Command(parts[0], parts[1:]...)
}
