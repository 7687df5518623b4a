package service

import (
	"path/filepath"
	"strings"
	"testing"
)

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		spec    Spec
		wantErr string
	}{
		{"ok", Spec{Name: "asgi", Role: RoleServer, Command: "daphne core.asgi:application"}, ""},
		{"missing name", Spec{Role: RoleWorker, Command: "celery worker"}, "requires a name"},
		{"missing command", Spec{Name: "worker", Role: RoleWorker}, "requires a command"},
		{"bad role", Spec{Name: "x", Role: "cron", Command: "true"}, "unknown role"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.spec.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("got %v, want substring %q", err, tt.wantErr)
			}
		})
	}
}

func TestParseRoleNormalizes(t *testing.T) {
	r, err := ParseRole("  Server ")
	if err != nil || r != RoleServer {
		t.Fatalf("got %v %v", r, err)
	}
	if _, err := ParseRole("manager"); err == nil {
		t.Fatalf("expected error for unknown role")
	}
}

func TestSweepPattern(t *testing.T) {
	s := Spec{Command: "celery -A core worker -l info"}
	if got := s.SweepPattern(); got != "celery" {
		t.Fatalf("default pattern: %q", got)
	}
	s.Pattern = "core worker"
	if got := s.SweepPattern(); got != "core worker" {
		t.Fatalf("explicit pattern: %q", got)
	}
}

func TestApplyDefaults(t *testing.T) {
	s := Spec{Name: "beat", Command: "celery -A core beat"}
	s.ApplyDefaults("/var/run/askanalytics")
	if s.PIDFile != filepath.Join("/var/run/askanalytics", "beat.pid") {
		t.Fatalf("pidfile default: %q", s.PIDFile)
	}
	if s.Pattern != "celery" {
		t.Fatalf("pattern default: %q", s.Pattern)
	}
	// explicit values survive
	s2 := Spec{Name: "asgi", Command: "daphne", PIDFile: "/x/y.pid", Pattern: "daphne core"}
	s2.ApplyDefaults("/var/run")
	if s2.PIDFile != "/x/y.pid" || s2.Pattern != "daphne core" {
		t.Fatalf("explicit values overwritten: %+v", s2)
	}
}

func TestBuildCommandShellDetection(t *testing.T) {
	plain := Spec{Command: "sleep 1"}
	c := plain.BuildCommand()
	if filepath.Base(c.Path) != "sleep" {
		t.Fatalf("plain command should not use a shell: %v", c.Args)
	}
	shelly := Spec{Command: "echo hi > /tmp/out"}
	c = shelly.BuildCommand()
	if c.Path != "/bin/sh" || c.Args[1] != "-c" {
		t.Fatalf("metacharacters should force /bin/sh -c: %v", c.Args)
	}
	empty := Spec{}
	c = empty.BuildCommand()
	if c.Path != "/bin/true" {
		t.Fatalf("empty command fallback: %v", c.Path)
	}
}
