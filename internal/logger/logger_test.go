package logger

import (
	"bytes"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestPathsDefaultFromDir(t *testing.T) {
	c := Config{Dir: "/var/log/askanalytics"}
	out, errp := c.Paths("asgi")
	if out != "/var/log/askanalytics/asgi.stdout.log" {
		t.Fatalf("stdout path: %q", out)
	}
	if errp != "/var/log/askanalytics/asgi.stderr.log" {
		t.Fatalf("stderr path: %q", errp)
	}
}

func TestPathsExplicitOverride(t *testing.T) {
	c := Config{Dir: "/logs", StdoutPath: "/tmp/explicit.out"}
	out, errp := c.Paths("worker")
	if out != "/tmp/explicit.out" {
		t.Fatalf("explicit stdout ignored: %q", out)
	}
	if errp != "/logs/worker.stderr.log" {
		t.Fatalf("stderr default lost: %q", errp)
	}
}

func TestWritersWriteAndTruncate(t *testing.T) {
	dir := t.TempDir()
	c := Config{Dir: dir}
	out, errW := c.Writers("beat")
	if out == nil || errW == nil {
		t.Fatalf("writers should be non-nil when Dir is set")
	}
	if _, err := out.Write([]byte("scheduler tick\n")); err != nil {
		t.Fatalf("write stdout: %v", err)
	}
	_ = out.Close()
	_ = errW.Close()

	path := filepath.Join(dir, "beat.stdout.log")
	b, err := os.ReadFile(path)
	if err != nil || !strings.Contains(string(b), "scheduler tick") {
		t.Fatalf("log content missing: %v %q", err, string(b))
	}

	if err := c.Truncate("beat"); err != nil {
		t.Fatalf("truncate: %v", err)
	}
	b, err = os.ReadFile(path)
	if err != nil || len(b) != 0 {
		t.Fatalf("file not truncated: %v %q", err, string(b))
	}
	// truncating a service with no files yet must not fail
	if err := c.Truncate("never-started"); err != nil {
		t.Fatalf("truncate missing: %v", err)
	}
}

func TestWritersNilWithoutConfig(t *testing.T) {
	out, errW := Config{}.Writers("x")
	if out != nil || errW != nil {
		t.Fatalf("expected nil writers for empty config")
	}
}

func TestColorHandlerPrefixesLevel(t *testing.T) {
	var buf bytes.Buffer
	h := NewColorHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})
	l := slog.New(h)
	l.Warn("port already in use", "service", "asgi")
	got := buf.String()
	if !strings.Contains(got, "\033[33mWARN\033[0m port already in use") {
		t.Fatalf("missing colored prefix: %q", got)
	}
	if !strings.Contains(got, "service=asgi") {
		t.Fatalf("missing attr: %q", got)
	}
}
