//go:build linux

package opsctl

import (
	"context"
	"testing"
)

func TestFacadeSupervisor(t *testing.T) {
	sup, err := New(t.TempDir(), []Spec{
		{Name: "web", Role: RoleServer, Command: "sleep 30"},
	})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	sts := sup.StatusAll()
	if len(sts) != 1 || sts[0].Name != "web" {
		t.Fatalf("unexpected statuses: %+v", sts)
	}
	if err := sup.StopAll(context.Background()); err != nil {
		t.Fatalf("stop with nothing running: %v", err)
	}
}

func TestFacadeRejectsInvalidSpec(t *testing.T) {
	if _, err := New(t.TempDir(), []Spec{{Name: "", Command: "x", Role: RoleServer}}); err == nil {
		t.Fatalf("expected validation error")
	}
}

func TestLoadConfigMissingFile(t *testing.T) {
	if _, err := LoadConfig("/does/not/exist.toml"); err == nil {
		t.Fatalf("expected error")
	}
}

func TestSocketClientFacade(t *testing.T) {
	c := NewSocketClient("ws://127.0.0.1:1/ws")
	c.Send([]byte("queued"))
	if c.Pending() != 1 {
		t.Fatalf("message should queue while idle")
	}
	c.Close()
}
