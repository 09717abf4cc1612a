package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	l, err := Load("")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	c := l.Config()

	if want := filepath.Join(home, ".calibscope", "calibscope.db"); c.Database.Path != want {
		t.Errorf("expected database path %s, got %s", want, c.Database.Path)
	}
	if c.Session.CaptureDelay != 500*time.Millisecond || c.Session.SolveDelay != 2*time.Second {
		t.Errorf("unexpected session delays %+v", c.Session)
	}
	if c.Logging.Level != "info" || c.Logging.MaxBackups != 3 {
		t.Errorf("unexpected logging defaults %+v", c.Logging)
	}
	if l.FileUsed() != "" {
		t.Errorf("expected no config file, got %s", l.FileUsed())
	}
	if l.Watch(nil) {
		t.Error("Watch should report false without a config file")
	}
}

func writeConfig(t *testing.T, path, body string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("writing config: %v", err)
	}
}

func TestLoadFileAndEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	writeConfig(t, path, `
database:
  path: /tmp/cal.db
server:
  addr: ":9000"
session:
  capture_delay: 50ms
logging:
  level: debug
`)
	t.Setenv("CALIBSCOPE_SERVER_ADDR", ":9100")

	l, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	c := l.Config()

	if c.Database.Path != "/tmp/cal.db" {
		t.Errorf("expected file value for database.path, got %s", c.Database.Path)
	}
	if c.Server.Addr != ":9100" {
		t.Errorf("expected env override for server.addr, got %s", c.Server.Addr)
	}
	if c.Session.CaptureDelay != 50*time.Millisecond {
		t.Errorf("expected 50ms capture delay, got %v", c.Session.CaptureDelay)
	}
	if c.Session.SolveDelay != 2*time.Second {
		t.Errorf("expected default solve delay, got %v", c.Session.SolveDelay)
	}
	if c.Logging.Level != "debug" {
		t.Errorf("expected debug level, got %s", c.Logging.Level)
	}
}

func TestLoadMissingExplicitFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Error("expected error for a missing explicit config file")
	}
}

func TestWatchReloads(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	writeConfig(t, path, "session:\n  solve_delay: 1s\n")

	l, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	changed := make(chan Config, 4)
	if !l.Watch(func(c Config) { changed <- c }) {
		t.Fatal("Watch should start for a file-backed config")
	}

	writeConfig(t, path, "session:\n  solve_delay: 3s\n")

	select {
	case c := <-changed:
		if c.Session.SolveDelay != 3*time.Second {
			t.Errorf("expected reloaded solve delay 3s, got %v", c.Session.SolveDelay)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("config change not observed")
	}
}
