package config

import (
	"os"
	"testing"
	"time"
)

// writeTempConfig creates a minimal configuration file required for
// LoadConfig and returns its path.
func writeTempConfig(t *testing.T) string {
	t.Helper()
	content := `optionflow:
  name: "TestApp"
  version: "1.0"
symbols:
  - NIFTY
providers:
  - name: primary
    kind: nse
    priority: 1
    enabled: true
    base_url: "https://example.test"
  - name: backup
    kind: dhan
    priority: 2
    enabled: true
    base_url: "https://backup.test"
storage:
  postgres:
    enabled: false
  s3:
    enabled: false
`
	f, err := os.CreateTemp("", "cfg-*.yml")
	if err != nil {
		t.Fatalf("create temp file: %v", err)
	}
	if _, err := f.WriteString(content); err != nil {
		t.Fatalf("write temp file: %v", err)
	}
	if err := f.Close(); err != nil {
		t.Fatalf("close temp file: %v", err)
	}
	return f.Name()
}

func TestLoadConfig(t *testing.T) {
	path := writeTempConfig(t)
	defer os.Remove(path)

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.Optionflow.Name != "TestApp" {
		t.Fatalf("unexpected app name %q", cfg.Optionflow.Name)
	}
	if cfg.Acquirer.CallTimeout != 10*time.Second {
		t.Fatalf("expected default call timeout, got %v", cfg.Acquirer.CallTimeout)
	}
	if cfg.Providers[0].MinInterval != 2*time.Second {
		t.Fatalf("expected default min interval, got %v", cfg.Providers[0].MinInterval)
	}
	if cfg.Session.Timezone != "Asia/Kolkata" {
		t.Fatalf("expected default timezone, got %q", cfg.Session.Timezone)
	}
}

func TestLoadConfigRejectsDuplicatePriorities(t *testing.T) {
	content := `symbols: [NIFTY]
providers:
  - {name: a, kind: nse, priority: 1, enabled: true}
  - {name: b, kind: dhan, priority: 1, enabled: true}
`
	f, err := os.CreateTemp("", "cfg-*.yml")
	if err != nil {
		t.Fatalf("create temp file: %v", err)
	}
	defer os.Remove(f.Name())
	if _, err := f.WriteString(content); err != nil {
		t.Fatalf("write temp file: %v", err)
	}
	f.Close()

	if _, err := LoadConfig(f.Name()); err == nil {
		t.Fatal("expected error for duplicate priorities")
	}
}

func TestExpandEnv(t *testing.T) {
	t.Setenv("OPTIONFLOW_TEST_SECRET", "s3cret")
	out := expandEnv([]byte("key: ${OPTIONFLOW_TEST_SECRET}"))
	if string(out) != "key: s3cret" {
		t.Fatalf("unexpected expansion %q", out)
	}
}
