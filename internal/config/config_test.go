package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"beacon/internal/config"
)

func TestLoadDefaultsWhenFileAbsent(t *testing.T) {
	cfg, _, exists, err := config.Load(filepath.Join(t.TempDir(), "missing.toml"))
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if exists {
		t.Fatal("expected exists=false for missing file")
	}
	if cfg.Discovery.TTLMillis != 15000 {
		t.Fatalf("expected default TTL 15000, got %d", cfg.Discovery.TTLMillis)
	}
	if cfg.Discovery.StartupTimeoutMillis != 3000 {
		t.Fatalf("expected default startup timeout 3000, got %d", cfg.Discovery.StartupTimeoutMillis)
	}
	if cfg.TTL() != 15*time.Second {
		t.Fatalf("expected TTL duration 15s, got %s", cfg.TTL())
	}
}

func TestLoadParsesFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	content := `
[paths]
runtime_dir = "` + filepath.Join(dir, "run") + `"
log_dir = "` + filepath.Join(dir, "logs") + `"

[discovery]
ttl_ms = 2000
startup_timeout_ms = 1000

[logging]
format = "json"
level = "debug"
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, resolved, exists, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if !exists {
		t.Fatal("expected exists=true")
	}
	if resolved != path {
		t.Fatalf("expected resolved path %s, got %s", path, resolved)
	}
	if cfg.Discovery.TTLMillis != 2000 {
		t.Fatalf("expected TTL 2000, got %d", cfg.Discovery.TTLMillis)
	}
	if cfg.Logging.Format != "json" {
		t.Fatalf("expected json format, got %q", cfg.Logging.Format)
	}
	if got := cfg.RecordPath(); got != filepath.Join(dir, "run", "beacond.json") {
		t.Fatalf("unexpected record path %s", got)
	}
}

func TestEnvOverridesWinOverFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	if err := os.WriteFile(path, []byte("[discovery]\nttl_ms = 2000\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	t.Setenv("BEACON_TTL_MS", "750")
	t.Setenv("BEACON_STARTUP_TIMEOUT_MS", "1200")

	cfg, _, _, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Discovery.TTLMillis != 750 {
		t.Fatalf("expected env TTL 750, got %d", cfg.Discovery.TTLMillis)
	}
	if cfg.Discovery.StartupTimeoutMillis != 1200 {
		t.Fatalf("expected env startup timeout 1200, got %d", cfg.Discovery.StartupTimeoutMillis)
	}
}

func TestEnvOverrideRejectsNonPositive(t *testing.T) {
	t.Setenv("BEACON_TTL_MS", "-5")
	if _, _, _, err := config.Load(filepath.Join(t.TempDir(), "none.toml")); err == nil {
		t.Fatal("expected error for negative BEACON_TTL_MS")
	}

	t.Setenv("BEACON_TTL_MS", "soon")
	if _, _, _, err := config.Load(filepath.Join(t.TempDir(), "none.toml")); err == nil {
		t.Fatal("expected error for non-numeric BEACON_TTL_MS")
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	cfg := config.Default()
	cfg.Discovery.TTLMillis = 0
	if err := cfg.Validate(); err == nil || !strings.Contains(err.Error(), "ttl_ms") {
		t.Fatalf("expected ttl_ms validation error, got %v", err)
	}

	cfg = config.Default()
	cfg.Logging.Format = "yaml"
	if err := cfg.Validate(); err == nil || !strings.Contains(err.Error(), "logging.format") {
		t.Fatalf("expected logging.format validation error, got %v", err)
	}
}

func TestCreateSampleRoundTrips(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.toml")
	if err := config.CreateSample(path); err != nil {
		t.Fatalf("CreateSample: %v", err)
	}
	if _, _, exists, err := config.Load(path); err != nil || !exists {
		t.Fatalf("expected sample config to load, exists=%v err=%v", exists, err)
	}
}

func TestHeartbeatIntervalIsThirdOfTTL(t *testing.T) {
	cfg := config.Default()
	cfg.Discovery.TTLMillis = 9000
	if got := cfg.HeartbeatInterval(); got != 3*time.Second {
		t.Fatalf("expected 3s heartbeat interval, got %s", got)
	}
}
