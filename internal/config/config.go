package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory configuration.
type Paths struct {
	// RuntimeDir holds the rendezvous record, the daemon lock file, and the
	// pid file. It must be shared by every process on the machine.
	RuntimeDir string `toml:"runtime_dir"`
	LogDir     string `toml:"log_dir"`
}

// Discovery contains registry timing configuration. All values are
// milliseconds.
type Discovery struct {
	// TTLMillis is the maximum gap between heartbeats before an instance is
	// considered dead. Overridable via BEACON_TTL_MS.
	TTLMillis int `toml:"ttl_ms"`
	// StartupTimeoutMillis bounds the client-side discover-or-launch loop.
	// Overridable via BEACON_STARTUP_TIMEOUT_MS.
	StartupTimeoutMillis  int `toml:"startup_timeout_ms"`
	CleanupIntervalMillis int `toml:"cleanup_interval_ms"`
	RefreshIntervalMillis int `toml:"refresh_interval_ms"`
	ProbeTimeoutMillis    int `toml:"probe_timeout_ms"`
	PollIntervalMillis    int `toml:"poll_interval_ms"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Config encapsulates all configuration values for beacon.
type Config struct {
	Paths     Paths     `toml:"paths"`
	Discovery Discovery `toml:"discovery"`
	Logging   Logging   `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/beacon/config.toml")
}

// Load locates, parses, and validates a configuration file. The returned
// config has all path fields expanded and environment overrides applied.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}
	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	return defaultPath, false, nil
}

// EnsureDirectories creates required directories for daemon operation.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.RuntimeDir, c.Paths.LogDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// RecordPath returns the rendezvous record location.
func (c *Config) RecordPath() string {
	return filepath.Join(c.Paths.RuntimeDir, "beacond.json")
}

// LockPath returns the daemon lock file location.
func (c *Config) LockPath() string {
	return filepath.Join(c.Paths.RuntimeDir, "beacond.lock")
}

// PIDPath returns the advisory daemon pid file location.
func (c *Config) PIDPath() string {
	return filepath.Join(c.Paths.RuntimeDir, "beacond.pid")
}

// TTL returns the instance liveness window.
func (c *Config) TTL() time.Duration {
	return time.Duration(c.Discovery.TTLMillis) * time.Millisecond
}

// StartupTimeout returns the overall discover-or-launch deadline.
func (c *Config) StartupTimeout() time.Duration {
	return time.Duration(c.Discovery.StartupTimeoutMillis) * time.Millisecond
}

// CleanupInterval returns the period between expired-instance sweeps.
func (c *Config) CleanupInterval() time.Duration {
	return time.Duration(c.Discovery.CleanupIntervalMillis) * time.Millisecond
}

// RefreshInterval returns the period between rendezvous record rewrites.
func (c *Config) RefreshInterval() time.Duration {
	return time.Duration(c.Discovery.RefreshIntervalMillis) * time.Millisecond
}

// ProbeTimeout returns the per-attempt health probe deadline.
func (c *Config) ProbeTimeout() time.Duration {
	return time.Duration(c.Discovery.ProbeTimeoutMillis) * time.Millisecond
}

// PollInterval returns the delay between startup poll attempts.
func (c *Config) PollInterval() time.Duration {
	return time.Duration(c.Discovery.PollIntervalMillis) * time.Millisecond
}

// HeartbeatInterval returns the recommended heartbeat period for registered
// instances: a third of the TTL so two consecutive misses survive one sweep.
func (c *Config) HeartbeatInterval() time.Duration {
	return c.TTL() / 3
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes tilde and relative path expansion to other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}
	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
