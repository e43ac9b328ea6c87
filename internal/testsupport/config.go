// Package testsupport provides shared fixtures for package tests.
package testsupport

import (
	"path/filepath"
	"testing"

	"beacon/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*config.Config)

// NewConfig produces a config seeded with unique temp directories per test
// and timing tightened so bootstrap tests finish quickly.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfg := config.Default()
	cfg.Paths.RuntimeDir = filepath.Join(base, "run")
	cfg.Paths.LogDir = filepath.Join(base, "logs")
	cfg.Discovery.TTLMillis = 500
	cfg.Discovery.StartupTimeoutMillis = 2000
	cfg.Discovery.CleanupIntervalMillis = 50
	cfg.Discovery.RefreshIntervalMillis = 50
	cfg.Discovery.ProbeTimeoutMillis = 250
	cfg.Discovery.PollIntervalMillis = 25

	for _, opt := range opts {
		opt(&cfg)
	}

	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("ensure directories: %v", err)
	}
	return &cfg
}

// WithTTLMillis overrides the instance liveness window.
func WithTTLMillis(ms int) ConfigOption {
	return func(cfg *config.Config) {
		cfg.Discovery.TTLMillis = ms
	}
}

// WithStartupTimeoutMillis overrides the discover-or-launch deadline.
func WithStartupTimeoutMillis(ms int) ConfigOption {
	return func(cfg *config.Config) {
		cfg.Discovery.StartupTimeoutMillis = ms
	}
}
