package config

import (
	"errors"
	"fmt"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validatePaths(); err != nil {
		return err
	}
	if err := c.validateDiscovery(); err != nil {
		return err
	}
	return c.validateLogging()
}

func (c *Config) validatePaths() error {
	if c.Paths.RuntimeDir == "" {
		return errors.New("paths.runtime_dir must be set")
	}
	if c.Paths.LogDir == "" {
		return errors.New("paths.log_dir must be set")
	}
	return nil
}

func (c *Config) validateDiscovery() error {
	for _, field := range []struct {
		name  string
		value int
	}{
		{"discovery.ttl_ms", c.Discovery.TTLMillis},
		{"discovery.startup_timeout_ms", c.Discovery.StartupTimeoutMillis},
		{"discovery.cleanup_interval_ms", c.Discovery.CleanupIntervalMillis},
		{"discovery.refresh_interval_ms", c.Discovery.RefreshIntervalMillis},
		{"discovery.probe_timeout_ms", c.Discovery.ProbeTimeoutMillis},
		{"discovery.poll_interval_ms", c.Discovery.PollIntervalMillis},
	} {
		if field.value <= 0 {
			return fmt.Errorf("%s must be a positive integer", field.name)
		}
	}
	if c.Discovery.ProbeTimeoutMillis > c.Discovery.StartupTimeoutMillis {
		return errors.New("discovery.probe_timeout_ms must not exceed discovery.startup_timeout_ms")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format must be console or json, got %q", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level must be debug, info, warn, or error, got %q", c.Logging.Level)
	}
	return nil
}
