package config

import (
	"os"
	"path/filepath"
)

const (
	defaultLogDir                = "~/.local/share/beacon/logs"
	defaultLogFormat             = "console"
	defaultLogLevel              = "info"
	defaultTTLMillis             = 15000
	defaultStartupTimeoutMillis  = 3000
	defaultCleanupIntervalMillis = 5000
	defaultRefreshIntervalMillis = 5000
	defaultProbeTimeoutMillis    = 500
	defaultPollIntervalMillis    = 150
)

func defaultRuntimeDir() string {
	return filepath.Join(os.TempDir(), "beacon")
}

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			RuntimeDir: defaultRuntimeDir(),
			LogDir:     defaultLogDir,
		},
		Discovery: Discovery{
			TTLMillis:             defaultTTLMillis,
			StartupTimeoutMillis:  defaultStartupTimeoutMillis,
			CleanupIntervalMillis: defaultCleanupIntervalMillis,
			RefreshIntervalMillis: defaultRefreshIntervalMillis,
			ProbeTimeoutMillis:    defaultProbeTimeoutMillis,
			PollIntervalMillis:    defaultPollIntervalMillis,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
