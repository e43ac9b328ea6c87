// Package logging assembles the structured slog loggers shared by the beacon
// daemon and CLI.
//
// It owns the configurable console/JSON handlers, centralizes level and output
// plumbing, and defines the standardized attribute keys (service, instance_id,
// pid, address) so every component emits log lines with the same shape. The
// package also provides a no-op logger for tests and wiring code that cannot
// fail.
//
// Prefer these constructors over hand-rolled slog setup.
package logging
