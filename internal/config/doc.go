// Package config loads, normalizes, and validates beacon configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours the BEACON_TTL_MS and
// BEACON_STARTUP_TIMEOUT_MS environment overrides. The Config type
// centralizes every knob the daemon and CLI need, including the runtime
// directory that hosts the cross-process rendezvous record.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, canonical log formats, and clear validation errors.
package config
