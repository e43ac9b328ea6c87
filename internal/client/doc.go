// Package client ships the HTTP client for the daemon's discovery surface.
//
// It decorates every call with the caller's context so CLI commands and the
// bootstrap health probe fail fast when the daemon is offline, and maps HTTP
// outcomes onto the shared error taxonomy: 400 register responses surface as
// validation errors, resolve misses as not-found, and network failures as
// transport errors.
package client
