// Package rendezvous persists the daemon descriptor that independent client
// processes use to find or supersede the discovery daemon.
//
// The record is the only mutable state shared across processes. It is written
// with atomic replace semantics (temp file plus rename) and read permissively:
// anything malformed is treated as absent. Callers wanting stronger
// single-instance guarantees than the advisory pid probe should layer a lock
// file on top, which is exactly what the daemon does with flock.
package rendezvous
