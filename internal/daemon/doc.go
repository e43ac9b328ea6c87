// Package daemon coordinates the long-running discovery process.
//
// It wires the liveness directory, the rendezvous record, and the HTTP
// surface into a single lifecycle with flock-based locking to prevent
// multiple instances on one machine. Startup runs the singleton guard (abort
// when a live daemon already owns the rendezvous record, overwrite when the
// record is stale), binds an OS-assigned local port, and publishes the bound
// address atomically. Background timers sweep expired instances and refresh
// the record from one goroutine so runs never overlap.
//
// Keep orchestration logic here: directory semantics live in the registry
// package and wire shapes in the api package.
package daemon
