// Package registry implements the in-memory liveness directory: instances
// registered under logical service names, refreshed by heartbeats, evicted
// after a TTL, and resolved most-recently-seen first.
//
// Most-recently-seen resolution gives cheap crash recovery: a re-registering
// instance immediately becomes preferred over a stale sibling without any
// demotion logic. The directory holds no durable state; a daemon restart is a
// full reset.
package registry
