// Package api holds the request and response DTOs for the daemon HTTP
// surface, shared by the server handlers and the client.
//
// Keep wire shapes here rather than leaking registry types onto the wire, so
// the directory implementation can evolve without breaking clients.
package api
