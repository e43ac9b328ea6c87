package api

import "time"

// Instance is the wire representation of a registered endpoint.
type Instance struct {
	ID       string         `json:"id"`
	Name     string         `json:"name"`
	Host     string         `json:"host"`
	Port     int            `json:"port"`
	PID      int            `json:"pid,omitempty"`
	Meta     map[string]any `json:"meta,omitempty"`
	LastSeen time.Time      `json:"last_seen"`
}

// RegisterRequest is the body of POST /register. Host, PID, ID, and Meta are
// optional.
type RegisterRequest struct {
	Name string         `json:"name"`
	Host string         `json:"host,omitempty"`
	Port int            `json:"port"`
	PID  int            `json:"pid,omitempty"`
	ID   string         `json:"id,omitempty"`
	Meta map[string]any `json:"meta,omitempty"`
}

// RegisterResponse carries the stored instance or a validation error.
type RegisterResponse struct {
	OK       bool      `json:"ok"`
	Instance *Instance `json:"instance,omitempty"`
	Error    string    `json:"error,omitempty"`
}

// HeartbeatRequest is the body of POST /heartbeat.
type HeartbeatRequest struct {
	Name string `json:"name"`
	ID   string `json:"id"`
}

// HeartbeatResponse carries the refreshed instance, or a null instance when
// the name or id is unknown. An unknown target is not an error.
type HeartbeatResponse struct {
	OK       bool      `json:"ok"`
	Instance *Instance `json:"instance"`
}

// UnregisterRequest is the body of POST /unregister. With an ID only that
// instance is removed; without one, every instance matching Host or Port is.
type UnregisterRequest struct {
	Name string `json:"name"`
	ID   string `json:"id,omitempty"`
	Host string `json:"host,omitempty"`
	Port int    `json:"port,omitempty"`
}

// UnregisterResponse reports whether anything was removed.
type UnregisterResponse struct {
	OK bool `json:"ok"`
}

// ResolveResponse carries the most recently seen instance for a service.
type ResolveResponse struct {
	OK       bool      `json:"ok"`
	Instance *Instance `json:"instance,omitempty"`
	Error    string    `json:"error,omitempty"`
}

// ListResponse is a point-in-time snapshot of every service.
type ListResponse struct {
	OK       bool                  `json:"ok"`
	Services map[string][]Instance `json:"services"`
}

// HealthResponse answers the bootstrap probe.
type HealthResponse struct {
	OK  bool `json:"ok"`
	PID int  `json:"pid"`
}

// ErrorResponse is the generic failure envelope.
type ErrorResponse struct {
	OK    bool   `json:"ok"`
	Error string `json:"error"`
}
