package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"beacon/internal/api"
	"beacon/internal/discovery"
)

// Client talks to a discovery daemon over its HTTP surface. The address comes
// from one bootstrap run and must not be held across logical operations: the
// daemon may be restarted externally at any time.
type Client struct {
	baseURL string
	httpc   *http.Client
}

// defaultTimeout caps any single request even when the caller's context has
// no deadline of its own. Daemon operations are loopback map lookups; nothing
// legitimate takes this long.
const defaultTimeout = 10 * time.Second

// Option customizes client construction.
type Option func(*Client)

// WithTimeout overrides the per-request timeout.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		c.httpc.Timeout = timeout
	}
}

// New returns a client for the daemon at address (host:port).
func New(address string, opts ...Option) *Client {
	c := &Client{
		baseURL: "http://" + address,
		httpc:   &http.Client{Timeout: defaultTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Register adds or replaces an instance in the directory.
func (c *Client) Register(ctx context.Context, req api.RegisterRequest) (api.Instance, error) {
	var resp api.RegisterResponse
	status, err := c.postJSON(ctx, "/register", req, &resp)
	if err != nil {
		return api.Instance{}, err
	}
	if status == http.StatusBadRequest {
		return api.Instance{}, discovery.Wrap(discovery.ErrValidation, "client", "register", resp.Error, nil)
	}
	if !resp.OK || resp.Instance == nil {
		return api.Instance{}, discovery.Wrap(discovery.ErrTransport, "client", "register",
			fmt.Sprintf("unexpected response (status %d)", status), nil)
	}
	return *resp.Instance, nil
}

// Heartbeat refreshes an instance's liveness. A nil instance with a nil error
// means the daemon no longer knows the target; callers should re-register.
func (c *Client) Heartbeat(ctx context.Context, name, id string) (*api.Instance, error) {
	var resp api.HeartbeatResponse
	if _, err := c.postJSON(ctx, "/heartbeat", api.HeartbeatRequest{Name: name, ID: id}, &resp); err != nil {
		return nil, err
	}
	return resp.Instance, nil
}

// Unregister removes instances and reports whether anything was removed.
func (c *Client) Unregister(ctx context.Context, req api.UnregisterRequest) (bool, error) {
	var resp api.UnregisterResponse
	if _, err := c.postJSON(ctx, "/unregister", req, &resp); err != nil {
		return false, err
	}
	return resp.OK, nil
}

// Resolve returns the most recently seen instance for a service name, or
// ErrNotFound when the service has no live instances.
func (c *Client) Resolve(ctx context.Context, name string) (api.Instance, error) {
	var resp api.ResolveResponse
	status, err := c.getJSON(ctx, "/resolve/"+url.PathEscape(name), &resp)
	if err != nil {
		return api.Instance{}, err
	}
	if status == http.StatusNotFound {
		return api.Instance{}, discovery.Wrap(discovery.ErrNotFound, "client", "resolve", name, nil)
	}
	if !resp.OK || resp.Instance == nil {
		return api.Instance{}, discovery.Wrap(discovery.ErrTransport, "client", "resolve",
			fmt.Sprintf("unexpected response (status %d)", status), nil)
	}
	return *resp.Instance, nil
}

// List returns a snapshot of every service and its instances.
func (c *Client) List(ctx context.Context) (map[string][]api.Instance, error) {
	var resp api.ListResponse
	if _, err := c.getJSON(ctx, "/list", &resp); err != nil {
		return nil, err
	}
	return resp.Services, nil
}

// Health probes the daemon and returns its pid.
func (c *Client) Health(ctx context.Context) (int, error) {
	var resp api.HealthResponse
	status, err := c.getJSON(ctx, "/health", &resp)
	if err != nil {
		return 0, err
	}
	if status != http.StatusOK || !resp.OK {
		return 0, discovery.Wrap(discovery.ErrTransport, "client", "health",
			fmt.Sprintf("unhealthy response (status %d)", status), nil)
	}
	return resp.PID, nil
}

// maxHeartbeatFailures bounds consecutive failed heartbeat ticks. At the
// ttl/3 cadence three misses span one full TTL, by which point the instance
// is evicted anyway and the address is worth abandoning.
const maxHeartbeatFailures = 3

// HeartbeatLoop sends heartbeats every interval until ctx is done. It returns
// nil on cancellation, ErrNotFound once the daemon reports the instance
// unknown, or ErrTransport after repeated delivery failures. Either error
// means the held address is no longer good: the caller must re-run discovery
// and re-register.
//
// A restarted daemon comes back on a new ephemeral port, so a dead address
// never heals. Retrying a single missed tick is fine; retrying forever would
// keep the instance silently evicted while this loop spins.
func (c *Client) HeartbeatLoop(ctx context.Context, name, id string, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	failures := 0
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			inst, err := c.Heartbeat(ctx, name, id)
			if err != nil {
				if ctx.Err() != nil {
					return nil
				}
				failures++
				if failures >= maxHeartbeatFailures {
					return discovery.Wrap(discovery.ErrTransport, "client", "heartbeat",
						fmt.Sprintf("daemon unreachable for %d consecutive heartbeats", failures), err)
				}
				continue
			}
			failures = 0
			if inst == nil {
				return discovery.Wrap(discovery.ErrNotFound, "client", "heartbeat",
					fmt.Sprintf("instance %s/%s evicted", name, id), nil)
			}
		}
	}
}

func (c *Client) postJSON(ctx context.Context, path string, body, out any) (int, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return 0, fmt.Errorf("marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return 0, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, path, out)
}

func (c *Client) getJSON(ctx context.Context, path string, out any) (int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return 0, fmt.Errorf("build request: %w", err)
	}
	return c.do(req, path, out)
}

func (c *Client) do(req *http.Request, path string, out any) (int, error) {
	resp, err := c.httpc.Do(req)
	if err != nil {
		return 0, discovery.Wrap(discovery.ErrTransport, "client", path, "daemon unreachable", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return resp.StatusCode, discovery.Wrap(discovery.ErrTransport, "client", path, "read response", err)
	}
	if len(data) > 0 && out != nil {
		if err := json.Unmarshal(data, out); err != nil {
			return resp.StatusCode, discovery.Wrap(discovery.ErrTransport, "client", path, "decode response", err)
		}
	}
	return resp.StatusCode, nil
}
