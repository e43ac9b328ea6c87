package client_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"beacon/internal/api"
	"beacon/internal/client"
	"beacon/internal/discovery"
)

func newTestClient(t *testing.T, handler http.Handler) *client.Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return client.New(strings.TrimPrefix(srv.URL, "http://"))
}

func TestRegisterMapsBadRequestToValidation(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(api.RegisterResponse{Error: "service name is required"})
	}))

	_, err := c.Register(context.Background(), api.RegisterRequest{Port: 80})
	if !errors.Is(err, discovery.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if !strings.Contains(err.Error(), "service name is required") {
		t.Fatalf("expected server message in error, got %q", err)
	}
}

func TestResolveMapsNotFound(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		json.NewEncoder(w).Encode(api.ErrorResponse{Error: "not_found"})
	}))

	_, err := c.Resolve(context.Background(), "missing")
	if !errors.Is(err, discovery.ErrNotFound) {
		t.Fatalf("expected not-found error, got %v", err)
	}
}

func TestUnreachableDaemonIsTransportError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	addr := strings.TrimPrefix(srv.URL, "http://")
	srv.Close()

	_, err := client.New(addr).Health(context.Background())
	if !errors.Is(err, discovery.ErrTransport) {
		t.Fatalf("expected transport error, got %v", err)
	}
}

func TestHeartbeatNullInstance(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(api.HeartbeatResponse{OK: true, Instance: nil})
	}))

	inst, err := c.Heartbeat(context.Background(), "web", "gone")
	if err != nil {
		t.Fatalf("heartbeat: %v", err)
	}
	if inst != nil {
		t.Fatalf("expected nil instance, got %+v", inst)
	}
}

func TestHealthReturnsPID(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/health" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(api.HealthResponse{OK: true, PID: 4242})
	}))

	pid, err := c.Health(context.Background())
	if err != nil {
		t.Fatalf("health: %v", err)
	}
	if pid != 4242 {
		t.Fatalf("expected pid 4242, got %d", pid)
	}
}

func TestHeartbeatLoopStopsOnCancel(t *testing.T) {
	var beats atomic.Int64
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		beats.Add(1)
		inst := api.Instance{ID: "x", Name: "web", LastSeen: time.Now()}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(api.HeartbeatResponse{OK: true, Instance: &inst})
	}))

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(200 * time.Millisecond)
		cancel()
	}()
	if err := c.HeartbeatLoop(ctx, "web", "x", 20*time.Millisecond); err != nil {
		t.Fatalf("expected nil on cancellation, got %v", err)
	}
	if beats.Load() == 0 {
		t.Fatal("expected at least one heartbeat before cancellation")
	}
}

func TestHeartbeatLoopReportsEviction(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(api.HeartbeatResponse{OK: true, Instance: nil})
	}))

	err := c.HeartbeatLoop(context.Background(), "web", "x", 10*time.Millisecond)
	if !errors.Is(err, discovery.ErrNotFound) {
		t.Fatalf("expected not-found after eviction, got %v", err)
	}
}

func TestHeartbeatLoopAbandonsDeadAddress(t *testing.T) {
	// A daemon restart lands on a new ephemeral port, so the old address
	// stays dead forever. The loop must surface that instead of spinning.
	srv := httptest.NewServer(http.NotFoundHandler())
	addr := strings.TrimPrefix(srv.URL, "http://")
	srv.Close()

	done := make(chan error, 1)
	go func() {
		done <- client.New(addr).HeartbeatLoop(context.Background(), "web", "x", 10*time.Millisecond)
	}()

	select {
	case err := <-done:
		if !errors.Is(err, discovery.ErrTransport) {
			t.Fatalf("expected transport error after repeated failures, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("loop kept retrying a dead daemon address instead of returning")
	}
}

func TestRequestTimeoutBoundsHangingDaemon(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-release
	}))
	defer srv.Close()
	defer close(release)

	c := client.New(strings.TrimPrefix(srv.URL, "http://"), client.WithTimeout(100*time.Millisecond))

	start := time.Now()
	_, err := c.Health(context.Background())
	if !errors.Is(err, discovery.ErrTransport) {
		t.Fatalf("expected transport error from timeout, got %v", err)
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Fatalf("request was not bounded by the client timeout, took %s", elapsed)
	}
}

func TestHeartbeatLoopRetriesTransportFailures(t *testing.T) {
	var calls atomic.Int64
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := calls.Add(1)
		w.Header().Set("Content-Type", "application/json")
		if n < 3 {
			// Garbage payload forces a decode failure, which the loop
			// must survive.
			w.Write([]byte("{"))
			return
		}
		json.NewEncoder(w).Encode(api.HeartbeatResponse{OK: true, Instance: nil})
	}))

	err := c.HeartbeatLoop(context.Background(), "web", "x", 10*time.Millisecond)
	if !errors.Is(err, discovery.ErrNotFound) {
		t.Fatalf("expected loop to survive bad responses and finish with not-found, got %v", err)
	}
	if calls.Load() < 3 {
		t.Fatalf("expected at least 3 calls, got %d", calls.Load())
	}
}
