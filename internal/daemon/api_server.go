package daemon

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"beacon/internal/api"
	"beacon/internal/logging"
)

type httpServer struct {
	daemon *Daemon
	logger *slog.Logger
	server *http.Server
}

func newHTTPServer(d *Daemon, logger *slog.Logger) *httpServer {
	srv := &httpServer{
		daemon: d,
		logger: logging.NewComponentLogger(logger, "api"),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/register", srv.handleRegister)
	mux.HandleFunc("/heartbeat", srv.handleHeartbeat)
	mux.HandleFunc("/unregister", srv.handleUnregister)
	mux.HandleFunc("/resolve/", srv.handleResolve)
	mux.HandleFunc("/list", srv.handleList)
	mux.HandleFunc("/health", srv.handleHealth)

	srv.server = &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return srv
}

func (s *httpServer) serve(ctx context.Context, listener net.Listener) {
	go func() {
		if err := s.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("http server error", logging.Error(err))
		}
	}()
	go func() {
		<-ctx.Done()
		s.stop()
	}()
}

func (s *httpServer) stop() {
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = s.server.Shutdown(shutdownCtx)
}

func (s *httpServer) handleRegister(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	var req api.RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeJSON(w, http.StatusBadRequest, api.RegisterResponse{Error: "invalid request body"})
		return
	}

	inst, err := s.daemon.Directory().Register(req.ToRegistration())
	if err != nil {
		s.writeJSON(w, http.StatusBadRequest, api.RegisterResponse{Error: err.Error()})
		return
	}

	s.logger.Debug("instance registered",
		logging.String(logging.FieldService, inst.Name),
		logging.String(logging.FieldInstanceID, inst.ID),
		logging.String(logging.FieldAddress, inst.Host),
		logging.Int("port", inst.Port))

	wire := api.FromInstance(inst)
	s.writeJSON(w, http.StatusOK, api.RegisterResponse{OK: true, Instance: &wire})
}

func (s *httpServer) handleHeartbeat(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	var req api.HeartbeatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	// An unknown target is reported as null, not failed: the caller may have
	// raced with eviction and decides for itself whether to re-register.
	inst, ok := s.daemon.Directory().Heartbeat(req.Name, req.ID)
	if !ok {
		s.writeJSON(w, http.StatusOK, api.HeartbeatResponse{OK: true, Instance: nil})
		return
	}
	wire := api.FromInstance(inst)
	s.writeJSON(w, http.StatusOK, api.HeartbeatResponse{OK: true, Instance: &wire})
}

func (s *httpServer) handleUnregister(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	var req api.UnregisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	removed := s.daemon.Directory().Unregister(req.Name, req.ID, req.Host, req.Port)
	s.writeJSON(w, http.StatusOK, api.UnregisterResponse{OK: removed})
}

func (s *httpServer) handleResolve(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	name := strings.TrimPrefix(r.URL.Path, "/resolve/")
	if name == "" || strings.Contains(name, "/") {
		s.writeJSON(w, http.StatusNotFound, api.ResolveResponse{Error: "not_found"})
		return
	}

	inst, ok := s.daemon.Directory().Resolve(name)
	if !ok {
		s.writeJSON(w, http.StatusNotFound, api.ResolveResponse{Error: "not_found"})
		return
	}
	wire := api.FromInstance(inst)
	s.writeJSON(w, http.StatusOK, api.ResolveResponse{OK: true, Instance: &wire})
}

func (s *httpServer) handleList(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	services := api.FromInstances(s.daemon.Directory().List())
	s.writeJSON(w, http.StatusOK, api.ListResponse{OK: true, Services: services})
}

func (s *httpServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	s.writeJSON(w, http.StatusOK, api.HealthResponse{OK: true, PID: s.daemon.PID()})
}

func (s *httpServer) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Error("failed to encode response", logging.Error(err))
	}
}

func (s *httpServer) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, api.ErrorResponse{OK: false, Error: message})
}
