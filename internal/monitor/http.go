package monitor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gorilla/mux"
)

const shutdownTimeout = 2 * time.Second

// Handler routes GET /status to the latest sample and GET /healthz to a
// liveness reply. Before the first sample /status takes one.
func (s *Service) Handler() http.Handler {
	r := mux.NewRouter()
	r.HandleFunc("/status", s.handleStatus).Methods(http.MethodGet)
	r.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}).Methods(http.MethodGet)
	return r
}

func (s *Service) handleStatus(w http.ResponseWriter, _ *http.Request) {
	status := s.latest.Load()
	if status == nil {
		fresh := s.GetProgramStatus()
		status = &fresh
	}
	writeJSON(w, http.StatusOK, status)
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

// Addr is the bound listen address, or "" when not serving.
func (s *Service) Addr() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.addr
}

// serve binds addr and serves in the background. Called with s.mu held.
func (s *Service) serve(addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("monitor listen on %s: %w", addr, err)
	}
	server := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	s.server, s.addr = server, ln.Addr().String()

	go func() {
		if err := server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.deps.Logger.Error("Monitor HTTP server failed", "error", err)
		}
	}()
	s.deps.Logger.Info("Monitor listening", "addr", s.addr)
	return nil
}

func (s *Service) shutdown(server *http.Server) {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		s.deps.Logger.Warn("Monitor HTTP shutdown", "error", err)
	}
	s.mu.Lock()
	s.addr = ""
	s.mu.Unlock()
}
