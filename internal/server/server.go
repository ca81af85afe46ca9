// Package server implements the optional HTTP sidecar that runs next to a
// capture session. It exposes:
//
//   - /healthz — liveness probe; always returns 200 OK.
//   - /readyz  — readiness probe; returns 200 only when all registered
//     [Checker] functions pass.
//   - /metrics — Prometheus scrape endpoint backed by the OTel bridge.
//   - /live    — websocket feed of transcript segments as they are produced.
//
// Health responses are JSON objects with a top-level "status" field ("ok" or
// "fail") and a "checks" map containing the result of each named checker.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/MrWong99/micscribe/internal/observe"
)

// checkTimeout is the maximum time a single readiness check may take before
// the context is cancelled.
const checkTimeout = 5 * time.Second

// shutdownTimeout bounds graceful HTTP shutdown.
const shutdownTimeout = 5 * time.Second

// Checker is a named health check function. The Check function should return
// nil when the dependency is healthy and a non-nil error describing the
// failure otherwise.
type Checker struct {
	// Name is a short, human-readable label for this check (e.g. "model",
	// "capture"). It appears as a key in the JSON response.
	Name string

	// Check probes the dependency. It must respect context cancellation.
	Check func(ctx context.Context) error
}

// healthResult is the JSON response body for health endpoints.
type healthResult struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

// Server is the micscribe HTTP sidecar.
type Server struct {
	httpServer  *http.Server
	broadcaster *Broadcaster
	checkers    []Checker
}

// New builds a sidecar listening on addr. The returned server owns the
// broadcaster available via [Server.Broadcaster]; the session publishes
// segments through it.
func New(addr string, metrics *observe.Metrics, checkers ...Checker) *Server {
	s := &Server{
		broadcaster: NewBroadcaster(),
		checkers:    append([]Checker(nil), checkers...),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", s.healthz)
	mux.HandleFunc("GET /readyz", s.readyz)
	mux.Handle("GET /metrics", promhttp.Handler())
	mux.HandleFunc("GET /live", s.live)

	s.httpServer = &http.Server{
		Addr:    addr,
		Handler: observe.Middleware(metrics)(mux),
	}
	return s
}

// Handler returns the sidecar's root handler, mainly for tests that mount
// it on their own listener.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// Broadcaster returns the live-feed broadcaster for this server.
func (s *Server) Broadcaster() *Broadcaster {
	return s.broadcaster
}

// Run serves until ctx is cancelled, then shuts down gracefully and closes
// all live-feed subscribers.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		slog.Info("sidecar listening", "addr", s.httpServer.Addr)
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	s.broadcaster.Close()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return <-errCh
}

// healthz is a liveness probe that always returns 200 OK. A running process
// that can serve HTTP is considered alive.
func (s *Server) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, healthResult{Status: "ok"})
}

// readyz is a readiness probe that returns 200 only when every registered
// [Checker] passes. Each checker is given a context with a [checkTimeout]
// deadline derived from the request context.
func (s *Server) readyz(w http.ResponseWriter, r *http.Request) {
	checks := make(map[string]string, len(s.checkers))
	allOK := true

	for _, c := range s.checkers {
		ctx, cancel := context.WithTimeout(r.Context(), checkTimeout)
		err := c.Check(ctx)
		cancel()

		if err != nil {
			checks[c.Name] = "fail: " + err.Error()
			allOK = false
		} else {
			checks[c.Name] = "ok"
		}
	}

	res := healthResult{
		Status: "ok",
		Checks: checks,
	}
	status := http.StatusOK
	if !allOK {
		res.Status = "fail"
		status = http.StatusServiceUnavailable
	}

	writeJSON(w, status, res)
}

// writeJSON encodes v as JSON and writes it with the given status code. On
// encoding failure it falls back to a plain-text 500 response.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, `{"status":"error"}`, http.StatusInternalServerError)
	}
}
