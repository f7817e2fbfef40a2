// Package status serves the health, metrics and key listing endpoints of a
// gridguard process.
package status

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/smukkama/gridguard/internal/keystore"
	"github.com/smukkama/gridguard/internal/metrics"
)

// Server is the status HTTP server.
type Server struct {
	component string
	metrics   *metrics.Metrics
	keys      *keystore.Store
	started   time.Time
	http      *http.Server
}

// NewServer creates a status server. keys may be nil for processes that do
// not read a key directory.
func NewServer(component string, m *metrics.Metrics, keys *keystore.Store) *Server {
	return &Server{component: component, metrics: m, keys: keys, started: time.Now()}
}

// Handler returns the chi router with all routes mounted.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(10 * time.Second))

	r.Get("/healthz", s.handleHealth)
	r.Handle("/metrics", promhttp.HandlerFor(s.metrics.Registry(), promhttp.HandlerOpts{}))
	if s.keys != nil {
		r.Get("/keys", s.handleKeys)
	}
	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	body := map[string]string{
		"status":    "ok",
		"component": s.component,
		"uptime":    time.Since(s.started).Round(time.Second).String(),
	}
	if s.keys != nil {
		if err := s.keys.Check(); err != nil {
			body["status"] = "degraded"
			body["error"] = err.Error()
			writeJSON(w, http.StatusServiceUnavailable, body)
			return
		}
	}
	writeJSON(w, http.StatusOK, body)
}

type keyInfo struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

// handleKeys lists the keys on disk, newest first, as of this request.
func (s *Server) handleKeys(w http.ResponseWriter, r *http.Request) {
	ids, err := s.keys.IDs()
	if err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": err.Error()})
		return
	}

	keys := make([]keyInfo, 0, len(ids))
	for _, id := range ids {
		keys = append(keys, keyInfo{
			ID:        id,
			Name:      s.keys.KeyName(id),
			CreatedAt: time.Unix(id, 0).UTC(),
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"keys": keys, "count": len(keys)})
}

// Start listens on addr and serves in the background.
func (s *Server) Start(addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to start status server: %w", err)
	}

	s.http = &http.Server{Handler: s.Handler(), ReadHeaderTimeout: 5 * time.Second}
	log.Printf("Status server listening on %s", ln.Addr())

	go func() {
		if err := s.http.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Printf("Status server error: %v", err)
		}
	}()
	return nil
}

// Stop shuts the server down
func (s *Server) Stop(ctx context.Context) error {
	if s.http == nil {
		return nil
	}
	return s.http.Shutdown(ctx)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
