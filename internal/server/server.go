package server

import (
	"context"
	_ "embed"
	"encoding/json"
	"fmt"
	"html/template"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/zgpcy/stopwatch/internal/config"
	"github.com/zgpcy/stopwatch/internal/logger"
	"github.com/zgpcy/stopwatch/internal/stopwatch"
	"github.com/zgpcy/stopwatch/internal/version"
)

//go:embed templates/index.html
var indexTemplate string

// HTTP server timeout constants
const (
	DefaultReadTimeout  = 15 * time.Second // Maximum duration for reading the entire request
	DefaultWriteTimeout = 15 * time.Second // Maximum duration before timing out writes of the response
	DefaultIdleTimeout  = 60 * time.Second // Maximum amount of time to wait for the next request
)

// indexPageData holds template data for the index page
type indexPageData struct {
	State           string
	Display         string
	IntervalSeconds float64
}

// stopwatchResponse is the JSON body of every /api/stopwatch response
type stopwatchResponse struct {
	State           stopwatch.State     `json:"state"`
	Elapsed         stopwatch.TimerTime `json:"elapsed"`
	Formatted       stopwatch.Formatted `json:"formatted"`
	Display         string              `json:"display"`
	IntervalSeconds float64             `json:"interval_seconds"`
	Ticks           uint64              `json:"ticks"`
}

func newStopwatchResponse(snap stopwatch.Snapshot) stopwatchResponse {
	return stopwatchResponse{
		State:           snap.State,
		Elapsed:         snap.Elapsed,
		Formatted:       snap.Formatted,
		Display:         snap.Formatted.String(),
		IntervalSeconds: snap.Interval.Seconds(),
		Ticks:           snap.Ticks,
	}
}

// Server represents the HTTP server
type Server struct {
	server    *http.Server
	stopwatch *stopwatch.Stopwatch
	cfg       *config.Config
	logger    *logger.Logger
}

// NewServer creates a new HTTP server
func NewServer(cfg *config.Config, sw *stopwatch.Stopwatch, log *logger.Logger) *Server {
	mux := http.NewServeMux()

	s := &Server{
		server: &http.Server{
			Addr:         fmt.Sprintf(":%d", cfg.HTTPPort),
			Handler:      mux,
			ReadTimeout:  DefaultReadTimeout,
			WriteTimeout: DefaultWriteTimeout,
			IdleTimeout:  DefaultIdleTimeout,
		},
		stopwatch: sw,
		cfg:       cfg,
		logger:    log.Component("server"),
	}

	// Register handlers
	mux.HandleFunc("GET /{$}", s.handleIndex)
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /ready", s.handleReady)
	mux.HandleFunc("GET /version", s.handleVersion)
	mux.Handle("GET /metrics", promhttp.Handler())

	mux.HandleFunc("GET /api/stopwatch", s.handleGet)
	mux.HandleFunc("POST /api/stopwatch/start", s.operation("start", sw.Start))
	mux.HandleFunc("POST /api/stopwatch/pause", s.operation("pause", sw.Pause))
	mux.HandleFunc("POST /api/stopwatch/resume", s.operation("resume", sw.Resume))
	mux.HandleFunc("POST /api/stopwatch/reset", s.operation("reset", sw.Reset))
	mux.HandleFunc("GET /api/stopwatch/events", s.handleEvents)

	return s
}

// Handler returns the root handler, mainly for tests
func (s *Server) Handler() http.Handler {
	return s.server.Handler
}

// Start starts the HTTP server
func (s *Server) Start() error {
	s.logger.Info("Starting HTTP server", "address", s.server.Addr)
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("failed to start server: %w", err)
	}
	return nil
}

// Shutdown gracefully shuts down the HTTP server
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("Shutting down HTTP server")
	return s.server.Shutdown(ctx)
}

// handleIndex serves the readout page
func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	tmpl, err := template.New("index").Parse(indexTemplate)
	if err != nil {
		s.logger.Error("Failed to parse index template", "error", err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	snap := s.stopwatch.Snapshot()
	data := indexPageData{
		State:           snap.State.String(),
		Display:         snap.Formatted.String(),
		IntervalSeconds: snap.Interval.Seconds(),
	}

	w.Header().Set("Content-Type", "text/html")
	if err := tmpl.Execute(w, data); err != nil {
		s.logger.Error("Failed to execute index template", "error", err)
	}
}

// handleHealth handles health check requests (always returns 200 for liveness)
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write([]byte(`{"status":"healthy"}`)); err != nil {
		s.logger.Error("Failed to write health response", "error", err)
	}
}

// handleReady returns 200 while the stopwatch accepts operations
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	if s.stopwatch.Snapshot().Closed {
		w.WriteHeader(http.StatusServiceUnavailable)
		if _, err := w.Write([]byte(`{"status":"not ready","message":"stopwatch closed"}`)); err != nil {
			s.logger.Error("Failed to write ready response", "error", err)
		}
		return
	}

	w.WriteHeader(http.StatusOK)
	if _, err := w.Write([]byte(`{"status":"ready"}`)); err != nil {
		s.logger.Error("Failed to write ready response", "error", err)
	}
}

func (s *Server) handleVersion(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, version.Info())
}

// handleGet returns the current stopwatch state
func (s *Server) handleGet(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, newStopwatchResponse(s.stopwatch.Snapshot()))
}

// operation wraps a stopwatch transition and answers with the resulting state
func (s *Server) operation(name string, apply func() bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !apply() {
			s.writeJSON(w, http.StatusServiceUnavailable, map[string]string{
				"status":  "unavailable",
				"message": "stopwatch closed",
			})
			return
		}

		snap := s.stopwatch.Snapshot()
		s.logger.Debug("Applied stopwatch operation",
			"operation", name,
			"state", snap.State.String(),
			"elapsed", snap.Elapsed.String())
		s.writeJSON(w, http.StatusOK, newStopwatchResponse(snap))
	}
}

// handleEvents streams change notifications as Server-Sent Events. The first
// event is a snapshot of the current state.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	rc := http.NewResponseController(w)

	sub := s.stopwatch.Subscribe()
	defer sub.Close()

	// The stream outlives the server write timeout.
	if err := rc.SetWriteDeadline(time.Time{}); err != nil {
		s.logger.Debug("Could not clear write deadline", "error", err)
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	s.logger.Info("Event stream opened", "subscription_id", sub.ID, "remote_addr", r.RemoteAddr)
	defer s.logger.Info("Event stream closed", "subscription_id", sub.ID)

	seq := 0
	send := func(kind string, payload any) bool {
		data, err := json.Marshal(payload)
		if err != nil {
			s.logger.Error("Failed to encode event", "error", err)
			return false
		}
		seq++
		if _, err := fmt.Fprintf(w, "id: %s-%d\nevent: %s\ndata: %s\n\n", sub.ID, seq, kind, data); err != nil {
			return false
		}
		if err := rc.Flush(); err != nil {
			s.logger.Error("Failed to flush event stream", "error", err)
			return false
		}
		return true
	}

	if !send("snapshot", newStopwatchResponse(s.stopwatch.Snapshot())) {
		return
	}

	for {
		select {
		case <-r.Context().Done():
			return
		case ev, ok := <-sub.C():
			if !ok {
				return
			}
			if !send(string(ev.Kind), ev) {
				return
			}
		}
	}
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("Failed to write JSON response", "error", err)
	}
}
