// Package api serves the daemon's local read-only HTTP surface: status,
// histories, logs, webhook list, and settings.
package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"go.klb.dev/cliphook/internal/app"
	"go.klb.dev/cliphook/internal/monitor"
	"go.klb.dev/cliphook/internal/settings"
	"go.klb.dev/cliphook/internal/webhook"
)

// Status is the /v1/status payload.
type Status struct {
	Version       string    `json:"version"`
	StartedAt     time.Time `json:"started_at"`
	UptimeSeconds int64     `json:"uptime_seconds"`
	Monitoring    bool      `json:"monitoring"`
	IntervalMS    int64     `json:"interval_ms"`
	Stats         app.Stats `json:"stats"`
	Clips         int       `json:"clips"`
	Links         int       `json:"links"`
	Webhooks      int       `json:"webhooks"`
	Downloaded    int       `json:"downloaded"`
}

// Server wraps the HTTP server around the orchestrator.
type Server struct {
	http    *http.Server
	app     *app.App
	mon     *monitor.Monitor
	hooks   *webhook.Engine
	version string
}

// New builds the router and server. The listener is not opened until Start.
func New(addr string, a *app.App, mon *monitor.Monitor, hooks *webhook.Engine, version string) *Server {
	s := &Server{app: a, mon: mon, hooks: hooks, version: version}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(logRequests)

	r.Route("/v1", func(r chi.Router) {
		r.Get("/status", s.status)
		r.Get("/clipboard", s.clipboard)
		r.Delete("/clipboard", s.clearClipboard)
		r.Get("/links", s.links)
		r.Delete("/links", s.clearLinks)
		r.Get("/logs", s.logs)
		r.Delete("/logs", s.clearLogs)
		r.Get("/webhooks", s.webhooks)
		r.Get("/settings", s.settings)
		r.Put("/settings", s.updateSettings)
	})

	s.http = &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return s
}

// Start blocks serving requests until Stop or a listener error.
func (s *Server) Start() error {
	slog.Info("api listening", "addr", s.http.Addr)
	if err := s.http.ListenAndServe(); err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Stop drains connections within the context deadline.
func (s *Server) Stop(ctx context.Context) error {
	slog.Info("api shutting down")
	return s.http.Shutdown(ctx)
}

// Handler exposes the router, for tests.
func (s *Server) Handler() http.Handler { return s.http.Handler }

func (s *Server) status(w http.ResponseWriter, _ *http.Request) {
	started := s.app.StartedAt()
	writeJSON(w, http.StatusOK, Status{
		Version:       s.version,
		StartedAt:     started,
		UptimeSeconds: int64(time.Since(started).Seconds()),
		Monitoring:    s.mon.Running(),
		IntervalMS:    s.mon.Interval().Milliseconds(),
		Stats:         s.app.LogStats(),
		Clips:         len(s.app.Clips()),
		Links:         len(s.app.Links()),
		Webhooks:      len(s.hooks.Definitions()),
		Downloaded:    s.app.Downloaded(),
	})
}

func (s *Server) clipboard(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.app.Clips())
}

func (s *Server) clearClipboard(w http.ResponseWriter, _ *http.Request) {
	s.app.ClearClips()
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) links(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.app.Links())
}

func (s *Server) clearLinks(w http.ResponseWriter, _ *http.Request) {
	s.app.ClearLinks()
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) logs(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.app.Logs())
}

func (s *Server) clearLogs(w http.ResponseWriter, _ *http.Request) {
	s.app.ClearLogs()
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) webhooks(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.hooks.Definitions())
}

func (s *Server) settings(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.app.Settings())
}

func (s *Server) updateSettings(w http.ResponseWriter, r *http.Request) {
	var cfg settings.Settings
	if err := json.NewDecoder(r.Body).Decode(&cfg); err != nil {
		writeError(w, http.StatusBadRequest, "invalid settings payload")
		return
	}
	if err := s.app.UpdateSettings(cfg); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	applied := s.app.Settings()
	// A changed poll interval takes effect immediately, not on restart.
	s.mon.SetInterval(time.Duration(applied.MonitorInterval) * time.Millisecond)
	writeJSON(w, http.StatusOK, applied)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("encode response", "err", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// logRequests emits one slog line per request.
func logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		slog.Debug("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			"duration", time.Since(start),
			"request_id", middleware.GetReqID(r.Context()),
		)
	})
}
