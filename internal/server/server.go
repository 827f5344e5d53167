// Package server exposes the HTTP interface for the monitoring service.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/sitewatch/sitewatch/internal/crawler"
	"github.com/sitewatch/sitewatch/internal/monitor"
	"github.com/sitewatch/sitewatch/internal/store"
)

// Server wires HTTP handlers to the monitor service and stores.
type Server struct {
	router  chi.Router
	service *monitor.Service
	changes store.ChangeStore
	configs store.ConfigStore
	logger  *zap.Logger
}

// NewServer constructs a Server with middleware and routes.
func NewServer(service *monitor.Service, changes store.ChangeStore, configs store.ConfigStore, logger *zap.Logger) *Server {
	s := &Server{
		service: service,
		changes: changes,
		configs: configs,
		logger:  logger,
	}
	r := chi.NewRouter()
	r.Use(requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoverMiddleware)

	r.Get("/healthz", s.healthz)
	r.Get("/readyz", s.readyz)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Route("/v1", func(r chi.Router) {
		r.Post("/checks", s.runCheck)
		r.Get("/changes", s.listChanges)
		r.Route("/targets", func(r chi.Router) {
			r.Get("/", s.listTargets)
			r.Post("/", s.upsertTarget)
			r.Delete("/", s.deleteTarget)
		})
		r.Get("/preferences", s.getPreferences)
		r.Put("/preferences", s.savePreferences)
	})

	s.router = r
	return s
}

// Handler returns the router for use with http.Server.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) readyz(w http.ResponseWriter, r *http.Request) {
	if _, err := s.configs.ListConfigs(r.Context()); err != nil {
		writeError(w, http.StatusServiceUnavailable, "config store unavailable")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

type checkRequest struct {
	URL      string `json:"url"`
	CrawlAll *bool  `json:"crawl_all"`
}

// runCheck executes a check synchronously. Crawls are bounded by the page
// cap and fetch timeouts, so holding the request open is acceptable.
func (s *Server) runCheck(w http.ResponseWriter, r *http.Request) {
	var req checkRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.URL == "" {
		writeError(w, http.StatusBadRequest, "url required")
		return
	}
	target, err := crawler.NormalizeURL(req.URL)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid url")
		return
	}
	crawlAll := false
	if req.CrawlAll != nil {
		crawlAll = *req.CrawlAll
	} else if cfg, err := s.configs.GetConfig(r.Context(), target); err == nil {
		crawlAll = cfg.CrawlAllPages
	}

	result, err := s.service.Check(r.Context(), target, crawlAll)
	if err != nil {
		status := http.StatusBadGateway
		if errors.Is(err, context.DeadlineExceeded) {
			status = http.StatusGatewayTimeout
		}
		writeError(w, status, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) listChanges(w http.ResponseWriter, r *http.Request) {
	// Change history is keyed by normalized target, so any spelling of the
	// URL lists the same history.
	target := r.URL.Query().Get("target")
	if target != "" {
		normalized, err := crawler.NormalizeURL(target)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid target url")
			return
		}
		target = normalized
	}
	limit := store.DefaultPreferences().Display.RecentChangesLimit
	if prefs, err := s.configs.GetPreferences(r.Context()); err == nil && prefs.Display.RecentChangesLimit > 0 {
		limit = prefs.Display.RecentChangesLimit
	}
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = n
	}
	changes, err := s.changes.ListChanges(r.Context(), target, limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list changes")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"changes": changes})
}

func (s *Server) listTargets(w http.ResponseWriter, r *http.Request) {
	configs, err := s.configs.ListConfigs(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list targets")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"targets": configs})
}

func (s *Server) upsertTarget(w http.ResponseWriter, r *http.Request) {
	var cfg store.MonitorConfig
	if err := json.NewDecoder(r.Body).Decode(&cfg); err != nil || cfg.URL == "" {
		writeError(w, http.StatusBadRequest, "url required")
		return
	}
	normalized, err := crawler.NormalizeURL(cfg.URL)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid url")
		return
	}
	cfg.URL = normalized
	if cfg.CheckFrequency == "" {
		prefs, err := s.configs.GetPreferences(r.Context())
		if err != nil {
			prefs = store.DefaultPreferences()
		}
		cfg.CheckFrequency = prefs.Monitoring.DefaultCheckFrequency
	}
	if cfg.AddedAt.IsZero() {
		cfg.AddedAt = time.Now().UTC()
	}
	if err := s.configs.UpsertConfig(r.Context(), cfg); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to save target")
		return
	}
	writeJSON(w, http.StatusCreated, cfg)
}

func (s *Server) deleteTarget(w http.ResponseWriter, r *http.Request) {
	url := r.URL.Query().Get("url")
	if url == "" {
		writeError(w, http.StatusBadRequest, "url required")
		return
	}
	url, err := crawler.NormalizeURL(url)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid url")
		return
	}
	if err := s.configs.DeleteConfig(r.Context(), url); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "target not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to delete target")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"url": url, "status": "deleted"})
}

func (s *Server) getPreferences(w http.ResponseWriter, r *http.Request) {
	prefs, err := s.configs.GetPreferences(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to load preferences")
		return
	}
	writeJSON(w, http.StatusOK, prefs)
}

func (s *Server) savePreferences(w http.ResponseWriter, r *http.Request) {
	var prefs store.Preferences
	if err := json.NewDecoder(r.Body).Decode(&prefs); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if prefs.Notification.MinimumSignificance < 1 || prefs.Notification.MinimumSignificance > 10 {
		writeError(w, http.StatusBadRequest, "minimum_significance must be between 1 and 10")
		return
	}
	if err := s.configs.SavePreferences(r.Context(), prefs); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to save preferences")
		return
	}
	writeJSON(w, http.StatusOK, prefs)
}

func requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqID := uuid.NewString()
		ctx := context.WithValue(r.Context(), requestIDKey{}, reqID)
		w.Header().Set("X-Request-ID", reqID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := &responseWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(ww, r)
		s.logger.Info("request completed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.status),
			zap.Int64("duration_ms", time.Since(start).Milliseconds()))
	})
}

func (s *Server) recoverMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				s.logger.Error("panic recovered", zap.Any("panic", rec))
				writeError(w, http.StatusInternalServerError, "internal server error")
			}
		}()
		next.ServeHTTP(w, r)
	})
}

type responseWriter struct {
	http.ResponseWriter
	status int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.status = code
	rw.ResponseWriter.WriteHeader(code)
}

type requestIDKey struct{}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
