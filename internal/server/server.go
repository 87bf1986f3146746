// Package server exposes the parse pipeline over HTTP: synchronous and
// asynchronous parse endpoints, job lookup, validation, and catalog
// listings, with API-key auth and per-key rate limiting.
package server

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/pavelanni/examparser/internal/config"
	"github.com/pavelanni/examparser/internal/jobs"
	"github.com/pavelanni/examparser/internal/model"
	"github.com/pavelanni/examparser/internal/pipeline"
)

// Version is reported by the health endpoint.
const Version = "1.0.0"

// syncBudget bounds how long the synchronous parse endpoint waits
// before answering 504. The parse itself runs to completion.
const syncBudget = 60 * time.Second

// Server holds the HTTP dependencies.
type Server struct {
	settings *config.Settings
	runner   *pipeline.Runner
	jobs     *jobs.Manager
	limiter  *rateLimiter
}

// New assembles a Server over the given pipeline and job manager.
func New(settings *config.Settings, runner *pipeline.Runner, manager *jobs.Manager) *Server {
	return &Server{
		settings: settings,
		runner:   runner,
		jobs:     manager,
		limiter:  newRateLimiter(settings.RateLimitPerMinute),
	}
}

// Router builds the chi router with the full middleware chain.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(requestLogger)

	if len(s.settings.CORSOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: s.settings.CORSOrigins,
			AllowedMethods: []string{"GET", "POST", "OPTIONS"},
			AllowedHeaders: []string{"Accept", "Content-Type", "X-API-Key"},
			MaxAge:         300,
		}))
	}

	r.Get("/health", s.handleHealth)

	r.Route("/api", func(r chi.Router) {
		r.Use(s.requireAPIKey)
		r.Use(s.rateLimit)
		r.Get("/models", s.handleModels)
		r.Get("/engines", s.handleEngines)
		r.Post("/parse", s.handleParse)
		r.Post("/parse/async", s.handleParseAsync)
		r.Get("/jobs/{jobID}", s.handleJob)
		r.Post("/validate", s.handleValidate)
	})

	return r
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		slog.Info("request", "method", r.Method, "path", r.URL.Path, "status", ww.Status(), "bytes", ww.BytesWritten())
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("encode response", "error", err)
	}
}

type errorBody struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

func writeError(w http.ResponseWriter, status int, kind model.Kind, msg string) {
	writeJSON(w, status, errorBody{Error: msg, Code: string(kind)})
}

// writeTaxonomyError maps an error kind to its HTTP status.
func writeTaxonomyError(w http.ResponseWriter, err error) {
	kind := model.KindOf(err)
	switch kind {
	case model.KindInput, model.KindConfig:
		writeError(w, http.StatusBadRequest, kind, err.Error())
	case model.KindQueueFull:
		writeError(w, http.StatusTooManyRequests, kind, err.Error())
	case model.KindLLMQuota:
		w.Header().Set("Retry-After", "60")
		writeError(w, http.StatusServiceUnavailable, kind, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, kind, err.Error())
	}
}
