// Package httpserver exposes the report workflow over HTTP: thread start and
// inspection, the SSE stream that drives execution, human decisions, and the
// report archive.
package httpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"iter"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"github.com/helixir/research-report-service/internal/archive"
	"github.com/helixir/research-report-service/internal/database"
	"github.com/helixir/research-report-service/internal/domain"
	"github.com/helixir/research-report-service/internal/observability"
)

// Engine is the workflow surface used by the HTTP handlers.
type Engine interface {
	Start(ctx context.Context, task string, maxRevisions int) (*domain.Thread, error)
	Get(ctx context.Context, threadID string) (*domain.Thread, error)
	Checkpoints(ctx context.Context, threadID string, limit int) ([]*domain.Checkpoint, error)
	Advance(ctx context.Context, threadID string) iter.Seq2[domain.StepEvent, error]
	SubmitDecision(ctx context.Context, threadID string, action domain.HumanAction, feedback string) (*domain.Thread, error)
}

// Archive is the report archive surface used by the HTTP handlers.
type Archive interface {
	Save(ctx context.Context, req archive.SaveRequest) (*domain.ArchivedReport, error)
	List(ctx context.Context, limit int) ([]*domain.ArchivedReport, error)
	Get(ctx context.Context, id int64) (*domain.ArchivedReport, error)
	Delete(ctx context.Context, id int64) error
	Clear(ctx context.Context) (int64, error)
	Followup(ctx context.Context, historyID int64, question string) (*domain.Thread, error)
}

// HealthChecker reports database health for /readyz.
type HealthChecker interface {
	Health(ctx context.Context) database.HealthStatus
}

// Server is the HTTP API server.
type Server struct {
	router     chi.Router
	httpServer *http.Server
	engine     Engine
	archive    Archive
	health     HealthChecker
	validate   *validator.Validate
	metrics    *observability.Metrics
	logger     zerolog.Logger
}

// Config holds HTTP server configuration.
type Config struct {
	Address      string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

// NewServer creates a new HTTP server with all dependencies. metrics may be nil.
func NewServer(
	cfg Config,
	engine Engine,
	archive Archive,
	health HealthChecker,
	metrics *observability.Metrics,
	logger zerolog.Logger,
) *Server {
	s := &Server{
		engine:   engine,
		archive:  archive,
		health:   health,
		validate: validator.New(validator.WithRequiredStructEnabled()),
		metrics:  metrics,
		logger:   logger.With().Str("component", "http-server").Logger(),
	}

	s.validate.RegisterTagNameFunc(jsonFieldName)
	s.router = s.buildRouter()

	s.httpServer = &http.Server{
		Addr:         cfg.Address,
		Handler:      s.router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}

	return s
}

// buildRouter creates the chi router with all middleware and routes.
func (s *Server) buildRouter() chi.Router {
	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(correlationIDMiddleware)
	r.Use(s.requestLogMiddleware)
	r.Use(jsonContentTypeMiddleware)

	r.Get("/healthz", s.healthHandler)
	r.Get("/readyz", s.readinessHandler)

	r.Post("/start", s.startThread)
	r.Get("/stream/{threadID}", s.streamThread)
	r.Post("/feedback", s.submitFeedback)

	r.Route("/threads/{threadID}", func(r chi.Router) {
		r.Get("/", s.getThread)
		r.Get("/checkpoints", s.listCheckpoints)
	})

	r.Route("/history", func(r chi.Router) {
		r.Post("/save", s.saveHistory)
		r.Get("/list", s.listHistory)
		r.Post("/clear", s.clearHistory)
		r.Post("/followup", s.followupHistory)
		r.Get("/{historyID}", s.getHistory)
		r.Delete("/{historyID}", s.deleteHistory)
	})

	return r
}

// Handler returns the root handler, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	s.logger.Info().Str("address", s.httpServer.Addr).Msg("HTTP server starting")
	ln, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		return fmt.Errorf("listen on HTTP address: %w", err)
	}
	return s.httpServer.Serve(ln)
}

// Shutdown gracefully shuts down the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// healthHandler returns basic liveness status.
func (s *Server) healthHandler(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// readinessHandler reports ready only while the database answers.
func (s *Server) readinessHandler(w http.ResponseWriter, r *http.Request) {
	if s.health == nil {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
		return
	}

	health := s.health.Health(r.Context())
	if health.Status != "healthy" {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"status":   "not_ready",
			"database": health.Status,
			"error":    health.Error,
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"status":   "ready",
		"database": "healthy",
	})
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, statusCode int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	// Headers are already sent; nothing useful to do with an encode error.
	_ = json.NewEncoder(w).Encode(v)
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, statusCode int, message string) {
	writeJSON(w, statusCode, map[string]string{
		"error": message,
	})
}
