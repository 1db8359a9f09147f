package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/terra-clan/quiz-engine/internal/bank"
	"github.com/terra-clan/quiz-engine/internal/config"
	"github.com/terra-clan/quiz-engine/internal/events"
	"github.com/terra-clan/quiz-engine/internal/grading"
	"github.com/terra-clan/quiz-engine/internal/limits"
	"github.com/terra-clan/quiz-engine/internal/storage"
)

// Server represents the HTTP API of the grading service
type Server struct {
	config    config.ServerConfig
	router    *chi.Mux
	bank      *bank.Bank
	grader    *grading.Grader
	repo      storage.Repository
	publisher events.Publisher
	guard     limits.Guard
	hub       *Hub
	logger    *slog.Logger
}

// Deps are the collaborators of the server
type Deps struct {
	Bank      *bank.Bank
	Repo      storage.Repository
	Publisher events.Publisher
	Guard     limits.Guard
	Hub       *Hub
	Logger    *slog.Logger
}

// NewServer creates a new API server
func NewServer(cfg config.ServerConfig, deps Deps) *Server {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.Hub == nil {
		deps.Hub = NewHub(deps.Logger)
	}
	s := &Server{
		config:    cfg,
		bank:      deps.Bank,
		grader:    grading.NewGrader(deps.Bank, deps.Logger),
		repo:      deps.Repo,
		publisher: deps.Publisher,
		guard:     deps.Guard,
		hub:       deps.Hub,
		logger:    deps.Logger,
	}
	s.setupRouter()
	return s
}

// Router returns the configured router
func (s *Server) Router() http.Handler {
	return s.router
}

// Hub returns the live score feed
func (s *Server) Hub() *Hub {
	return s.hub
}

// setupRouter configures all routes and middleware
func (s *Server) setupRouter() {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.loggingMiddleware)
	r.Use(middleware.Recoverer)

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   s.config.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", "X-Request-ID", attemptHeader},
		ExposedHeaders:   []string{"X-Request-ID"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	// Live feed is long-lived and stays outside the request timeout
	r.Get("/ws/scores", s.hub.ServeWS)

	r.Group(func(r chi.Router) {
		r.Use(middleware.Timeout(60 * time.Second))

		r.Get("/health", s.handleHealth)
		r.Get("/ready", s.handleReady)

		r.Route("/api", func(r chi.Router) {
			r.Get("/tasks", s.handleListTasks)
			r.With(attemptContext).Post("/submit", s.handleSubmit)

			r.Route("/attempts", func(r chi.Router) {
				r.Get("/", s.handleListAttempts)
				r.Get("/{id}", s.handleGetAttempt)
			})
		})
	})

	s.router = r
}

// loggingMiddleware logs HTTP requests using slog
func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		defer func() {
			s.logger.Info("http request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"bytes", ww.BytesWritten(),
				"duration_ms", time.Since(start).Milliseconds(),
				"request_id", middleware.GetReqID(r.Context()),
				"remote_addr", r.RemoteAddr,
			)
		}()

		next.ServeHTTP(ww, r)
	})
}
