package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/quest-forge/quest-engine/internal/catalog"
	"github.com/quest-forge/quest-engine/internal/config"
	"github.com/quest-forge/quest-engine/internal/leaderboard"
	"github.com/quest-forge/quest-engine/internal/overlay"
	"github.com/quest-forge/quest-engine/internal/storage"
)

// Server represents the HTTP API server.
type Server struct {
	config   config.ServerConfig
	router   *chi.Mux
	repo     storage.Repository
	cache    *leaderboard.Cache // nil when Redis is not configured
	catalog  *catalog.Loader
	resolver *overlay.Resolver
	auth     *PinMiddleware
}

// NewServer creates a new API server. cache may be nil; bulk leaderboard
// reads then go straight to the repository.
func NewServer(
	cfg config.ServerConfig,
	repo storage.Repository,
	cache *leaderboard.Cache,
	loader *catalog.Loader,
	pin string,
) *Server {
	s := &Server{
		config:   cfg,
		repo:     repo,
		cache:    cache,
		catalog:  loader,
		resolver: overlay.NewResolver(),
		auth:     NewPinMiddleware(pin),
	}
	s.setupRouter()
	return s
}

// Router returns the configured router.
func (s *Server) Router() http.Handler {
	return s.router
}

// setupRouter configures all routes and middleware.
func (s *Server) setupRouter() {
	r := chi.NewRouter()

	// Middleware stack
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.loggingMiddleware)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))

	// The workshop UI is browser-hosted and served from elsewhere.
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID", "X-Workshop-Pin"},
		ExposedHeaders:   []string{"X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Health checks (public)
	r.Get("/health", s.handleHealth)
	r.Get("/ready", s.handleReady)

	// API v1 routes (behind the shared workshop PIN)
	r.Route("/api/v1", func(r chi.Router) {
		r.Use(s.auth.Authenticate)

		r.Route("/leaderboard", func(r chi.Router) {
			r.Get("/", s.handleGetLeaderboard)
			r.Post("/start-lab", s.handleStartLab)
			r.Post("/complete-lab", s.handleCompleteLab)
			r.Post("/add-points", s.handleAddPoints)
			r.Post("/heartbeat", s.handleHeartbeat)
			r.Post("/reset", s.handleReset)
		})

		r.Route("/catalog", func(r chi.Router) {
			r.Get("/labs", s.handleListLabs)
			r.Get("/labs/{id}", s.handleGetLab)
			r.Get("/labs/{id}/effective", s.handleGetEffectiveLab)
			r.Get("/quests/{id}", s.handleGetQuest)
			r.Get("/templates/{id}", s.handleGetTemplate)
		})
	})

	s.router = r
}

// loggingMiddleware logs HTTP requests using slog.
func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		defer func() {
			slog.Info("http request",
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
