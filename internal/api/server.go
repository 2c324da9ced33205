package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/sbiochat/dashboard/internal/auth"
	"github.com/sbiochat/dashboard/internal/db"
	"github.com/sbiochat/dashboard/internal/logger"
	"github.com/sbiochat/dashboard/internal/ratelimit"
	"github.com/sbiochat/dashboard/internal/stats"
)

// Server holds dependencies for API handlers
type Server struct {
	db             *db.DB
	stats          *stats.Store
	authCfg        *auth.Config
	limiter        *ratelimit.Limiter
	loc            *time.Location
	allowedOrigins []string
}

// NewServer creates a new API server. loc is the civil calendar used for
// date parameters and defaults.
func NewServer(database *db.DB, statsStore *stats.Store, authCfg *auth.Config, limiter *ratelimit.Limiter, loc *time.Location, allowedOrigins []string) *Server {
	if loc == nil {
		loc = time.UTC
	}
	return &Server{
		db:             database,
		stats:          statsStore,
		authCfg:        authCfg,
		limiter:        limiter,
		loc:            loc,
		allowedOrigins: allowedOrigins,
	}
}

// SetupRoutes configures HTTP routes
func (s *Server) SetupRoutes() http.Handler {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(logger.Middleware)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   s.allowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", "X-Auth-User"},
		AllowCredentials: true,
		MaxAge:           300,
	}))
	r.Use(compressResponses)

	// Health check
	r.Get("/health", s.handleHealth)
	r.Get("/", s.handleRoot)

	// API v1 routes
	r.Route("/api/v1", func(r chi.Router) {
		r.Use(s.authenticate)
		r.Use(ratelimit.Middleware(s.limiter))

		r.Get("/auth/me", s.handleMe)

		r.Route("/stats", func(r chi.Router) {
			r.Get("/overview", s.handleStatsOverview)
			r.Get("/daily", s.handleStatsDaily)
			r.Get("/workspace-ranking", s.handleWorkspaceRanking)
			r.Get("/developer-ranking", s.handleDeveloperRanking)
			r.Get("/group-ranking", s.handleGroupRanking)
		})

		r.Route("/packages", func(r chi.Router) {
			r.Get("/", s.handleListPackages)
			r.Post("/", s.handleCreatePackage)
			r.Delete("/{id}", s.handleDeletePackage)

			r.Group(func(r chi.Router) {
				r.Use(s.requireAdmin)
				r.Patch("/{id}/status", s.handleUpdatePackageStatus)
				r.Get("/audit-log", s.handleAuditLog)
			})
		})
	})

	return r
}

// authenticate resolves the caller's identity and rejects unauthenticated
// requests before they reach any handler under /api/v1.
func (s *Server) authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, err := s.authCfg.Resolve(r)
		switch {
		case errors.Is(err, auth.ErrSSONotConfigured):
			respondError(w, http.StatusNotImplemented, "not_implemented", "sso authentication is not available yet")
			return
		case errors.Is(err, auth.ErrDomainNotAllowed):
			respondError(w, http.StatusForbidden, "forbidden", "email domain not allowed")
			return
		case err != nil:
			respondError(w, http.StatusUnauthorized, "unauthorized", "authentication failed")
			return
		case id == nil:
			respondError(w, http.StatusUnauthorized, "unauthorized", "authentication required")
			return
		}

		ctx := auth.WithIdentity(r.Context(), id)
		ctx = logger.WithLogger(ctx, logger.Ctx(ctx).With("user", id.Username))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// requireAdmin guards admin-only routes. Must run after authenticate.
func (s *Server) requireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := auth.FromContext(r.Context())
		if id == nil || !id.Admin {
			respondError(w, http.StatusForbidden, "forbidden", "admin privileges required")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// handleHealth reports liveness and checks the database is reachable
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if err := s.db.Ping(r.Context()); err != nil {
		logger.Ctx(r.Context()).Error("health check failed", "error", err)
		respondError(w, http.StatusServiceUnavailable, "store_unavailable", "database unreachable")
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{
		"status": "ok",
	})
}

// handleRoot returns API info
func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{
		"service": "chat-usage-dashboard",
		"version": "v1",
	})
}

// handleMe returns the authenticated caller's identity
func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	id := auth.FromContext(r.Context())
	respondJSON(w, http.StatusOK, map[string]any{
		"username": id.Username,
		"email":    id.Email,
		"is_admin": id.Admin,
	})
}

// respondJSON writes a JSON response
func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// respondError writes an error JSON response with a machine-readable code
func respondError(w http.ResponseWriter, status int, code, message string) {
	respondJSON(w, status, map[string]string{
		"error": message,
		"code":  code,
	})
}
