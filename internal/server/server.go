// Package server sets up the HTTP server, router, and all route definitions.
//
// SERVER ARCHITECTURE:
// This package is the "wiring" layer. It connects handlers, middleware,
// and routes, and decides:
//   - Which URL patterns map to which handler functions
//   - Which routes need a logged-in user
//   - How the server starts and stops gracefully
//
// DEPENDENCY INJECTION FLOW:
//
//	main.go: config.Load → server.New
//	server.New: sqlite.DB → services → handlers → routes
//
// This is the "composition root" pattern: all dependencies are wired in
// one place (New/setupRoutes) rather than scattered across the codebase.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/sakif/ecosphere/internal/auth"
	"github.com/sakif/ecosphere/internal/config"
	"github.com/sakif/ecosphere/internal/handler"
	"github.com/sakif/ecosphere/internal/middleware"
	sqliteRepo "github.com/sakif/ecosphere/internal/repository/sqlite"
	"github.com/sakif/ecosphere/internal/service"
	"github.com/sakif/ecosphere/internal/view"
)

// Server represents the HTTP server and all its dependencies.
//
// RESOURCE MANAGEMENT:
// The Server owns the database connection. Start closes it during
// graceful shutdown; callers that never Start must call Close.
type Server struct {
	router *chi.Mux
	config *config.Config
	logger *slog.Logger
	db     *sqliteRepo.DB
}

// New creates a Server from cfg.
//
// WIRING:
//  1. Open the database (sqlite.New)
//  2. Build the session machinery (TokenService → MemoryStore) and the
//     identity hasher, all keyed by SESSION_SECRET
//  3. Build the Google provider, only when it is configured
//  4. Build the services, then the handlers, then the routes
//
// Services receive repository interfaces, never the concrete sqlite.DB.
func New(cfg *config.Config, logger *slog.Logger) (*Server, error) {
	db, err := sqliteRepo.New(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	s := &Server{
		router: chi.NewRouter(),
		config: cfg,
		logger: logger,
		db:     db,
	}

	if err := s.setupRoutes(); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting up routes: %w", err)
	}

	return s, nil
}

// Handler exposes the router, e.g. to httptest.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Close releases the database. Start does this on its own.
func (s *Server) Close() error {
	return s.db.Close()
}

// setupRoutes configures all middleware and route handlers.
//
// ROUTE STRUCTURE:
//
//	GET    /                        feed (?sort=likes|recency)
//	GET    /login, /register        forms
//	POST   /login, /register        username login / registration
//	GET    /auth/google             → Google consent (only when configured)
//	GET    /auth/google/callback    ← Google redirect
//	GET    /registerUsername        pick a username after Google login
//	POST   /registerUsername
//	GET    /avatar/{username}       PNG letter avatar
//	GET    /search?q=               substring search
//	GET    /error                   error page
//	GET    /healthz                 readiness
//	GET    /metrics                 Prometheus
//
//	Logged in (redirect to /login otherwise):
//	POST   /posts                   create post
//	GET    /profile                 own posts
//	GET    /logout
//
//	Logged in (403 JSON otherwise), called by fetch():
//	POST   /like/{id}               toggle like
//	POST   /delete/{id}             delete own post
//	DELETE /delete-account
//
// MIDDLEWARE ORDER MATTERS:
//  1. RequestID: unique ID per request, picked up by the logger
//  2. RealIP: client IP from proxy headers
//  3. Recoverer: panics become 500s
//  4. Logger, Metrics: one log line and one observation per request
//  5. LoadSession: resolves the session cookie for every handler
func (s *Server) setupRoutes() error {
	// === Global Middleware ===
	s.router.Use(chimiddleware.RequestID)
	s.router.Use(chimiddleware.RealIP)
	s.router.Use(chimiddleware.Recoverer)
	s.router.Use(middleware.Logger(s.logger))
	s.router.Use(middleware.Metrics)

	// === Sessions & identity ===
	tokens, err := auth.NewTokenService(s.config.Session.Secret)
	if err != nil {
		return fmt.Errorf("creating token service: %w", err)
	}
	hasher, err := auth.NewIdentityHasher(s.config.Session.Secret)
	if err != nil {
		return fmt.Errorf("creating identity hasher: %w", err)
	}
	store := auth.NewMemoryStore(tokens, s.config.Session.TTL, s.config.Session.CookieSecure)

	// A nil *GoogleProvider stored in the interface would not compare equal
	// to nil, so the interface is only assigned when Google is configured.
	var provider service.IdentityProvider
	if s.config.Google.Enabled() {
		provider = auth.NewGoogleProvider(
			s.config.Google.ClientID,
			s.config.Google.ClientSecret,
			s.config.Google.RedirectURL,
		)
		s.logger.Info("Google login enabled", slog.String("redirect_url", s.config.Google.RedirectURL))
	} else {
		s.logger.Warn("CLIENT_ID/CLIENT_SECRET not set, Google login is disabled")
	}

	// === Services ===
	authService := service.NewAuthService(s.db.Users(), s.db.Posts(), provider, hasher, s.logger)
	postService := service.NewPostService(s.db.Posts(), s.logger)
	avatarService := service.NewAvatarService(s.db.Users(), s.logger)

	// === Handlers ===
	views, err := view.New()
	if err != nil {
		return fmt.Errorf("loading templates: %w", err)
	}
	pages := handler.NewPages(views, authService, time.Now().Year(), s.logger)
	authHandler := handler.NewAuthHandler(authService, pages, s.config.Session.CookieSecure, s.logger)
	postHandler := handler.NewPostHandler(postService, authService, pages, s.logger)
	avatarHandler := handler.NewAvatarHandler(avatarService, s.logger)
	healthHandler := handler.NewHealthHandler(s.db, s.logger)

	// === Operational routes (no session) ===
	s.router.Get("/healthz", healthHandler.HandleHealth)
	s.router.Handle("/metrics", promhttp.Handler())

	// === Application routes ===
	s.router.Group(func(r chi.Router) {
		r.Use(auth.LoadSession(store, s.logger))

		r.Get("/", postHandler.HandleHome)
		r.Get("/search", postHandler.HandleSearch)
		r.Get("/avatar/{username}", avatarHandler.HandleAvatar)
		r.Get("/error", pages.HandleError)

		r.Get("/login", authHandler.HandleLoginPage)
		r.Post("/login", authHandler.HandleLogin)
		r.Get("/register", authHandler.HandleRegisterPage)
		r.Post("/register", authHandler.HandleRegister)

		if authService.ExternalLoginEnabled() {
			r.Get("/auth/google", authHandler.HandleGoogleLogin)
			r.Get("/auth/google/callback", authHandler.HandleGoogleCallback)
		}
		r.Get("/registerUsername", authHandler.HandleRegisterUsernamePage)
		r.Post("/registerUsername", authHandler.HandleRegisterUsername)

		r.Group(func(r chi.Router) {
			r.Use(auth.RequireAuth)
			r.Post("/posts", postHandler.HandleCreate)
			r.Get("/profile", postHandler.HandleProfile)
			r.Get("/logout", authHandler.HandleLogout)
		})

		r.Group(func(r chi.Router) {
			r.Use(auth.RequireAuthJSON)
			r.Post("/like/{id}", postHandler.HandleLike)
			r.Post("/delete/{id}", postHandler.HandleDelete)
			r.Delete("/delete-account", authHandler.HandleDeleteAccount)
		})
	})

	return nil
}

// Start starts the HTTP server and handles graceful shutdown.
//
// GRACEFUL SHUTDOWN:
//  1. Stop accepting new HTTP connections
//  2. Wait for in-flight requests to finish (30s timeout)
//  3. Close the database connection (flushes WAL, releases file lock)
func (s *Server) Start() error {
	defer s.db.Close()

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", s.config.Port),
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	serverErrors := make(chan error, 1)

	go func() {
		s.logger.Info("server starting",
			slog.Int("port", s.config.Port),
			slog.String("url", fmt.Sprintf("http://localhost:%d", s.config.Port)),
			slog.String("database", s.config.DBPath),
		)
		serverErrors <- srv.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}

	case sig := <-quit:
		s.logger.Info("shutdown signal received", slog.String("signal", sig.String()))

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
		s.logger.Info("server stopped gracefully")
	}

	return nil
}
