package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/promptgate/promptgate/internal/handler"
	"github.com/promptgate/promptgate/internal/openapi"
	"github.com/promptgate/promptgate/internal/server/middleware"
	"github.com/promptgate/promptgate/internal/service"
	"github.com/promptgate/promptgate/internal/store"
)

// Config holds the HTTP server configuration.
type Config struct {
	Host            string
	Port            int
	ShutdownTimeout time.Duration
	CORSOrigins     []string
	RateLimit       int // requests per token per minute, 0 disables
	JWTExpiry       time.Duration
}

// DefaultConfig returns a Config with sensible production defaults.
func DefaultConfig() Config {
	return Config{
		Host:            "0.0.0.0",
		Port:            8080,
		ShutdownTimeout: 30 * time.Second,
		CORSOrigins:     []string{"*"},
		RateLimit:       300,
		JWTExpiry:       24 * time.Hour,
	}
}

// Services bundles the business services the server routes to. The MCP
// server binds the same Matcher and PromptService, so both transports share
// one set of business rules.
type Services struct {
	Tokens  *service.TokenService
	Auth    *service.AuthService
	Matcher *service.Matcher
	Prompts *service.PromptService
}

// Server is the top-level HTTP server for promptgate. It owns the Chi router
// and the token gatekeeper; every /api/v1 route sits behind the X-Token-Key
// check.
type Server struct {
	cfg        Config
	router     chi.Router
	store      *store.Store
	svc        Services
	httpServer *http.Server
	logger     *slog.Logger
}

// New creates a new Server, wires up all routes and middleware, and returns
// it ready to listen. Call ListenAndServe to start accepting connections.
func New(cfg Config, st *store.Store, svc Services, logger *slog.Logger) *Server {
	s := &Server{
		cfg:    cfg,
		store:  st,
		svc:    svc,
		logger: logger,
	}
	s.setupRouter()
	return s
}

// Router returns the configured router. Used by tests to drive the full
// middleware chain without a listening socket.
func (s *Server) Router() http.Handler {
	return s.router
}

func (s *Server) setupRouter() {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.Logger(s.logger))
	r.Use(chimw.Recoverer)
	r.Use(chimw.RealIP)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   s.cfg.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", middleware.TokenHeader, "X-Requested-With"},
		ExposedHeaders:   []string{"X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}))
	r.Use(chimw.Compress(5))

	r.Get("/", s.handleRoot)
	r.Get("/healthz", s.handleHealthz)
	r.Get("/readyz", s.handleReadyz)
	r.Get("/openapi.json", s.handleOpenAPI)

	sessionHandler := handler.NewSessionHandler(s.svc.Auth, s.svc.Tokens, s.cfg.JWTExpiry)
	r.Post("/auth/session", sessionHandler.Login)
	r.Delete("/auth/session", sessionHandler.Logout)

	// Everything under /api/v1 requires a live token key.
	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Gatekeeper(s.svc.Tokens, s.logger))
		if s.cfg.RateLimit > 0 {
			r.Use(middleware.RateLimitByToken(s.cfg.RateLimit))
		}

		matchHandler := handler.NewMatchHandler(s.svc.Matcher)
		r.Post("/prompt/match", matchHandler.Match)

		tokenHandler := handler.NewTokenHandler(s.svc.Prompts)
		r.Get("/tokens", tokenHandler.ListOwnTokens)
		r.Get("/prompts", tokenHandler.ListOwnPrompts)

		r.Route("/system", func(r chi.Router) {
			r.Use(middleware.RequireAdmin())

			sysHandler := handler.NewSystemHandler(s.store, s.svc.Tokens)

			r.Get("/member", sysHandler.ListMembers)
			r.Post("/member", sysHandler.CreateMember)
			r.Delete("/member/{memberId}", sysHandler.DisableMember)

			r.Get("/token", sysHandler.ListTokens)
			r.Post("/token", sysHandler.IssueToken)
			r.Delete("/token/{tokenKey}", sysHandler.RevokeToken)
			r.Post("/token/{tokenKey}/prompts", sysHandler.CreateMapping)
			r.Delete("/token/{tokenKey}/prompts/{templateId}", sysHandler.RemoveMapping)

			r.Get("/keyword", sysHandler.ListKeywords)
			r.Post("/keyword", sysHandler.CreateKeyword)
			r.Put("/keyword/{keywordId}", sysHandler.UpdateKeyword)
			r.Delete("/keyword/{keywordId}", sysHandler.DisableKeyword)

			r.Get("/template", sysHandler.ListTemplates)
			r.Post("/template", sysHandler.CreateTemplate)
			r.Put("/template/{templateId}", sysHandler.UpdateTemplate)
			r.Delete("/template/{templateId}", sysHandler.DisableTemplate)
		})
	})

	s.router = r
}

// handleRoot identifies the service. Kept unauthenticated so load balancers
// and curious humans get a sensible answer at the root.
func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"service":"promptgate","docs":"/openapi.json"}`))
}

// handleHealthz is a liveness probe. Returns 200 if the process is running.
func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status":"ok"}`))
}

// handleReadyz is a readiness probe. Returns 200 when the backing store is
// reachable, 503 otherwise.
func (s *Server) handleReadyz(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if err := s.store.Ping(r.Context()); err != nil {
		w.WriteHeader(http.StatusServiceUnavailable)
		fmt.Fprintf(w, `{"status":"degraded","error":%q}`, err.Error())
		return
	}
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status":"ok"}`))
}

// handleOpenAPI serves the generated OpenAPI document.
func (s *Server) handleOpenAPI(w http.ResponseWriter, r *http.Request) {
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	doc := openapi.Generate(fmt.Sprintf("%s://%s", scheme, r.Host))

	data, err := doc.MarshalJSON()
	if err != nil {
		http.Error(w, "failed to render spec", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}

// ListenAndServe starts the HTTP server and blocks until a SIGINT or SIGTERM
// is received. It then performs a graceful shutdown, draining in-flight
// requests before returning.
func (s *Server) ListenAndServe() error {
	addr := fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port)

	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("server starting", "addr", addr)
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server listen: %w", err)
	case <-ctx.Done():
		s.logger.Info("shutdown signal received, draining connections")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
	defer cancel()

	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}

	s.logger.Info("server stopped")
	return nil
}
