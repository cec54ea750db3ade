// Package server wires the application together: database, services,
// handlers, routes, and the HTTP server lifecycle. It is the composition
// root; every dependency is constructed here and injected downwards.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/caracolito/auth-service/internal/auth"
	"github.com/caracolito/auth-service/internal/config"
	"github.com/caracolito/auth-service/internal/email"
	"github.com/caracolito/auth-service/internal/handler"
	"github.com/caracolito/auth-service/internal/middleware"
	sqliteRepo "github.com/caracolito/auth-service/internal/repository/sqlite"
	"github.com/caracolito/auth-service/internal/service"
)

// Server owns the HTTP server and the resources it must release on
// shutdown, most importantly the database connection.
type Server struct {
	router chi.Router
	cfg    *config.Config
	logger *slog.Logger
	db     *sqliteRepo.DB
}

// New assembles the full dependency chain: storage, crypto services, the
// Google provider, the mailer, the auth service, handlers, and routes. It
// also seeds the bootstrap admin account when one is configured.
func New(cfg *config.Config, logger *slog.Logger) (*Server, error) {
	db, err := sqliteRepo.New(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	tokens, err := auth.NewTokenService(cfg.JWTSecret, cfg.AccessTokenTTL)
	if err != nil {
		db.Close()
		return nil, err
	}
	passwords := auth.NewPasswordService()
	google := auth.NewGoogleProvider(cfg.GoogleClientID, cfg.GoogleClientSecret)

	// Without an SMTP relay configured, outbound mail goes to the log. The
	// logged activation link is enough for local development.
	var sender email.Sender
	if cfg.SMTPHost != "" {
		sender = email.NewSMTPSender(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUser, cfg.SMTPPassword, cfg.SMTPFrom)
	} else {
		logger.Warn("SMTP_HOST not set, outbound email will be logged instead of delivered")
		sender = email.NewLogSender(logger)
	}
	mailer := email.NewMailer(sender, cfg.FrontendURL)

	store := service.NewVerificationStore(db.Tokens())
	svc := service.NewAuthService(db.Users(), store, passwords, tokens, google, mailer, logger, cfg.VerificationTokenTTL)

	if err := svc.EnsureAdmin(context.Background(), cfg.AdminEmail, cfg.AdminPassword); err != nil {
		db.Close()
		return nil, fmt.Errorf("seeding admin account: %w", err)
	}

	authHandler := handler.NewAuthHandler(svc, logger)

	return &Server{
		router: NewRouter(authHandler, tokens, logger),
		cfg:    cfg,
		logger: logger,
		db:     db,
	}, nil
}

// NewRouter builds the route tree. Exported so tests can mount the real
// routes around a handler with fake collaborators.
func NewRouter(h *handler.AuthHandler, tokens *auth.TokenService, logger *slog.Logger) chi.Router {
	r := chi.NewRouter()

	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.Logger(logger))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	r.Route("/api/v1/auth", func(r chi.Router) {
		r.Post("/login", h.HandleLogin)
		r.Post("/register/email", h.HandleRegisterEmail)
		r.Post("/register/google", h.HandleGoogleLogin)
		r.Post("/login/google-code", h.HandleGoogleCode)
		r.Post("/password-reset", h.HandlePasswordReset)
		r.Post("/password-reset/confirm", h.HandlePasswordResetConfirm)
		r.Get("/verify-email/{token}", h.HandleVerifyEmail)

		// Routes below require a valid bearer token.
		r.Group(func(r chi.Router) {
			r.Use(auth.RequireAuth(tokens))
			r.Get("/me", h.HandleMe)
			r.Put("/me", h.HandleUpdateMe)
		})
	})

	return r
}

// Start runs the HTTP server until SIGINT/SIGTERM, then shuts down
// gracefully: stop accepting connections, drain in-flight requests, close
// the database to flush the WAL.
func (s *Server) Start() error {
	defer s.db.Close()

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", s.cfg.Port),
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
			slog.Int("port", s.cfg.Port),
			slog.String("database", s.cfg.DBPath),
		)
		serverErrors <- srv.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		if err != http.ErrServerClosed {
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
