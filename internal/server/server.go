package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/information-sharing-networks/ecommerce-api/internal/config"
	"github.com/information-sharing-networks/ecommerce-api/internal/server/handlers"
	"github.com/information-sharing-networks/ecommerce-api/internal/server/middleware"
)

type Server struct {
	config *config.ServerEnvironment
	logger *slog.Logger
	router *chi.Mux
}

func NewServer(cfg *config.ServerEnvironment, logger *slog.Logger) *Server {
	server := &Server{
		config: cfg,
		logger: logger,
		router: chi.NewRouter(),
	}

	server.setupMiddleware()
	server.registerRoutes()

	return server
}

// Handler returns the configured router.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) setupMiddleware() {
	s.router.Use(middleware.RequestID)
	s.router.Use(chimiddleware.RealIP)
	s.router.Use(chimiddleware.Recoverer)

	// request pipeline - the order is significant
	s.router.Use(middleware.ParseJSONBody(s.config.MaxRequestSize))
	s.router.Use(middleware.CORS(middleware.CORSConfig{
		AllowedOrigins: s.config.AllowedOrigins,
		MaxAge:         s.config.CORSMaxAge,
	}))
	s.router.Use(middleware.SecurityHeaders(s.config.Environment))
	s.router.Use(middleware.RequestLogger(s.logger))

	s.router.Use(middleware.RateLimit(s.config.RateLimitRPS, s.config.RateLimitBurst))

	// HEAD falls back to the matching GET route
	s.router.Use(chimiddleware.GetHead)
}

func (s *Server) registerRoutes() {
	s.router.Get("/", handlers.HandleRoot)
}

// Start binds the configured address and serves until ctx is cancelled, then
// shuts down gracefully. A failed bind is returned immediately.
func (s *Server) Start(ctx context.Context) error {
	serverAddr := s.config.Addr()

	httpServer := &http.Server{
		Addr:              serverAddr,
		Handler:           s.router,
		ReadTimeout:       s.config.ReadTimeout,
		ReadHeaderTimeout: s.config.ReadHeaderTimeout,
		WriteTimeout:      s.config.WriteTimeout,
		IdleTimeout:       s.config.IdleTimeout,
		ErrorLog:          slog.NewLogLogger(s.logger.Handler(), slog.LevelWarn),
	}

	listener, err := net.Listen("tcp", serverAddr)
	if err != nil {
		return fmt.Errorf("failed to bind %s: %w", serverAddr, err)
	}

	s.logger.Info(fmt.Sprintf("Server is running on port %d", s.config.Port),
		slog.String("environment", s.config.Environment),
		slog.String("address", listener.Addr().String()))

	serverErrors := make(chan error, 1)

	go func() {
		err := httpServer.Serve(listener)
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErrors <- fmt.Errorf("server failed: %w", err)
		}
	}()

	select {
	case err := <-serverErrors:
		return err
	case <-ctx.Done():
		s.logger.Info("shutdown signal received")
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), s.config.ServerShutdownTimeout)
	defer shutdownCancel()

	s.logger.Info("shutting down HTTP server")

	err = httpServer.Shutdown(shutdownCtx)
	if err != nil {
		s.logger.Warn("HTTP server shutdown error",
			slog.String("error", err.Error()))
		return fmt.Errorf("HTTP server shutdown failed: %w", err)
	}

	s.logger.Info("HTTP server shutdown complete")
	return nil
}
