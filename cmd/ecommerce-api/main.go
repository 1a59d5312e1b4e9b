package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/information-sharing-networks/ecommerce-api/internal/config"
	"github.com/information-sharing-networks/ecommerce-api/internal/logger"
	"github.com/information-sharing-networks/ecommerce-api/internal/server"
	"github.com/information-sharing-networks/ecommerce-api/internal/version"
)

func main() {
	cmd := &cobra.Command{
		Use:   "ecommerce-api",
		Short: "E-commerce API server",
		Long: `ecommerce-api serves the e-commerce HTTP API.

The server is configured entirely through environment variables
(PORT, HOST, ENVIRONMENT, LOG_LEVEL, ...); it takes no arguments.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context())
		},
	}

	v := version.Get()
	cmd.Version = fmt.Sprintf("%s (built %s, commit %s)", v.Version, v.BuildDate, v.GitCommit)

	if err := cmd.Execute(); err != nil {
		slog.Error("ecommerce-api failed", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	cfg, err := config.NewServerConfig()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	appLogger := logger.InitLogger(logger.ParseLogLevel(cfg.LogLevel), cfg.Environment)

	appLogger.Info("Configuration loaded",
		slog.String("ENVIRONMENT", cfg.Environment),
		slog.String("HOST", cfg.Host),
		slog.Int("PORT", cfg.Port),
		slog.String("LOG_LEVEL", cfg.LogLevel),
		slog.Int64("MAX_REQUEST_SIZE", cfg.MaxRequestSize),
		slog.Any("ALLOWED_ORIGINS", cfg.AllowedOrigins),
		slog.Int("RATE_LIMIT_RPS", int(cfg.RateLimitRPS)),
	)

	appLogger.Info("Starting server", slog.String("version", version.Get().Version))

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	srv := server.NewServer(cfg, appLogger)

	// a failed bind ends up here and exits non-zero
	if err := srv.Start(ctx); err != nil {
		return err
	}

	appLogger.Info("server shutdown complete")
	return nil
}
