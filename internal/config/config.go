package config

import (
	"fmt"
	"time"

	"github.com/Netflix/go-env"
	"github.com/go-playground/validator/v10"
)

// Environment variables with defaults
type ServerEnvironment struct {

	// http server settings
	Environment           string        `env:"ENVIRONMENT,default=dev" validate:"oneof=dev test prod staging"`
	Host                  string        `env:"HOST"`
	Port                  int           `env:"PORT,default=5000" validate:"min=1,max=65535"`
	LogLevel              string        `env:"LOG_LEVEL,default=debug" validate:"oneof=debug info warn warning error none"`
	ServerShutdownTimeout time.Duration `env:"SERVER_SHUTDOWN_TIMEOUT,default=10s"`

	// zero disables the timeout (net/http semantics)
	ReadTimeout       time.Duration `env:"READ_TIMEOUT,default=0s"`
	ReadHeaderTimeout time.Duration `env:"READ_HEADER_TIMEOUT,default=0s"`
	WriteTimeout      time.Duration `env:"WRITE_TIMEOUT,default=0s"`
	IdleTimeout       time.Duration `env:"IDLE_TIMEOUT,default=0s"`

	// request handling
	MaxRequestSize int64    `env:"MAX_REQUEST_SIZE,default=102400" validate:"gt=0"`
	AllowedOrigins []string `env:"ALLOWED_ORIGINS,separator=|"`
	CORSMaxAge     int      `env:"CORS_MAX_AGE,default=0" validate:"min=0"`
	RateLimitRPS   int32    `env:"RATE_LIMIT_RPS,default=0"`
	RateLimitBurst int32    `env:"RATE_LIMIT_BURST,default=0"`
}

// NewServerConfig loads environment variables and returns a ServerEnvironment struct that contains the values
func NewServerConfig() (*ServerEnvironment, error) {
	var cfg ServerEnvironment

	_, err := env.UnmarshalFromEnviron(&cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal environment variables: %w", err)
	}

	if err := validateConfig(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Addr returns the host:port the HTTP server binds to.
func (c *ServerEnvironment) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// validateConfig runs the struct tag rules and then the checks that span more than one field
func validateConfig(cfg *ServerEnvironment) error {
	validate := validator.New()
	if err := validate.Struct(cfg); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	if cfg.ServerShutdownTimeout <= 0 {
		return fmt.Errorf("SERVER_SHUTDOWN_TIMEOUT must be greater than 0")
	}
	for name, d := range map[string]time.Duration{
		"READ_TIMEOUT":        cfg.ReadTimeout,
		"READ_HEADER_TIMEOUT": cfg.ReadHeaderTimeout,
		"WRITE_TIMEOUT":       cfg.WriteTimeout,
		"IDLE_TIMEOUT":        cfg.IdleTimeout,
	} {
		if d < 0 {
			return fmt.Errorf("%s must be 0 or greater, got %s", name, d)
		}
	}

	// rate limiting is disabled when RATE_LIMIT_RPS <= 0, so the burst only matters when it is on
	if cfg.RateLimitRPS > 0 && cfg.RateLimitBurst < 1 {
		return fmt.Errorf("RATE_LIMIT_BURST must be at least 1 when RATE_LIMIT_RPS is set (got %d)", cfg.RateLimitBurst)
	}

	return nil
}
