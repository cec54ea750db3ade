// Package config loads the service configuration from the environment.
package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config holds the service configuration. Parsed once at startup and
// treated as immutable afterwards.
type Config struct {
	Port   int    `env:"PORT" envDefault:"8080"`
	DBPath string `env:"DB_PATH" envDefault:"auth.db"`

	// JWTSecret signs every token the service mints. No default: starting
	// without one is a configuration error, not a fallback.
	JWTSecret            string        `env:"JWT_SECRET,required,notEmpty"`
	AccessTokenTTL       time.Duration `env:"ACCESS_TOKEN_TTL" envDefault:"30m"`
	VerificationTokenTTL time.Duration `env:"VERIFICATION_TOKEN_TTL" envDefault:"24h"`

	// FrontendURL is the base of the user-facing app; activation and reset
	// links in outbound email point here.
	FrontendURL string `env:"FRONTEND_URL" envDefault:"http://localhost:3000"`

	GoogleClientID     string `env:"GOOGLE_CLIENT_ID"`
	GoogleClientSecret string `env:"GOOGLE_CLIENT_SECRET"`

	// SMTP settings. When SMTPHost is empty, outbound mail is logged
	// instead of delivered.
	SMTPHost     string `env:"SMTP_HOST"`
	SMTPPort     int    `env:"SMTP_PORT" envDefault:"587"`
	SMTPUser     string `env:"SMTP_USER"`
	SMTPPassword string `env:"SMTP_PASSWORD"`
	SMTPFrom     string `env:"SMTP_FROM"`

	// Optional bootstrap admin account, created at startup if absent.
	AdminEmail    string `env:"ADMIN_EMAIL"`
	AdminPassword string `env:"ADMIN_PASSWORD"`
}

// Load parses the configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("config: parsing environment: %w", err)
	}
	return cfg, nil
}
