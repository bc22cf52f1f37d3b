// Copyright (c) 2026 Ace Job Agency. All rights reserved.
// Author: platform@acejobs.sg

/*
Package config handles application-wide settings and environment parsing.

It leverages 'caarlos0/env' to map OS environment variables into a strongly-typed
Go struct, providing early validation and default values.

Usage:

	cfg, err := config.Load()
	if err != nil {
	    log.Fatal(err)
	}

Architecture:

  - Immutability: Once loaded, configuration is read-only.
  - DI-Friendly: Passed to core components (DB, Redis, mail, captcha) via constructors.
  - Zero Hidden State: No global variables are used to store config. The field
    encryption key in particular is injected into the one component that needs it.

This ensures the application is Twelve-Factor compliant by storing config in the env.
*/
package config

import (
	"fmt"

	"github.com/caarlos0/env/v11"
)

// # Configuration Schema

// Config holds all runtime configuration for the portal API server.
type Config struct {

	// Server settings
	ServerPort  string `env:"SERVER_PORT"  envDefault:"8080"`
	Environment string `env:"ENVIRONMENT"  envDefault:"development"`
	Debug       bool   `env:"DEBUG"        envDefault:"false"`

	// Relational Database (PostgreSQL)
	DatabaseURL string `env:"DATABASE_URL,required"`

	// MigrationPath is the filesystem path to the SQL migrations directory.
	MigrationPath string `env:"MIGRATION_PATH" envDefault:"./data/migrations"`

	// Key-Value Cache (Redis) for OTP challenges and reset tokens
	RedisURL string `env:"REDIS_URL,required"`

	// Cryptographic material for pending-login ticket signing
	TicketPrivKeyPath string `env:"TICKET_PRIVATE_KEY_PATH,required"`
	TicketPubKeyPath  string `env:"TICKET_PUBLIC_KEY_PATH,required"`

	// EncryptionKey protects the national-ID field at rest (hex, 32 bytes).
	EncryptionKey string `env:"ENCRYPTION_KEY,required"`

	// CAPTCHA verification (Google reCAPTCHA v3 compatible endpoint)
	CaptchaVerifyURL string  `env:"CAPTCHA_VERIFY_URL" envDefault:"https://www.google.com/recaptcha/api/siteverify"`
	CaptchaSecret    string  `env:"CAPTCHA_SECRET,required"`
	CaptchaMinScore  float64 `env:"CAPTCHA_MIN_SCORE" envDefault:"0.5"`

	// SMTP relay for OTP and password-reset mail
	SMTPHost     string `env:"SMTP_HOST,required"`
	SMTPPort     int    `env:"SMTP_PORT" envDefault:"587"`
	SMTPUsername string `env:"SMTP_USERNAME"`
	SMTPPassword string `env:"SMTP_PASSWORD"`
	MailSender   string `env:"MAIL_SENDER,required"`

	// ResetURLBase is the public page a reset link points at.
	ResetURLBase string `env:"RESET_URL_BASE" envDefault:"https://portal.acejobs.sg/reset-password"`

	// UploadDir is where resume blobs are written.
	UploadDir string `env:"UPLOAD_DIR" envDefault:"./data/uploads"`

	// Cross-Origin Resource Sharing
	ExtraOrigins []string `env:"EXTRA_ORIGINS" envSeparator:","`
}

// # Configuration Loading

// Load parses environment variables into a [Config] struct.
func Load() (*Config, error) {

	// Initialize an empty config struct
	cfg := &Config{}

	// Use the 'env' package to map environment variables to struct fields.
	// This will fail if any field marked with 'required' is missing.
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("config: failed to parse environment variables: %w", err)
	}

	return cfg, nil
}

// IsDevelopment reports whether the server is running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}

// IsProduction reports whether the server is running in production mode.
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}
