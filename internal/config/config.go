// Package config loads service configuration from the environment and
// validates it before anything else starts.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all server configuration.
type Config struct {
	Server ServerConfig
	Auth   AuthConfig
	DB     DBConfig
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Addr            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
	MaxBodyBytes    int64
	RateLimitBurst  int
	RateLimitPerSec int
}

// AuthConfig holds token issuance configuration. Secret is mandatory: a
// server without it must refuse to start rather than fail per request.
type AuthConfig struct {
	Secret   string
	Issuer   string
	TokenTTL time.Duration
}

// DBConfig holds the credential store connection settings.
type DBConfig struct {
	DSN             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// Load reads configuration from environment variables and validates it.
func Load() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Addr:            getEnv("FOLIO_ADDR", ":8080"),
			ReadTimeout:     getEnvDuration("FOLIO_READ_TIMEOUT", 15*time.Second),
			WriteTimeout:    getEnvDuration("FOLIO_WRITE_TIMEOUT", 15*time.Second),
			IdleTimeout:     getEnvDuration("FOLIO_IDLE_TIMEOUT", 60*time.Second),
			ShutdownTimeout: getEnvDuration("FOLIO_SHUTDOWN_TIMEOUT", 10*time.Second),
			MaxBodyBytes:    int64(getEnvInt("FOLIO_MAX_BODY_BYTES", 1<<20)),
			RateLimitBurst:  getEnvInt("FOLIO_RATE_BURST", 10),
			RateLimitPerSec: getEnvInt("FOLIO_RATE_PER_SECOND", 5),
		},
		Auth: AuthConfig{
			Secret:   strings.TrimSpace(os.Getenv("FOLIO_AUTH_SECRET")),
			Issuer:   getEnv("FOLIO_TOKEN_ISSUER", "foliocms"),
			TokenTTL: getEnvDuration("FOLIO_TOKEN_TTL", time.Hour),
		},
		DB: DBConfig{
			DSN:             strings.TrimSpace(os.Getenv("FOLIO_PG_DSN")),
			MaxOpenConns:    getEnvInt("FOLIO_PG_MAX_OPEN_CONNS", 10),
			MaxIdleConns:    getEnvInt("FOLIO_PG_MAX_IDLE_CONNS", 10),
			ConnMaxLifetime: getEnvDuration("FOLIO_PG_CONN_MAX_LIFETIME", 30*time.Minute),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

// Validate checks the loaded configuration for fatal omissions.
func (c *Config) Validate() error {
	if c.Auth.Secret == "" {
		return errors.New("FOLIO_AUTH_SECRET is required")
	}
	if c.DB.DSN == "" {
		return errors.New("FOLIO_PG_DSN is required")
	}
	if c.Auth.TokenTTL <= 0 {
		return errors.New("FOLIO_TOKEN_TTL must be positive")
	}
	return nil
}

func getEnv(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return v
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback
	}
	v, err := time.ParseDuration(raw)
	if err != nil {
		return fallback
	}
	return v
}
