package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all application configuration
type Config struct {
	Port    string
	GinMode string

	Database DatabaseConfig
	Auth     AuthConfig
	Redis    RedisConfig
	Log      LogConfig

	// CatalogFile overrides the embedded permission catalog when set
	CatalogFile string
	CORSOrigins []string
}

// DatabaseConfig holds PostgreSQL connection settings
type DatabaseConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	Name     string
	SSLMode  string
}

// AuthConfig holds token and role lookup settings
type AuthConfig struct {
	JWTSecret         string
	TokenTTL          time.Duration
	RoleLookupTimeout time.Duration
	// WSRecheckInterval is how often an open websocket re-resolves its caller's role
	WSRecheckInterval time.Duration
	// IdentityURL switches role lookup from the local user table to a remote /me endpoint
	IdentityURL string
}

// RedisConfig holds event fan-out settings. An empty URL disables Redis.
type RedisConfig struct {
	URL     string
	Channel string
}

type LogConfig struct {
	Level  string
	Format string
}

const devJWTSecret = "default_super_secret_key"

// Load reads configuration from the environment
func Load() (*Config, error) {
	cfg := &Config{
		Port:    getEnv("PORT", "8080"),
		GinMode: getEnv("GIN_MODE", "debug"),
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnv("DB_PORT", "5432"),
			User:     getEnv("DB_USER", "postgres"),
			Password: getEnv("DB_PASSWORD", "postgres"),
			Name:     getEnv("DB_NAME", "postgres"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
		},
		Auth: AuthConfig{
			JWTSecret:         os.Getenv("JWT_SECRET"),
			TokenTTL:          getEnvDuration("TOKEN_TTL", 24*time.Hour),
			RoleLookupTimeout: getEnvDuration("ROLE_LOOKUP_TIMEOUT", 3*time.Second),
			WSRecheckInterval: getEnvDuration("WS_RECHECK_INTERVAL", 30*time.Second),
			IdentityURL:       getEnv("IDENTITY_URL", ""),
		},
		Redis: RedisConfig{
			URL:     getEnv("REDIS_URL", ""),
			Channel: getEnv("REDIS_CHANNEL", "inventory-events"),
		},
		Log: LogConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "text"),
		},
		CatalogFile: getEnv("CATALOG_FILE", ""),
		CORSOrigins: getEnvList("CORS_ORIGINS", []string{"http://localhost:5173", "http://127.0.0.1:5173"}),
	}

	if cfg.Auth.JWTSecret == "" && !cfg.IsRelease() {
		cfg.Auth.JWTSecret = devJWTSecret // Development fallback only
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

// IsRelease reports whether gin runs in release mode
func (c *Config) IsRelease() bool {
	return c.GinMode == "release"
}

// DSN builds the postgres connection string
func (c *Config) DSN() string {
	d := c.Database
	return "postgres://" + d.User + ":" + d.Password + "@" + d.Host + ":" + d.Port + "/" + d.Name + "?sslmode=" + d.SSLMode
}

// Validate checks the configuration for missing or invalid values
func (c *Config) Validate() error {
	var errs []string

	if c.Port == "" {
		errs = append(errs, "PORT is required")
	} else if p, err := strconv.Atoi(c.Port); err != nil || p <= 0 || p > 65535 {
		errs = append(errs, fmt.Sprintf("PORT %q is not a valid port", c.Port))
	}

	switch c.GinMode {
	case "debug", "release", "test":
	default:
		errs = append(errs, fmt.Sprintf("GIN_MODE %q must be debug, release or test", c.GinMode))
	}

	if c.Auth.JWTSecret == "" {
		errs = append(errs, "JWT_SECRET is required in release mode")
	} else if c.IsRelease() && c.Auth.JWTSecret == devJWTSecret {
		errs = append(errs, "JWT_SECRET must not be the development default in release mode")
	}
	if c.Auth.TokenTTL <= 0 {
		errs = append(errs, "TOKEN_TTL must be positive")
	}
	if c.Auth.RoleLookupTimeout <= 0 {
		errs = append(errs, "ROLE_LOOKUP_TIMEOUT must be positive")
	}
	if c.Auth.WSRecheckInterval <= 0 {
		errs = append(errs, "WS_RECHECK_INTERVAL must be positive")
	}
	if c.Redis.URL != "" && c.Redis.Channel == "" {
		errs = append(errs, "REDIS_CHANNEL is required when REDIS_URL is set")
	}

	switch strings.ToLower(c.Log.Format) {
	case "text", "json":
	default:
		errs = append(errs, fmt.Sprintf("LOG_FORMAT %q must be text or json", c.Log.Format))
	}

	if len(errs) > 0 {
		return errors.New(strings.Join(errs, "; "))
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func getEnvList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
