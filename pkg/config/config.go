// Package config loads application configuration from environment
// variables and validates it before the server starts.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all application configuration
type Config struct {
	Server    ServerConfig
	Auth      AuthConfig
	RateLimit RateLimitConfig
	Upload    UploadConfig
	Database  DatabaseConfig
	Redis     RedisConfig

	// CORSAllowedOrigins is the allow-list for credentialed CORS.
	CORSAllowedOrigins []string

	// LogLevel is one of debug, info, warn, error.
	LogLevel string
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host            string
	Port            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration

	// MaxBodyBytes caps non-multipart request bodies.
	MaxBodyBytes int64
}

// AuthConfig holds token signing configuration
type AuthConfig struct {
	// JWTSecret signs credentials. Required, at least 32 characters.
	JWTSecret string

	// TokenMaxAge is the ceiling on credential age since issuance.
	TokenMaxAge time.Duration
}

// LimiterConfig holds a single named limiter's quota
type LimiterConfig struct {
	Window time.Duration
	Max    int
}

// RateLimitConfig holds per-route-class limiter quotas
type RateLimitConfig struct {
	API           LimiterConfig
	Auth          LimiterConfig
	Upload        LimiterConfig
	Admin         LimiterConfig
	PasswordReset LimiterConfig
}

// UploadConfig holds file upload limits
type UploadConfig struct {
	Dir          string
	MaxFileBytes int64
	MaxFiles     int

	// AllowedMIMETypes narrows the built-in allow-list when set.
	AllowedMIMETypes []string
}

// DatabaseConfig holds Postgres connection settings
type DatabaseConfig struct {
	URL          string
	MaxOpenConns int
	MaxIdleConns int
}

// RedisConfig holds the optional shared rate-limit store settings
type RedisConfig struct {
	// URL enables the Redis counter store when non-empty. Empty means
	// the in-memory per-instance store.
	URL      string
	Password string
	DB       int
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Host:            getEnv("LABCMS_HOST", "0.0.0.0"),
			Port:            getEnv("LABCMS_PORT", "8080"),
			ReadTimeout:     getEnvDuration("LABCMS_READ_TIMEOUT", 15*time.Second),
			WriteTimeout:    getEnvDuration("LABCMS_WRITE_TIMEOUT", 15*time.Second),
			IdleTimeout:     getEnvDuration("LABCMS_IDLE_TIMEOUT", 60*time.Second),
			ShutdownTimeout: getEnvDuration("LABCMS_SHUTDOWN_TIMEOUT", 30*time.Second),
			MaxBodyBytes:    getEnvInt64("LABCMS_MAX_BODY_BYTES", 10*1024*1024),
		},
		Auth: AuthConfig{
			JWTSecret:   getEnv("LABCMS_JWT_SECRET", ""),
			TokenMaxAge: getEnvDuration("LABCMS_TOKEN_MAX_AGE", 7*24*time.Hour),
		},
		RateLimit: RateLimitConfig{
			API:           loadLimiter("API", 15*time.Minute, 100),
			Auth:          loadLimiter("AUTH", 15*time.Minute, 5),
			Upload:        loadLimiter("UPLOAD", time.Hour, 20),
			Admin:         loadLimiter("ADMIN", 5*time.Minute, 50),
			PasswordReset: loadLimiter("PASSWORD_RESET", time.Hour, 3),
		},
		Upload: UploadConfig{
			Dir:          getEnv("LABCMS_UPLOAD_DIR", "uploads"),
			MaxFileBytes: getEnvInt64("LABCMS_UPLOAD_MAX_BYTES", 10*1024*1024),
			MaxFiles:     getEnvInt("LABCMS_UPLOAD_MAX_FILES", 5),
		},
		Database: DatabaseConfig{
			URL:          getEnv("LABCMS_POSTGRES_URL", ""),
			MaxOpenConns: getEnvInt("LABCMS_POSTGRES_MAX_CONNS", 10),
			MaxIdleConns: getEnvInt("LABCMS_POSTGRES_IDLE_CONNS", 5),
		},
		Redis: RedisConfig{
			URL:      getEnv("LABCMS_REDIS_URL", ""),
			Password: getEnv("LABCMS_REDIS_PASSWORD", ""),
			DB:       getEnvInt("LABCMS_REDIS_DB", 0),
		},
		CORSAllowedOrigins: getEnvList("LABCMS_CORS_ORIGINS", []string{"http://localhost:3000"}),
		LogLevel:           getEnv("LABCMS_LOG_LEVEL", "info"),
	}

	if mimes := getEnvList("LABCMS_UPLOAD_MIME_TYPES", nil); len(mimes) > 0 {
		cfg.Upload.AllowedMIMETypes = mimes
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// loadLimiter reads one limiter's overrides, e.g. LABCMS_RATELIMIT_AUTH_MAX
func loadLimiter(name string, window time.Duration, max int) LimiterConfig {
	return LimiterConfig{
		Window: getEnvDuration("LABCMS_RATELIMIT_"+name+"_WINDOW", window),
		Max:    getEnvInt("LABCMS_RATELIMIT_"+name+"_MAX", max),
	}
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Server.Port == "" {
		return fmt.Errorf("server port is required")
	}
	if c.Auth.JWTSecret == "" {
		return fmt.Errorf("LABCMS_JWT_SECRET is required")
	}
	if len(c.Auth.JWTSecret) < 32 {
		return fmt.Errorf("LABCMS_JWT_SECRET must be at least 32 characters")
	}
	if c.Auth.TokenMaxAge <= 0 {
		return fmt.Errorf("token max age must be positive")
	}
	for name, l := range map[string]LimiterConfig{
		"api":            c.RateLimit.API,
		"auth":           c.RateLimit.Auth,
		"upload":         c.RateLimit.Upload,
		"admin":          c.RateLimit.Admin,
		"password_reset": c.RateLimit.PasswordReset,
	} {
		if l.Max <= 0 || l.Window <= 0 {
			return fmt.Errorf("rate limiter %q must have positive window and max", name)
		}
	}
	if c.Upload.MaxFileBytes <= 0 {
		return fmt.Errorf("upload max bytes must be positive")
	}
	return nil
}

// getEnv returns an environment variable value or a default
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt returns an integer environment variable or a default
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

// getEnvInt64 returns an int64 environment variable or a default
func getEnvInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intVal
		}
	}
	return defaultValue
}

// getEnvDuration returns a duration environment variable or a default
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

// getEnvList returns a comma-separated list environment variable or a default
func getEnvList(key string, defaultValue []string) []string {
	if value := os.Getenv(key); value != "" {
		parts := strings.Split(value, ",")
		out := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				out = append(out, p)
			}
		}
		if len(out) > 0 {
			return out
		}
	}
	return defaultValue
}
