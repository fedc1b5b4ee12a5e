// Package config provides centralized configuration management for sheetqr.
// Every setting comes from the environment, falls back to a default, and is
// validated on startup so a bad deployment fails before serving requests.
package config

import (
	"net"
	"strconv"
	"time"
)

// Config holds all application configuration.
type Config struct {
	Server   ServerConfig
	Upload   UploadConfig
	Render   RenderConfig
	Session  SessionConfig
	Rate     RateLimitConfig
	Security SecurityConfig
	Logging  LoggingConfig
	Storage  StorageConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	// Host is the interface to bind to (default: 0.0.0.0)
	Host string `env:"SERVER_HOST" default:"0.0.0.0"`

	// Port is the port to listen on (default: 8080)
	Port int `env:"SERVER_PORT" default:"8080"`

	// ReadTimeout is the maximum duration for reading the request (default: 30s)
	ReadTimeout time.Duration `env:"SERVER_READ_TIMEOUT" default:"30s"`

	// WriteTimeout is the maximum duration for writing the response (default: 5m, archives can be large)
	WriteTimeout time.Duration `env:"SERVER_WRITE_TIMEOUT" default:"5m"`

	// IdleTimeout is the keep-alive timeout (default: 60s)
	IdleTimeout time.Duration `env:"SERVER_IDLE_TIMEOUT" default:"60s"`

	// ShutdownTimeout bounds graceful shutdown (default: 30s)
	ShutdownTimeout time.Duration `env:"SERVER_SHUTDOWN_TIMEOUT" default:"30s"`

	// RequestTimeout is the middleware timeout for requests (default: 5m)
	RequestTimeout time.Duration `env:"SERVER_REQUEST_TIMEOUT" default:"5m"`
}

// UploadConfig holds workbook upload and batch admission settings.
type UploadConfig struct {
	// MaxFileSize is the maximum accepted workbook size in bytes (default: 50MB)
	MaxFileSize int64 `env:"UPLOAD_MAX_FILE_SIZE" default:"52428800"`

	// MaxConcurrent is the maximum number of batches rendering at once (default: 4)
	MaxConcurrent int `env:"UPLOAD_MAX_CONCURRENT" default:"4"`

	// MaxWaitTime is how long a batch waits for a free slot (default: 30s)
	MaxWaitTime time.Duration `env:"UPLOAD_MAX_WAIT_TIME" default:"30s"`

	// Timeout bounds a single generate request end to end (default: 10m)
	Timeout time.Duration `env:"UPLOAD_TIMEOUT" default:"10m"`
}

// RenderConfig holds QR rendering defaults.
type RenderConfig struct {
	// ModuleSize is the default pixels per module, 1-20 (default: 10)
	ModuleSize int `env:"QR_MODULE_SIZE" default:"10"`

	// Border is the default quiet zone in modules, 0-10 (default: 4)
	Border int `env:"QR_BORDER" default:"4"`

	// OutputResolution forces square output in pixels; 0 keeps natural size (default: 0)
	OutputResolution int `env:"QR_OUTPUT_RESOLUTION" default:"0"`

	// Workers is the number of rows rendered in parallel per batch (default: 4)
	Workers int `env:"QR_WORKERS" default:"4"`

	// SampleRows is how many non-missing values the URL classifier inspects (default: 5)
	SampleRows int `env:"QR_CLASSIFIER_SAMPLE_ROWS" default:"5"`
}

// SessionConfig holds in-memory session settings.
type SessionConfig struct {
	// MaxSessions is how many loaded workbooks are kept before eviction (default: 64)
	MaxSessions int `env:"SESSION_MAX" default:"64"`
}

// RateLimitConfig holds rate limiting settings per time window.
type RateLimitConfig struct {
	// Enabled controls whether rate limiting is active (default: true)
	Enabled bool `env:"RATE_LIMIT_ENABLED" default:"true"`

	// RequestsPerMinute is the rate limit per IP (default: 120)
	RequestsPerMinute int `env:"RATE_LIMIT_REQUESTS_PER_MINUTE" default:"120"`
}

// SecurityConfig holds security-related settings.
type SecurityConfig struct {
	// TrustedProxies is a comma-separated list of trusted proxy CIDRs
	TrustedProxies []string `env:"TRUSTED_PROXIES"`

	// RequireAPIKey enables X-API-Key checks on /api routes (default: false)
	RequireAPIKey bool `env:"REQUIRE_API_KEY" default:"false"`

	// APIKeys is a comma-separated list of accepted API keys
	APIKeys []string `env:"API_KEYS"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	// Level is the minimum log level: debug, info, warn, error (default: info)
	Level string `env:"LOG_LEVEL" default:"info"`

	// Format is the log format: text or json (default: text)
	Format string `env:"LOG_FORMAT" default:"text"`
}

// StorageConfig selects where packed archives are exported, if anywhere.
type StorageConfig struct {
	// Backend is one of: none, s3, gcs (default: none)
	Backend string `env:"ARCHIVE_STORE" default:"none"`

	// Bucket is the destination bucket name
	Bucket string `env:"ARCHIVE_BUCKET"`

	// Prefix is prepended to every object key (default: sheetqr)
	Prefix string `env:"ARCHIVE_PREFIX" default:"sheetqr"`

	// S3Endpoint is the S3-compatible endpoint host[:port]
	S3Endpoint string `env:"S3_ENDPOINT"`

	// S3Region is the bucket region (default: us-east-1)
	S3Region string `env:"S3_REGION" default:"us-east-1"`

	// S3AccessKey and S3SecretKey are static credentials
	S3AccessKey string `env:"S3_ACCESS_KEY" envAlt:"AWS_ACCESS_KEY_ID"`
	S3SecretKey string `env:"S3_SECRET_KEY" envAlt:"AWS_SECRET_ACCESS_KEY"`

	// S3UseSSL toggles TLS to the endpoint (default: true)
	S3UseSSL bool `env:"S3_USE_SSL" default:"true"`
}

// Enabled reports whether an archive export backend is configured.
func (c StorageConfig) Enabled() bool {
	return c.Backend != "" && c.Backend != "none"
}

// Addr returns the server listen address in host:port format.
func (c *ServerConfig) Addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}
