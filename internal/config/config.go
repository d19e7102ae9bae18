// Package config provides centralized configuration management for the application.
// It loads configuration from environment variables with sensible defaults and
// validates all settings on startup to fail fast on misconfiguration.
package config

import (
	"strconv"
	"time"
)

// Config holds all application configuration.
// All settings can be configured via environment variables.
type Config struct {
	Server   ServerConfig
	Upload   UploadConfig
	Analysis AnalysisConfig
	Rate     RateLimitConfig
	Security SecurityConfig
	Logging  LoggingConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	// Host is the interface to bind to (default: 0.0.0.0)
	Host string `env:"SERVER_HOST" default:"0.0.0.0"`

	// Port is the port to listen on (default: 8000)
	Port int `env:"SERVER_PORT" envAlt:"PORT" default:"8000"`

	// ReadTimeout is the maximum duration for reading request body (default: 15s)
	ReadTimeout time.Duration `env:"SERVER_READ_TIMEOUT" default:"15s"`

	// WriteTimeout is the maximum duration for writing response (default: 0 for SSE)
	WriteTimeout time.Duration `env:"SERVER_WRITE_TIMEOUT" default:"0s"`

	// IdleTimeout is the keep-alive timeout (default: 60s)
	IdleTimeout time.Duration `env:"SERVER_IDLE_TIMEOUT" default:"60s"`

	// ShutdownTimeout is the maximum duration to wait for graceful shutdown (default: 30s)
	ShutdownTimeout time.Duration `env:"SERVER_SHUTDOWN_TIMEOUT" default:"30s"`

	// RequestTimeout is the middleware timeout for requests (default: 60s)
	RequestTimeout time.Duration `env:"SERVER_REQUEST_TIMEOUT" default:"60s"`
}

// UploadConfig holds file ingestion settings.
type UploadConfig struct {
	// MaxFileSize is the maximum allowed file size in bytes (default: 50MB)
	MaxFileSize int64 `env:"UPLOAD_MAX_FILE_SIZE" envAlt:"MAX_FILE_SIZE" default:"52428800"`

	// AllowedExtensions lists acceptable file extensions, without dots (default: csv,xlsx,xls)
	AllowedExtensions []string `env:"UPLOAD_ALLOWED_EXTENSIONS" default:"csv,xlsx,xls"`

	// MaxConcurrent is the maximum number of parallel ingestions (default: 3)
	MaxConcurrent int `env:"UPLOAD_MAX_CONCURRENT" default:"3"`

	// MaxWaitTime is how long to wait for an ingestion slot (default: 30s)
	MaxWaitTime time.Duration `env:"UPLOAD_MAX_WAIT_TIME" default:"30s"`

	// Timeout is the maximum duration for a single ingestion run (default: 5m)
	Timeout time.Duration `env:"UPLOAD_TIMEOUT" default:"5m"`

	// SampleSize is the number of raw values kept per column profile (default: 5)
	SampleSize int `env:"UPLOAD_SAMPLE_SIZE" envAlt:"SAMPLE_SIZE" default:"5"`

	// MaxPreviewRows caps the rows returned by the preview endpoint (default: 1000)
	MaxPreviewRows int `env:"UPLOAD_MAX_PREVIEW_ROWS" envAlt:"MAX_ROWS_PREVIEW" default:"1000"`

	// Retention is how long finished ingestion state stays queryable (default: 5m)
	Retention time.Duration `env:"UPLOAD_RETENTION" default:"5m"`
}

// AnalysisConfig holds settings for the remote analysis service client.
type AnalysisConfig struct {
	// BaseURL is the analysis service endpoint. Empty disables analysis submission.
	BaseURL string `env:"ANALYSIS_URL"`

	// PollInterval is how often job status is re-checked (default: 2s)
	PollInterval time.Duration `env:"ANALYSIS_POLL_INTERVAL" default:"2s"`

	// PollTimeout is the maximum total time to wait for a job (default: 2m)
	PollTimeout time.Duration `env:"ANALYSIS_POLL_TIMEOUT" default:"2m"`

	// RequestTimeout bounds individual HTTP calls to the service (default: 10s)
	RequestTimeout time.Duration `env:"ANALYSIS_REQUEST_TIMEOUT" default:"10s"`
}

// RateLimitConfig holds rate limiting settings per time window.
type RateLimitConfig struct {
	// Enabled controls whether rate limiting is active (default: true)
	Enabled bool `env:"RATE_LIMIT_ENABLED" default:"true"`

	// Requests is the per-IP request budget per window (default: 100)
	Requests int `env:"RATE_LIMIT_REQUESTS" default:"100"`

	// Window is the rate limiting window (default: 60s)
	Window time.Duration `env:"RATE_LIMIT_WINDOW" default:"60s"`
}

// SecurityConfig holds security-related settings.
type SecurityConfig struct {
	// TrustedProxies is a comma-separated list of trusted proxy CIDRs
	TrustedProxies []string `env:"TRUSTED_PROXIES"`

	// CORSOrigins lists origins allowed by the CORS middleware
	CORSOrigins []string `env:"CORS_ORIGINS" default:"http://localhost:3000"`

	// EnableCSP enables Content-Security-Policy headers (default: true)
	EnableCSP bool `env:"SECURITY_ENABLE_CSP" default:"true"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	// Level is the minimum log level: debug, info, warn, error (default: info)
	Level string `env:"LOG_LEVEL" default:"info"`

	// Format is the log format: text or json (default: text)
	Format string `env:"LOG_FORMAT" default:"text"`
}

// Addr returns the server listen address in host:port format.
func (c *ServerConfig) Addr() string {
	return c.Host + ":" + strconv.Itoa(c.Port)
}

// AnalysisEnabled reports whether a remote analysis service is configured.
func (c *Config) AnalysisEnabled() bool {
	return c.Analysis.BaseURL != ""
}
