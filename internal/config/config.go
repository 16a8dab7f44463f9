// Package config provides configuration loading from environment variables.
package config

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/sethvargo/go-envconfig"
)

// Static errors for configuration validation.
var (
	// ErrVideoAPIKeyRequired is returned when VIDEO_API_KEY is not set.
	ErrVideoAPIKeyRequired = errors.New("config: VIDEO_API_KEY is required")
	// ErrInvalidPollInterval is returned for a non-positive POLL_INTERVAL.
	ErrInvalidPollInterval = errors.New("config: POLL_INTERVAL must be positive")
)

// Config holds all configuration for the relay server.
type Config struct {
	// Server settings
	Port           int      `env:"PORT, default=8080" json:"port"`
	AllowedOrigins []string `env:"ALLOWED_ORIGINS, default=*" json:"allowed_origins"`

	// Upstream API settings
	VideoAPIKey        string        `env:"VIDEO_API_KEY, required" json:"-"` // Masked in JSON
	VideoAPIBaseURL    string        `env:"VIDEO_API_BASE_URL, default=https://api.video-gen.example.com/v1" json:"video_api_base_url"`
	UpstreamTimeout    time.Duration `env:"UPSTREAM_TIMEOUT, default=30s" json:"upstream_timeout"`
	UpstreamMaxRetries int           `env:"UPSTREAM_MAX_RETRIES, default=0" json:"upstream_max_retries"`

	// Polling and job cache settings
	PollInterval time.Duration `env:"POLL_INTERVAL, default=5s" json:"poll_interval"`
	JobCacheSize int           `env:"JOB_CACHE_SIZE, default=1000" json:"job_cache_size"`

	// Storage settings
	TempDir string `env:"TEMP_DIR, default=/tmp/promptvideo" json:"temp_dir"`

	// Optional S3 settings for archiving
	S3Bucket           string `env:"S3_BUCKET" json:"s3_bucket,omitempty"`
	S3Region           string `env:"S3_REGION" json:"s3_region,omitempty"`
	S3Endpoint         string `env:"S3_ENDPOINT" json:"s3_endpoint,omitempty"`
	AWSAccessKeyID     string `env:"AWS_ACCESS_KEY_ID" json:"-"`     // Masked in JSON
	AWSSecretAccessKey string `env:"AWS_SECRET_ACCESS_KEY" json:"-"` // Masked in JSON

	// Logging settings
	LogFormat string `env:"LOG_FORMAT, default=text" json:"log_format"` // "json" or "text"
	LogLevel  string `env:"LOG_LEVEL, default=info" json:"log_level"`   // "debug", "info", "warn", "error"
}

// S3Enabled returns true if S3 configuration is provided.
func (c *Config) S3Enabled() bool {
	return c.S3Bucket != "" && c.S3Region != ""
}

// Load reads configuration from environment variables using go-envconfig.
// It returns an error if required variables are not set.
func Load() (*Config, error) {
	cfg := &Config{}

	if err := envconfig.Process(context.Background(), cfg); err != nil {
		// Map envconfig errors to our domain errors for required fields
		if strings.Contains(err.Error(), "VIDEO_API_KEY") {
			return nil, ErrVideoAPIKeyRequired
		}
		return nil, fmt.Errorf("config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that all required configuration is present.
func (c *Config) Validate() error {
	if c.VideoAPIKey == "" {
		return ErrVideoAPIKeyRequired
	}
	if c.PollInterval <= 0 {
		return ErrInvalidPollInterval
	}
	return nil
}

// NewLogger creates a structured logger based on the configuration.
// When LogFormat is "json", it outputs JSON logs suitable for production.
// Otherwise, it outputs human-readable text logs.
func (c *Config) NewLogger() *slog.Logger {
	return newLogger(os.Stdout, c.LogFormat, c.LogLevel)
}

// String returns a string representation of the config with sensitive values masked.
func (c *Config) String() string {
	return fmt.Sprintf(
		"Config{Port: %d, VideoAPIBaseURL: %s, VideoAPIKey: %s, UpstreamTimeout: %s, UpstreamMaxRetries: %d, PollInterval: %s, JobCacheSize: %d, TempDir: %s, S3Bucket: %s, S3Region: %s, S3Endpoint: %s, LogFormat: %s, LogLevel: %s}",
		c.Port,
		c.VideoAPIBaseURL,
		mask(c.VideoAPIKey),
		c.UpstreamTimeout,
		c.UpstreamMaxRetries,
		c.PollInterval,
		c.JobCacheSize,
		c.TempDir,
		c.S3Bucket,
		c.S3Region,
		c.S3Endpoint,
		c.LogFormat,
		c.LogLevel,
	)
}

// ClientConfig holds the defaults for the command-line client.
// Flags override every value.
type ClientConfig struct {
	ServerURL    string        `env:"PROMPTVIDEO_SERVER, default=http://localhost:8080"`
	PollInterval time.Duration `env:"POLL_INTERVAL, default=5s"`
	LogFormat    string        `env:"LOG_FORMAT, default=text"`
	LogLevel     string        `env:"LOG_LEVEL, default=warn"`
}

// LoadClient reads the client configuration from environment variables.
func LoadClient() (*ClientConfig, error) {
	cfg := &ClientConfig{}
	if err := envconfig.Process(context.Background(), cfg); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return cfg, nil
}

// NewLogger creates a logger writing to stderr, leaving stdout to the
// client's own output.
func (c *ClientConfig) NewLogger() *slog.Logger {
	return newLogger(os.Stderr, c.LogFormat, c.LogLevel)
}

func newLogger(w io.Writer, format, level string) *slog.Logger {
	opts := &slog.HandlerOptions{Level: parseLogLevel(level)}

	var handler slog.Handler
	if strings.ToLower(format) == "json" {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}
	return slog.New(handler)
}

// mask hides a secret, keeping only whether it is set.
func mask(secret string) string {
	if secret == "" {
		return "<unset>"
	}
	return "****"
}

// parseLogLevel converts a string log level to slog.Level.
func parseLogLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
