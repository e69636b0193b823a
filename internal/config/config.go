package config

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Config holds server configuration values.
type Config struct {
	Addr              string        `mapstructure:"addr" yaml:"addr"`
	ReadHeaderTimeout time.Duration `mapstructure:"read_header_timeout" yaml:"read_header_timeout"`
	ShutdownTimeout   time.Duration `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout"`
	LogLevel          string        `mapstructure:"log_level" yaml:"log_level"`

	DatabasePath string `mapstructure:"database_path" yaml:"database_path"`

	JWTSecret   string        `mapstructure:"jwt_secret" yaml:"jwt_secret"`
	JWTIssuer   string        `mapstructure:"jwt_issuer" yaml:"jwt_issuer"`
	JWTAudience string        `mapstructure:"jwt_audience" yaml:"jwt_audience"`
	TokenTTL    time.Duration `mapstructure:"token_ttl" yaml:"token_ttl"`

	// Seeded on startup when the database holds no admin account.
	AdminUsername string `mapstructure:"admin_username" yaml:"admin_username"`
	AdminPassword string `mapstructure:"admin_password" yaml:"admin_password"`

	UploadDir         string   `mapstructure:"upload_dir" yaml:"upload_dir"`
	MaxUploadBytes    int64    `mapstructure:"max_upload_bytes" yaml:"max_upload_bytes"`
	AllowedExtensions []string `mapstructure:"allowed_extensions" yaml:"allowed_extensions"`

	HistoryLimit    int `mapstructure:"history_limit" yaml:"history_limit"`
	MaxMessageRunes int `mapstructure:"max_message_runes" yaml:"max_message_runes"`
	SendBuffer      int `mapstructure:"send_buffer" yaml:"send_buffer"`

	AuthRatePerSecond float64 `mapstructure:"auth_rate_per_second" yaml:"auth_rate_per_second"`
	AuthRateBurst     int     `mapstructure:"auth_rate_burst" yaml:"auth_rate_burst"`
}

// Default returns configuration with reasonable starter defaults.
func Default() Config {
	return Config{
		Addr:              ":8080",
		ReadHeaderTimeout: 5 * time.Second,
		ShutdownTimeout:   5 * time.Second,
		LogLevel:          "info",
		DatabasePath:      "wirechat.db",
		JWTSecret:         "change-me",
		JWTIssuer:         "wirechat",
		JWTAudience:       "wirechat-clients",
		TokenTTL:          24 * time.Hour,
		AdminUsername:     "admin",
		AdminPassword:     "admin123",
		UploadDir:         "uploads",
		MaxUploadBytes:    10 << 20,
		AllowedExtensions: []string{"png", "jpg", "jpeg", "gif", "webp", "pdf", "txt", "zip"},
		HistoryLimit:      50,
		MaxMessageRunes:   2000,
		SendBuffer:        32,
		AuthRatePerSecond: 1,
		AuthRateBurst:     5,
	}
}

// UpdateFrom overwrites non-zero values from other config into receiver.
// Used for command-line overrides.
func (c *Config) UpdateFrom(other Config) {
	if other.Addr != "" {
		c.Addr = other.Addr
	}
	if other.LogLevel != "" {
		c.LogLevel = other.LogLevel
	}
	if other.DatabasePath != "" {
		c.DatabasePath = other.DatabasePath
	}
	if other.ReadHeaderTimeout != 0 {
		c.ReadHeaderTimeout = other.ReadHeaderTimeout
	}
	if other.ShutdownTimeout != 0 {
		c.ShutdownTimeout = other.ShutdownTimeout
	}
}

// Validate reports settings the server cannot start with.
func (c *Config) Validate() error {
	var errs []error
	if c.Addr == "" {
		errs = append(errs, errors.New("addr is required"))
	}
	if c.DatabasePath == "" {
		errs = append(errs, errors.New("database_path is required"))
	}
	if strings.TrimSpace(c.JWTSecret) == "" {
		errs = append(errs, errors.New("jwt_secret is required"))
	}
	if c.TokenTTL <= 0 {
		errs = append(errs, fmt.Errorf("token_ttl must be positive, got %s", c.TokenTTL))
	}
	if c.MaxUploadBytes <= 0 {
		errs = append(errs, fmt.Errorf("max_upload_bytes must be positive, got %d", c.MaxUploadBytes))
	}
	if c.HistoryLimit <= 0 {
		errs = append(errs, fmt.Errorf("history_limit must be positive, got %d", c.HistoryLimit))
	}
	if c.SendBuffer <= 0 {
		errs = append(errs, fmt.Errorf("send_buffer must be positive, got %d", c.SendBuffer))
	}
	if c.AuthRatePerSecond <= 0 || c.AuthRateBurst <= 0 {
		errs = append(errs, errors.New("auth_rate_per_second and auth_rate_burst must be positive"))
	}
	return errors.Join(errs...)
}

// NormalizedExtensions returns the allow-list lower-cased and without leading dots.
func (c *Config) NormalizedExtensions() []string {
	out := make([]string, 0, len(c.AllowedExtensions))
	for _, ext := range c.AllowedExtensions {
		ext = strings.ToLower(strings.TrimPrefix(strings.TrimSpace(ext), "."))
		if ext != "" {
			out = append(out, ext)
		}
	}
	return out
}
