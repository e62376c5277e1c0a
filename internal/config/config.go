// Package config provides application configuration.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// DefaultBackendBaseURL is used when BACKEND_BASE_URL is unset.
const DefaultBackendBaseURL = "http://127.0.0.1:8001"

// Config holds the process-wide server configuration read once at startup.
type Config struct {
	Port               string
	FrontendURL        string
	AllowedOrigins     []string
	MaxRequestBodySize int64
	ReadyTimeout       time.Duration
	BackendSocksProxy  string // optional SOCKS5 address for outbound backend calls
}

// Backend holds the settings used to reach the question-answering backend.
// It is resolved per request with ReadBackend, never cached.
type Backend struct {
	BaseURL string
	APIKey  string
}

// BackendFunc resolves backend settings for a single request.
type BackendFunc func() Backend

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	bodySize := getEnvInt("MAX_REQUEST_BODY_SIZE", 1<<20)
	if bodySize <= 0 {
		bodySize = 1 << 20
	}

	cfg := &Config{
		Port:               getEnv("PORT", "8080"),
		FrontendURL:        getEnv("FRONTEND_URL", ""),
		AllowedOrigins:     getEnvList("ALLOWED_ORIGINS", []string{"*"}),
		MaxRequestBodySize: int64(bodySize),
		ReadyTimeout:       getEnvDuration("READY_TIMEOUT", 5*time.Second),
		BackendSocksProxy:  getEnv("BACKEND_SOCKS_PROXY", ""),
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate checks that all required configuration fields are set.
func (c *Config) Validate() error {
	if c.Port == "" {
		return fmt.Errorf("PORT cannot be empty")
	}
	if _, err := strconv.Atoi(c.Port); err != nil {
		return fmt.Errorf("PORT must be numeric, got %q", c.Port)
	}
	if len(c.AllowedOrigins) == 0 {
		return fmt.Errorf("ALLOWED_ORIGINS cannot be empty")
	}
	if c.MaxRequestBodySize <= 0 {
		return fmt.Errorf("MAX_REQUEST_BODY_SIZE must be > 0")
	}
	if c.ReadyTimeout <= 0 {
		return fmt.Errorf("READY_TIMEOUT must be > 0")
	}
	return nil
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.FrontendURL == "" ||
		strings.Contains(c.FrontendURL, "localhost") ||
		strings.Contains(c.FrontendURL, "127.0.0.1")
}

// ReadBackend reads the backend base URL and API key from the environment.
// Handlers call it on every request so that changes to the environment take
// effect without a restart.
func ReadBackend() Backend {
	base := strings.TrimSpace(getEnv("BACKEND_BASE_URL", ""))
	if base == "" {
		base = DefaultBackendBaseURL
	}
	return Backend{
		BaseURL: strings.TrimRight(base, "/"),
		APIKey:  strings.TrimSpace(getEnv("BACKEND_API_KEY", "")),
	}
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	n, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return n
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	d, err := time.ParseDuration(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return d
}

func getEnvList(key string, fallback []string) []string {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	if len(out) == 0 {
		return fallback
	}
	return out
}
