// Package config loads server configuration from command-line flags, environment
// variables, and an optional .env file.
package config

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/joho/godotenv"
)

// Store backends.
const (
	BackendBadger = "badger"
	BackendSQLite = "sqlite"
)

// Config holds the application configuration.
type Config struct {
	App    AppConfig
	Logger LoggerConfig
	Store  StoreConfig
	Server ServerConfig
	Auth   AuthConfig
	Feed   FeedConfig
	Search SearchConfig
}

// AppConfig holds application-level configuration.
type AppConfig struct {
	Environment string
	// PublicURL is the externally reachable base URL, used to build
	// email verification links.
	PublicURL string
}

// LoggerConfig holds logging configuration.
type LoggerConfig struct {
	Level string
}

// StoreConfig selects and locates the document store.
type StoreConfig struct {
	Backend  string // badger or sqlite
	DataPath string // root directory for all on-disk state
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
	CORSOrigins  []string
}

// AuthConfig holds authentication configuration.
type AuthConfig struct {
	AccessTokenDuration  time.Duration
	RefreshTokenDuration time.Duration
	VerificationTTL      time.Duration
}

// FeedConfig holds feed assembly configuration.
type FeedConfig struct {
	// Location defines the calendar day used by the "today" popularity window.
	Location *time.Location
}

// SearchConfig holds full-text search configuration.
type SearchConfig struct {
	Enabled bool
}

// LoadConfig loads configuration from the process arguments.
func LoadConfig() (*Config, error) {
	return Load(os.Args[1:])
}

// Load parses args and resolves every value with precedence:
// 1. Command-line flags.
// 2. Environment variables.
// 3. .env file.
// 4. Defaults.
func Load(args []string) (*Config, error) {
	fs := flag.NewFlagSet("arasuji", flag.ContinueOnError)

	env := fs.String("env", "", "Environment (development, staging, production)")
	logLevel := fs.String("log-level", "", "Log level (debug, info, warn, error)")
	dataPath := fs.String("data-path", "", "Base path for on-disk state")
	backend := fs.String("store", "", "Document store backend (badger, sqlite)")
	publicURL := fs.String("public-url", "", "Externally reachable base URL")

	serverPort := fs.String("port", "", "Server port (default: 8080)")
	readTimeout := fs.String("read-timeout", "", "HTTP read timeout (default: 15s)")
	writeTimeout := fs.String("write-timeout", "", "HTTP write timeout (default: 0, streams stay open)")
	idleTimeout := fs.String("idle-timeout", "", "HTTP idle timeout (default: 60s)")
	corsOrigins := fs.String("cors-origins", "", "Comma separated allowed CORS origins")

	accessTokenDuration := fs.String("access-token-duration", "", "Access token lifetime (e.g., 15m)")
	refreshTokenDuration := fs.String("refresh-token-duration", "", "Refresh token lifetime (e.g., 720h)")
	verificationTTL := fs.String("verification-ttl", "", "Email verification link lifetime (e.g., 24h)")

	timezone := fs.String("timezone", "", "IANA time zone for daily rankings (default: Asia/Tokyo)")
	searchEnabled := fs.String("search-enabled", "", "Enable the full-text post index (default: true)")

	envFile := fs.String("env-file", ".env", "Path to .env file")

	if err := fs.Parse(args); err != nil {
		return nil, fmt.Errorf("parse flags: %w", err)
	}

	// Missing .env is fine; existing environment variables win over the file.
	if err := godotenv.Load(*envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load env file %q: %w", *envFile, err)
	}

	cfg := &Config{
		App: AppConfig{
			Environment: getConfigValue(*env, "ENV", "development"),
			PublicURL:   strings.TrimRight(getConfigValue(*publicURL, "PUBLIC_URL", "http://localhost:8080"), "/"),
		},
		Logger: LoggerConfig{
			Level: getConfigValue(*logLevel, "LOG_LEVEL", "info"),
		},
		Store: StoreConfig{
			Backend:  strings.ToLower(getConfigValue(*backend, "STORE_BACKEND", BackendBadger)),
			DataPath: getConfigValue(*dataPath, "DATA_PATH", ""),
		},
		Server: ServerConfig{
			Port:        getConfigValue(*serverPort, "SERVER_PORT", "8080"),
			CORSOrigins: splitList(getConfigValue(*corsOrigins, "CORS_ORIGINS", "*")),
		},
		Search: SearchConfig{
			Enabled: getBoolConfigValue(*searchEnabled, "SEARCH_ENABLED", true),
		},
	}

	durations := []struct {
		dst      *time.Duration
		flag     string
		envKey   string
		fallback string
		label    string
	}{
		{&cfg.Auth.AccessTokenDuration, *accessTokenDuration, "ACCESS_TOKEN_DURATION", "15m", "access token duration"},
		{&cfg.Auth.RefreshTokenDuration, *refreshTokenDuration, "REFRESH_TOKEN_DURATION", "720h", "refresh token duration"},
		{&cfg.Auth.VerificationTTL, *verificationTTL, "VERIFICATION_TTL", "24h", "verification ttl"},
		{&cfg.Server.ReadTimeout, *readTimeout, "SERVER_READ_TIMEOUT", "15s", "read timeout"},
		{&cfg.Server.WriteTimeout, *writeTimeout, "SERVER_WRITE_TIMEOUT", "0s", "write timeout"},
		{&cfg.Server.IdleTimeout, *idleTimeout, "SERVER_IDLE_TIMEOUT", "60s", "idle timeout"},
	}
	for _, d := range durations {
		raw := getConfigValue(d.flag, d.envKey, d.fallback)
		parsed, err := time.ParseDuration(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid %s %q: %w", d.label, raw, err)
		}
		*d.dst = parsed
	}

	tz := getConfigValue(*timezone, "TIMEZONE", "Asia/Tokyo")
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return nil, fmt.Errorf("invalid timezone %q: %w", tz, err)
	}
	cfg.Feed.Location = loc

	if err := cfg.expandDataPath(); err != nil {
		return nil, fmt.Errorf("invalid data path: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// Validate checks that all required config values are present and valid.
func (c *Config) Validate() error {
	switch c.App.Environment {
	case "development", "staging", "production":
	case "":
		return errors.New("ENV is required")
	default:
		return fmt.Errorf("invalid environment: %s (must be development, staging, or production)", c.App.Environment)
	}

	switch strings.ToLower(c.Logger.Level) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid log level: %s (must be debug, info, warn, or error)", c.Logger.Level)
	}

	switch c.Store.Backend {
	case BackendBadger, BackendSQLite:
	default:
		return fmt.Errorf("invalid store backend: %s (must be badger or sqlite)", c.Store.Backend)
	}

	if c.Store.DataPath == "" {
		return errors.New("data path cannot be empty after expansion")
	}

	if c.Auth.AccessTokenDuration <= 0 || c.Auth.RefreshTokenDuration <= 0 {
		return errors.New("token durations must be positive")
	}
	if c.Auth.RefreshTokenDuration < c.Auth.AccessTokenDuration {
		return errors.New("refresh token duration must not be shorter than access token duration")
	}

	if c.Server.Port == "" {
		return errors.New("server port is required")
	}
	if _, err := strconv.Atoi(c.Server.Port); err != nil {
		return fmt.Errorf("invalid server port %q: %w", c.Server.Port, err)
	}

	return nil
}

// DatabasePath returns the on-disk location of the selected store backend.
func (c *Config) DatabasePath() string {
	if c.Store.Backend == BackendSQLite {
		return filepath.Join(c.Store.DataPath, "arasuji.db")
	}
	return filepath.Join(c.Store.DataPath, "db")
}

// expandPath expands ~ and makes the path absolute.
// If path is empty, defaultPath is returned as is.
func expandPath(path, defaultPath string) (string, error) {
	if path == "" {
		return defaultPath, nil
	}

	if strings.HasPrefix(path, "~/") {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to get home directory: %w", err)
		}
		path = filepath.Join(homeDir, path[2:])
	}

	if !filepath.IsAbs(path) {
		absPath, err := filepath.Abs(path)
		if err != nil {
			return "", fmt.Errorf("failed to get absolute path: %w", err)
		}
		path = absPath
	}

	return filepath.Clean(path), nil
}

func (c *Config) expandDataPath() error {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return fmt.Errorf("failed to get home directory: %w", err)
	}
	expanded, err := expandPath(c.Store.DataPath, filepath.Join(homeDir, "Arasuji", "data"))
	if err != nil {
		return err
	}
	c.Store.DataPath = expanded
	return nil
}

// getConfigValue returns the first non-empty value from flag, env var, or default.
func getConfigValue(flagValue, envKey, defaultValue string) string {
	if flagValue != "" {
		return flagValue
	}
	if envValue := os.Getenv(envKey); envValue != "" {
		return envValue
	}
	return defaultValue
}

// getBoolConfigValue accepts "true", "1", "yes" (case-insensitive) as true.
func getBoolConfigValue(flagValue, envKey string, defaultValue bool) bool {
	strValue := getConfigValue(flagValue, envKey, "")
	if strValue == "" {
		return defaultValue
	}
	switch strings.ToLower(strValue) {
	case "true", "1", "yes":
		return true
	default:
		return false
	}
}

func splitList(raw string) []string {
	var out []string
	for part := range strings.SplitSeq(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
