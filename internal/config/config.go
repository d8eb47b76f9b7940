// Package config loads the repairdesk settings from defaults, an optional
// YAML file and the environment, in that order of precedence.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds everything the daemon and the CLI need.
type Config struct {
	HTTPAddr string `yaml:"http_addr"`
	TLS      bool   `yaml:"tls"`

	// DatabaseURL selects SQL storage; empty means the embedded store in DataDir.
	DatabaseURL string `yaml:"database_url"`
	DataDir     string `yaml:"data_dir"`

	RedisURL string `yaml:"redis_url"`

	SessionSecret     string `yaml:"session_secret"`
	SessionIssuer     string `yaml:"session_issuer"`
	SessionTTLMinutes int    `yaml:"session_ttl_minutes"`
	CookieName        string `yaml:"cookie_name"`
	CookieSecure      bool   `yaml:"cookie_secure"`
	CookieSameSite    string `yaml:"cookie_same_site"`
	// CookieKey is a hex AES key; when set, session cookies are sealed.
	CookieKey string `yaml:"cookie_key"`

	CORSOrigins []string `yaml:"cors_origins"`

	LoginLimit         int `yaml:"login_limit"`
	LoginWindowMinutes int `yaml:"login_window_minutes"`

	LogLevel       string `yaml:"log_level"`
	LogFormat      string `yaml:"log_format"`
	MetricsEnabled bool   `yaml:"metrics_enabled"`
}

// SessionTTL returns the session lifetime.
func (c *Config) SessionTTL() time.Duration {
	return time.Duration(c.SessionTTLMinutes) * time.Minute
}

// LoginWindow returns the login rate-limit window.
func (c *Config) LoginWindow() time.Duration {
	return time.Duration(c.LoginWindowMinutes) * time.Minute
}

// Defaults returns the development defaults.
func Defaults() *Config {
	return &Config{
		HTTPAddr:           ":7002",
		DataDir:            "./data",
		SessionSecret:      "change-me",
		SessionIssuer:      "repairdesk",
		SessionTTLMinutes:  12 * 60,
		CookieName:         "repairdesk_session",
		CookieSameSite:     "lax",
		CORSOrigins:        []string{"*"},
		LoginLimit:         20,
		LoginWindowMinutes: 5,
		LogLevel:           "info",
		LogFormat:          "json",
		MetricsEnabled:     true,
	}
}

// Load reads .env (if present), then the YAML file named by
// REPAIRDESK_CONFIG (if set), then the REPAIRDESK_* environment.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	cfg := Defaults()
	if path := os.Getenv("REPAIRDESK_CONFIG"); path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
	}
	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	content, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file %s: %w", path, err)
	}
	if err := yaml.Unmarshal(content, c); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnv() {
	c.HTTPAddr = getenv("REPAIRDESK_HTTP_ADDR", c.HTTPAddr)
	c.TLS = getenvBool("REPAIRDESK_TLS", c.TLS)
	c.DatabaseURL = getenv("DATABASE_URL", c.DatabaseURL)
	c.DataDir = getenv("REPAIRDESK_DATA_DIR", c.DataDir)
	c.RedisURL = getenv("REDIS_URL", c.RedisURL)
	c.SessionSecret = getenv("REPAIRDESK_SESSION_SECRET", c.SessionSecret)
	c.SessionIssuer = getenv("REPAIRDESK_SESSION_ISSUER", c.SessionIssuer)
	c.SessionTTLMinutes = getenvInt("REPAIRDESK_SESSION_TTL_MINUTES", c.SessionTTLMinutes)
	c.CookieName = getenv("REPAIRDESK_COOKIE_NAME", c.CookieName)
	c.CookieSecure = getenvBool("REPAIRDESK_COOKIE_SECURE", c.CookieSecure)
	c.CookieSameSite = getenv("REPAIRDESK_COOKIE_SAMESITE", c.CookieSameSite)
	c.CookieKey = getenv("REPAIRDESK_COOKIE_KEY", c.CookieKey)
	if v := os.Getenv("REPAIRDESK_CORS_ORIGINS"); v != "" {
		c.CORSOrigins = splitList(v)
	}
	c.LoginLimit = getenvInt("REPAIRDESK_LOGIN_LIMIT", c.LoginLimit)
	c.LoginWindowMinutes = getenvInt("REPAIRDESK_LOGIN_WINDOW_MINUTES", c.LoginWindowMinutes)
	c.LogLevel = getenv("LOG_LEVEL", c.LogLevel)
	c.LogFormat = getenv("LOG_FORMAT", c.LogFormat)
	c.MetricsEnabled = getenvBool("REPAIRDESK_METRICS", c.MetricsEnabled)
}

// Validate rejects settings the services cannot start with.
func (c *Config) Validate() error {
	if c.SessionSecret == "" {
		return errors.New("session secret must not be empty")
	}
	if c.SessionTTLMinutes <= 0 {
		return fmt.Errorf("session ttl must be positive, got %d minutes", c.SessionTTLMinutes)
	}
	if c.LoginLimit <= 0 || c.LoginWindowMinutes <= 0 {
		return errors.New("login rate limit and window must be positive")
	}
	switch strings.ToLower(c.CookieSameSite) {
	case "lax", "strict", "none":
	default:
		return fmt.Errorf("invalid cookie same-site %q", c.CookieSameSite)
	}
	return nil
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func getenvBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return def
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
