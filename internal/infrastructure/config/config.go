package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure for gatekeep.
// All configuration is loaded from YAML and can be overridden by environment variables.
type Config struct {
	App      AppConfig      `yaml:"app"`
	Database DatabaseConfig `yaml:"database"`
	API      APIConfig      `yaml:"api"`
	Logging  LoggingConfig  `yaml:"logging"`
	Security SecurityConfig `yaml:"security"`
}

// AppConfig contains application-level settings.
type AppConfig struct {
	// SeedDemoAccounts creates the demo accounts (admin, user, test,
	// disabled_user) on first boot when the users table is empty.
	SeedDemoAccounts bool `yaml:"seed_demo_accounts"`
}

// DatabaseConfig contains SQLite database settings.
type DatabaseConfig struct {
	Path        string `yaml:"path"`
	WALMode     bool   `yaml:"wal_mode"`
	BusyTimeout int    `yaml:"busy_timeout"`
}

// APIConfig contains HTTP API server settings.
type APIConfig struct {
	Host     string           `yaml:"host"`
	Port     int              `yaml:"port"`
	TLS      TLSConfig        `yaml:"tls"`
	Timeouts APITimeoutConfig `yaml:"timeouts"`
	CORS     CORSConfig       `yaml:"cors"`
}

// TLSConfig contains TLS certificate settings.
type TLSConfig struct {
	Enabled  bool   `yaml:"enabled"`
	CertFile string `yaml:"cert_file"`
	KeyFile  string `yaml:"key_file"`
}

// APITimeoutConfig contains HTTP timeout settings in seconds.
type APITimeoutConfig struct {
	Read  int `yaml:"read"`
	Write int `yaml:"write"`
	Idle  int `yaml:"idle"`
}

// CORSConfig contains Cross-Origin Resource Sharing settings.
type CORSConfig struct {
	AllowedOrigins []string `yaml:"allowed_origins"`
	AllowedMethods []string `yaml:"allowed_methods"`
	AllowedHeaders []string `yaml:"allowed_headers"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// SecurityConfig contains security settings.
type SecurityConfig struct {
	Session   SessionConfig   `yaml:"session"`
	Password  PasswordConfig  `yaml:"password"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
}

// SessionConfig contains server-side session settings.
type SessionConfig struct {
	// TTLMinutes is the idle timeout for sessions. A session whose last
	// access is older than this is treated as gone.
	TTLMinutes int `yaml:"ttl_minutes"`

	// CookieName is the name of the session cookie.
	CookieName string `yaml:"cookie_name"`

	// TokenSecret signs bearer session tokens. Required, minimum 32 characters.
	TokenSecret string `yaml:"token_secret"`

	// TokenTTLMinutes bounds the lifetime of bearer session tokens.
	TokenTTLMinutes int `yaml:"token_ttl_minutes"`
}

// PasswordConfig contains password hashing settings.
type PasswordConfig struct {
	// Iterations is the PBKDF2 iteration count. Minimum 1000.
	Iterations int `yaml:"iterations"`
}

// RateLimitConfig contains login attempt limiting settings.
type RateLimitConfig struct {
	Enabled       bool `yaml:"enabled"`
	MaxAttempts   int  `yaml:"max_attempts"`
	WindowMinutes int  `yaml:"window_minutes"`
}

// Load reads configuration from a YAML file and applies environment variable overrides.
//
// The configuration loading order is:
//  1. Default values (hardcoded)
//  2. YAML file values (override defaults)
//  3. Environment variables (override file values)
//
// Environment variables follow the pattern: GATEKEEP_SECTION_KEY
// For example: GATEKEEP_DATABASE_PATH, GATEKEEP_API_PORT
func Load(path string) (*Config, error) {
	cfg := defaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// defaultConfig returns a Config with sensible defaults.
func defaultConfig() *Config {
	return &Config{
		App: AppConfig{
			SeedDemoAccounts: true,
		},
		Database: DatabaseConfig{
			Path:        "./data/gatekeep.db",
			WALMode:     true,
			BusyTimeout: 5,
		},
		API: APIConfig{
			Host: "0.0.0.0",
			Port: 8080,
			Timeouts: APITimeoutConfig{
				Read:  30,
				Write: 30,
				Idle:  60,
			},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
		Security: SecurityConfig{
			Session: SessionConfig{
				TTLMinutes:      30,
				CookieName:      "gatekeep_session",
				TokenTTLMinutes: 30,
			},
			Password: PasswordConfig{
				Iterations: 10000,
			},
			RateLimit: RateLimitConfig{
				Enabled:       true,
				MaxAttempts:   5,
				WindowMinutes: 15,
			},
		},
	}
}

// applyEnvOverrides applies environment variable overrides to the configuration.
// Environment variables follow the pattern: GATEKEEP_SECTION_KEY
func applyEnvOverrides(cfg *Config) {
	// Database
	if v := os.Getenv("GATEKEEP_DATABASE_PATH"); v != "" {
		cfg.Database.Path = v
	}

	// API
	if v := os.Getenv("GATEKEEP_API_HOST"); v != "" {
		cfg.API.Host = v
	}
	if v := os.Getenv("GATEKEEP_API_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.API.Port = port
		}
	}

	// Logging
	if v := os.Getenv("GATEKEEP_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}

	// Security - session token secret (IMPORTANT: always override in production)
	if v := os.Getenv("GATEKEEP_SESSION_SECRET"); v != "" {
		cfg.Security.Session.TokenSecret = v
	}
}

// minSessionSecretLength is the minimum length for the session token secret.
// Shorter secrets make forged bearer tokens feasible.
const minSessionSecretLength = 32

// minPasswordIterations is the floor for the PBKDF2 iteration count.
const minPasswordIterations = 1000

// Validate checks the configuration for errors and security issues.
func (c *Config) Validate() error {
	var errs []string

	if c.Database.Path == "" {
		errs = append(errs, "database.path is required")
	}

	if c.API.Port < 1 || c.API.Port > 65535 {
		errs = append(errs, "api.port must be between 1 and 65535")
	}

	if c.Security.Session.TokenSecret == "" {
		errs = append(errs, "security.session.token_secret is required (set GATEKEEP_SESSION_SECRET environment variable)")
	} else if len(c.Security.Session.TokenSecret) < minSessionSecretLength {
		errs = append(errs, "security.session.token_secret must be at least 32 characters")
	}

	if c.Security.Session.TTLMinutes <= 0 {
		errs = append(errs, "security.session.ttl_minutes must be positive")
	}

	if c.Security.Session.CookieName == "" {
		errs = append(errs, "security.session.cookie_name is required")
	}

	if c.Security.Password.Iterations < minPasswordIterations {
		errs = append(errs, "security.password.iterations must be at least 1000")
	}

	if c.Security.RateLimit.Enabled {
		if c.Security.RateLimit.MaxAttempts <= 0 {
			errs = append(errs, "security.rate_limit.max_attempts must be positive when rate limiting is enabled")
		}
		if c.Security.RateLimit.WindowMinutes <= 0 {
			errs = append(errs, "security.rate_limit.window_minutes must be positive when rate limiting is enabled")
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}

	return nil
}

// GetReadTimeout returns the API read timeout as a Duration.
func (c *Config) GetReadTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Read) * time.Second
}

// GetWriteTimeout returns the API write timeout as a Duration.
func (c *Config) GetWriteTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Write) * time.Second
}

// GetIdleTimeout returns the API idle timeout as a Duration.
func (c *Config) GetIdleTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Idle) * time.Second
}

// SessionTTL returns the session idle timeout as a Duration.
func (c *Config) SessionTTL() time.Duration {
	return time.Duration(c.Security.Session.TTLMinutes) * time.Minute
}

// RateLimitWindow returns the login attempt window as a Duration.
func (c *Config) RateLimitWindow() time.Duration {
	return time.Duration(c.Security.RateLimit.WindowMinutes) * time.Minute
}
