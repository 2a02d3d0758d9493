// Package config loads service settings from defaults, an optional YAML file and the environment.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"golang.org/x/crypto/bcrypt"
	"gopkg.in/yaml.v3"

	"calendarrecords/internal/adapters/http/middleware"
)

// Environment names.
const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
	EnvTest        = "test"
)

// DefaultConfigPath is read when CALENDAR_CONFIG is unset. A missing file is not an error.
const DefaultConfigPath = "calendar.yaml"

// APIKey is one bearer credential. TokenHash is the bcrypt hash of the token, never the token itself.
type APIKey struct {
	Name      string `yaml:"name"`
	Role      string `yaml:"role"`
	TokenHash string `yaml:"token_hash"`
}

// Config is the service configuration.
type Config struct {
	Addr               string   `yaml:"addr"`
	Env                string   `yaml:"env"`
	DBPath             string   `yaml:"db_path"`
	LogLevel           string   `yaml:"log_level"`
	RateLimitPerSecond int      `yaml:"rate_limit_per_second"`
	SlowRequestMs      int      `yaml:"slow_request_ms"`
	SlowQueryMs        int      `yaml:"slow_query_ms"`
	APIKeys            []APIKey `yaml:"api_keys"`
}

// Default returns the development defaults.
func Default() Config {
	return Config{
		Addr:               ":8080",
		Env:                EnvDevelopment,
		DBPath:             "calendar.db",
		LogLevel:           "info",
		RateLimitPerSecond: 10,
		SlowRequestMs:      200,
		SlowQueryMs:        50,
	}
}

// Load reads .env (if present) into the process environment, then resolves the configuration.
// PRE: none
// POST: returns a validated config or the first loading error / all validation errors
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}
	path := os.Getenv("CALENDAR_CONFIG")
	if path == "" {
		path = DefaultConfigPath
	}
	cfg, err := LoadFrom(path, os.LookupEnv)
	if err != nil {
		return Config{}, err
	}
	return cfg, cfg.Validate()
}

// LoadFrom applies defaults, then the YAML file at path, then environment overrides from lookup.
// PRE: lookup behaves like os.LookupEnv
// POST: a missing file is skipped; a malformed file or env value is an error. The result is not validated.
func LoadFrom(path string, lookup func(string) (string, bool)) (Config, error) {
	cfg := Default()

	raw, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
	case err != nil:
		return Config{}, fmt.Errorf("read config %s: %w", path, err)
	default:
		if err := yaml.Unmarshal(raw, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	if err := cfg.applyEnv(lookup); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}
	num := func(key string, dst *int) error {
		v, ok := lookup(key)
		if !ok || v == "" {
			return nil
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%s: %q is not an integer", key, v)
		}
		*dst = n
		return nil
	}

	str("CALENDAR_ADDR", &c.Addr)
	str("CALENDAR_ENV", &c.Env)
	str("CALENDAR_DB_PATH", &c.DBPath)
	str("CALENDAR_LOG_LEVEL", &c.LogLevel)
	for key, dst := range map[string]*int{
		"CALENDAR_RATE_LIMIT_PER_SECOND": &c.RateLimitPerSecond,
		"CALENDAR_SLOW_REQUEST_MS":       &c.SlowRequestMs,
		"CALENDAR_SLOW_QUERY_MS":         &c.SlowQueryMs,
	} {
		if err := num(key, dst); err != nil {
			return err
		}
	}
	if v, ok := lookup("CALENDAR_API_KEYS"); ok && v != "" {
		keys, err := parseAPIKeys(v)
		if err != nil {
			return fmt.Errorf("CALENDAR_API_KEYS: %w", err)
		}
		c.APIKeys = keys
	}
	return nil
}

// parseAPIKeys reads "name:role:hash" entries separated by commas.
// bcrypt hashes never contain ':' or ','.
func parseAPIKeys(s string) ([]APIKey, error) {
	var keys []APIKey
	for _, entry := range splitList(s) {
		parts := strings.SplitN(entry, ":", 3)
		if len(parts) != 3 {
			return nil, fmt.Errorf("entry %q must be name:role:hash", entry)
		}
		keys = append(keys, APIKey{Name: parts[0], Role: parts[1], TokenHash: parts[2]})
	}
	return keys, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// Validate reports every inconsistency in c.
func (c Config) Validate() error {
	var errs []error
	if c.Addr == "" {
		errs = append(errs, errors.New("addr is required"))
	}
	switch c.Env {
	case EnvDevelopment, EnvProduction, EnvTest:
	default:
		errs = append(errs, fmt.Errorf("env %q must be development, production or test", c.Env))
	}
	if c.DBPath == "" {
		errs = append(errs, errors.New("db_path is required"))
	}
	if _, err := parseLevel(c.LogLevel); err != nil {
		errs = append(errs, err)
	}
	if c.RateLimitPerSecond <= 0 {
		errs = append(errs, errors.New("rate_limit_per_second must be positive"))
	}
	if c.SlowRequestMs <= 0 || c.SlowQueryMs <= 0 {
		errs = append(errs, errors.New("slow_request_ms and slow_query_ms must be positive"))
	}
	if len(c.APIKeys) == 0 && c.IsProduction() {
		errs = append(errs, errors.New("at least one api key is required in production"))
	}
	seen := make(map[string]bool)
	for i, k := range c.APIKeys {
		if k.Name == "" {
			errs = append(errs, fmt.Errorf("api_keys[%d]: name is required", i))
		} else if seen[k.Name] {
			errs = append(errs, fmt.Errorf("api_keys[%d]: duplicate name %q", i, k.Name))
		}
		seen[k.Name] = true
		if !middleware.ValidRole(k.Role) {
			errs = append(errs, fmt.Errorf("api_keys[%d]: unknown role %q", i, k.Role))
		}
		if _, err := bcrypt.Cost([]byte(k.TokenHash)); err != nil {
			errs = append(errs, fmt.Errorf("api_keys[%d]: token_hash is not a bcrypt hash", i))
		}
	}
	return errors.Join(errs...)
}

// IsProduction reports whether the service runs in production.
func (c Config) IsProduction() bool {
	return c.Env == EnvProduction
}

// SlogLevel returns the configured log level.
// PRE: c has been validated
func (c Config) SlogLevel() slog.Level {
	level, _ := parseLevel(c.LogLevel)
	return level
}

func parseLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return slog.LevelInfo, fmt.Errorf("log_level %q must be debug, info, warn or error", s)
	}
	return level, nil
}

// SlowRequest returns the slow-request logging threshold.
func (c Config) SlowRequest() time.Duration {
	return time.Duration(c.SlowRequestMs) * time.Millisecond
}

// SlowQuery returns the slow-query logging threshold.
func (c Config) SlowQuery() time.Duration {
	return time.Duration(c.SlowQueryMs) * time.Millisecond
}

// MiddlewareKeys converts the configured keys for the authorizer.
func (c Config) MiddlewareKeys() []middleware.APIKey {
	out := make([]middleware.APIKey, len(c.APIKeys))
	for i, k := range c.APIKeys {
		out[i] = middleware.APIKey{Name: k.Name, Role: k.Role, TokenHash: k.TokenHash}
	}
	return out
}
