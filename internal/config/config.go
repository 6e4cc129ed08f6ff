package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// DefaultEnvFile is read on startup when present. Values already set in the
// process environment take precedence over the file.
const DefaultEnvFile = ".env"

// Config holds the runtime settings for the server process.
type Config struct {
	Port              string        `env:"PORT"                envDefault:"8080"`
	LogLevel          string        `env:"LOG_LEVEL"           envDefault:"info"`
	ProjectID         string        `env:"GOOGLE_CLOUD_PROJECT"`
	ReadTimeout       time.Duration `env:"READ_TIMEOUT"        envDefault:"5s"`
	ReadHeaderTimeout time.Duration `env:"READ_HEADER_TIMEOUT" envDefault:"2s"`
	WriteTimeout      time.Duration `env:"WRITE_TIMEOUT"       envDefault:"10s"`
	IdleTimeout       time.Duration `env:"IDLE_TIMEOUT"        envDefault:"60s"`
	ShutdownTimeout   time.Duration `env:"SHUTDOWN_TIMEOUT"    envDefault:"10s"`
	MaxHeaderBytes    int           `env:"MAX_HEADER_BYTES"    envDefault:"65536"`
	MaxBodyBytes      int64         `env:"MAX_BODY_BYTES"      envDefault:"1048576"`

	CORS CORS `envPrefix:"CORS_"`
}

// CORS describes the cross-origin policy. An empty AllowedOrigins list means
// no origin is granted access; there is no implicit wildcard.
type CORS struct {
	AllowedOrigins []string      `env:"ALLOWED_ORIGINS" envSeparator:","`
	AllowedMethods []string      `env:"ALLOWED_METHODS" envSeparator:"," envDefault:"GET,OPTIONS"`
	AllowedHeaders []string      `env:"ALLOWED_HEADERS" envSeparator:"," envDefault:"Accept,Content-Type"`
	MaxAge         time.Duration `env:"MAX_AGE"         envDefault:"5m"`
}

// Configured reports whether at least one origin has been allowed.
func (c CORS) Configured() bool {
	return len(c.AllowedOrigins) > 0
}

// Addr returns the listen address for http.Server.
func (c Config) Addr() string {
	return ":" + c.Port
}

// Load reads the optional env files (DefaultEnvFile when none are given) and
// parses the process environment into a validated Config.
func Load(envFiles ...string) (Config, error) {
	if len(envFiles) == 0 {
		envFiles = []string{DefaultEnvFile}
	}
	for _, f := range envFiles {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return Config{}, fmt.Errorf("load env file %s: %w", f, err)
		}
	}

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}

	cfg.ProjectID = firstNonEmpty(
		cfg.ProjectID,
		os.Getenv("GCP_PROJECT"),
		os.Getenv("GCLOUD_PROJECT"),
		os.Getenv("PROJECT_ID"),
	)
	cfg.CORS.AllowedOrigins = compact(cfg.CORS.AllowedOrigins)
	cfg.CORS.AllowedMethods = compact(cfg.CORS.AllowedMethods)
	cfg.CORS.AllowedHeaders = compact(cfg.CORS.AllowedHeaders)

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	port, err := strconv.Atoi(c.Port)
	if err != nil || port < 1 || port > 65535 {
		return fmt.Errorf("invalid PORT %q: must be 1-65535", c.Port)
	}
	durations := map[string]time.Duration{
		"READ_TIMEOUT":        c.ReadTimeout,
		"READ_HEADER_TIMEOUT": c.ReadHeaderTimeout,
		"WRITE_TIMEOUT":       c.WriteTimeout,
		"IDLE_TIMEOUT":        c.IdleTimeout,
		"SHUTDOWN_TIMEOUT":    c.ShutdownTimeout,
	}
	for name, d := range durations {
		if d <= 0 {
			return fmt.Errorf("invalid %s %s: must be positive", name, d)
		}
	}
	if c.MaxHeaderBytes <= 0 {
		return fmt.Errorf("invalid MAX_HEADER_BYTES %d: must be positive", c.MaxHeaderBytes)
	}
	if c.MaxBodyBytes <= 0 {
		return fmt.Errorf("invalid MAX_BODY_BYTES %d: must be positive", c.MaxBodyBytes)
	}
	if c.CORS.MaxAge < 0 {
		return fmt.Errorf("invalid CORS_MAX_AGE %s: must not be negative", c.CORS.MaxAge)
	}
	return nil
}

// compact trims whitespace around list entries and drops empty ones.
func compact(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
