// Package config loads server settings from CROWDSONG_* environment
// variables and lets command-line flags override them.
package config

import (
	"flag"
	"fmt"
	"io"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config holds every runtime setting of the server
type Config struct {
	Port          int           `env:"PORT" envDefault:"8081"`
	DBPath        string        `env:"DB_PATH" envDefault:"crowdsong.db"`
	LogLevel      string        `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat     string        `env:"LOG_FORMAT" envDefault:"text"`
	HTTPLogging   bool          `env:"HTTP_LOGGING" envDefault:"false"`
	BaseURL       string        `env:"BASE_URL"`
	ReputationURL string        `env:"REPUTATION_URL"`
	SweepInterval time.Duration `env:"SWEEP_INTERVAL" envDefault:"30s"`
	RateLimit     float64       `env:"RATE_LIMIT" envDefault:"5"`
	RateBurst     int           `env:"RATE_BURST" envDefault:"10"`
	RateIdleTTL   time.Duration `env:"RATE_IDLE_TTL" envDefault:"10m"`
	ShowVersion   bool
}

// Load reads the environment, then applies flags from args (without the program name)
func Load(args []string, usage io.Writer) (Config, error) {
	var cfg Config
	if err := env.ParseWithOptions(&cfg, env.Options{Prefix: "CROWDSONG_"}); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}

	fs := flag.NewFlagSet("crowdsong", flag.ContinueOnError)
	if usage != nil {
		fs.SetOutput(usage)
	}
	fs.IntVar(&cfg.Port, "port", cfg.Port, "HTTP server port")
	fs.StringVar(&cfg.DBPath, "db", cfg.DBPath, "SQLite database path")
	fs.StringVar(&cfg.LogLevel, "loglevel", cfg.LogLevel, "Log level (debug, info, warn, error)")
	fs.StringVar(&cfg.LogFormat, "logformat", cfg.LogFormat, "Log format (text, json)")
	fs.BoolVar(&cfg.HTTPLogging, "httplog", cfg.HTTPLogging, "Log every HTTP request")
	fs.StringVar(&cfg.BaseURL, "baseurl", cfg.BaseURL, "Public base URL used in join links (detected if empty)")
	fs.StringVar(&cfg.ReputationURL, "reputation", cfg.ReputationURL, "Reputation service base URL (weights default to 1 if empty)")
	fs.DurationVar(&cfg.SweepInterval, "sweep", cfg.SweepInterval, "Deadline sweep interval")
	fs.Float64Var(&cfg.RateLimit, "ratelimit", cfg.RateLimit, "Sustained actions per second per user and action")
	fs.IntVar(&cfg.RateBurst, "rateburst", cfg.RateBurst, "Burst size per user and action")
	fs.BoolVar(&cfg.ShowVersion, "version", false, "Show version and exit")
	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate rejects settings the server cannot run with
func (c Config) Validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("invalid port %d", c.Port)
	}
	if c.DBPath == "" {
		return fmt.Errorf("database path is required")
	}
	switch c.LogFormat {
	case "text", "json":
	default:
		return fmt.Errorf("invalid log format %q (want text or json)", c.LogFormat)
	}
	if c.SweepInterval <= 0 {
		return fmt.Errorf("sweep interval must be positive, got %s", c.SweepInterval)
	}
	if c.RateLimit < 0 || c.RateBurst < 0 {
		return fmt.Errorf("rate limit settings must not be negative")
	}
	return nil
}

// Addr returns the listen address
func (c Config) Addr() string {
	return fmt.Sprintf(":%d", c.Port)
}
