package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"netwatch/internal/models"
)

const (
	DefaultIntervalSeconds     = 2
	DefaultTimeoutSeconds      = 3
	DefaultFailureThreshold    = 3
	DefaultMaxConcurrentProbes = 10
	DefaultLogDirectory        = "network_logs"
	DefaultServerAddr          = ":8080"
)

// Config represents configuration data for a monitoring session.
type Config struct {
	IntervalSeconds     int             `yaml:"interval_seconds"`
	TimeoutSeconds      int             `yaml:"timeout_seconds"`
	FailureThreshold    int             `yaml:"failure_threshold"`
	RecoveryThreshold   int             `yaml:"recovery_threshold"`
	MaxConcurrentProbes int             `yaml:"max_concurrent_probes"`
	ICMPPrivileged      bool            `yaml:"icmp_privileged"`
	LogDirectory        string          `yaml:"log_directory"`
	StrictSinks         bool            `yaml:"strict_sinks"`
	Targets             []models.Target `yaml:"targets"`
	Server              Server          `yaml:"server"`
	Postgres            Postgres        `yaml:"postgres"`
}

// Server configures the optional status API.
type Server struct {
	Enabled bool   `yaml:"enabled"`
	Addr    string `yaml:"addr"`
	// TokenHash is a bcrypt hash of the bearer token required by the API.
	// Empty disables authentication.
	TokenHash string `yaml:"token_hash"`
}

// Postgres configures the optional Postgres sink.
type Postgres struct {
	Enabled bool   `yaml:"enabled"`
	DSN     string `yaml:"dsn"`
}

// DefaultConfig returns sensible defaults in case no configuration file is provided.
func DefaultConfig() Config {
	return Config{
		IntervalSeconds:     DefaultIntervalSeconds,
		TimeoutSeconds:      DefaultTimeoutSeconds,
		FailureThreshold:    DefaultFailureThreshold,
		MaxConcurrentProbes: DefaultMaxConcurrentProbes,
		LogDirectory:        DefaultLogDirectory,
		Server:              Server{Addr: DefaultServerAddr},
		Targets: []models.Target{
			{ID: "google-dns", Name: "Google DNS", Kind: models.ProbeICMP, Address: "8.8.8.8"},
			{ID: "cloudflare-dns", Name: "Cloudflare DNS", Kind: models.ProbeICMP, Address: "1.1.1.1"},
			{ID: "opendns", Name: "OpenDNS", Kind: models.ProbeICMP, Address: "208.67.222.222"},
			{ID: "resolve-google", Name: "google.com", Kind: models.ProbeDNS, Address: "google.com", Fallback: true},
			{ID: "resolve-cloudflare", Name: "cloudflare.com", Kind: models.ProbeDNS, Address: "cloudflare.com", Fallback: true},
		},
	}
}

// Load reads configuration from yaml file. Missing files fall back to defaults.
func Load(path string) (Config, error) {
	if path == "" {
		return DefaultConfig(), nil
	}

	content, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return DefaultConfig(), nil
	}
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	return Parse(content)
}

// Parse decodes yaml content on top of the defaults and validates the result.
// A targets list in the file replaces the default targets; without one the
// defaults are kept.
func Parse(content []byte) (Config, error) {
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(content, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}
	if cfg.MaxConcurrentProbes <= 0 {
		cfg.MaxConcurrentProbes = DefaultMaxConcurrentProbes
	}
	if cfg.LogDirectory == "" {
		cfg.LogDirectory = DefaultLogDirectory
	}
	if cfg.Server.Addr == "" {
		cfg.Server.Addr = DefaultServerAddr
	}
	for i := range cfg.Targets {
		t := &cfg.Targets[i]
		t.Kind = models.ProbeKind(strings.ToLower(strings.TrimSpace(string(t.Kind))))
		if t.Kind == "" {
			t.Kind = models.ProbeICMP
		}
		if t.ID == "" {
			t.ID = t.Address
		}
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate rejects configurations a session cannot start with.
func (c Config) Validate() error {
	if c.IntervalSeconds <= 0 {
		return errors.New("interval_seconds must be greater than 0")
	}
	if c.TimeoutSeconds <= 0 {
		return errors.New("timeout_seconds must be greater than 0")
	}
	if c.FailureThreshold < 1 {
		return errors.New("failure_threshold must be at least 1")
	}
	if c.RecoveryThreshold < 0 {
		return errors.New("recovery_threshold cannot be negative")
	}
	if len(c.Targets) == 0 {
		return errors.New("configuration must define at least one target")
	}

	seen := make(map[string]struct{}, len(c.Targets))
	primaries := 0
	for i, t := range c.Targets {
		if strings.TrimSpace(t.Address) == "" {
			return fmt.Errorf("target %d is missing address", i)
		}
		switch t.Kind {
		case models.ProbeICMP, models.ProbeTCP, models.ProbeDNS, models.ProbeHTTP:
		default:
			return fmt.Errorf("target %s has unknown kind %q", t.ID, t.Kind)
		}
		if _, dup := seen[t.ID]; dup {
			return fmt.Errorf("duplicate target id %s", t.ID)
		}
		seen[t.ID] = struct{}{}
		if t.TimeoutSeconds < 0 {
			return fmt.Errorf("target %s timeout_seconds cannot be negative", t.ID)
		}
		if !t.Fallback {
			primaries++
		}
	}
	if primaries == 0 {
		return errors.New("configuration must define at least one non-fallback target")
	}
	if c.Postgres.Enabled && c.Postgres.DSN == "" {
		return errors.New("postgres.dsn is required when postgres is enabled")
	}
	return nil
}

// Interval returns the tick interval.
func (c Config) Interval() time.Duration {
	return time.Duration(c.IntervalSeconds) * time.Second
}

// Timeout returns the default per-probe timeout.
func (c Config) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// Recovery returns the recovery threshold, which mirrors the failure
// threshold unless configured separately.
func (c Config) Recovery() int {
	if c.RecoveryThreshold > 0 {
		return c.RecoveryThreshold
	}
	return c.FailureThreshold
}
