// Package config loads and validates the enforcement agent's YAML
// configuration.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Duration is a time.Duration that unmarshals from YAML strings such
// as "10m" or "250ms".
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var raw string
	if err := value.Decode(&raw); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", raw, err)
	}
	*d = Duration(parsed)
	return nil
}

// Std returns the standard library duration.
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// Config is the agent's top-level configuration.
type Config struct {
	// Service is this consuming service's name, used for scope matching.
	Service string `yaml:"service"`

	Store       StoreConfig       `yaml:"store"`
	Enforcement EnforcementConfig `yaml:"enforcement"`
	Bundle      BundleConfig      `yaml:"bundle"`
	Audit       AuditConfig       `yaml:"audit"`
	Metrics     MetricsConfig     `yaml:"metrics"`
	Logging     LoggingConfig     `yaml:"logging"`
}

// StoreConfig configures the policy cache.
type StoreConfig struct {
	// TTL is the policy freshness bound. Default: 10m.
	TTL Duration `yaml:"ttl"`

	// SweepSchedule is an optional cron expression for the background
	// eviction sweep. Empty relies on lazy eviction alone.
	SweepSchedule string `yaml:"sweepSchedule"`
}

// EnforcementConfig configures the evaluation engine.
type EnforcementConfig struct {
	// StrictConstraints makes unknown constraint types fail instead of
	// pass.
	StrictConstraints bool `yaml:"strictConstraints"`
}

// BundleConfig configures the optional local policy bundle directory.
type BundleConfig struct {
	// Dir is the bundle directory. Empty disables bundle loading.
	Dir string `yaml:"dir"`

	// Watch re-applies the bundle on file changes.
	Watch bool `yaml:"watch"`
}

// AuditConfig configures violation reporting.
type AuditConfig struct {
	// SpoolPath is the SQLite spool file. Empty falls back to the log
	// reporter.
	SpoolPath string `yaml:"spoolPath"`

	// Buffer is the async reporter buffer size. Default: 1000.
	Buffer int `yaml:"buffer"`
}

// MetricsConfig configures the Prometheus endpoint.
type MetricsConfig struct {
	// Enabled toggles metric recording and the /metrics endpoint.
	Enabled bool `yaml:"enabled"`

	// ListenAddr is the metrics listen address. Default: ":9464".
	ListenAddr string `yaml:"listenAddr"`

	// Namespace and Subsystem prefix metric names.
	Namespace string `yaml:"namespace"`
	Subsystem string `yaml:"subsystem"`
}

// LoggingConfig configures structured logging.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Default returns the default agent configuration.
func Default() *Config {
	return &Config{
		Store: StoreConfig{
			TTL: Duration(10 * time.Minute),
		},
		Audit: AuditConfig{
			Buffer: 1000,
		},
		Metrics: MetricsConfig{
			Enabled:    true,
			ListenAddr: ":9464",
			Namespace:  "aegis",
			Subsystem:  "enforcement",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// Load reads, parses, and validates a YAML configuration file,
// applying defaults for unset fields.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: failed to read %q: %w", path, err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: failed to parse %q: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the configuration for errors and fills derived
// defaults.
func (c *Config) Validate() error {
	if c.Service == "" {
		return fmt.Errorf("config: service name is required")
	}
	if c.Store.TTL.Std() <= 0 {
		return fmt.Errorf("config: store ttl must be positive")
	}
	if c.Audit.Buffer <= 0 {
		c.Audit.Buffer = 1000
	}
	if c.Metrics.Enabled && c.Metrics.ListenAddr == "" {
		c.Metrics.ListenAddr = ":9464"
	}
	return nil
}
