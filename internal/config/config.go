// Package config loads linkctl settings from a YAML file, the environment
// and command-line overrides, in that order of increasing precedence.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/roach88/linkctl/internal/archive"
	"github.com/roach88/linkctl/internal/submitter"
)

// Environment variables carrying secrets. They override the file.
const (
	EnvGatewayToken  = "LINKCTL_GATEWAY_TOKEN"
	EnvArchiveSecret = "LINKCTL_ARCHIVE_SECRET_KEY"
	EnvRedisPassword = "LINKCTL_REDIS_PASSWORD"
	EnvConfigPath    = "LINKCTL_CONFIG"
)

// DefaultServiceName is the OpenTelemetry service name.
const DefaultServiceName = "linkctl"

// Store backends.
const (
	BackendSQLite = "sqlite"
	BackendFile   = "file"
	BackendRedis  = "redis"
)

// Duration is a time.Duration written as a string ("500ms", "2m") in YAML.
type Duration time.Duration

// UnmarshalYAML parses a Go duration string.
func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	var s string
	if err := node.Decode(&s); err != nil {
		return fmt.Errorf("line %d: duration must be a string like \"2s\"", node.Line)
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("line %d: %w", node.Line, err)
	}
	*d = Duration(parsed)
	return nil
}

// MarshalYAML writes the duration as a string.
func (d Duration) MarshalYAML() (any, error) {
	return time.Duration(d).String(), nil
}

// Config is the complete linkctl configuration.
type Config struct {
	Store       StoreConfig     `yaml:"store"`
	Gateway     GatewayConfig   `yaml:"gateway"`
	Submit      SubmitConfig    `yaml:"submit"`
	Verify      VerifyConfig    `yaml:"verify"`
	MaxInFlight int             `yaml:"max_in_flight"`
	Addresses   string          `yaml:"addresses"`
	Archive     archive.Config  `yaml:"archive"`
	Telemetry   TelemetryConfig `yaml:"telemetry"`
}

// StoreConfig selects and configures the run store.
type StoreConfig struct {
	Backend string      `yaml:"backend"`
	Path    string      `yaml:"path"`
	Dir     string      `yaml:"dir"`
	Redis   RedisConfig `yaml:"redis"`
}

// RedisConfig configures the Redis run store.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	Prefix   string `yaml:"prefix"`
}

// GatewayConfig configures the signing gateway client.
type GatewayConfig struct {
	URL     string   `yaml:"url"`
	Token   string   `yaml:"token"`
	Timeout Duration `yaml:"timeout"`
}

// SubmitConfig configures retries and rate limiting of broadcasts.
type SubmitConfig struct {
	MaxAttempts    int      `yaml:"max_attempts"`
	InitialBackoff Duration `yaml:"initial_backoff"`
	MaxBackoff     Duration `yaml:"max_backoff"`
	Multiplier     float64  `yaml:"multiplier"`
	Jitter         float64  `yaml:"jitter"`
	// RatePerSecond limits broadcasts across all links. 0 disables the limit.
	RatePerSecond float64 `yaml:"rate_per_second"`
	Burst         int     `yaml:"burst"`
}

// VerifyConfig configures confirmation polling.
type VerifyConfig struct {
	Interval Duration `yaml:"interval"`
	Timeout  Duration `yaml:"timeout"`
}

// TelemetryConfig configures OTLP export of traces and metrics.
type TelemetryConfig struct {
	Enabled     bool   `yaml:"enabled"`
	Endpoint    string `yaml:"endpoint"`
	Insecure    bool   `yaml:"insecure"`
	ServiceName string `yaml:"service_name"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	policy := submitter.DefaultPolicy()
	return &Config{
		Store: StoreConfig{
			Backend: BackendSQLite,
			Path:    "linkctl.db",
			Dir:     ".linkctl/runs",
			Redis:   RedisConfig{Addr: "localhost:6379", Prefix: "linkctl"},
		},
		Gateway: GatewayConfig{Timeout: Duration(15 * time.Second)},
		Submit: SubmitConfig{
			MaxAttempts:    policy.MaxAttempts,
			InitialBackoff: Duration(policy.InitialBackoff),
			MaxBackoff:     Duration(policy.MaxBackoff),
			Multiplier:     policy.Multiplier,
			Jitter:         policy.Jitter,
			Burst:          1,
		},
		Verify: VerifyConfig{
			Interval: Duration(2 * time.Second),
			Timeout:  Duration(5 * time.Minute),
		},
		MaxInFlight: 4,
		Telemetry:   TelemetryConfig{ServiceName: DefaultServiceName},
	}
}

// Load reads path over the defaults and applies environment overrides.
// An empty path skips the file.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}
	cfg.applyEnv(os.LookupEnv)
	return cfg, nil
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) {
	if v, ok := lookup(EnvGatewayToken); ok {
		c.Gateway.Token = v
	}
	if v, ok := lookup(EnvArchiveSecret); ok {
		c.Archive.SecretKey = v
	}
	if v, ok := lookup(EnvRedisPassword); ok {
		c.Store.Redis.Password = v
	}
}

// Policy returns the submitter retry policy.
func (c *Config) Policy() submitter.Policy {
	return submitter.Policy{
		MaxAttempts:    c.Submit.MaxAttempts,
		InitialBackoff: time.Duration(c.Submit.InitialBackoff),
		MaxBackoff:     time.Duration(c.Submit.MaxBackoff),
		Multiplier:     c.Submit.Multiplier,
		Jitter:         c.Submit.Jitter,
	}
}

// Validate reports every invalid setting at once.
func (c *Config) Validate() error {
	var errs []error

	switch c.Store.Backend {
	case BackendSQLite:
		if c.Store.Path == "" {
			errs = append(errs, errors.New("store.path is required for the sqlite backend"))
		}
	case BackendFile:
		if c.Store.Dir == "" {
			errs = append(errs, errors.New("store.dir is required for the file backend"))
		}
	case BackendRedis:
		if c.Store.Redis.Addr == "" {
			errs = append(errs, errors.New("store.redis.addr is required for the redis backend"))
		}
	default:
		errs = append(errs, fmt.Errorf("store.backend must be sqlite, file or redis, got %q", c.Store.Backend))
	}

	if err := c.Policy().Validate(); err != nil {
		errs = append(errs, fmt.Errorf("submit: %w", err))
	}
	if c.Submit.RatePerSecond < 0 {
		errs = append(errs, errors.New("submit.rate_per_second must not be negative"))
	}
	if c.Submit.RatePerSecond > 0 && c.Submit.Burst < 1 {
		errs = append(errs, errors.New("submit.burst must be at least 1 when a rate is set"))
	}
	if c.Verify.Interval <= 0 {
		errs = append(errs, errors.New("verify.interval must be positive"))
	}
	if c.Verify.Timeout < c.Verify.Interval {
		errs = append(errs, errors.New("verify.timeout must not be shorter than verify.interval"))
	}
	if c.MaxInFlight < 1 {
		errs = append(errs, fmt.Errorf("max_in_flight must be at least 1, got %d", c.MaxInFlight))
	}
	if c.Archive.Enabled() {
		if err := c.Archive.Validate(); err != nil {
			errs = append(errs, fmt.Errorf("archive: %w", err))
		}
	}
	if c.Telemetry.Enabled && c.Telemetry.Endpoint == "" {
		errs = append(errs, errors.New("telemetry.endpoint is required when telemetry is enabled"))
	}
	return errors.Join(errs...)
}
