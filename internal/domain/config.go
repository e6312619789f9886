package domain

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type StorageBackend string

const (
	StorageMemory StorageBackend = "memory"
	StorageBadger StorageBackend = "badger"
)

// Duration wraps time.Duration so config files can use "30s" style values.
type Duration time.Duration

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	parsed, err := time.ParseDuration(value.Value)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", value.Value, err)
	}
	*d = Duration(parsed)
	return nil
}

func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

type StorageConfig struct {
	Backend StorageBackend `yaml:"backend"`
	Path    string         `yaml:"path"`
}

type RetryConfig struct {
	MaxAttempts       int      `yaml:"max_attempts"`
	InitialDelay      Duration `yaml:"initial_delay"`
	MaxDelay          Duration `yaml:"max_delay"`
	BackoffMultiplier float64  `yaml:"backoff_multiplier"`
	JitterEnabled     bool     `yaml:"jitter_enabled"`
	ExecutionTTL      Duration `yaml:"execution_ttl"`
	CacheTTL          Duration `yaml:"cache_ttl"`
	ClaimTTL          Duration `yaml:"claim_ttl"`
	CleanupInterval   Duration `yaml:"cleanup_interval"`
}

type ValidatorConfig struct {
	SoftNodeLimit int `yaml:"soft_node_limit"`
}

type Config struct {
	Storage   StorageConfig   `yaml:"storage"`
	Retry     RetryConfig     `yaml:"retry"`
	Validator ValidatorConfig `yaml:"validator"`
}

func DefaultConfig() *Config {
	return &Config{
		Storage: StorageConfig{
			Backend: StorageMemory,
		},
		Retry: RetryConfig{
			MaxAttempts:       3,
			InitialDelay:      Duration(time.Second),
			MaxDelay:          Duration(30 * time.Second),
			BackoffMultiplier: 2.0,
			JitterEnabled:     true,
			ExecutionTTL:      Duration(7 * 24 * time.Hour),
			CacheTTL:          Duration(24 * time.Hour),
			ClaimTTL:          Duration(time.Minute),
			CleanupInterval:   Duration(time.Hour),
		},
		Validator: ValidatorConfig{
			SoftNodeLimit: 50,
		},
	}
}

// LoadConfig reads a YAML config file over the defaults, so partial files
// only override the keys they set.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	switch c.Storage.Backend {
	case StorageMemory:
	case StorageBadger:
		if c.Storage.Path == "" {
			return fmt.Errorf("%w: badger backend requires storage.path", ErrInvalidConfig)
		}
	default:
		return fmt.Errorf("%w: unknown storage backend %q", ErrInvalidConfig, c.Storage.Backend)
	}

	policy := c.Retry.Policy()
	if err := policy.Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}

	if c.Validator.SoftNodeLimit < 1 {
		return fmt.Errorf("%w: validator.soft_node_limit must be positive", ErrInvalidConfig)
	}

	return nil
}

// Policy builds the default retry policy from config; the retryable set is
// fixed to the transient error classes.
func (c *RetryConfig) Policy() RetryPolicy {
	policy := DefaultRetryPolicy()
	policy.MaxAttempts = c.MaxAttempts
	policy.InitialDelay = c.InitialDelay.Std()
	policy.MaxDelay = c.MaxDelay.Std()
	policy.BackoffMultiplier = c.BackoffMultiplier
	policy.JitterEnabled = c.JitterEnabled
	return policy
}
