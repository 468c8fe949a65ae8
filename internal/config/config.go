// Package config loads keyroute's YAML configuration.
package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/jacentio/keyroute/store"
)

// Backend kinds.
const (
	BackendMemory   = "memory"
	BackendSQLite   = "sqlite"
	BackendDynamoDB = "dynamodb"
)

// Config is the on-disk configuration.
type Config struct {
	store.Config `yaml:",inline"`

	Backend BackendConfig `yaml:"backend"`

	// LogLevel is one of debug, info, warn, error.
	LogLevel string `yaml:"logLevel"`
}

// BackendConfig selects and configures the storage backend.
type BackendConfig struct {
	Kind string `yaml:"kind"`

	// Hosts are contact points. For DynamoDB the first host is used as the endpoint
	// when Endpoint is unset.
	Hosts []string `yaml:"hosts,omitempty"`

	Endpoint string `yaml:"endpoint,omitempty"`
	Region   string `yaml:"region,omitempty"`
	Profile  string `yaml:"profile,omitempty"`

	// Path is the SQLite database file. Default: <keyspace>.db
	Path string `yaml:"path,omitempty"`
}

// DefaultConfig returns the configuration used when no file exists.
func DefaultConfig() *Config {
	cfg := &Config{
		Config:   store.DefaultConfig(),
		Backend:  BackendConfig{Kind: BackendMemory},
		LogLevel: "info",
	}
	cfg.Keyspace = "keyroute"
	return cfg
}

// Load reads path, falling back to defaults when it does not exist, then
// applies KEYROUTE_* environment overrides.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("failed to parse config: %w", err)
			}
		case os.IsNotExist(err):
		default:
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("KEYROUTE_KEYSPACE"); v != "" {
		c.Keyspace = v
	}
	if v := os.Getenv("KEYROUTE_DEFAULT_TABLE"); v != "" {
		c.DefaultTable = v
	}
	if v := os.Getenv("KEYROUTE_OVERFLOW"); v != "" {
		c.Overflow = store.OverflowPolicy(v)
	}
	if v := os.Getenv("KEYROUTE_BACKEND"); v != "" {
		c.Backend.Kind = v
	}
	if v := os.Getenv("KEYROUTE_ENDPOINT"); v != "" {
		c.Backend.Endpoint = v
	}
	if v := os.Getenv("KEYROUTE_REGION"); v != "" {
		c.Backend.Region = v
	}
	if v := os.Getenv("KEYROUTE_HOSTS"); v != "" {
		c.Backend.Hosts = strings.Split(v, ",")
	}
	if v := os.Getenv("KEYROUTE_SQLITE_PATH"); v != "" {
		c.Backend.Path = v
	}
	if v := os.Getenv("KEYROUTE_LOG_LEVEL"); v != "" {
		c.LogLevel = v
	}
}

// Validate checks the backend selection and fills backend defaults.
// Store settings are validated by store.New.
func (c *Config) Validate() error {
	switch c.Backend.Kind {
	case "":
		c.Backend.Kind = BackendMemory
	case BackendMemory, BackendSQLite, BackendDynamoDB:
	default:
		return fmt.Errorf("keyroute: unknown backend %q", c.Backend.Kind)
	}
	if c.Backend.Kind == BackendSQLite && c.Backend.Path == "" {
		c.Backend.Path = c.Keyspace + ".db"
	}
	if c.Backend.Kind == BackendDynamoDB && c.Backend.Endpoint == "" && len(c.Backend.Hosts) > 0 {
		c.Backend.Endpoint = c.Backend.Hosts[0]
	}
	if c.Overflow != "" {
		policy, err := store.ParseOverflowPolicy(string(c.Overflow))
		if err != nil {
			return err
		}
		c.Overflow = policy
	}
	return nil
}
