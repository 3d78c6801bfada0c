// Package config loads runtime configuration for the replication engine
// from a YAML file, with environment variables overriding secrets.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/catalogsync/replicator/internal/errors"
)

// FilterConfig describes one filter to run and the two node adapters it
// replicates between.
type FilterConfig struct {
	ID     string `yaml:"id"`
	Name   string `yaml:"name"`
	Query  string `yaml:"query"`
	Source NodeConfig `yaml:"source"`
	Dest   NodeConfig `yaml:"destination"`
}

// NodeConfig describes one catalog node endpoint and its resource backend.
type NodeConfig struct {
	SystemName string `yaml:"systemName"`
	BaseURL    string `yaml:"baseUrl"`
	APIKey     string `yaml:"apiKey"`

	Resource ResourceConfig `yaml:"resource"`
}

// ResourceConfig selects and configures the binary-resource transfer
// backend for a node ("aws", "minio", "r2", or "local").
type ResourceConfig struct {
	Provider   string `yaml:"provider"`
	Bucket     string `yaml:"bucket"`
	Region     string `yaml:"region"`
	Endpoint   string `yaml:"endpoint"`
	AccountID  string `yaml:"accountId"`
	AccessKey  string `yaml:"accessKey"`
	SecretKey  string `yaml:"secretKey"`
	UseSSL     bool   `yaml:"useSsl"`
	LocalDir   string `yaml:"localDir"`
}

// Config is the top-level runtime configuration.
type Config struct {
	DataDir      string         `yaml:"dataDir"`
	PollInterval time.Duration  `yaml:"pollInterval"`
	Filters      []FilterConfig `yaml:"filters"`
}

// Load reads and parses a YAML configuration file, applying environment
// variable overrides for API keys and resource credentials.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(errors.ErrConfigInvalid, "failed to read config file", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, errors.Wrap(errors.ErrConfigInvalid, "failed to parse config file", err)
	}

	if cfg.DataDir == "" {
		return nil, errors.New(errors.ErrConfigInvalid, "dataDir is required")
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 5 * time.Minute
	}

	for i := range cfg.Filters {
		if cfg.Filters[i].ID == "" {
			return nil, errors.New(errors.ErrConfigInvalid,
				fmt.Sprintf("filters[%d].id is required", i))
		}
		applyEnvOverrides(&cfg.Filters[i].Source)
		applyEnvOverrides(&cfg.Filters[i].Dest)
	}

	return &cfg, nil
}

// applyEnvOverrides lets deployments keep credentials out of the config
// file: SYSTEMNAME_API_KEY, SYSTEMNAME_ACCESS_KEY, SYSTEMNAME_SECRET_KEY.
func applyEnvOverrides(node *NodeConfig) {
	prefix := envPrefix(node.SystemName)
	if v := os.Getenv(prefix + "_API_KEY"); v != "" {
		node.APIKey = v
	}
	if v := os.Getenv(prefix + "_ACCESS_KEY"); v != "" {
		node.Resource.AccessKey = v
	}
	if v := os.Getenv(prefix + "_SECRET_KEY"); v != "" {
		node.Resource.SecretKey = v
	}
}

func envPrefix(systemName string) string {
	out := make([]rune, 0, len(systemName))
	for _, r := range systemName {
		switch {
		case r >= 'a' && r <= 'z':
			out = append(out, r-32)
		case r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			out = append(out, r)
		default:
			out = append(out, '_')
		}
	}
	return string(out)
}
