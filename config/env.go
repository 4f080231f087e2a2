package config

import (
	"bytes"
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	EnvStoreDriver     = "PRODLAKE_STORE_DRIVER"
	EnvStoreDSN        = "PRODLAKE_STORE_DSN"
	EnvStagingDir      = "PRODLAKE_STAGING_DIR"
	EnvSchemaPath      = "PRODLAKE_SCHEMA_PATH"
	EnvSourceTimeout   = "PRODLAKE_SOURCE_TIMEOUT"
	EnvSourceRetries   = "PRODLAKE_SOURCE_RETRIES"
	EnvPublishURI      = "PRODLAKE_PUBLISH_URI"
	EnvMetricsTextfile = "PRODLAKE_METRICS_TEXTFILE"
	EnvVerbose         = "PRODLAKE_VERBOSE"
)

// Load builds a Config from the defaults, then the YAML file at path (if non-empty), then environment
// overrides. The result is validated.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := cfg.Decode(data); err != nil {
			return nil, err
		}
	}
	if err := cfg.ApplyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Decode decodes data over the current values. Unknown keys are rejected so typos surface.
func (c *Config) Decode(data []byte) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(c); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}
	return nil
}

// ApplyEnv overrides fields from PRODLAKE_* environment variables.
func (c *Config) ApplyEnv() error {
	if v := os.Getenv(EnvStoreDriver); v != "" {
		c.Store.Driver = v
	}
	if v := os.Getenv(EnvStoreDSN); v != "" {
		c.Store.DSN = v
	}
	if v := os.Getenv(EnvStagingDir); v != "" {
		c.Staging.Dir = v
	}
	if v := os.Getenv(EnvSchemaPath); v != "" {
		c.Schema.Path = v
	}
	if v := os.Getenv(EnvSourceTimeout); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("invalid %s: %w", EnvSourceTimeout, err)
		}
		c.Sources.Timeout = d
	}
	if v := os.Getenv(EnvSourceRetries); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid %s: %w", EnvSourceRetries, err)
		}
		c.Sources.Retries = n
	}
	if v := os.Getenv(EnvPublishURI); v != "" {
		c.Publish.URI = v
	}
	if v := os.Getenv(EnvMetricsTextfile); v != "" {
		c.Metrics.Textfile = v
	}
	if v := os.Getenv(EnvVerbose); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("invalid %s: %w", EnvVerbose, err)
		}
		c.Verbose = b
	}
	return nil
}
