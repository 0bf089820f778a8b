// Package config holds engine configuration: environment-driven runtime
// settings and the YAML record identity configuration.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"

	"github.com/c360/biograph/errors"
)

// Config represents the complete engine configuration
type Config struct {
	Cache CacheConfig
	API   APIConfig
	Dump  DumpConfig

	// Record holds the YAML-loaded record identity configuration.
	// Populated by LoadRecordConfig; DefaultRecordConfig otherwise.
	Record RecordConfig
}

// CacheConfig controls the per-edge result cache
type CacheConfig struct {
	// Enabled is the operator opt-out switch. Caching additionally requires
	// a configured backend endpoint; see Active.
	Enabled bool `env:"RESULT_CACHING" envDefault:"true"`

	RedisHost string `env:"REDIS_HOST"`
	RedisPort int    `env:"REDIS_PORT"`

	// KeyExpireSeconds is the per-key TTL applied after each write
	KeyExpireSeconds int `env:"REDIS_KEY_EXPIRE_TIME" envDefault:"600"`

	// ChunkSize bounds individual hash-field writes in bytes
	ChunkSize int `env:"REDIS_CHUNK_SIZE" envDefault:"100000"`
}

// Active reports whether caching is actually in effect: enabled by the
// operator and a backend endpoint is configured.
func (c CacheConfig) Active() bool {
	return c.Enabled && c.RedisHost != "" && c.RedisPort != 0
}

// Addr returns the backend endpoint in host:port form
func (c CacheConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.RedisHost, c.RedisPort)
}

// TTL returns the key expiry as a duration
func (c CacheConfig) TTL() time.Duration {
	return time.Duration(c.KeyExpireSeconds) * time.Second
}

// APIConfig controls downstream sub-query dispatch
type APIConfig struct {
	// Timeout bounds a single downstream API call
	Timeout time.Duration `env:"API_TIMEOUT" envDefault:"30s"`

	// MaxConcurrent bounds simultaneous sub-queries per edge
	MaxConcurrent int `env:"MAX_CONCURRENT_SUBQUERIES" envDefault:"8"`

	// RateLimit is the per-API request rate (requests/second)
	RateLimit float64 `env:"API_RATE_LIMIT" envDefault:"10"`

	// RateBurst is the per-API burst allowance
	RateBurst int `env:"API_RATE_BURST" envDefault:"5"`
}

// DumpConfig controls the debug record dump
type DumpConfig struct {
	// Path enables record dumping when non-empty
	Path string `env:"DUMP_RECORDS_PATH"`

	// WithDirection annotates dumped records with the execution direction
	WithDirection bool `env:"DUMP_RECORDS_DIRECTION"`
}

// Enabled reports whether record dumping is active
func (d DumpConfig) Enabled() bool { return d.Path != "" }

// RecordConfig declares which record fields are identity-bearing for hash
// computation and which API names are curated direct sources for
// knowledge-graph attribute shaping.
type RecordConfig struct {
	// IdentityFields are the record field names folded into the fingerprint
	IdentityFields []string `yaml:"identity_fields" json:"identity_fields"`

	// CuratedAPIs are direct-source API names promoted to primary knowledge
	// sources when building knowledge-graph edge attributes
	CuratedAPIs []string `yaml:"curated_apis" json:"curated_apis"`
}

// IsCurated reports whether the named API is on the curated allow-list
func (rc RecordConfig) IsCurated(apiName string) bool {
	for _, name := range rc.CuratedAPIs {
		if name == apiName {
			return true
		}
	}
	return false
}

// DefaultRecordConfig returns the built-in record identity configuration
func DefaultRecordConfig() RecordConfig {
	return RecordConfig{
		IdentityFields: []string{"subject", "object", "predicate", "api", "source"},
		CuratedAPIs: []string{
			"BioThings SEMMEDDB API",
			"CTD API",
			"Text Mining Targeted Association API",
		},
	}
}

// Load parses configuration from the environment
func Load() (*Config, error) {
	cfg := &Config{Record: DefaultRecordConfig()}
	if err := env.Parse(cfg); err != nil {
		return nil, errors.WrapFatal(err, "config", "Load", "environment parsing")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadRecordConfig reads the record identity configuration from a YAML file
// and merges it into the config. An empty path leaves defaults in place; a
// path that cannot be read is a fatal ErrMissingConfig.
func (c *Config) LoadRecordConfig(path string) error {
	if path == "" {
		return nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return errors.WrapFatal(errors.ErrMissingConfig, "config", "LoadRecordConfig", path)
	}
	var rc RecordConfig
	if err := yaml.Unmarshal(data, &rc); err != nil {
		return errors.WrapFatal(errors.ErrInvalidConfig, "config", "LoadRecordConfig", "yaml parsing")
	}
	if len(rc.IdentityFields) > 0 {
		c.Record.IdentityFields = rc.IdentityFields
	}
	if len(rc.CuratedAPIs) > 0 {
		c.Record.CuratedAPIs = rc.CuratedAPIs
	}
	return nil
}

// Validate checks configuration invariants
func (c *Config) Validate() error {
	if c.Cache.KeyExpireSeconds <= 0 {
		return errors.WrapFatal(errors.ErrInvalidConfig, "config", "Validate",
			"REDIS_KEY_EXPIRE_TIME must be positive")
	}
	if c.Cache.ChunkSize <= 0 {
		return errors.WrapFatal(errors.ErrInvalidConfig, "config", "Validate",
			"REDIS_CHUNK_SIZE must be positive")
	}
	if c.API.MaxConcurrent <= 0 {
		return errors.WrapFatal(errors.ErrInvalidConfig, "config", "Validate",
			"MAX_CONCURRENT_SUBQUERIES must be positive")
	}
	if len(c.Record.IdentityFields) == 0 {
		return errors.WrapFatal(errors.ErrInvalidConfig, "config", "Validate",
			"record identity fields must not be empty")
	}
	return nil
}
