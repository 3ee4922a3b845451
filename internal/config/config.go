// Package config loads lifespan settings from defaults, a config file and
// LIFESPAN_* environment variables.
package config

import (
	"runtime"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/pelletier/go-toml/v2"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/ppiankov/lifespan/internal/cache"
	"github.com/ppiankov/lifespan/internal/date"
	"github.com/ppiankov/lifespan/internal/estimate"
	"github.com/ppiankov/lifespan/internal/store"
)

// EnvPrefix prefixes every environment override, e.g. LIFESPAN_STORE_SOURCE
const EnvPrefix = "LIFESPAN"

// Config is the complete configuration
type Config struct {
	Estimate    EstimateConfig    `mapstructure:"estimate" yaml:"estimate" toml:"estimate"`
	Store       StoreConfig       `mapstructure:"store" yaml:"store" toml:"store"`
	Cache       CacheConfig       `mapstructure:"cache" yaml:"cache" toml:"cache"`
	Concurrency ConcurrencyConfig `mapstructure:"concurrency" yaml:"concurrency" toml:"concurrency"`
	Server      ServerConfig      `mapstructure:"server" yaml:"server" toml:"server"`
}

// EstimateConfig holds the estimator heuristics, in years
type EstimateConfig struct {
	MaxPlausibleAgeYears  int `mapstructure:"max_plausible_age_years" yaml:"max_plausible_age_years" toml:"max_plausible_age_years"`
	MaxSiblingAgeGapYears int `mapstructure:"max_sibling_age_gap_years" yaml:"max_sibling_age_gap_years" toml:"max_sibling_age_gap_years"`
	AvgGenerationGapYears int `mapstructure:"avg_generation_gap_years" yaml:"avg_generation_gap_years" toml:"avg_generation_gap_years"`
	MinGenerationGapYears int `mapstructure:"min_generation_gap_years" yaml:"min_generation_gap_years" toml:"min_generation_gap_years"`
	MaxDepth              int `mapstructure:"max_depth" yaml:"max_depth" toml:"max_depth"` // Generations walked before a cycle error

	// Spans used when comparing about/before/after dates
	AboutRangeYears  int `mapstructure:"about_range_years" yaml:"about_range_years" toml:"about_range_years"`
	BeforeRangeYears int `mapstructure:"before_range_years" yaml:"before_range_years" toml:"before_range_years"`
	AfterRangeYears  int `mapstructure:"after_range_years" yaml:"after_range_years" toml:"after_range_years"`
}

// StoreConfig selects the record source
type StoreConfig struct {
	Source string      `mapstructure:"source" yaml:"source" toml:"source"` // Tree file, SQLite database or bolt:// URI
	Neo4j  Neo4jConfig `mapstructure:"neo4j" yaml:"neo4j" toml:"neo4j"`
	HTTP   HTTPConfig  `mapstructure:"http" yaml:"http" toml:"http"` // Used for http(s):// tree files
}

// HTTPConfig controls downloads of remote tree files
type HTTPConfig struct {
	Timeout   time.Duration `mapstructure:"timeout" yaml:"timeout" toml:"timeout"`
	UserAgent string        `mapstructure:"user_agent" yaml:"user_agent" toml:"user_agent"`
	MaxBytes  int64         `mapstructure:"max_bytes" yaml:"max_bytes" toml:"max_bytes"`

	RespectRobots bool `mapstructure:"respect_robots" yaml:"respect_robots" toml:"respect_robots"`

	// Override HTTP_PROXY and HTTPS_PROXY when set
	Proxy      string `mapstructure:"proxy" yaml:"proxy" toml:"proxy"`
	HTTPSProxy string `mapstructure:"https_proxy" yaml:"https_proxy" toml:"https_proxy"`
}

// Neo4jConfig holds graph database credentials
type Neo4jConfig struct {
	User     string `mapstructure:"user" yaml:"user" toml:"user"`
	Password string `mapstructure:"password" yaml:"password" toml:"password"`
}

// CacheConfig controls the record cache placed in front of database sources
type CacheConfig struct {
	Enabled   bool          `mapstructure:"enabled" yaml:"enabled" toml:"enabled"`
	MemoryTTL time.Duration `mapstructure:"memory_ttl" yaml:"memory_ttl" toml:"memory_ttl"`
	DiskDir   string        `mapstructure:"disk_dir" yaml:"disk_dir" toml:"disk_dir"` // Empty keeps the cache in memory only
	DiskTTL   time.Duration `mapstructure:"disk_ttl" yaml:"disk_ttl" toml:"disk_ttl"`
}

// ConcurrencyConfig bounds batch scans
type ConcurrencyConfig struct {
	Workers           int           `mapstructure:"workers" yaml:"workers" toml:"workers"`
	RequestsPerSecond float64       `mapstructure:"requests_per_second" yaml:"requests_per_second" toml:"requests_per_second"` // Zero disables throttling
	Burst             int           `mapstructure:"burst" yaml:"burst" toml:"burst"`
	Timeout           time.Duration `mapstructure:"timeout" yaml:"timeout" toml:"timeout"` // Per-person budget
}

// ServerConfig configures the HTTP API
type ServerConfig struct {
	Addr string `mapstructure:"addr" yaml:"addr" toml:"addr"`
}

// SetDefaults registers every default on v
func SetDefaults(v *viper.Viper) {
	def := estimate.DefaultConfig()
	v.SetDefault("estimate.max_plausible_age_years", def.MaxAgeProbAlive)
	v.SetDefault("estimate.max_sibling_age_gap_years", def.MaxSiblingAgeGap)
	v.SetDefault("estimate.avg_generation_gap_years", def.AvgGenerationGap)
	v.SetDefault("estimate.min_generation_gap_years", def.MinGenerationGap)
	v.SetDefault("estimate.max_depth", def.MaxDepth)
	v.SetDefault("estimate.about_range_years", def.Fuzz.About)
	v.SetDefault("estimate.before_range_years", def.Fuzz.Before)
	v.SetDefault("estimate.after_range_years", def.Fuzz.After)

	v.SetDefault("store.source", "")
	v.SetDefault("store.neo4j.user", "neo4j")
	v.SetDefault("store.neo4j.password", "")
	v.SetDefault("store.http.timeout", time.Minute)
	v.SetDefault("store.http.user_agent", "lifespan (+https://github.com/ppiankov/lifespan)")
	v.SetDefault("store.http.max_bytes", 64<<20)
	v.SetDefault("store.http.respect_robots", true)
	v.SetDefault("store.http.proxy", "")
	v.SetDefault("store.http.https_proxy", "")

	v.SetDefault("cache.enabled", true)
	v.SetDefault("cache.memory_ttl", 10*time.Minute)
	v.SetDefault("cache.disk_dir", "")
	v.SetDefault("cache.disk_ttl", 24*time.Hour)

	v.SetDefault("concurrency.workers", runtime.NumCPU())
	v.SetDefault("concurrency.requests_per_second", 0.0)
	v.SetDefault("concurrency.burst", 1)
	v.SetDefault("concurrency.timeout", 30*time.Second)

	v.SetDefault("server.addr", ":8080")
}

// BindEnv makes LIFESPAN_SECTION_KEY override section.key
func BindEnv(v *viper.Viper) {
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// AutomaticEnv only sees keys viper already knows; secrets have no default worth showing
	_ = v.BindEnv("store.neo4j.password", EnvPrefix+"_STORE_NEO4J_PASSWORD", "NEO4J_PASSWORD")
}

// Load unmarshals and validates the configuration held by v
func Load(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, errors.Wrap(err, "unmarshal config")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// DefaultConfig returns the built-in configuration
func DefaultConfig() Config {
	v := viper.New()
	SetDefaults(v)
	var cfg Config
	// Defaults always decode
	_ = v.Unmarshal(&cfg)
	return cfg
}

// Validate rejects settings the estimator cannot work with
func (c *Config) Validate() error {
	e := c.Estimate
	for name, years := range map[string]int{
		"max_plausible_age_years":   e.MaxPlausibleAgeYears,
		"max_sibling_age_gap_years": e.MaxSiblingAgeGapYears,
		"avg_generation_gap_years":  e.AvgGenerationGapYears,
		"min_generation_gap_years":  e.MinGenerationGapYears,
		"max_depth":                 e.MaxDepth,
	} {
		if years <= 0 {
			return errors.WithHintf(errors.Newf("estimate.%s must be positive, got %d", name, years),
				"remove the setting to use the default")
		}
	}
	if e.MinGenerationGapYears > e.AvgGenerationGapYears {
		return errors.Newf("estimate.min_generation_gap_years (%d) exceeds avg_generation_gap_years (%d)",
			e.MinGenerationGapYears, e.AvgGenerationGapYears)
	}
	if e.AboutRangeYears < 0 || e.BeforeRangeYears < 0 || e.AfterRangeYears < 0 {
		return errors.New("estimate range years must not be negative")
	}
	if c.Store.HTTP.MaxBytes <= 0 {
		return errors.Newf("store.http.max_bytes must be positive, got %d", c.Store.HTTP.MaxBytes)
	}
	if c.Concurrency.Workers <= 0 {
		return errors.Newf("concurrency.workers must be positive, got %d", c.Concurrency.Workers)
	}
	if c.Concurrency.RequestsPerSecond < 0 {
		return errors.New("concurrency.requests_per_second must not be negative")
	}
	return nil
}

// Estimator converts the estimate section for the estimator
func (e EstimateConfig) Estimator() estimate.Config {
	cfg := estimate.DefaultConfig()
	cfg.MaxAgeProbAlive = e.MaxPlausibleAgeYears
	cfg.MaxSiblingAgeGap = e.MaxSiblingAgeGapYears
	cfg.AvgGenerationGap = e.AvgGenerationGapYears
	cfg.MinGenerationGap = e.MinGenerationGapYears
	cfg.MaxDepth = e.MaxDepth
	cfg.Fuzz = date.Fuzz{
		About:  e.AboutRangeYears,
		Before: e.BeforeRangeYears,
		After:  e.AfterRangeYears,
	}
	return cfg
}

// NewCache builds the configured cache, or nil when caching is off
func (c CacheConfig) NewCache() cache.Cache {
	if !c.Enabled {
		return nil
	}
	if c.DiskDir == "" {
		return cache.NewMemoryCache(c.MemoryTTL, 2*c.MemoryTTL)
	}
	return cache.NewLayeredCache(c.MemoryTTL, c.DiskDir, c.DiskTTL)
}

// StoreOptions returns the options for store.Open
func (c *Config) StoreOptions() store.Options {
	h := c.Store.HTTP
	fetcher := store.NewFetcher(h.Timeout, h.UserAgent, h.MaxBytes, h.Proxy, h.HTTPSProxy)
	if h.RespectRobots {
		fetcher.RespectRobots()
	}
	return store.Options{
		Neo4jUser:     c.Store.Neo4j.User,
		Neo4jPassword: c.Store.Neo4j.Password,
		Fetcher:       fetcher,
		Cache:         c.Cache.NewCache(),
		CacheTTL:      c.Cache.MemoryTTL,
	}
}

// Redacted returns a copy safe to print
func (c Config) Redacted() Config {
	if c.Store.Neo4j.Password != "" {
		c.Store.Neo4j.Password = "********"
	}
	return c
}

// YAML renders the configuration as YAML
func (c Config) YAML() ([]byte, error) {
	data, err := yaml.Marshal(c)
	if err != nil {
		return nil, errors.Wrap(err, "marshal yaml")
	}
	return data, nil
}

// TOML renders the configuration as TOML
func (c Config) TOML() ([]byte, error) {
	data, err := toml.Marshal(c)
	if err != nil {
		return nil, errors.Wrap(err, "marshal toml")
	}
	return data, nil
}
