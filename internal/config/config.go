// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Pitchgraph Contributors

package config

import (
	"errors"
	"log/slog"
	"net"
	"net/url"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/lpararaa/pitchgraph/internal/provider"
	pgerr "github.com/lpararaa/pitchgraph/pkg/errors"
)

// EnvPrefix is prepended to every environment override, e.g.
// PITCHGRAPH_GRAPH_URI for graph.uri.
const EnvPrefix = "PITCHGRAPH"

// Config is the top-level pitchgraph configuration.
type Config struct {
	Networking NetworkingConfig          `mapstructure:"networking"`
	Graph      GraphConfig               `mapstructure:"graph"`
	Guard      GuardConfig               `mapstructure:"guard"`
	Providers  map[string]ProviderConfig `mapstructure:"providers"`
	Models     ModelsConfig              `mapstructure:"models"`
	Storage    StorageConfig             `mapstructure:"storage"`
	Logging    LoggingConfig             `mapstructure:"logging"`
}

// NetworkingConfig controls how the HTTP API listens for connections.
type NetworkingConfig struct {
	Listen      string   `mapstructure:"listen"`
	CORSOrigins []string `mapstructure:"cors_origins"`
	// RateLimitRPS is the per-client request rate; 0 disables limiting.
	RateLimitRPS   float64 `mapstructure:"rate_limit_rps"`
	RateLimitBurst int     `mapstructure:"rate_limit_burst"`
}

// GraphConfig locates the statistics graph.
type GraphConfig struct {
	URI       string        `mapstructure:"uri"`
	Username  string        `mapstructure:"username"`
	Password  string        `mapstructure:"password"`
	Database  string        `mapstructure:"database"`
	SchemaTTL time.Duration `mapstructure:"schema_ttl"`
}

// GuardConfig bounds what model-generated queries may do.
type GuardConfig struct {
	MaxRows          int           `mapstructure:"max_rows"`
	ChatMaxRows      int           `mapstructure:"chat_max_rows"`
	MaxQueryLength   int           `mapstructure:"max_query_length"`
	AllowedLabels    []string      `mapstructure:"allowed_labels"`
	ExecutionTimeout time.Duration `mapstructure:"execution_timeout"`
}

// ProviderConfig holds credentials and endpoint for an LLM provider.
type ProviderConfig struct {
	APIKey   string `mapstructure:"api_key"`
	Endpoint string `mapstructure:"endpoint"`
}

// ModelsConfig controls model selection. Every entry is a
// "provider/model" reference.
type ModelsConfig struct {
	Default  string   `mapstructure:"default"`
	Failover []string `mapstructure:"failover"`
	Summary  string   `mapstructure:"summary"`
}

// StorageConfig selects the query log backend.
type StorageConfig struct {
	Backend string `mapstructure:"backend"`
	// Path is the data directory; empty means DefaultDataDir.
	Path string `mapstructure:"path"`
}

// LoggingConfig selects the slog handler.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// SlogLevel maps Level onto slog. Unknown values fall back to info; Validate
// rejects them before this is reached.
func (l LoggingConfig) SlogLevel() slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(l.Level)); err != nil {
		return slog.LevelInfo
	}
	return level
}

// SetDefaults registers the default value of every key on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("networking.listen", "127.0.0.1:8000")
	v.SetDefault("networking.cors_origins", []string{"http://localhost:3000"})
	v.SetDefault("networking.rate_limit_rps", 5.0)
	v.SetDefault("networking.rate_limit_burst", 10)
	v.SetDefault("graph.uri", "bolt://localhost:7687")
	v.SetDefault("graph.username", "neo4j")
	v.SetDefault("graph.password", "")
	v.SetDefault("graph.database", "")
	v.SetDefault("graph.schema_ttl", 300*time.Second)
	v.SetDefault("guard.max_rows", 1000)
	v.SetDefault("guard.chat_max_rows", 2000)
	v.SetDefault("guard.max_query_length", 20000)
	v.SetDefault("guard.allowed_labels", []string{"Player", "Team", "Match"})
	v.SetDefault("guard.execution_timeout", 30*time.Second)
	v.SetDefault("models.default", "google/gemini-2.5-flash")
	v.SetDefault("models.summary", "")
	v.SetDefault("storage.backend", "sqlite")
	v.SetDefault("storage.path", "")
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "text")
}

// SetupEnv binds PITCHGRAPH_* environment variables on v.
func SetupEnv(v *viper.Viper) {
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
}

// Load reads configuration from the given path (or defaults) with
// environment variable overrides (prefix PITCHGRAPH_).
func Load(path string) (*Config, error) {
	v := viper.New()
	SetDefaults(v)
	SetupEnv(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, pgerr.Errorf(pgerr.CodeConfigLoadReadFailure, "reading config %s: %w", path, err)
		}
	}

	return FromViper(v)
}

// FromViper decodes and validates the settings held by v.
func FromViper(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, pgerr.Errorf(pgerr.CodeConfigParseInvalidFormat, "unmarshalling config: %w", err)
	}

	if errs := cfg.Validate(); len(errs) > 0 {
		return nil, pgerr.Errorf(pgerr.CodeConfigValidateInvalidValue, "validating config: %w", errors.Join(errs...))
	}

	return &cfg, nil
}

// Validate checks the configuration for logical errors.
// It returns a slice of all validation errors found, collecting all issues
// rather than stopping at the first one.
func (c *Config) Validate() []error {
	var errs []error

	errs = append(errs, c.validateNetworking()...)
	errs = append(errs, c.validateGraph()...)
	errs = append(errs, c.validateGuard()...)
	errs = append(errs, c.validateProviders()...)
	errs = append(errs, c.validateModels()...)
	errs = append(errs, c.validateStorage()...)
	errs = append(errs, c.validateLogging()...)

	return errs
}

func invalid(format string, args ...any) error {
	return pgerr.Errorf(pgerr.CodeConfigValidateInvalidValue, "config: "+format, args...)
}

func (c *Config) validateNetworking() []error {
	var errs []error

	if c.Networking.Listen == "" {
		errs = append(errs, invalid("networking.listen must not be empty"))
	} else {
		// host may be empty (":8000")
		_, portStr, err := net.SplitHostPort(c.Networking.Listen)
		if err != nil {
			errs = append(errs, invalid("networking.listen must be a valid host:port address, got %q: %w",
				c.Networking.Listen, err))
		} else {
			port, err := strconv.Atoi(portStr)
			if err != nil {
				errs = append(errs, invalid("networking.listen port must be a number, got %q", portStr))
			} else if port < 1 || port > 65535 {
				errs = append(errs, invalid("networking.listen port must be between 1 and 65535, got %d", port))
			}
		}
	}

	for i, origin := range c.Networking.CORSOrigins {
		if origin == "*" {
			continue
		}
		u, err := url.Parse(origin)
		if err != nil || u.Scheme == "" || u.Host == "" {
			errs = append(errs, invalid("networking.cors_origins[%d] must be an absolute origin, got %q", i, origin))
		}
	}

	if c.Networking.RateLimitRPS < 0 {
		errs = append(errs, invalid("networking.rate_limit_rps must not be negative, got %g", c.Networking.RateLimitRPS))
	}
	if c.Networking.RateLimitRPS > 0 && c.Networking.RateLimitBurst <= 0 {
		errs = append(errs, invalid("networking.rate_limit_burst must be greater than 0 when rate limiting is enabled, got %d",
			c.Networking.RateLimitBurst))
	}

	return errs
}

var graphSchemes = []string{"bolt", "bolt+s", "bolt+ssc", "neo4j", "neo4j+s", "neo4j+ssc"}

func (c *Config) validateGraph() []error {
	var errs []error

	if c.Graph.URI == "" {
		errs = append(errs, invalid("graph.uri must not be empty"))
	} else if u, err := url.Parse(c.Graph.URI); err != nil || !slices.Contains(graphSchemes, u.Scheme) {
		errs = append(errs, invalid("graph.uri must use one of %v, got %q", graphSchemes, c.Graph.URI))
	}

	if c.Graph.SchemaTTL <= 0 {
		errs = append(errs, invalid("graph.schema_ttl must be greater than 0, got %s", c.Graph.SchemaTTL))
	}

	return errs
}

func (c *Config) validateGuard() []error {
	var errs []error

	if c.Guard.MaxRows <= 0 {
		errs = append(errs, invalid("guard.max_rows must be greater than 0, got %d", c.Guard.MaxRows))
	}
	if c.Guard.ChatMaxRows <= 0 {
		errs = append(errs, invalid("guard.chat_max_rows must be greater than 0, got %d", c.Guard.ChatMaxRows))
	}
	if c.Guard.MaxQueryLength <= 0 {
		errs = append(errs, invalid("guard.max_query_length must be greater than 0, got %d", c.Guard.MaxQueryLength))
	}
	for i, label := range c.Guard.AllowedLabels {
		if strings.TrimSpace(label) == "" {
			errs = append(errs, invalid("guard.allowed_labels[%d] must not be empty", i))
		}
	}
	if c.Guard.ExecutionTimeout <= 0 {
		errs = append(errs, invalid("guard.execution_timeout must be greater than 0, got %s", c.Guard.ExecutionTimeout))
	}

	return errs
}

func (c *Config) validateProviders() []error {
	var errs []error

	names := make([]string, 0, len(c.Providers))
	for name := range c.Providers {
		names = append(names, name)
	}
	slices.Sort(names)

	for _, name := range names {
		if !provider.Name(name).Valid() {
			errs = append(errs, invalid("providers.%s is not a supported provider (want one of %v)", name, provider.Names))
			continue
		}
		if ep := c.Providers[name].Endpoint; ep != "" {
			if u, err := url.Parse(ep); err != nil || u.Scheme == "" || u.Host == "" {
				errs = append(errs, invalid("providers.%s.endpoint must be an absolute URL, got %q", name, ep))
			}
		}
	}

	return errs
}

func (c *Config) validateModels() []error {
	var errs []error

	if c.Models.Default == "" {
		errs = append(errs, invalid("models.default must not be empty"))
	} else {
		errs = append(errs, c.checkModelRef("models.default", c.Models.Default)...)
	}

	for i, model := range c.Models.Failover {
		errs = append(errs, c.checkModelRef("models.failover["+strconv.Itoa(i)+"]", model)...)
	}

	if c.Models.Summary != "" {
		errs = append(errs, c.checkModelRef("models.summary", c.Models.Summary)...)
	}

	return errs
}

func (c *Config) checkModelRef(key, ref string) []error {
	name, model := provider.ParseRef(ref)
	if name == "" || model == "" {
		return []error{invalid("%s must be in \"provider/model\" format, got %q", key, ref)}
	}
	// A nil map means no providers section was configured (defaults only,
	// keys from the environment), which is valid.
	if c.Providers == nil {
		return nil
	}
	if _, ok := c.Providers[name]; !ok {
		return []error{invalid("%s %q references provider %q which is not configured", key, ref, name)}
	}
	return nil
}

func (c *Config) validateStorage() []error {
	validBackends := []string{"sqlite", "memory"}
	if !slices.Contains(validBackends, c.Storage.Backend) {
		return []error{invalid("storage.backend must be one of %v, got %q", validBackends, c.Storage.Backend)}
	}
	return nil
}

func (c *Config) validateLogging() []error {
	var errs []error

	var level slog.Level
	if err := level.UnmarshalText([]byte(c.Logging.Level)); err != nil {
		errs = append(errs, invalid("logging.level must be one of [debug, info, warn, error], got %q", c.Logging.Level))
	}

	validFormats := []string{"text", "json"}
	if !slices.Contains(validFormats, c.Logging.Format) {
		errs = append(errs, invalid("logging.format must be one of %v, got %q", validFormats, c.Logging.Format))
	}

	return errs
}
