// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Pitchgraph Contributors

package config_test

import (
	"bytes"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lpararaa/pitchgraph/internal/config"
	pgerr "github.com/lpararaa/pitchgraph/pkg/errors"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "pitchgraph.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoad_DefaultValues(t *testing.T) {
	cfg, err := config.Load("")
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1:8000", cfg.Networking.Listen)
	assert.Equal(t, []string{"http://localhost:3000"}, cfg.Networking.CORSOrigins)
	assert.Equal(t, "bolt://localhost:7687", cfg.Graph.URI)
	assert.Equal(t, 300*time.Second, cfg.Graph.SchemaTTL)
	assert.Equal(t, 1000, cfg.Guard.MaxRows)
	assert.Equal(t, 2000, cfg.Guard.ChatMaxRows)
	assert.Equal(t, 20000, cfg.Guard.MaxQueryLength)
	assert.Equal(t, []string{"Player", "Team", "Match"}, cfg.Guard.AllowedLabels)
	assert.Equal(t, 30*time.Second, cfg.Guard.ExecutionTimeout)
	assert.Equal(t, "google/gemini-2.5-flash", cfg.Models.Default)
	assert.Equal(t, "sqlite", cfg.Storage.Backend)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, "text", cfg.Logging.Format)
}

func TestLoad_FromFile(t *testing.T) {
	path := writeConfig(t, `
networking:
  listen: "0.0.0.0:9999"
graph:
  uri: "neo4j+s://graph.example.com"
  schema_ttl: 90s
guard:
  max_rows: 250
models:
  default: "openai/gpt-4.1"
  failover: ["google/gemini-2.5-flash"]
providers:
  openai:
    api_key: "test-key"
  google:
    api_key: "other-key"
`)

	cfg, err := config.Load(path)
	require.NoError(t, err)
	assert.Equal(t, "0.0.0.0:9999", cfg.Networking.Listen)
	assert.Equal(t, "neo4j+s://graph.example.com", cfg.Graph.URI)
	assert.Equal(t, 90*time.Second, cfg.Graph.SchemaTTL)
	assert.Equal(t, 250, cfg.Guard.MaxRows)
	assert.Equal(t, "openai/gpt-4.1", cfg.Models.Default)
	assert.Equal(t, []string{"google/gemini-2.5-flash"}, cfg.Models.Failover)
	assert.Equal(t, "test-key", cfg.Providers["openai"].APIKey)
	// untouched keys keep their defaults
	assert.Equal(t, 20000, cfg.Guard.MaxQueryLength)
}

func TestLoad_DefaultTemplateIsValid(t *testing.T) {
	path := writeConfig(t, string(config.DefaultConfigYAML))

	cfg, err := config.Load(path)
	require.NoError(t, err)
	assert.Equal(t, 5*time.Minute, cfg.Graph.SchemaTTL)
}

func TestLoad_EnvOverride(t *testing.T) {
	t.Setenv("PITCHGRAPH_NETWORKING_LISTEN", "10.0.0.1:8080")
	t.Setenv("PITCHGRAPH_GRAPH_PASSWORD", "from-env")
	t.Setenv("PITCHGRAPH_GUARD_MAX_ROWS", "42")

	cfg, err := config.Load("")
	require.NoError(t, err)
	assert.Equal(t, "10.0.0.1:8080", cfg.Networking.Listen)
	assert.Equal(t, "from-env", cfg.Graph.Password)
	assert.Equal(t, 42, cfg.Guard.MaxRows)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := config.Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
	assert.True(t, pgerr.HasCode(err, pgerr.CodeConfigLoadReadFailure))
}

func TestLoad_ValidationCalledAtLoadTime(t *testing.T) {
	path := writeConfig(t, `
storage:
  backend: "postgres"
`)

	_, err := config.Load(path)
	require.Error(t, err)
	assert.True(t, pgerr.HasCode(err, pgerr.CodeConfigValidateInvalidValue))
	assert.Contains(t, err.Error(), "storage.backend")
}

func TestFromViper_CollectsEveryProblem(t *testing.T) {
	v := viper.New()
	config.SetDefaults(v)
	v.Set("guard.max_rows", 0)
	v.Set("logging.format", "xml")

	_, err := config.FromViper(v)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "guard.max_rows")
	assert.Contains(t, err.Error(), "logging.format")
}

// validConfig returns a minimal config that passes all validation.
func validConfig() *config.Config {
	return &config.Config{
		Networking: config.NetworkingConfig{
			Listen:         "127.0.0.1:8000",
			CORSOrigins:    []string{"http://localhost:3000"},
			RateLimitRPS:   5,
			RateLimitBurst: 10,
		},
		Graph: config.GraphConfig{
			URI:       "bolt://localhost:7687",
			Username:  "neo4j",
			SchemaTTL: 5 * time.Minute,
		},
		Guard: config.GuardConfig{
			MaxRows:          1000,
			ChatMaxRows:      2000,
			MaxQueryLength:   20000,
			AllowedLabels:    []string{"Player", "Team", "Match"},
			ExecutionTimeout: 30 * time.Second,
		},
		Providers: map[string]config.ProviderConfig{
			"google": {APIKey: "test-key"},
		},
		Models: config.ModelsConfig{
			Default: "google/gemini-2.5-flash",
		},
		Storage: config.StorageConfig{Backend: "sqlite"},
		Logging: config.LoggingConfig{Level: "info", Format: "text"},
	}
}

func TestValidate_ValidConfig(t *testing.T) {
	errs := validConfig().Validate()
	assert.Empty(t, errs, "valid config should produce no validation errors")
}

// assertField runs Validate on a mutated config and checks that exactly the
// expected key is (or is not) reported.
func assertField(t *testing.T, cfg *config.Config, key string, wantErr bool) {
	t.Helper()
	errs := cfg.Validate()
	if wantErr {
		require.NotEmpty(t, errs)
		assert.Contains(t, errs[0].Error(), key)
		return
	}
	for _, err := range errs {
		assert.NotContains(t, err.Error(), key)
	}
}

func TestValidate_NetworkingListen(t *testing.T) {
	tests := []struct {
		name    string
		listen  string
		wantErr bool
	}{
		{"valid address", "127.0.0.1:8080", false},
		{"valid all interfaces", "0.0.0.0:9999", false},
		{"valid empty host", ":8000", false},
		{"valid ipv6", "[::1]:8080", false},
		{"empty listen", "", true},
		{"missing port", "127.0.0.1", true},
		{"invalid port zero", "127.0.0.1:0", true},
		{"port too high", "127.0.0.1:70000", true},
		{"not a number", "127.0.0.1:abc", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			cfg.Networking.Listen = tt.listen
			assertField(t, cfg, "networking.listen", tt.wantErr)
		})
	}
}

func TestValidate_CORSOrigins(t *testing.T) {
	tests := []struct {
		name    string
		origins []string
		wantErr bool
	}{
		{"none", nil, false},
		{"wildcard", []string{"*"}, false},
		{"several", []string{"http://localhost:3000", "https://stats.example.com"}, false},
		{"bare host", []string{"localhost:3000"}, true},
		{"path only", []string{"/app"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			cfg.Networking.CORSOrigins = tt.origins
			assertField(t, cfg, "networking.cors_origins", tt.wantErr)
		})
	}
}

func TestValidate_RateLimit(t *testing.T) {
	cfg := validConfig()
	cfg.Networking.RateLimitRPS = -1
	assertField(t, cfg, "networking.rate_limit_rps", true)

	cfg = validConfig()
	cfg.Networking.RateLimitBurst = 0
	assertField(t, cfg, "networking.rate_limit_burst", true)

	// burst is irrelevant once limiting is off
	cfg = validConfig()
	cfg.Networking.RateLimitRPS = 0
	cfg.Networking.RateLimitBurst = 0
	assert.Empty(t, cfg.Validate())
}

func TestValidate_GraphURI(t *testing.T) {
	tests := []struct {
		name    string
		uri     string
		wantErr bool
	}{
		{"bolt", "bolt://localhost:7687", false},
		{"neo4j routing", "neo4j://cluster.internal:7687", false},
		{"aura", "neo4j+s://abcd.databases.neo4j.io", false},
		{"empty", "", true},
		{"http", "http://localhost:7474", true},
		{"no scheme", "localhost:7687", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			cfg.Graph.URI = tt.uri
			assertField(t, cfg, "graph.uri", tt.wantErr)
		})
	}
}

func TestValidate_Guard(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*config.Config)
		key    string
	}{
		{"zero max rows", func(c *config.Config) { c.Guard.MaxRows = 0 }, "guard.max_rows"},
		{"zero chat max rows", func(c *config.Config) { c.Guard.ChatMaxRows = 0 }, "guard.chat_max_rows"},
		{"negative query length", func(c *config.Config) { c.Guard.MaxQueryLength = -1 }, "guard.max_query_length"},
		{"blank label", func(c *config.Config) { c.Guard.AllowedLabels = []string{"Player", " "} }, "guard.allowed_labels[1]"},
		{"zero timeout", func(c *config.Config) { c.Guard.ExecutionTimeout = 0 }, "guard.execution_timeout"},
		{"zero schema ttl", func(c *config.Config) { c.Graph.SchemaTTL = 0 }, "graph.schema_ttl"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			assertField(t, cfg, tt.key, true)
		})
	}
}

func TestValidate_Providers(t *testing.T) {
	cfg := validConfig()
	cfg.Providers["mistral"] = config.ProviderConfig{APIKey: "k"}
	assertField(t, cfg, "providers.mistral", true)

	cfg = validConfig()
	cfg.Providers["google"] = config.ProviderConfig{APIKey: "k", Endpoint: "not a url"}
	assertField(t, cfg, "providers.google.endpoint", true)
}

func TestValidate_ModelRefs(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*config.Config)
		key    string
	}{
		{"empty default", func(c *config.Config) { c.Models.Default = "" }, "models.default"},
		{"default without provider", func(c *config.Config) { c.Models.Default = "gemini-2.5-flash" }, "models.default"},
		{"default unconfigured provider", func(c *config.Config) { c.Models.Default = "anthropic/claude-haiku-4-5" }, "models.default"},
		{"bad failover", func(c *config.Config) { c.Models.Failover = []string{"openai"} }, "models.failover[0]"},
		{"summary unconfigured provider", func(c *config.Config) { c.Models.Summary = "openai/gpt-4.1-mini" }, "models.summary"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			assertField(t, cfg, tt.key, true)
		})
	}
}

func TestValidate_ModelRefsWithoutProvidersSection(t *testing.T) {
	cfg := validConfig()
	cfg.Providers = nil
	cfg.Models.Default = "anthropic/claude-haiku-4-5"
	assert.Empty(t, cfg.Validate())
}

func TestValidate_StorageBackend(t *testing.T) {
	tests := []struct {
		backend string
		wantErr bool
	}{
		{"sqlite", false},
		{"memory", false},
		{"postgres", true},
		{"", true},
	}

	for _, tt := range tests {
		t.Run(tt.backend, func(t *testing.T) {
			cfg := validConfig()
			cfg.Storage.Backend = tt.backend
			assertField(t, cfg, "storage.backend", tt.wantErr)
		})
	}
}

func TestValidate_Logging(t *testing.T) {
	cfg := validConfig()
	cfg.Logging.Level = "verbose"
	assertField(t, cfg, "logging.level", true)

	cfg = validConfig()
	cfg.Logging.Format = "xml"
	assertField(t, cfg, "logging.format", true)
}

func TestLoggingConfig_SlogLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, config.LoggingConfig{Level: "debug"}.SlogLevel())
	assert.Equal(t, slog.LevelWarn, config.LoggingConfig{Level: "WARN"}.SlogLevel())
	assert.Equal(t, slog.LevelInfo, config.LoggingConfig{Level: "bogus"}.SlogLevel())
}

func TestDefaultConfigYAML_MentionsEnvPrefix(t *testing.T) {
	assert.True(t, bytes.Contains(config.DefaultConfigYAML, []byte("PITCHGRAPH_")))
}
