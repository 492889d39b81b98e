package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "dev", cfg.Docs.DefaultVersion)
	assert.Equal(t, 20, cfg.Search.DefaultLimit)
	assert.False(t, cfg.Search.PrefixMatch)
	assert.Equal(t, 5.0, cfg.Search.Weights.Title)
	assert.Equal(t, "docsearch.index-reload", cfg.Kafka.Topics.IndexReload)
	assert.True(t, cfg.Auth.Enabled)
	assert.Empty(t, cfg.Auth.Keys)
	assert.Empty(t, cfg.RateLimit.TrustedProxies)
}

func TestLoadAuthAndProxies(t *testing.T) {
	path := writeConfig(t, `
auth:
  keyRateLimit: 10
  keys:
    - name: ci
      key: ci-key-0123456789abcdef
      rateLimit: 3
rateLimit:
  trustedProxies: ["10.0.0.0/8"]
`)
	t.Setenv("DS_AUTH_ADMIN_KEY", "env-key-0123456789abcdef")
	t.Setenv("DS_RATE_LIMIT_TRUSTED_PROXIES", "192.0.2.1, 10.0.0.0/8")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.True(t, cfg.Auth.Enabled)
	assert.Equal(t, 10, cfg.Auth.KeyRateLimit)
	assert.Equal(t, []StaticKey{
		{Name: "ci", Key: "ci-key-0123456789abcdef", RateLimit: 3},
		{Name: "env-admin", Key: "env-key-0123456789abcdef"},
	}, cfg.Auth.Keys)
	assert.Equal(t, []string{"192.0.2.1", " 10.0.0.0/8"}, cfg.RateLimit.TrustedProxies)
}

func TestLoadAuthDisabledFromEnv(t *testing.T) {
	t.Setenv("DS_AUTH_ENABLED", "false")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.False(t, cfg.Auth.Enabled)
}

func TestLoadFileAndEnv(t *testing.T) {
	path := writeConfig(t, `
docs:
  defaultVersion: stable
  refreshInterval: 30s
  versions:
    - name: stable
      source: ./stable/search_index.js
    - name: dev
search:
  defaultLimit: 5
  maxLimit: 50
  weights:
    title: 6
    text: 1
    categories:
      page: 2.0
`)
	t.Setenv("DS_SERVER_PORT", "9999")
	t.Setenv("DS_SEARCH_PREFIX_MATCH", "true")
	t.Setenv("DS_DOCS_SOURCE", "https://docs.example.org/stable/search_index.js")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 9999, cfg.Server.Port)
	assert.True(t, cfg.Search.PrefixMatch)
	assert.Equal(t, 30*time.Second, cfg.Docs.RefreshInterval)
	assert.Equal(t, 5, cfg.Search.DefaultLimit)
	assert.Equal(t, 2.0, cfg.Search.Weights.Categories["page"])
	assert.Equal(t, 0.4, cfg.Search.Weights.PrefixDiscount)
	require.Len(t, cfg.Docs.Versions, 2)
	assert.Equal(t, "https://docs.example.org/stable/search_index.js", cfg.Docs.Versions[0].Source)
	assert.Equal(t, "", cfg.Docs.Versions[1].Source)
}

func TestLoadRejectsInvalid(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		body string
	}{
		{"title not above text", "search:\n  weights:\n    title: 1\n    text: 1\n"},
		{"unknown default version", "docs:\n  defaultVersion: nope\n"},
		{"duplicate versions", "docs:\n  versions:\n    - name: dev\n    - name: dev\n"},
		{"zero default limit", "search:\n  defaultLimit: 0\n"},
		{"zero rate limit window", "rateLimit:\n  window: 0s\n"},
		{"short api key", "auth:\n  keys:\n    - name: weak\n      key: secret\n"},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := Load(writeConfig(t, tt.body))
			assert.Error(t, err)
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	t.Parallel()

	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestPostgresDSN(t *testing.T) {
	t.Parallel()

	p := PostgresConfig{Host: "db", Port: 5432, User: "u", Password: "p", Database: "d", SSLMode: "disable"}
	assert.Equal(t, "host=db port=5432 user=u password=p dbname=d sslmode=disable", p.DSN())
}
