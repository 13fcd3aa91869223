package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "https://gto.shopreview.co.kr/usr", cfg.Site.IndexURL)
	assert.Contains(t, cfg.Site.CampaignURLTemplate, "%d")
	assert.Equal(t, 10*time.Second, cfg.FetchTimeout())
	assert.Equal(t, 3, cfg.Directory.MaxAttempts)
	assert.Equal(t, 3*time.Second, cfg.DirectoryBackoff())
	assert.Equal(t, 4, cfg.Crawl.Prefetch)
	assert.Equal(t, 20*time.Second, cfg.IdlePing())
	assert.True(t, cfg.Logging.Development)
}

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := []byte(`
server:
  port: 9090
crawl:
  prefetch: 8
observer:
  idle_ping_seconds: 45
logging:
  development: false
`)
	require.NoError(t, os.WriteFile(path, content, 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, 8, cfg.Crawl.Prefetch)
	assert.Equal(t, 45*time.Second, cfg.IdlePing())
	assert.False(t, cfg.Logging.Development)
	// Untouched sections keep their defaults.
	assert.Equal(t, "https://gto.shopreview.co.kr/usr", cfg.Site.IndexURL)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
}

func TestValidate(t *testing.T) {
	valid := func() Config {
		cfg, err := Load("")
		require.NoError(t, err)
		return cfg
	}

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero port", func(c *Config) { c.Server.Port = 0 }},
		{"empty index url", func(c *Config) { c.Site.IndexURL = "" }},
		{"template without placeholder", func(c *Config) { c.Site.CampaignURLTemplate = "https://example.com/detail" }},
		{"zero fetch timeout", func(c *Config) { c.Fetch.TimeoutSeconds = 0 }},
		{"zero directory attempts", func(c *Config) { c.Directory.MaxAttempts = 0 }},
		{"zero prefetch", func(c *Config) { c.Crawl.Prefetch = 0 }},
		{"zero idle ping", func(c *Config) { c.Observer.IdlePingSeconds = 0 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(&cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}
