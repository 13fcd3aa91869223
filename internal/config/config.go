// Package config loads and validates service configuration via Viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config captures all service configuration knobs loaded via Viper.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Site      SiteConfig      `mapstructure:"site"`
	Fetch     FetchConfig     `mapstructure:"fetch"`
	Directory DirectoryConfig `mapstructure:"directory"`
	Crawl     CrawlConfig     `mapstructure:"crawl"`
	Observer  ObserverConfig  `mapstructure:"observer"`
	Logging   LoggingConfig   `mapstructure:"logging"`
}

// ServerConfig controls HTTP server behavior.
type ServerConfig struct {
	Port int `mapstructure:"port"`
}

// SiteConfig points at the campaign site being walked.
type SiteConfig struct {
	IndexURL            string `mapstructure:"index_url"`
	CampaignURLTemplate string `mapstructure:"campaign_url_template"`
}

// FetchConfig configures the page fetcher.
type FetchConfig struct {
	TimeoutSeconds int    `mapstructure:"timeout_seconds"`
	UserAgent      string `mapstructure:"user_agent"`
}

// DirectoryConfig governs index-page resolution retries.
type DirectoryConfig struct {
	MaxAttempts    int `mapstructure:"max_attempts"`
	BackoffSeconds int `mapstructure:"backoff_seconds"`
}

// CrawlConfig governs the per-session crawl pipeline.
type CrawlConfig struct {
	Prefetch int `mapstructure:"prefetch"`
}

// ObserverConfig controls connected observer keep-alive behavior.
type ObserverConfig struct {
	IdlePingSeconds int `mapstructure:"idle_ping_seconds"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool `mapstructure:"development"`
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("GTOAPP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("site.index_url", "https://gto.shopreview.co.kr/usr")
	v.SetDefault("site.campaign_url_template", "https://gto.shopreview.co.kr/usr/campaign_detail?csq=%d")
	v.SetDefault("fetch.timeout_seconds", 10)
	v.SetDefault("fetch.user_agent", "gtoapp/0.1")
	v.SetDefault("directory.max_attempts", 3)
	v.SetDefault("directory.backoff_seconds", 3)
	v.SetDefault("crawl.prefetch", 4)
	v.SetDefault("observer.idle_ping_seconds", 20)
	v.SetDefault("logging.development", true)
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Server.Port <= 0 {
		return fmt.Errorf("server.port must be > 0")
	}
	if c.Site.IndexURL == "" {
		return fmt.Errorf("site.index_url must be set")
	}
	if !strings.Contains(c.Site.CampaignURLTemplate, "%d") {
		return fmt.Errorf("site.campaign_url_template must contain a %%d placeholder")
	}
	if c.Fetch.TimeoutSeconds <= 0 {
		return fmt.Errorf("fetch.timeout_seconds must be > 0")
	}
	if c.Directory.MaxAttempts <= 0 {
		return fmt.Errorf("directory.max_attempts must be > 0")
	}
	if c.Crawl.Prefetch <= 0 {
		return fmt.Errorf("crawl.prefetch must be > 0")
	}
	if c.Observer.IdlePingSeconds <= 0 {
		return fmt.Errorf("observer.idle_ping_seconds must be > 0")
	}
	return nil
}

// FetchTimeout converts the configured fetch timeout into a duration.
func (c Config) FetchTimeout() time.Duration {
	return time.Duration(c.Fetch.TimeoutSeconds) * time.Second
}

// DirectoryBackoff converts the configured retry backoff into a duration.
func (c Config) DirectoryBackoff() time.Duration {
	return time.Duration(c.Directory.BackoffSeconds) * time.Second
}

// IdlePing converts the observer keep-alive interval into a duration.
func (c Config) IdlePing() time.Duration {
	return time.Duration(c.Observer.IdlePingSeconds) * time.Second
}
