package config

import (
	"fmt"
	"net/url"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

//go:generate go run ../../cmd/schema/main.go schema.json

// default upstream feeds
const (
	DefaultPlaybookURL = "https://shivacharanmandhapuram.substack.com/feed"
	DefaultThoughtsURL = "https://feeds.simplecast.com/54nAGcIl"
)

// Config holds the application configuration
type Config struct {
	Server   ServerConfig   `yaml:"server" json:"server" jsonschema:"description=Server configuration"`
	Cache    CacheConfig    `yaml:"cache" json:"cache" jsonschema:"description=Feed cache configuration"`
	Playbook PlaybookConfig `yaml:"playbook" json:"playbook" jsonschema:"description=Paginated playbook feed"`
	Thoughts ThoughtsConfig `yaml:"thoughts" json:"thoughts" jsonschema:"description=Legacy thoughts feed"`
}

// ServerConfig holds HTTP server settings
type ServerConfig struct {
	Listen    string        `yaml:"listen" json:"listen" jsonschema:"default=:8080,description=HTTP server listen address"`
	Timeout   time.Duration `yaml:"timeout" json:"timeout" jsonschema:"default=30s,description=HTTP server timeout"`
	StaticDir string        `yaml:"static_dir" json:"static_dir" jsonschema:"description=Directory with the built frontend served at /"`
}

// CacheConfig holds feed cache settings
type CacheConfig struct {
	TTL    time.Duration `yaml:"ttl" json:"ttl" jsonschema:"default=10m,description=Freshness window of cached feeds"`
	MaxAge time.Duration `yaml:"max_age" json:"max_age" jsonschema:"default=5m,description=Browser cache max-age of feed responses"`
}

// FeedConfig holds settings common for upstream feeds
type FeedConfig struct {
	URL       string        `yaml:"url" json:"url" jsonschema:"required,description=Upstream RSS/Atom feed URL"`
	Timeout   time.Duration `yaml:"timeout" json:"timeout" jsonschema:"default=15s,description=Upstream fetch timeout"`
	UserAgent string        `yaml:"user_agent" json:"user_agent" jsonschema:"default=Mozilla/5.0 (compatible; RSS-Parser),description=User agent for upstream requests"`
}

// PlaybookConfig holds the paginated feed settings
type PlaybookConfig struct {
	FeedConfig `yaml:",inline"`
	PageSize   int `yaml:"page_size" json:"page_size" jsonschema:"default=6,minimum=1,description=Default posts per page"`
}

// ThoughtsConfig holds the legacy feed settings
type ThoughtsConfig struct {
	FeedConfig   `yaml:",inline"`
	MaxItems     int    `yaml:"max_items" json:"max_items" jsonschema:"default=10,minimum=1,description=Maximum number of posts returned"`
	FallbackLink string `yaml:"fallback_link" json:"fallback_link" jsonschema:"description=Link of the fallback post served when the feed is unavailable"`
}

// Default returns configuration with all defaults set
func Default() *Config {
	cfg := &Config{}
	cfg.setDefaults()
	return cfg
}

// Load reads configuration from a YAML file
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path) //nolint:gosec // file path comes from CLI flag
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	// expand environment variables
	expanded := os.ExpandEnv(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	cfg.setDefaults()

	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	// verify against embedded schema
	if err := VerifyAgainstEmbeddedSchema(&cfg); err != nil {
		// log warning but don't fail - schema validation is supplementary
		fmt.Printf("warning: schema validation failed: %v\n", err)
	}

	return &cfg, nil
}

func (c *Config) setDefaults() {
	// server
	if c.Server.Listen == "" {
		c.Server.Listen = ":8080"
	}
	if c.Server.Timeout == 0 {
		c.Server.Timeout = 30 * time.Second
	}

	// cache
	if c.Cache.TTL == 0 {
		c.Cache.TTL = 10 * time.Minute
	}
	if c.Cache.MaxAge == 0 {
		c.Cache.MaxAge = 5 * time.Minute
	}

	// feeds
	if c.Playbook.URL == "" {
		c.Playbook.URL = DefaultPlaybookURL
	}
	c.Playbook.FeedConfig.setDefaults()
	if c.Playbook.PageSize == 0 {
		c.Playbook.PageSize = 6
	}

	if c.Thoughts.URL == "" {
		c.Thoughts.URL = DefaultThoughtsURL
	}
	c.Thoughts.FeedConfig.setDefaults()
	if c.Thoughts.MaxItems == 0 {
		c.Thoughts.MaxItems = 10
	}
	if c.Thoughts.FallbackLink == "" {
		c.Thoughts.FallbackLink = "https://shivacharan.substack.com"
	}
}

func (f *FeedConfig) setDefaults() {
	if f.Timeout == 0 {
		f.Timeout = 15 * time.Second
	}
	if f.UserAgent == "" {
		f.UserAgent = "Mozilla/5.0 (compatible; RSS-Parser)"
	}
}

// validate checks configuration for correctness
func validate(cfg *Config) error {
	if cfg.Server.Timeout < time.Second {
		return fmt.Errorf("server timeout must be at least 1 second")
	}

	if cfg.Cache.TTL < time.Second {
		return fmt.Errorf("cache ttl must be at least 1 second")
	}
	if cfg.Cache.MaxAge < 0 {
		return fmt.Errorf("cache max_age must be non-negative")
	}

	if err := validateFeed("playbook", cfg.Playbook.FeedConfig); err != nil {
		return err
	}
	if cfg.Playbook.PageSize < 1 {
		return fmt.Errorf("playbook.page_size must be at least 1")
	}

	if err := validateFeed("thoughts", cfg.Thoughts.FeedConfig); err != nil {
		return err
	}
	if cfg.Thoughts.MaxItems < 1 {
		return fmt.Errorf("thoughts.max_items must be at least 1")
	}

	return nil
}

func validateFeed(name string, f FeedConfig) error {
	u, err := url.Parse(f.URL)
	if err != nil {
		return fmt.Errorf("%s.url is invalid: %w", name, err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("%s.url must be an absolute http(s) URL, got %q", name, f.URL)
	}
	if f.Timeout < 100*time.Millisecond {
		return fmt.Errorf("%s.timeout must be at least 100ms", name)
	}
	return nil
}

// GetServerConfig returns server configuration
func (c *Config) GetServerConfig() (listen string, timeout time.Duration) {
	return c.Server.Listen, c.Server.Timeout
}
