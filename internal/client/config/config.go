package config

import "time"

// Config holds runtime settings for a FeedKeeper client session.
//
// Fields:
//   - StorageURL: base URL of the content server.
//   - MessagesURL: base URL of the message broker; defaults to StorageURL.
//   - AccessToken: bearer token issued by the login service.
//   - RequestTimeout: per-request HTTP timeout.
//   - RetryMaxElapsed: how long transient failures are retried before giving up.
//   - CacheDSN: sqlite DSN of the local object cache.
//   - PollInterval: how often the inbox is drained in the background.
type Config struct {
	StorageURL      string
	MessagesURL     string
	AccessToken     string
	RequestTimeout  time.Duration
	RetryMaxElapsed time.Duration
	CacheDSN        string
	LogLevel        string
	PollInterval    time.Duration
}

// LoadDefaults populates c with sensible defaults.
func (c *Config) LoadDefaults() {
	c.StorageURL = "http://127.0.0.1:8080"
	c.MessagesURL = ""
	c.AccessToken = ""
	c.RequestTimeout = 10 * time.Second
	c.RetryMaxElapsed = 30 * time.Second
	c.CacheDSN = "file:feedkeeper-cache.db"
	c.LogLevel = "info"
	c.PollInterval = 15 * time.Second
}

// LoadConfig constructs a Config, applies defaults, then overlays values from
// JSON (if present) and command-line flags (if present). Later sources take
// precedence over earlier ones. args excludes the program name.
func LoadConfig(args []string) (*Config, error) {
	cfg := &Config{}
	cfg.LoadDefaults()
	if err := parseJson(cfg, args); err != nil {
		return nil, err
	}
	if err := parseFlags(cfg, args); err != nil {
		return nil, err
	}
	if cfg.MessagesURL == "" {
		cfg.MessagesURL = cfg.StorageURL
	}
	return cfg, nil
}
