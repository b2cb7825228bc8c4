package config

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/dmitrijs2005/feedkeeper/internal/flagx"
	"github.com/dmitrijs2005/feedkeeper/internal/timex"
)

// JsonConfig is a DTO used exclusively for JSON unmarshalling.
// Zero values leave the corresponding Config field untouched.
type JsonConfig struct {
	StorageURL      string         `json:"storage_url"`
	MessagesURL     string         `json:"messages_url"`
	AccessToken     string         `json:"access_token"`
	RequestTimeout  timex.Duration `json:"request_timeout"`
	RetryMaxElapsed timex.Duration `json:"retry_max_elapsed"`
	CacheDSN        string         `json:"cache_dsn"`
	LogLevel        string         `json:"log_level"`
	PollInterval    timex.Duration `json:"poll_interval"`
}

// parseJson overlays cfg with the file named by -c/-config, if any.
func parseJson(cfg *Config, args []string) error {
	path := flagx.ConfigPath(args)
	if path == "" {
		return nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config %s: %w", path, err)
	}

	var jc JsonConfig
	if err := json.Unmarshal(data, &jc); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}

	for dst, v := range map[*string]string{
		&cfg.StorageURL:  jc.StorageURL,
		&cfg.MessagesURL: jc.MessagesURL,
		&cfg.AccessToken: jc.AccessToken,
		&cfg.CacheDSN:    jc.CacheDSN,
		&cfg.LogLevel:    jc.LogLevel,
	} {
		if v != "" {
			*dst = v
		}
	}
	if jc.RequestTimeout.Duration > 0 {
		cfg.RequestTimeout = jc.RequestTimeout.Duration
	}
	if jc.RetryMaxElapsed.Duration > 0 {
		cfg.RetryMaxElapsed = jc.RetryMaxElapsed.Duration
	}
	if jc.PollInterval.Duration > 0 {
		cfg.PollInterval = jc.PollInterval.Duration
	}
	return nil
}
