package config

import (
	"flag"
	"fmt"
	"io"
	"time"

	"github.com/dmitrijs2005/feedkeeper/internal/flagx"
)

var clientFlags = []string{"-a", "-n", "-t", "-r", "-w", "-q", "-l", "-p"}

// parseFlags populates Config fields from the client flags found in args.
// Other flags are filtered out with flagx.FilterArgs.
func parseFlags(cfg *Config, args []string) error {
	fs := flag.NewFlagSet("client", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	fs.StringVar(&cfg.StorageURL, "a", cfg.StorageURL, "content server base URL")
	fs.StringVar(&cfg.MessagesURL, "n", cfg.MessagesURL, "message broker base URL")
	fs.StringVar(&cfg.AccessToken, "t", cfg.AccessToken, "bearer access token")
	requestTimeout := fs.Int("r", int(cfg.RequestTimeout.Seconds()), "request timeout (in seconds)")
	retryMaxElapsed := fs.Int("w", int(cfg.RetryMaxElapsed.Seconds()), "retry budget (in seconds)")
	fs.StringVar(&cfg.CacheDSN, "q", cfg.CacheDSN, "local cache DSN")
	fs.StringVar(&cfg.LogLevel, "l", cfg.LogLevel, "log level")
	pollInterval := fs.Int("p", int(cfg.PollInterval.Seconds()), "inbox poll interval (in seconds)")

	if err := fs.Parse(flagx.FilterArgs(args, clientFlags)); err != nil {
		return fmt.Errorf("parse flags: %w", err)
	}

	cfg.RequestTimeout = time.Duration(*requestTimeout) * time.Second
	cfg.RetryMaxElapsed = time.Duration(*retryMaxElapsed) * time.Second
	cfg.PollInterval = time.Duration(*pollInterval) * time.Second
	return nil
}
