// Package config loads runtime configuration for a FeedKeeper client.
//
// Sources & precedence
//
//  1. Built-in defaults (see (*Config).LoadDefaults).
//  2. Optional JSON file (see parseJson) selected via flags: -c or -config.
//  3. Command-line flags (see parseFlags), which override earlier values.
//
// Supported flags
//
//	-a string   content server base URL
//	-n string   message broker base URL
//	-t string   bearer access token
//	-r int      request timeout (seconds)
//	-w int      retry budget for transient failures (seconds)
//	-q string   local cache sqlite DSN
//	-l string   log level
//
// # JSON schema
//
// Intervals use timex.Duration, so values can be either strings like "3s"
// or integer nanoseconds:
//
//	{
//	  "storage_url": "http://127.0.0.1:8080",
//	  "request_timeout": "10s",
//	  "retry_max_elapsed": "30s",
//	  "cache_dsn": "file:feedkeeper-cache.db"
//	}
package config
