package config

import (
	"flag"
	"fmt"
	"io"
	"time"

	"github.com/dmitrijs2005/feedkeeper/internal/flagx"
)

var serverFlags = []string{"-a", "-d", "-s", "-t", "-k", "-f", "-u", "-p", "-b", "-g", "-e", "-m", "-x", "-l"}

// parseFlags populates Config fields from command-line flags.
//
// Supported flags (short forms):
//
//	-a string   HTTP bind address (e.g., ":8080")
//	-d string   PostgreSQL DSN
//	-s string   JWT HMAC secret key
//	-t int      access token validity, minutes
//	-k string   blob backend: s3 | localfs
//	-f string   localfs blob root directory
//	-u string   S3 root user
//	-p string   S3 root password
//	-b string   S3 bucket name
//	-g string   S3 region
//	-e string   S3 base endpoint (e.g., "http://127.0.0.1:9000/")
//	-m int      message TTL, hours
//	-x int      max batch upload size, bytes
//	-l string   log level
func parseFlags(config *Config, args []string) error {
	fs := flag.NewFlagSet("server", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	fs.StringVar(&config.EndpointAddr, "a", config.EndpointAddr, "address and port to run server")
	fs.StringVar(&config.DatabaseDSN, "d", config.DatabaseDSN, "database DSN")
	fs.StringVar(&config.SecretKey, "s", config.SecretKey, "secret key")
	accessTokenValidity := fs.Int("t", int(config.AccessTokenValidityDuration.Minutes()), "access token validity (in minutes)")
	fs.StringVar(&config.BlobBackend, "k", config.BlobBackend, "blob backend (s3|localfs)")
	fs.StringVar(&config.BlobRoot, "f", config.BlobRoot, "localfs blob root")
	fs.StringVar(&config.S3RootUser, "u", config.S3RootUser, "S3 root user")
	fs.StringVar(&config.S3RootPassword, "p", config.S3RootPassword, "S3 root password")
	fs.StringVar(&config.S3Bucket, "b", config.S3Bucket, "S3 bucket")
	fs.StringVar(&config.S3Region, "g", config.S3Region, "S3 region")
	fs.StringVar(&config.S3BaseEndpoint, "e", config.S3BaseEndpoint, "S3 base endpoint")
	messageTTL := fs.Int("m", int(config.MessageTTL.Hours()), "message TTL (in hours)")
	fs.Int64Var(&config.MaxUploadBytes, "x", config.MaxUploadBytes, "max upload bytes")
	fs.StringVar(&config.LogLevel, "l", config.LogLevel, "log level")

	if err := fs.Parse(flagx.FilterArgs(args, serverFlags)); err != nil {
		return fmt.Errorf("parse flags: %w", err)
	}

	config.AccessTokenValidityDuration = time.Duration(*accessTokenValidity) * time.Minute
	config.MessageTTL = time.Duration(*messageTTL) * time.Hour

	switch config.BlobBackend {
	case BlobBackendS3, BlobBackendLocalFS:
	default:
		return fmt.Errorf("unknown blob backend %q", config.BlobBackend)
	}
	return nil
}
