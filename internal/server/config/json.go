package config

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/dmitrijs2005/feedkeeper/internal/flagx"
	"github.com/dmitrijs2005/feedkeeper/internal/timex"
)

// JsonConfig is a DTO used only for reading JSON configuration files.
// Interval fields use timex.Duration so both "15m" and integer nanoseconds
// are accepted. Zero values leave the corresponding Config field untouched.
type JsonConfig struct {
	EndpointAddr                string         `json:"endpoint_addr"`
	DatabaseDSN                 string         `json:"database_dsn"`
	SecretKey                   string         `json:"secret_key"`
	AccessTokenValidityDuration timex.Duration `json:"access_token_validity_duration"`
	BlobBackend                 string         `json:"blob_backend"`
	BlobRoot                    string         `json:"blob_root"`
	S3RootUser                  string         `json:"s3_root_user"`
	S3RootPassword              string         `json:"s3_root_password"`
	S3Bucket                    string         `json:"s3_bucket"`
	S3Region                    string         `json:"s3_region"`
	S3BaseEndpoint              string         `json:"s3_base_endpoint"`
	MessageTTL                  timex.Duration `json:"message_ttl"`
	MaxUploadBytes              int64          `json:"max_upload_bytes"`
	LogLevel                    string         `json:"log_level"`
}

// parseJson overlays config with the file named by -c/-config, if any.
func parseJson(config *Config, args []string) error {
	path := flagx.ConfigPath(args)
	if path == "" {
		return nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config %s: %w", path, err)
	}

	var c JsonConfig
	if err := json.Unmarshal(data, &c); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}

	setString(&config.EndpointAddr, c.EndpointAddr)
	setString(&config.DatabaseDSN, c.DatabaseDSN)
	setString(&config.SecretKey, c.SecretKey)
	setString(&config.BlobBackend, c.BlobBackend)
	setString(&config.BlobRoot, c.BlobRoot)
	setString(&config.S3RootUser, c.S3RootUser)
	setString(&config.S3RootPassword, c.S3RootPassword)
	setString(&config.S3Bucket, c.S3Bucket)
	setString(&config.S3Region, c.S3Region)
	setString(&config.S3BaseEndpoint, c.S3BaseEndpoint)
	setString(&config.LogLevel, c.LogLevel)

	if c.AccessTokenValidityDuration.Duration > 0 {
		config.AccessTokenValidityDuration = c.AccessTokenValidityDuration.Duration
	}
	if c.MessageTTL.Duration > 0 {
		config.MessageTTL = c.MessageTTL.Duration
	}
	if c.MaxUploadBytes > 0 {
		config.MaxUploadBytes = c.MaxUploadBytes
	}
	return nil
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}
