package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTempJSON(t *testing.T, dir, name string, data map[string]any) string {
	t.Helper()
	if dir == "" {
		dir = t.TempDir()
	}
	if name == "" {
		name = "cfg.json"
	}
	path := filepath.Join(dir, name)
	b, err := json.Marshal(data)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, b, 0o600))
	return path
}

func Test_parseJson(t *testing.T) {
	path := writeTempJSON(t, "", "server.json", map[string]any{
		"endpoint_addr":                  "www.example:9000",
		"database_dsn":                   "postgres://db",
		"secret_key":                     "my_secret_key",
		"access_token_validity_duration": "5m",
		"blob_backend":                   "localfs",
		"blob_root":                      "/var/blobs",
		"s3_root_user":                   "user",
		"s3_root_password":               "password",
		"s3_bucket":                      "bucket",
		"s3_region":                      "region",
		"s3_base_endpoint":               "base_endpoint",
		"message_ttl":                    "24h",
		"max_upload_bytes":               1024,
		"log_level":                      "debug",
	})

	t.Run("loads from json", func(t *testing.T) {
		cfg := &Config{}
		require.NoError(t, parseJson(cfg, []string{"-config", path}))

		assert.Equal(t, &Config{
			EndpointAddr:                "www.example:9000",
			DatabaseDSN:                 "postgres://db",
			SecretKey:                   "my_secret_key",
			AccessTokenValidityDuration: 5 * time.Minute,
			BlobBackend:                 "localfs",
			BlobRoot:                    "/var/blobs",
			S3RootUser:                  "user",
			S3RootPassword:              "password",
			S3Bucket:                    "bucket",
			S3Region:                    "region",
			S3BaseEndpoint:              "base_endpoint",
			MessageTTL:                  24 * time.Hour,
			MaxUploadBytes:              1024,
			LogLevel:                    "debug",
		}, cfg)
	})

	t.Run("no config flag leaves values untouched", func(t *testing.T) {
		cfg := &Config{EndpointAddr: "defaults:1234", MessageTTL: time.Hour}
		require.NoError(t, parseJson(cfg, []string{"-a", ":1"}))
		assert.Equal(t, &Config{EndpointAddr: "defaults:1234", MessageTTL: time.Hour}, cfg)
	})

	t.Run("partial file keeps other fields", func(t *testing.T) {
		partial := writeTempJSON(t, "", "partial.json", map[string]any{"s3_bucket": "only"})
		cfg := &Config{}
		cfg.LoadDefaults()
		require.NoError(t, parseJson(cfg, []string{"-c", partial}))
		assert.Equal(t, "only", cfg.S3Bucket)
		assert.Equal(t, ":8080", cfg.EndpointAddr)
	})

	t.Run("invalid json", func(t *testing.T) {
		bad := filepath.Join(t.TempDir(), "bad.json")
		require.NoError(t, os.WriteFile(bad, []byte("{"), 0o600))
		require.Error(t, parseJson(&Config{}, []string{"-c", bad}))
	})
}
