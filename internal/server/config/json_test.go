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
	path := filepath.Join(dir, name)
	b, err := json.Marshal(data)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, b, 0o600))
	return path
}

func Test_parseJson(t *testing.T) {
	dir := t.TempDir()
	path := writeTempJSON(t, dir, "server.json", map[string]any{
		"endpoint_addr":    "www.example:9000",
		"database_dsn":     "postgres://db",
		"redis_addr":       "redis:6379",
		"s3_bucket":        "bucket",
		"s3_base_endpoint": "http://minio:9000",
		"max_upload_bytes": 1024,
		"shutdown_timeout": "3s",
	})

	t.Run("loads from json", func(t *testing.T) {
		cfg := defaults()
		parseJson(cfg, []string{"-config", path})

		assert.Equal(t, "www.example:9000", cfg.EndpointAddr)
		assert.Equal(t, "postgres://db", cfg.DatabaseDSN)
		assert.Equal(t, "redis:6379", cfg.RedisAddr)
		assert.Equal(t, "bucket", cfg.S3Bucket)
		assert.Equal(t, "http://minio:9000", cfg.S3BaseEndpoint)
		assert.Equal(t, int64(1024), cfg.MaxUploadBytes)
		assert.Equal(t, 3*time.Second, cfg.ShutdownTimeout)
		assert.Equal(t, "us-east-1", cfg.S3Region, "absent fields keep their value")
	})

	t.Run("flags win over json", func(t *testing.T) {
		cfg := load([]string{"-c", path, "-a", ":7000"})
		assert.Equal(t, ":7000", cfg.EndpointAddr)
		assert.Equal(t, "postgres://db", cfg.DatabaseDSN)
	})

	t.Run("no config flag leaves config alone", func(t *testing.T) {
		cfg := &Config{EndpointAddr: "defaults:1234"}
		parseJson(cfg, nil)
		assert.Equal(t, "defaults:1234", cfg.EndpointAddr)
	})

	t.Run("invalid JSON panics", func(t *testing.T) {
		bad := filepath.Join(dir, "bad.json")
		require.NoError(t, os.WriteFile(bad, []byte("{"), 0o600))
		assert.Panics(t, func() { parseJson(defaults(), []string{"-c", bad}) })
	})

	t.Run("missing file panics", func(t *testing.T) {
		assert.Panics(t, func() { parseJson(defaults(), []string{"-c", filepath.Join(dir, "nope.json")}) })
	})
}
