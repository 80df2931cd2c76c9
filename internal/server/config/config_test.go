package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func defaults() *Config {
	c := &Config{}
	c.LoadDefaults()
	return c
}

func TestLoadDefaults(t *testing.T) {
	c := defaults()

	assert.Equal(t, ":8080", c.EndpointAddr)
	assert.Empty(t, c.DatabaseDSN, "sessions default to memory")
	assert.Empty(t, c.RedisAddr)
	assert.Empty(t, c.S3BaseEndpoint, "blobs default to memory")
	assert.Equal(t, "passshare", c.S3Bucket)
	assert.Equal(t, "us-east-1", c.S3Region)
	assert.Equal(t, int64(100<<20), c.MaxUploadBytes)
	assert.Equal(t, 10*time.Second, c.ShutdownTimeout)
}

func TestLoad_FlagsOverrideDefaults(t *testing.T) {
	c := load([]string{"-a", ":9999", "-m", "5", "-unknown"})

	assert.Equal(t, ":9999", c.EndpointAddr)
	assert.Equal(t, int64(5<<20), c.MaxUploadBytes)
	assert.Equal(t, "info", c.LogLevel)
}
