// Package config handles configuration for the reference backend,
// including defaults, JSON overlay, and command-line flags.
package config

import (
	"os"
	"time"
)

// Config holds runtime settings for the PassShare backend.
//
// Empty DatabaseDSN, S3BaseEndpoint or RedisAddr select the in-process
// implementation of the corresponding backend.
type Config struct {
	EndpointAddr string
	DatabaseDSN  string
	RedisAddr    string
	LogLevel     string

	S3RootUser     string
	S3RootPassword string
	S3Bucket       string
	S3Region       string
	S3BaseEndpoint string

	MaxUploadBytes  int64
	ShutdownTimeout time.Duration
}

// LoadDefaults populates c with development defaults: everything in memory.
func (c *Config) LoadDefaults() {
	c.EndpointAddr = ":8080"
	c.LogLevel = "info"
	c.S3RootUser = "admin"
	c.S3RootPassword = "secretpassword"
	c.S3Bucket = "passshare"
	c.S3Region = "us-east-1"
	c.MaxUploadBytes = 100 << 20
	c.ShutdownTimeout = 10 * time.Second
}

// LoadConfig builds a Config by applying defaults, then overlaying values
// from an optional JSON file and finally from command-line flags.
func LoadConfig() *Config {
	return load(os.Args[1:])
}

func load(args []string) *Config {
	cfg := &Config{}
	cfg.LoadDefaults()
	parseJson(cfg, args)
	parseFlags(cfg, args)
	return cfg
}
