package config

import (
	"encoding/json"
	"os"

	"github.com/dmitrijs2005/passshare/internal/flagx"
	"github.com/dmitrijs2005/passshare/internal/timex"
)

// JsonConfig is the on-disk form of Config. Only non-zero fields override
// the current value.
type JsonConfig struct {
	EndpointAddr    string         `json:"endpoint_addr"`
	DatabaseDSN     string         `json:"database_dsn"`
	RedisAddr       string         `json:"redis_addr"`
	LogLevel        string         `json:"log_level"`
	S3RootUser      string         `json:"s3_root_user"`
	S3RootPassword  string         `json:"s3_root_password"`
	S3Bucket        string         `json:"s3_bucket"`
	S3Region        string         `json:"s3_region"`
	S3BaseEndpoint  string         `json:"s3_base_endpoint"`
	MaxUploadBytes  int64          `json:"max_upload_bytes"`
	ShutdownTimeout timex.Duration `json:"shutdown_timeout"`
}

// parseJson overlays config with the JSON file named by -c/-config.
// A missing or malformed file panics.
func parseJson(config *Config, args []string) {
	path := flagx.ConfigPath(args)
	if path == "" {
		return
	}

	file, err := os.ReadFile(path)
	if err != nil {
		panic(err)
	}

	c := &JsonConfig{}
	if err := json.Unmarshal(file, c); err != nil {
		panic(err)
	}

	for dst, v := range map[*string]string{
		&config.EndpointAddr:   c.EndpointAddr,
		&config.DatabaseDSN:    c.DatabaseDSN,
		&config.RedisAddr:      c.RedisAddr,
		&config.LogLevel:       c.LogLevel,
		&config.S3RootUser:     c.S3RootUser,
		&config.S3RootPassword: c.S3RootPassword,
		&config.S3Bucket:       c.S3Bucket,
		&config.S3Region:       c.S3Region,
		&config.S3BaseEndpoint: c.S3BaseEndpoint,
	} {
		if v != "" {
			*dst = v
		}
	}
	if c.MaxUploadBytes > 0 {
		config.MaxUploadBytes = c.MaxUploadBytes
	}
	if c.ShutdownTimeout.Duration > 0 {
		config.ShutdownTimeout = c.ShutdownTimeout.Duration
	}
}
