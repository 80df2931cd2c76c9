package config

import (
	"os"
	"time"
)

// Config holds runtime settings for the PassShare CLI.
type Config struct {
	ServerURL     string
	WebSocketPath string
	DatabasePath  string
	DownloadDir   string
	LogLevel      string

	RequestTimeout      time.Duration
	OnlineCheckInterval time.Duration

	ReconnectBaseDelay time.Duration
	ReconnectMaxDelay  time.Duration
	ReconnectAttempts  int
	CreateAttempts     int
}

// LoadDefaults populates c with sensible defaults.
func (c *Config) LoadDefaults() {
	c.ServerURL = "http://127.0.0.1:8080"
	c.WebSocketPath = "/ws"
	c.DatabasePath = "passshare.db"
	c.DownloadDir = "downloads"
	c.LogLevel = "info"

	c.RequestTimeout = 30 * time.Second
	c.OnlineCheckInterval = 3 * time.Second

	c.ReconnectBaseDelay = 500 * time.Millisecond
	c.ReconnectMaxDelay = 15 * time.Second
	c.ReconnectAttempts = 8
	c.CreateAttempts = 3
}

// LoadConfig builds a Config from defaults, then the JSON file named by
// -c/-config, then command-line flags. Later sources win.
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
