package config

import (
	"encoding/json"
	"os"

	"github.com/dmitrijs2005/passshare/internal/flagx"
	"github.com/dmitrijs2005/passshare/internal/timex"
)

// JsonConfig is the on-disk form of Config. Durations are timex.Duration, so
// "3s" and integer nanoseconds both work. Absent fields keep their current
// value.
type JsonConfig struct {
	ServerURL     string `json:"server_url"`
	WebSocketPath string `json:"websocket_path"`
	DatabasePath  string `json:"database_path"`
	DownloadDir   string `json:"download_dir"`
	LogLevel      string `json:"log_level"`

	RequestTimeout      timex.Duration `json:"request_timeout"`
	OnlineCheckInterval timex.Duration `json:"online_check_interval"`

	ReconnectBaseDelay timex.Duration `json:"reconnect_base_delay"`
	ReconnectMaxDelay  timex.Duration `json:"reconnect_max_delay"`
	ReconnectAttempts  int            `json:"reconnect_attempts"`
	CreateAttempts     int            `json:"create_attempts"`
}

// parseJson overlays cfg with the JSON file given by -c/-config in args.
// Read and decode errors panic.
func parseJson(cfg *Config, args []string) {
	path := flagx.ConfigPath(args)
	if path == "" {
		return
	}

	data, err := os.ReadFile(path)
	if err != nil {
		panic(err)
	}
	var jc JsonConfig
	if err := json.Unmarshal(data, &jc); err != nil {
		panic(err)
	}

	setString(&cfg.ServerURL, jc.ServerURL)
	setString(&cfg.WebSocketPath, jc.WebSocketPath)
	setString(&cfg.DatabasePath, jc.DatabasePath)
	setString(&cfg.DownloadDir, jc.DownloadDir)
	setString(&cfg.LogLevel, jc.LogLevel)

	if jc.RequestTimeout.Duration > 0 {
		cfg.RequestTimeout = jc.RequestTimeout.Duration
	}
	if jc.OnlineCheckInterval.Duration > 0 {
		cfg.OnlineCheckInterval = jc.OnlineCheckInterval.Duration
	}
	if jc.ReconnectBaseDelay.Duration > 0 {
		cfg.ReconnectBaseDelay = jc.ReconnectBaseDelay.Duration
	}
	if jc.ReconnectMaxDelay.Duration > 0 {
		cfg.ReconnectMaxDelay = jc.ReconnectMaxDelay.Duration
	}
	if jc.ReconnectAttempts > 0 {
		cfg.ReconnectAttempts = jc.ReconnectAttempts
	}
	if jc.CreateAttempts > 0 {
		cfg.CreateAttempts = jc.CreateAttempts
	}
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}
