// Package config loads runtime configuration for the PassShare CLI.
//
// Sources & precedence
//
//  1. Built-in defaults (see (*Config).LoadDefaults).
//  2. Optional JSON file selected with -c or -config.
//  3. Command-line flags, which override earlier values.
//
// Supported flags
//
//	-s string   server base URL (http or https)
//	-i int      online status check interval (seconds)
//	-d string   local sqlite database path
//	-o string   download directory
//	-l string   log level
//
// # JSON schema
//
// Intervals are timex.Duration values, either strings like "3s" or integer
// nanoseconds:
//
//	{
//	  "server_url": "http://127.0.0.1:8080",
//	  "websocket_path": "/ws",
//	  "database_path": "passshare.db",
//	  "download_dir": "downloads",
//	  "log_level": "info",
//	  "request_timeout": "30s",
//	  "online_check_interval": "3s",
//	  "reconnect_base_delay": "500ms",
//	  "reconnect_max_delay": "15s",
//	  "reconnect_attempts": 8,
//	  "create_attempts": 3
//	}
//
// Environment variables are not read.
package config
