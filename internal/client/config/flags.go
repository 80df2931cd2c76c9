package config

import (
	"flag"
	"time"

	"github.com/dmitrijs2005/passshare/internal/flagx"
)

// parseFlags populates selected Config fields from command-line flags.
//
//	-s string   server base URL
//	-i int      online check interval in seconds
//	-d string   local database path
//	-o string   download directory
//	-l string   log level (debug, info, warn, error)
//
// Only these flags are picked out of args, so other loaders can share them.
func parseFlags(cfg *Config, args []string) {
	args = flagx.FilterArgs(args, []string{"-s", "-i", "-d", "-o", "-l"})

	fs := flag.NewFlagSet("main", flag.ContinueOnError)

	fs.StringVar(&cfg.ServerURL, "s", cfg.ServerURL, "server base URL")
	onlineCheckInterval := fs.Int("i", int(cfg.OnlineCheckInterval.Seconds()), "online check interval (in seconds)")
	fs.StringVar(&cfg.DatabasePath, "d", cfg.DatabasePath, "local database path")
	fs.StringVar(&cfg.DownloadDir, "o", cfg.DownloadDir, "download directory")
	fs.StringVar(&cfg.LogLevel, "l", cfg.LogLevel, "log level")

	if err := fs.Parse(args); err != nil {
		panic(err)
	}

	cfg.OnlineCheckInterval = time.Duration(*onlineCheckInterval) * time.Second
}
