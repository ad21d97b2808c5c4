package config

import (
	"flag"
	"os"
	"time"

	"github.com/dmitrijs2005/assetsync/internal/flagx"
)

// parseFlags populates selected Config fields from command-line flags.
//
// Supported flags (short forms):
//
//	-a string   address and port of the backend server
//	-i int      online check interval in seconds
//	-d string   path to the local SQLite database
//	-u string   owner (user) id
//	-s string   session id
//	-t string   backend access token
//	-m string   address to serve /metrics on, empty disables it
//	-l string   log level: debug, info, warn, error
//	-r int      upload rate cap in bytes per second, 0 disables it
//	-q int      JPEG quality for derived variants
//	-o int      per-step timeout in seconds, 0 disables it
//
// Note: The function filters os.Args to only include the flags it knows about,
// using flagx.FilterArgs, to avoid interference with other components.
func parseFlags(cfg *Config) {
	args := flagx.FilterArgs(os.Args[1:], []string{"-a", "-i", "-d", "-u", "-s", "-t", "-m", "-l", "-r", "-q", "-o"})

	fs := flag.NewFlagSet("main", flag.ContinueOnError)

	fs.StringVar(&cfg.ServerEndpointAddr, "a", cfg.ServerEndpointAddr, "address and port to access server")
	onlineCheckInterval := fs.Int("i", int(cfg.OnlineCheckInterval.Seconds()), "online check interval (in seconds)")
	fs.StringVar(&cfg.DatabasePath, "d", cfg.DatabasePath, "local database path")
	fs.StringVar(&cfg.UserID, "u", cfg.UserID, "owner id")
	fs.StringVar(&cfg.SessionID, "s", cfg.SessionID, "session id")
	fs.StringVar(&cfg.AccessToken, "t", cfg.AccessToken, "backend access token")
	fs.StringVar(&cfg.MetricsAddr, "m", cfg.MetricsAddr, "metrics listen address")
	fs.StringVar(&cfg.LogLevel, "l", cfg.LogLevel, "log level")
	fs.Int64Var(&cfg.MaxUploadRate, "r", cfg.MaxUploadRate, "upload rate cap (bytes per second)")
	fs.IntVar(&cfg.JPEGQuality, "q", cfg.JPEGQuality, "JPEG quality")
	stepTimeout := fs.Int("o", int(cfg.StepTimeout.Seconds()), "per-step timeout (in seconds)")

	if err := fs.Parse(args); err != nil {
		panic(err)
	}

	cfg.OnlineCheckInterval = time.Duration(*onlineCheckInterval) * time.Second
	cfg.StepTimeout = time.Duration(*stepTimeout) * time.Second
}
