package config

import (
	"flag"
	"os"
	"time"

	"github.com/dmitrijs2005/vaultsync/internal/flagx"
)

// parseFlags populates Config fields from command-line flags. Intervals
// are given in seconds. See the package doc for the flag list.
func parseFlags(cfg *Config) {
	// Filter args to include only those handled here.
	args := flagx.FilterArgs(os.Args[1:], []string{"-a", "-i", "-t", "-d", "-C", "-k", "-v", "-w"})

	fs := flag.NewFlagSet("main", flag.ContinueOnError)

	fs.StringVar(&cfg.ServerEndpointAddr, "a", cfg.ServerEndpointAddr, "address and port to access server")
	syncInterval := fs.Int("i", int(cfg.SyncInterval.Seconds()), "sync interval (in seconds)")
	requestTimeout := fs.Int("t", int(cfg.RequestTimeout.Seconds()), "request timeout (in seconds)")
	fs.StringVar(&cfg.LocalDBPath, "d", cfg.LocalDBPath, "local database file")
	fs.StringVar(&cfg.CryptoProvider, "C", cfg.CryptoProvider, "crypto provider")
	fs.StringVar(&cfg.KeyringService, "k", cfg.KeyringService, "keyring service name")
	fs.StringVar(&cfg.LogLevel, "v", cfg.LogLevel, "log level")
	fs.StringVar(&cfg.ClientURL, "w", cfg.ClientURL, "invite page base URL")

	if err := fs.Parse(args); err != nil {
		panic(err)
	}

	cfg.SyncInterval = time.Duration(*syncInterval) * time.Second
	cfg.RequestTimeout = time.Duration(*requestTimeout) * time.Second
}
