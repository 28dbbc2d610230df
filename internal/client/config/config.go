package config

import "time"

// Config holds runtime settings for the vaultsync CLI.
//
// Fields:
//   - ServerEndpointAddr: host:port of the server gRPC endpoint.
//   - SyncInterval: how often vaults are synchronized in the background.
//   - RequestTimeout: deadline for a single server call.
//   - LocalDBPath: SQLite file holding the local replica.
//   - CryptoProvider: "standard" or "stub".
//   - KeyringService: service name for remembered sessions in the OS keyring.
//   - LogLevel: zap level for diagnostics written to stderr.
//   - ClientURL: base URL of the invite page, used for invite QR codes.
type Config struct {
	ServerEndpointAddr string
	SyncInterval       time.Duration
	RequestTimeout     time.Duration
	LocalDBPath        string
	CryptoProvider     string
	KeyringService     string
	LogLevel           string
	ClientURL          string
}

// LoadDefaults populates c with sensible defaults.
func (c *Config) LoadDefaults() {
	c.ServerEndpointAddr = "127.0.0.1:50051"
	c.SyncInterval = 30 * time.Second
	c.RequestTimeout = 10 * time.Second
	c.LocalDBPath = "vaultsync-client.db"
	c.CryptoProvider = "standard"
	c.KeyringService = "vaultsync"
	c.LogLevel = "warn"
	c.ClientURL = "http://127.0.0.1:8080"
}

// LoadConfig constructs a Config, applies defaults, then overlays values from
// JSON (if present) and command-line flags (if present). Later sources take
// precedence over earlier ones.
func LoadConfig() *Config {
	cfg := &Config{}
	cfg.LoadDefaults()
	parseJson(cfg)
	parseFlags(cfg)
	return cfg
}
