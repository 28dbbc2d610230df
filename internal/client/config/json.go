package config

import (
	"github.com/dmitrijs2005/vaultsync/internal/flagx"
	"github.com/dmitrijs2005/vaultsync/internal/timex"
)

// JsonConfig is the on-disk form of Config.
type JsonConfig struct {
	ServerEndpointAddr string         `json:"server_endpoint_addr"`
	SyncInterval       timex.Duration `json:"sync_interval"`
	RequestTimeout     timex.Duration `json:"request_timeout"`
	LocalDBPath        string         `json:"local_db_path"`
	CryptoProvider     string         `json:"crypto_provider"`
	KeyringService     string         `json:"keyring_service"`
	LogLevel           string         `json:"log_level"`
	ClientURL          string         `json:"client_url"`
}

// parseJson overlays the file named by -c/-config onto cfg. Keys missing
// from the file leave cfg untouched. A bad file panics.
func parseJson(cfg *Config) {
	jsonConfigFile := flagx.JsonConfigFlags()

	// nothing to load
	if jsonConfigFile == "" {
		return
	}

	c := &JsonConfig{}
	if err := flagx.ReadJSON(jsonConfigFile, c); err != nil {
		panic(err)
	}

	if c.ServerEndpointAddr != "" {
		cfg.ServerEndpointAddr = c.ServerEndpointAddr
	}
	if c.SyncInterval.Duration != 0 {
		cfg.SyncInterval = c.SyncInterval.Duration
	}
	if c.RequestTimeout.Duration != 0 {
		cfg.RequestTimeout = c.RequestTimeout.Duration
	}
	if c.LocalDBPath != "" {
		cfg.LocalDBPath = c.LocalDBPath
	}
	if c.CryptoProvider != "" {
		cfg.CryptoProvider = c.CryptoProvider
	}
	if c.KeyringService != "" {
		cfg.KeyringService = c.KeyringService
	}
	if c.LogLevel != "" {
		cfg.LogLevel = c.LogLevel
	}
	if c.ClientURL != "" {
		cfg.ClientURL = c.ClientURL
	}
}
