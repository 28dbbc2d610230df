// Package config loads runtime configuration for the vaultsync CLI.
//
// Sources & precedence
//
//  1. Built-in defaults (see (*Config).LoadDefaults).
//  2. Optional JSON file (see parseJson) selected via flags: -c or -config.
//  3. Command-line flags (see parseFlags), which override earlier values.
//
// Supported flags
//
//	-a string   address:port of the server gRPC endpoint
//	-i int      background sync interval (seconds), 0 disables it
//	-t int      request timeout (seconds)
//	-d string   local replica database file
//	-C string   crypto provider (standard, stub)
//	-k string   OS keyring service name
//	-v string   log level (debug, info, warn, error)
//	-w string   invite page base URL
//
// # JSON schema
//
// Intervals use timex.Duration, so values can be strings like "30s" or
// integer nanoseconds:
//
//	{
//	  "server_endpoint_addr": "127.0.0.1:50051",
//	  "sync_interval": "30s",
//	  "request_timeout": "10s",
//	  "local_db_path": "vaultsync-client.db",
//	  "crypto_provider": "standard",
//	  "keyring_service": "vaultsync",
//	  "log_level": "warn",
//	  "client_url": "http://127.0.0.1:8080"
//	}
package config
