// Package config loads runtime configuration for the assetsync CLI.
//
// Sources & precedence
//
//  1. Built-in defaults (see (*Config).LoadDefaults).
//  2. Environment: ASSETSYNC_* variables, after loading a dotenv file named
//     by -e/-env or ./.env when present (see parseEnv).
//  3. Optional JSON file (see parseJson) selected via flags: -c or -config.
//  4. Command-line flags (see parseFlags), which override earlier values.
//
// # JSON schema
//
// The JSON loader uses timex.Duration for intervals, so values can be either
// strings like "3s" or integer nanoseconds:
//
//	{
//	  "database_path": "assetsync.db",
//	  "server_endpoint_addr": "127.0.0.1:50051",
//	  "user_id": "u-1",
//	  "step_timeout": "30s",
//	  "derive_assets": true,
//	  "s3": {"bucket": "assets", "endpoint": "http://127.0.0.1:9000"}
//	}
//
// Primary API
//
//   - type Config                    : all runtime settings
//   - func LoadConfig() *Config      : defaults, env, JSON, then flags
//   - func (*Config) LoadDefaults()  : sets sensible defaults
package config
