// Package config handles configuration loading for coven-identity.
//
// # Overview
//
// Configuration is loaded from a YAML file, or a TOML file when the path
// ends in ".toml", with environment variable expansion. Every field has a
// default (see Default); the file only needs to name what it changes.
//
// # Environment Variable Expansion
//
// Configuration values can reference environment variables:
//
//	auth:
//	  jwt_secret: "${COVEN_IDENTITY_JWT_SECRET}"
//
// Syntax: ${VAR_NAME}. Unset variables expand to the empty string.
//
// # Configuration Sections
//
//	server:
//	  grpc_addr: "0.0.0.0:50061"
//	  http_addr: "0.0.0.0:8081"   # /health and /health/ready
//
//	tailscale:
//	  enabled: false
//	  hostname: "coven-identity"
//	  auth_key: "${TS_AUTHKEY}"
//
//	database:
//	  path: "/var/lib/coven-identity/identity.db"
//	  driver: "sqlite"            # sqlite (pure Go) or sqlite3 (cgo)
//
//	auth:
//	  jwt_secret: "${COVEN_IDENTITY_JWT_SECRET}"   # empty disables auth
//	  token_ttl: "720h"
//
//	verification:
//	  code_ttl: "15m"
//	  code_length: 6
//	  max_attempts: 5             # confirmations per identity per window
//	  attempt_window: "15m"
//	  bcrypt_cost: 10
//
//	ownership:
//	  resource_kinds: [file_path, table_path, collection, reminder, workflow]
//
//	logging:
//	  level: "info"   # debug, info, warn, error
//	  format: "text"  # text, json
//
// Duration values use Go's time.ParseDuration syntax.
//
// # Validation
//
// Load validates the JWT secret length (32 bytes when set), the code
// length range, positive durations, and a non-empty resource kind list.
package config
