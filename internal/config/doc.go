// Package config handles configuration loading for relay-gateway.
//
// # Overview
//
// Configuration is loaded from YAML files with environment variable expansion.
// The package provides validation and sensible defaults.
//
// # Environment Variable Expansion
//
// Configuration values can reference environment variables:
//
//	signing:
//	  private_secret: "${RELAY_SIGNING_SECRET}"
//
// Syntax: ${VAR_NAME}
//
// # Configuration Sections
//
// Server settings:
//
//	server:
//	  http_addr: "0.0.0.0:8080"
//
// Route backend:
//
//	routes:
//	  backend: "file"              # file, sqlite, or postgres
//	  connection: "routes.json"    # path or connection string
//	  refresh_interval: "60s"
//
// Peer-protocol signing:
//
//	signing:
//	  public_id: "gateway-a"
//	  private_secret: "${RELAY_SIGNING_SECRET}"
//	  allowed_delta_seconds: 30
//	  forward_signed: true
//
// Logging:
//
//	logging:
//	  level: "info"   # debug, info, warn, error
//	  format: "text"  # text, json
//
// Metrics:
//
//	metrics:
//	  enabled: true
//	  path: "/metrics"
//
// # Validation
//
// Load() validates:
//
//   - HTTP listen address presence
//   - Route backend kind and connection string
//   - Signing credentials supplied together or not at all
//   - Duration format validity
package config
