// Package config handles configuration loading for coven-pilot.
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
//	agent:
//	  command: "${PILOT_AGENT_COMMAND}"
//
// Syntax: ${VAR_NAME}. Unset variables expand to the empty string, which
// then falls back to the field's default.
//
// # Duration Parsing
//
// Duration values use Go's time.ParseDuration syntax:
//
//	agent:
//	  permission_timeout: "5m"
//
// Supported units: ns, us, ms, s, m, h
//
// # Configuration Sections
//
// Server settings:
//
//	server:
//	  http_addr: "0.0.0.0:8080"   # API and chat WebSocket
//
// Agent CLI:
//
//	agent:
//	  command: "claude"           # binary launched once per turn
//	  permission_timeout: "5m"    # how long tool approvals wait
//
// Logging:
//
//	logging:
//	  level: "info"    # debug, info, warn, error
//	  format: "text"   # text, json, color
//
// # Usage
//
// Load configuration:
//
//	cfg, err := config.Load("/etc/coven/pilot.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//
// Or start from defaults when no file exists:
//
//	cfg := config.Default()
package config
