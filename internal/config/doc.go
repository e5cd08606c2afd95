// Package config loads runtime configuration for the edge agent.
//
// Sources & precedence
//
//  1. Built-in defaults (see (*Config).LoadDefaults).
//  2. Optional config file selected via -c or -config. Files ending in
//     .yaml or .yml are decoded as YAML, anything else as JSON.
//  3. Command-line flags (see parseFlags), which override earlier values.
//
// Supported flags
//
//	-a string   server base URL
//	-d string   device id
//	-b string   path of the local SQLite database
//	-m string   image directory
//	-n int      images per burst
//	-r int      retention window (days)
//	-i int      capture interval (seconds)
//	-s int      sync interval (seconds)
//	-l string   log level (debug, info, warn, error)
//
// # File schema
//
// Intervals use timex.Duration, so they may be written as "90s" or as a
// plain number of seconds:
//
//	device_id: edge-001
//	server_url: https://collector.example/api
//	capture_interval: 60
//	sync_interval: 2m
//	retention_days: 30
//	camera_backend: libcamera
//
// The resulting Config is treated as immutable once LoadConfig returns.
package config
