// Package config handles configuration management for Panduza tools.
// It describes broker, client and device endpoints, loads them from
// JSON5, TOML or YAML files layered over defaults and PZA_ environment
// variables, writes missing files with their defaults, and watches a
// file for hot reload.
package config
