// Package config handles configuration loading and management for capis.
//
// It provides functionality for:
//   - Loading configuration from .capis.yaml, capis.yaml or their JSON variants
//   - Default configuration values
//   - CAPIS_* environment overrides
//   - Merging command line flags over file settings
package config
