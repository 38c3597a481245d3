// Package config handles YAML configuration loading with environment variable substitution.
//
// Configuration files support ${VAR} syntax for environment variable interpolation.
// Every field has a default, so ledgerctl also runs without a config file
// against the in-memory store.
package config
