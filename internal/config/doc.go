// Package config loads, normalizes, and validates certissuer configuration.
//
// A single *Config is built per process (or per CLI invocation) and passed
// explicitly to every constructor; nothing in the module reads configuration
// from package state. Secrets may come from the TOML file, the environment,
// or an optional .env file loaded before environment fallbacks are applied.
package config
