// Package config loads, normalizes, and validates vsub's TOML configuration.
//
// Load resolves the file from an explicit path, ~/.config/vsub/config.toml, or
// ./vsub.toml, overlays it on Default, expands ~ in path fields, and applies
// environment fallbacks for credentials. Callers receive a fully validated
// Config so downstream packages never re-check ranges.
package config
