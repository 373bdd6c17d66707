// Package config loads, normalizes, and validates twitchrec configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files (JSON and YAML are accepted by extension),
// honours TWITCHREC_* environment fallbacks and an optional .env file, and
// finally applies command-line overrides. The resulting Config is built once
// and treated as read-only by every other package.
//
// Always obtain settings through this package so downstream code receives
// expanded paths, a loaded time zone, and clear validation errors.
package config
