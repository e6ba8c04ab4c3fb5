// Package config loads, normalizes, and validates mangarecap configuration.
//
// Configuration is read from TOML, expanded for user paths, filled from
// environment variables where noted, and checked before any chapter work
// starts. Callers receive a fully populated *Config that is treated as
// immutable and passed into every constructor.
package config
