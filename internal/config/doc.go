// Package config loads, normalizes, and validates reelcast configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours environment fallbacks such as
// REELCAST_LLM_API_KEY. The root storage directory resolved here is the only
// place the rest of the system learns where projects live; nothing reads the
// working directory or ambient environment inside business logic.
package config
