// Package config loads, normalizes, and validates librarian configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours environment fallbacks such as
// GEMINI_API_KEY and OPENROUTER_API_KEY. The Config type centralizes every knob
// the daemon and CLI need: the library root, pipeline thresholds, consensus
// weights, safety policy, naming layout, and provider credentials.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, canonical enum values, and clear validation errors. The
// pipeline takes an immutable snapshot of the loaded Config at the start of
// each batch.
package config
