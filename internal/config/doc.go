// Package config loads, normalizes, and validates filmroom configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours environment fallbacks such as
// GEMINI_API_KEY and FILMROOM_PG_DSN. Every calibration value the analysis
// pipeline depends on (motion thresholds, blur kernel, retry cap, backoff
// bounds, upload polling, retrieval depth) lives here as a named field with a
// documented default so it can be tuned per camera or lighting setup without a
// rebuild.
//
// Always obtain settings through this package so downstream components receive
// sanitized paths and clear validation errors.
package config
