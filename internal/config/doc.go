// Package config loads, normalizes, and validates aegis configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours environment fallbacks such as
// AEGIS_VISION_URL and HF_TOKEN. The Config type centralizes every knob the
// orchestrators, detectors, and CLI need.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, canonical log formats, and clear validation errors.
package config
