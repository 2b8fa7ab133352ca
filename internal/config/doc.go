// Package config holds the complete configuration surface for websentry.
//
// Configuration flows one way: a YAML file (found via FindConfigFile, loaded
// over defaults by Load) plus CLI flag overrides produce a single immutable
// Config that is validated once and passed down by dependency injection.
// Components never read configuration globals or re-resolve options at call
// time.
//
// # File format
//
// The file is YAML, mirroring the Config struct. `websentry init` writes a
// commented template. Durations accept time.Duration notation ("45s") or
// bare integers interpreted as seconds.
//
// # Validation
//
// Validate returns package-level sentinel errors (errors.go) so callers can
// match failures with errors.Is while keeping readable messages.
package config
