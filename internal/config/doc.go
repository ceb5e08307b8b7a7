// Package config loads journal CLI configuration from a JSON file with
// JOURNAL_* environment variable overlays. Flags override both.
package config
