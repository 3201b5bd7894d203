// Package config loads docrag settings.
//
// Settings are layered: defaults, then a YAML file, then DOCRAG_*
// environment variables (optionally seeded from a .env file). Command-line
// flags are applied last by the caller.
package config
