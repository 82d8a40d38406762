// Package config loads agent configuration: built-in defaults, overlaid
// by an optional YAML file, overlaid by command-line flags in cmd.
package config
