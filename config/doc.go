// Package config loads engine configuration with the precedence
// defaults, then YAML file, then environment variables prefixed QUORUM.
package config
