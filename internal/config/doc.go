// Package config loads the gateway configuration from an optional YAML or
// JSON file, INFOGENAI_* environment variables and bound command-line flags,
// then validates it. Relative paths are resolved against the directory of the
// configuration file, or the executable's directory when no file is used.
package config
