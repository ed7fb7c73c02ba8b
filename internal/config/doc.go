// SPDX-License-Identifier: MPL-2.0

// Package config handles modist's packaging defaults using Viper with CUE as the file format.
//
// Configuration is loaded from ~/.config/modist/config.cue (or XDG equivalent on Linux,
// ~/Library/Application Support/modist/config.cue on macOS, %APPDATA%\modist\config.cue
// on Windows), falling back to ./config.cue. Every key can be overridden through a
// MODIST_ prefixed environment variable, with dots replaced by underscores
// (MODIST_HASH_TYPE, MODIST_LOG_LEVEL).
//
// Configuration files are validated against a CUE schema (config_schema.cue) to ensure
// type safety and provide clear error messages for invalid configurations.
package config
