// SPDX-License-Identifier: MPL-2.0

// Package config handles pakt's user configuration using Viper with CUE as the file format.
//
// Configuration is loaded from ~/.config/pakt/config.cue (or the XDG equivalent on Linux,
// ~/Library/Application Support/pakt/config.cue on macOS, %APPDATA%\pakt\config.cue
// on Windows). Values cover the vendor and cache directories, stability and
// candidate selection policy, extra repositories, platform package versions,
// the HTTP timeout and UI settings.
//
// Files are validated against an embedded CUE schema (config_schema.cue) before they
// are merged over the built-in defaults.
package config
