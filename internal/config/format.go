// SPDX-License-Identifier: MPL-2.0

package config

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// Output formats accepted by Render.
const (
	FormatCUE  Format = "cue"
	FormatJSON Format = "json"
	FormatTOML Format = "toml"
	FormatYAML Format = "yaml"
)

// Format is a rendering of the effective configuration.
type Format string

// ParseFormat accepts cue, json, toml and yaml (yml is an alias).
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case FormatCUE, FormatJSON, FormatTOML, FormatYAML:
		return f, nil
	case "yml":
		return FormatYAML, nil
	case "":
		return FormatCUE, nil
	default:
		return "", fmt.Errorf("unknown format %q (want cue, json, toml or yaml)", s)
	}
}

// Render encodes cfg in the requested format. Keys are the configuration
// file's snake_case names in every format.
func Render(cfg *Config, f Format) ([]byte, error) {
	if f == FormatCUE {
		return []byte(GenerateCUE(cfg)), nil
	}

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode config: %w", err)
	}
	if f == FormatJSON {
		return append(data, '\n'), nil
	}

	// Round-trip through a map so TOML and YAML reuse the json tags.
	var tree map[string]any
	if err := json.Unmarshal(data, &tree); err != nil {
		return nil, fmt.Errorf("encode config: %w", err)
	}
	switch f {
	case FormatTOML:
		return toml.Marshal(tree)
	case FormatYAML:
		return yaml.Marshal(tree)
	default:
		return nil, fmt.Errorf("unknown format %q", f)
	}
}
