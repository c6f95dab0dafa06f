package config

import (
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
)

// DefaultFile is the config file name looked up in the working directory.
const DefaultFile = "transmute.toml"

// Load reads a TOML config file, expands environment variables, applies
// defaults, and validates the result.
func Load(path string) (*Settings, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("config file not found: %s", path)
		}
		return nil, fmt.Errorf("cannot read config file %q: %w", path, err)
	}

	return Parse(string(data))
}

// LoadOrDefault loads path when it exists and falls back to defaults when
// it does not. Used by the CLI so runs work without a config file.
func LoadOrDefault(path string) (*Settings, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return Default(), nil
	}
	return Load(path)
}

// Parse parses TOML settings from a string.
func Parse(data string) (*Settings, error) {
	expanded := ExpandEnv(data)

	var s Settings
	if err := toml.Unmarshal([]byte(expanded), &s); err != nil {
		return nil, fmt.Errorf("invalid TOML configuration: %w", err)
	}

	s.applyDefaults()
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return &s, nil
}
