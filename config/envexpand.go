package config

import (
	"os"
	"regexp"
)

// envRef matches the two reference forms the settings file supports:
// ${VAR} and ${VAR:-default}. Group 1 is the variable name, group 2 the
// fallback (empty when the short form is used).
var envRef = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)(?::-([^}]*))?\}`)

// ExpandEnv resolves environment references in the raw settings text
// before TOML decoding. A set, non-empty variable wins; otherwise the
// ${VAR:-default} fallback applies; otherwise the reference collapses to
// an empty string. Missing required values are not an error here, they
// fail at settings validation where the message can name the field.
func ExpandEnv(input string) string {
	return envRef.ReplaceAllStringFunc(input, func(ref string) string {
		groups := envRef.FindStringSubmatch(ref)
		name, fallback := groups[1], groups[2]
		if value, ok := os.LookupEnv(name); ok && value != "" {
			return value
		}
		return fallback
	})
}
