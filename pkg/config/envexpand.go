package config

import (
	"os"
	"regexp"
)

// envDefaultPattern matches ${VAR:-default} so it can be resolved before
// falling back to Go's standard ${VAR}/$VAR expansion.
var envDefaultPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*):-([^}]*)\}`)

// ExpandEnv expands environment variables in YAML content before parsing.
// Supports ${VAR}, $VAR (via os.Expand) and the shell-style default form
// ${VAR:-default}, which resolves to default when VAR is unset or empty.
// Missing variables with no default expand to empty string; validation
// catches required fields that end up empty.
func ExpandEnv(data []byte) []byte {
	withDefaults := envDefaultPattern.ReplaceAllStringFunc(string(data), func(match string) string {
		groups := envDefaultPattern.FindStringSubmatch(match)
		name, def := groups[1], groups[2]
		if v, ok := os.LookupEnv(name); ok && v != "" {
			return v
		}
		return def
	})
	return []byte(os.ExpandEnv(withDefaults))
}
