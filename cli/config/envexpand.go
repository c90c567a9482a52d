// Package config handles svgswap.yaml loading.
package config

import (
	"os"
	"regexp"
)

// envVarPattern matches ${VAR} and ${VAR:-default}.
var envVarPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)(?::-([^}]*))?\}`)

// ExpandEnv replaces ${VAR} with the variable's value and ${VAR:-default}
// with the value or, when unset or empty, the default. Unset variables
// without a default expand to the empty string.
func ExpandEnv(input string) string {
	matches := envVarPattern.FindAllStringSubmatchIndex(input, -1)
	if len(matches) == 0 {
		return input
	}

	out := make([]byte, 0, len(input))
	last := 0
	for _, m := range matches {
		out = append(out, input[last:m[0]]...)
		name := input[m[2]:m[3]]
		if v := os.Getenv(name); v != "" {
			out = append(out, v...)
		} else if m[4] >= 0 {
			out = append(out, input[m[4]:m[5]]...)
		}
		last = m[1]
	}
	out = append(out, input[last:]...)
	return string(out)
}
