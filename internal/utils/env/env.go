// Package env handles the extra environment variables set on executed commands.
package env

import (
	"fmt"
	"os"
	"regexp"
	"sort"
	"strings"
)

var envKeyRegexp = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// ParseSpecs parses `KEY=VALUE` specs, a bare `KEY` takes its value from the
// current environment.
func ParseSpecs(specs []string) (map[string]string, error) {
	vars := make(map[string]string, len(specs))

	for _, spec := range specs {
		if spec == "" {
			return nil, fmt.Errorf("environment variable spec cannot be empty")
		}

		if key, value, ok := strings.Cut(spec, "="); ok {
			if !IsValidKey(key) {
				return nil, fmt.Errorf("invalid environment variable key %q", key)
			}

			vars[key] = value
			continue
		}

		if !IsValidKey(spec) {
			return nil, fmt.Errorf("invalid environment variable key %q", spec)
		}

		value, ok := os.LookupEnv(spec)
		if !ok {
			return nil, fmt.Errorf("environment variable %q is not set", spec)
		}

		vars[spec] = value
	}

	return vars, nil
}

// MergeMaps returns base with override applied on top.
func MergeMaps(base map[string]string, override map[string]string) map[string]string {
	merged := make(map[string]string, len(base)+len(override))
	for k, v := range base {
		merged[k] = v
	}
	for k, v := range override {
		merged[k] = v
	}

	return merged
}

// List returns the variables as sorted `KEY=VALUE` entries, nil when there are none.
func List(vars map[string]string) []string {
	if len(vars) == 0 {
		return nil
	}

	l := make([]string, 0, len(vars))
	for k, v := range vars {
		l = append(l, k+"="+v)
	}
	sort.Strings(l)

	return l
}

// IsValidKey returns true if k can be used as a variable name.
func IsValidKey(k string) bool {
	return envKeyRegexp.MatchString(k)
}
