package config

import (
	"errors"
	"fmt"
	"os"
	"regexp"

	"gopkg.in/yaml.v3"
)

// envExpr matches ${NAME} and ${NAME:-fallback} references in the raw file.
var envExpr = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)(?::-((?:[^}\\]|\\.)*))?\}`)

// Load reads the YAML configuration at path, expanding environment variable
// references before parsing so secrets like bot tokens never need to live in
// the file itself.
func Load(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: reading %s: %w", path, err)
	}

	expanded, err := expandEnv(raw)
	if err != nil {
		return nil, fmt.Errorf("config: expanding variables in %s: %w", path, err)
	}

	cfg := new(Config)
	if err := yaml.Unmarshal(expanded, cfg); err != nil {
		return nil, fmt.Errorf("config: parsing %s: %w", path, err)
	}
	return cfg, nil
}

// expandEnv substitutes every ${NAME} reference with the variable's value,
// falling back to the inline default when one is given. A set-but-empty
// variable counts as set. References that resolve to nothing are collected
// and reported together so a misconfigured deployment fails with the full
// list, not one variable per restart.
func expandEnv(raw []byte) ([]byte, error) {
	var missing []error

	out := envExpr.ReplaceAllFunc(raw, func(ref []byte) []byte {
		groups := envExpr.FindSubmatch(ref)
		name := string(groups[1])

		if val, ok := os.LookupEnv(name); ok {
			return []byte(val)
		}
		if groups[2] != nil { // ":-" present, possibly with an empty default
			return groups[2]
		}

		missing = append(missing, fmt.Errorf("unresolved variable: %s", name))
		return ref
	})

	return out, errors.Join(missing...)
}
