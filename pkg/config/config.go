// Package config loads YAML configuration files on top of preloaded
// defaults, with environment variable expansion.
package config

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Validator lets a configuration struct check itself after loading.
type Validator interface {
	Validate() error
}

// Load reads filename, expands $VAR references, and unmarshals into target.
// target keeps any values set before the call, so callers preload defaults
// and the file only overrides the keys it names. When target implements
// Validator the merged result is validated before returning.
func Load[T any](filename string, target *T) error {
	data, err := os.ReadFile(filename)
	if err != nil {
		return fmt.Errorf("read config %s: %w", filename, err)
	}
	if err := yaml.Unmarshal([]byte(os.ExpandEnv(string(data))), target); err != nil {
		return fmt.Errorf("parse config %s: %w", filename, err)
	}
	return validate(target)
}

// LoadIfPresent is Load for optional config files. A missing file is not an
// error: the preloaded defaults stand, still subject to validation, and
// found reports whether the file existed.
func LoadIfPresent[T any](filename string, target *T) (found bool, err error) {
	if _, err := os.Stat(filename); errors.Is(err, os.ErrNotExist) {
		return false, validate(target)
	}
	return true, Load(filename, target)
}

func validate(target any) error {
	if v, ok := target.(Validator); ok {
		if err := v.Validate(); err != nil {
			return fmt.Errorf("config validation failed: %w", err)
		}
	}
	return nil
}
