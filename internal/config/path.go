// Package config provides configuration utilities for the application.
package config

import (
	"os"
	"path/filepath"
	"strings"
)

// ExpandPath resolves a path taken from configuration: $VAR references are
// expanded and a leading ~ becomes the user's home directory. Anything that
// cannot be resolved is left as-is.
func ExpandPath(path string) string {
	if path == "" {
		return ""
	}

	path = os.ExpandEnv(path)

	switch {
	case path == "~":
		if home, err := os.UserHomeDir(); err == nil {
			return home
		}
	case strings.HasPrefix(path, "~/"):
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, strings.TrimPrefix(path, "~/"))
		}
	}

	return path
}
