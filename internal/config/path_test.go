package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExpandPath(t *testing.T) {
	home, err := os.UserHomeDir()
	require.NoError(t, err)

	t.Setenv("POLISEE_TEST_DIR", "/var/data")

	tests := []struct {
		name string
		in   string
		want string
	}{
		{"empty", "", ""},
		{"plain path", "/etc/polisee.yaml", "/etc/polisee.yaml"},
		{"tilde prefix", "~/data/polisee.db", filepath.Join(home, "data/polisee.db")},
		{"bare tilde", "~", home},
		{"env var", "$POLISEE_TEST_DIR/polisee.db", "/var/data/polisee.db"},
		{"tilde mid-path untouched", "/opt/~backup/file", "/opt/~backup/file"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ExpandPath(tt.in))
		})
	}
}
