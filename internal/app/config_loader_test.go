package app

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig_Defaults(t *testing.T) {
	cfg, err := LoadConfig("")
	require.NoError(t, err)

	assert.Equal(t, 8750, cfg.Server.Port)
	assert.Equal(t, "http://localhost:8000/api/v1", cfg.Backend.BaseURL)
	assert.Equal(t, 2*time.Second, cfg.Connection.ConnectTimeout)
	assert.Equal(t, 3, cfg.Connection.MaxReconnectAttempts)
	assert.Equal(t, time.Second, cfg.Connection.ReconnectDelay)
	assert.Equal(t, 100*time.Millisecond, cfg.Download.ProgressInterval)
	assert.NotContains(t, cfg.Download.Dir, "$HOME")
	assert.NotContains(t, cfg.Cookies.File, "$HOME")
}

func TestLoadConfig_FromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
server:
  port: 9999
backend:
  base_url: http://backend.test/api/v1
connection:
  max_reconnect_attempts: 5
download:
  dir: /tmp/ufd-test-downloads
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, 9999, cfg.Server.Port)
	assert.Equal(t, "http://backend.test/api/v1", cfg.Backend.BaseURL)
	assert.Equal(t, 5, cfg.Connection.MaxReconnectAttempts)
	assert.Equal(t, "/tmp/ufd-test-downloads", cfg.Download.Dir)

	// unset values keep their defaults
	assert.Equal(t, 2*time.Second, cfg.Connection.ConnectTimeout)
}

func TestLoadConfig_InvalidValues(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr string
	}{
		{"bad port", "server:\n  port: 0\n", "invalid server port"},
		{"empty backend", "backend:\n  base_url: \"\"\n", "backend base URL"},
		{"negative retries", "connection:\n  max_reconnect_attempts: -1\n", "cannot be negative"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "config.yaml")
			require.NoError(t, os.WriteFile(path, []byte(tt.content), 0600))

			_, err := LoadConfig(path)
			assert.ErrorContains(t, err, tt.wantErr)
		})
	}
}

func TestExpandPath(t *testing.T) {
	home, err := os.UserHomeDir()
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(home, ".ufd", "cookies.txt"), expandPath("~/.ufd/cookies.txt"))
	assert.Equal(t, home+"/.ufd", expandPath("$HOME/.ufd"))
	assert.Equal(t, "/var/lib/ufd", expandPath("/var/lib/ufd"))
}
