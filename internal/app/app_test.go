// AngelaMos | 2026
// app_test.go

package app

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carterperez-dev/erasure/internal/config"
)

func TestNewLoggerTeesToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "erasure.log")

	logger := NewLogger(config.LogConfig{
		Level:  "debug",
		Format: "json",
		File:   config.LogFileConfig{Path: path, MaxSizeMB: 1},
	})
	logger.Debug("deletion requested", "account_id", "a1")

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"msg":"deletion requested"`)
	assert.Contains(t, string(raw), `"account_id":"a1"`)
}

func TestNewLoggerLevel(t *testing.T) {
	logger := NewLogger(config.LogConfig{Level: "warn", Format: "text"})
	assert.False(t, logger.Handler().Enabled(t.Context(), -4))
	assert.True(t, logger.Handler().Enabled(t.Context(), 4))
}
