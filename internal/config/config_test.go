package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(t.TempDir())
	require.NoError(t, err)

	assert.Equal(t, "8083", cfg.Server.Port)
	assert.Equal(t, 64, cfg.WS.SendBuffer)
	assert.Equal(t, 25*time.Second, cfg.WS.PingInterval)
	assert.Equal(t, 50, cfg.Chat.DefaultPageSize)
	assert.Equal(t, int64(5*1024*1024), cfg.Uploads.MaxSizeBytes)
	assert.Equal(t, "club_events", cfg.AMQP.Exchange)
	assert.False(t, cfg.Tracing.Enabled)
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	yaml := []byte(`
server:
  port: "9090"
  debug: true
ws:
  send_buffer: 8
chat:
  max_page_size: 25
`)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), yaml, 0o644))

	cfg, err := Load(dir)
	require.NoError(t, err)

	assert.Equal(t, "9090", cfg.Server.Port)
	assert.True(t, cfg.Server.Debug)
	assert.Equal(t, 8, cfg.WS.SendBuffer)
	assert.Equal(t, 25, cfg.Chat.MaxPageSize)
	// Untouched keys keep their defaults.
	assert.Equal(t, 50, cfg.Chat.DefaultPageSize)
}
