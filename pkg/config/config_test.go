package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"adstream/pkg/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTempConfig(t *testing.T, content string) string {
	t.Helper()

	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write temp config: %v", err)
	}
	return path
}

func TestLoad_UsesDefaultsWhenFileMissing(t *testing.T) {
	cfg, err := config.Load("non-existent-config.yaml")
	require.NoError(t, err)
	assert.Equal(t, "video_stream/ad_feed", cfg.Service.Aspect)
	assert.Equal(t, 1280, cfg.Stream.Width)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.NoError(t, cfg.Validate())
}

func TestLoad_LoadsFromYAMLAndAppliesEnvOverrides(t *testing.T) {
	path := writeTempConfig(t, `
service:
  aspect: "video_stream/test_feed"
  nickname: "bench-server"

stream:
  width: 1920
  height: 1080
  fps: 30

server:
  max_clients: 3
  heartbeat_interval: 5s
  heartbeat_timeout: 20s

client:
  reconnect_delay: 2s
`)

	t.Setenv("ADSTREAM_NICKNAME", "env-server")
	t.Setenv("ADSTREAM_MAX_CLIENTS", "7")

	cfg, err := config.Load(path)
	require.NoError(t, err)

	assert.Equal(t, "video_stream/test_feed", cfg.Service.Aspect)
	assert.Equal(t, 1920, cfg.Stream.Width)
	assert.Equal(t, 30, cfg.Stream.FPS)
	assert.Equal(t, 5*time.Second, cfg.Server.HeartbeatInterval)
	assert.Equal(t, 2*time.Second, cfg.Client.ReconnectDelay)

	// Env overrides win over the file.
	assert.Equal(t, "env-server", cfg.Service.Nickname)
	assert.Equal(t, 7, cfg.Server.MaxClients)
}

func TestValidate_RejectsHeartbeatTimeoutNotAboveInterval(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Server.HeartbeatInterval = 30 * time.Second
	cfg.Server.HeartbeatTimeout = 30 * time.Second
	assert.Error(t, cfg.Validate())

	cfg.Server.HeartbeatTimeout = 31 * time.Second
	assert.NoError(t, cfg.Validate())
}

func TestValidate_RejectsBadStreamSettings(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*config.Config)
	}{
		{"zero width", func(c *config.Config) { c.Stream.Width = 0 }},
		{"negative fps", func(c *config.Config) { c.Stream.FPS = -1 }},
		{"crf out of range", func(c *config.Config) { c.Stream.CRF = 99 }},
		{"unknown preset", func(c *config.Config) { c.Stream.Preset = "warp9" }},
		{"zero gop", func(c *config.Config) { c.Stream.GOPSeconds = 0 }},
		{"uppercase aspect", func(c *config.Config) { c.Service.Aspect = "Video/Feed" }},
		{"nickname with separator", func(c *config.Config) { c.Service.Nickname = "a;b" }},
		{"unicast discovery group", func(c *config.Config) { c.Transport.MulticastAddress = "10.0.0.1:4971" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.DefaultConfig()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestLoad_RejectsInvalidFile(t *testing.T) {
	path := writeTempConfig(t, `
server:
  heartbeat_interval: 45s
  heartbeat_timeout: 15s
`)
	_, err := config.Load(path)
	assert.Error(t, err)
}
