package config

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_MissingFileFallsBackToDefaults(t *testing.T) {
	cfg, err := Load("/nonexistent/fabricd-config.yaml")
	require.NoError(t, err)
	assert.Equal(t, "0.0.0.0:9870", cfg.Server.ListenAddr)
	assert.Equal(t, uint64(1), cfg.Handshake.Version)
	assert.Nil(t, cfg.CookieAllowlist())
}

func TestLoad_YAMLFile(t *testing.T) {
	dir := t.TempDir()
	path := dir + "/config.yaml"
	yaml := `
server:
  listen_addr: "127.0.0.1:7000"
handshake:
  version: 7
  cookies: [42, 99]
logging:
  level: debug
`
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1:7000", cfg.Server.ListenAddr)
	assert.Equal(t, uint64(7), cfg.Handshake.Version)
	assert.Equal(t, map[uint64]bool{42: true, 99: true}, cfg.CookieAllowlist())
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	dir := t.TempDir()
	path := dir + "/config.yaml"
	require.NoError(t, os.WriteFile(path, []byte("server:\n  listen_addr: \"0.0.0.0:1\"\n"), 0o644))

	t.Setenv("FABRICD_LISTEN_ADDR", "0.0.0.0:2222")
	t.Setenv("FABRICD_HANDSHAKE_COOKIES", "1, 2, 3")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "0.0.0.0:2222", cfg.Server.ListenAddr)
	assert.Equal(t, []uint64{1, 2, 3}, cfg.Handshake.Cookies)
}

func TestSlogLevel(t *testing.T) {
	cfg := &Config{Logging: LoggingConfig{Level: "warn"}}
	assert.Equal(t, "WARN", cfg.SlogLevel().String())
}
