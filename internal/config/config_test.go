package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), FileName)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoad(t *testing.T) {
	path := writeFile(t, `
db_path: /tmp/kongman.db
log_level: debug
log_json: true
request_timeout: 10s
probe_timeout: 2500ms
probe_workers: 4
monitor_interval: 1m
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "/tmp/kongman.db", cfg.DBPath)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.True(t, cfg.LogJSON)
	assert.Equal(t, 10*time.Second, cfg.RequestTimeout)
	assert.Equal(t, 2500*time.Millisecond, cfg.ProbeTimeout)
	assert.Equal(t, 4, cfg.ProbeWorkers)
	assert.Equal(t, time.Minute, cfg.MonitorInterval)
}

func TestLoad_ExplicitMissing(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestLoad_DefaultMissing(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	t.Setenv("SUDO_USER", "")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, &Config{}, cfg)
}

func TestLoad_Invalid(t *testing.T) {
	_, err := Load(writeFile(t, "probe_workers: [1, 2]\n"))
	assert.Error(t, err)

	_, err = Load(writeFile(t, "probe_timeout: -1s\n"))
	assert.ErrorContains(t, err, "probe_timeout")
}
