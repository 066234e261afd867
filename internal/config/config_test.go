package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultValues(t *testing.T) {
	cfg := Default()
	assert.True(t, cfg.RequireConfirmation)
	assert.True(t, cfg.QuietTransport)
	assert.Equal(t, ":11000", cfg.ListenAddr)
	assert.Equal(t, "/gpt-shell", cfg.RootPath)
	assert.True(t, cfg.AutoAttach)
}

func TestLoadFileMissingIsNotAnError(t *testing.T) {
	cfg, err := LoadFile(Default(), filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoadFileOverlaysOnlySetFields(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("require_confirmation: false\nlisten_addr: \":9000\"\n"), 0o644))

	cfg, err := LoadFile(Default(), path)
	require.NoError(t, err)

	assert.False(t, cfg.RequireConfirmation)
	assert.Equal(t, ":9000", cfg.ListenAddr)
	// Untouched fields keep their defaults.
	assert.True(t, cfg.QuietTransport)
	assert.Equal(t, "/gpt-shell", cfg.RootPath)
}

func TestLoadFileInvalidYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(":::not yaml:::"), 0o644))

	_, err := LoadFile(Default(), path)
	assert.Error(t, err)
}
