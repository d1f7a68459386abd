package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vortex/internal/constants"
	"vortex/internal/types"
)

func TestLoadGlobalConfigDefaults(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())

	cfg, err := LoadGlobalConfig()
	require.NoError(t, err)
	assert.Equal(t, constants.DefaultServerPort, cfg.Server.Port)
	assert.Equal(t, constants.DefaultVMMemoryMiB, cfg.Backend.MemoryMiB)
	assert.Equal(t, constants.DefaultVMCPUs, cfg.Backend.CPUs)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Empty(t, cfg.Backend.Kind)
}

func TestLoadGlobalConfigPartialFileFillsDefaults(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", dir)
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "vortex"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "vortex", "config.toml"), []byte(`
[backend]
kind = "krunvm"
memory_mib = 4096
`), 0644))

	cfg, err := LoadGlobalConfig()
	require.NoError(t, err)
	assert.Equal(t, types.BackendKrunVm, cfg.Backend.Kind)
	assert.Equal(t, 4096, cfg.Backend.MemoryMiB)
	// unset values fall back
	assert.Equal(t, constants.DefaultServerPort, cfg.Server.Port)
	assert.Equal(t, constants.DefaultVMCPUs, cfg.Backend.CPUs)
	assert.Equal(t, "info", cfg.Logging.Level)
}

func TestSaveRoundTrip(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())

	cfg := DefaultGlobalConfig()
	cfg.Server.Port = 9999
	cfg.Logging.Level = "debug"
	require.NoError(t, cfg.Save())

	loaded, err := LoadGlobalConfig()
	require.NoError(t, err)
	assert.Equal(t, 9999, loaded.Server.Port)
	assert.Equal(t, "debug", loaded.Logging.Level)
}

func TestLoadGlobalConfigMalformed(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", dir)
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "vortex"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "vortex", "config.toml"), []byte("[server\nport="), 0644))

	_, err := LoadGlobalConfig()
	require.Error(t, err)
}
