package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestResolve_UsesMINNA_DATA_DIR(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("MINNA_DATA_DIR", dir)

	paths, err := Resolve()
	require.NoError(t, err)
	require.Equal(t, dir, paths.Dir)
	require.Equal(t, filepath.Join(dir, "minna.db"), paths.DatabasePath)
	require.Equal(t, filepath.Join(dir, "mcp.sock"), paths.MCPSocketPath)
	require.Equal(t, filepath.Join(dir, "admin.sock"), paths.AdminSocketPath)
	require.Equal(t, filepath.Join(dir, "vault", "checkpoints"), paths.CheckpointsDir)

	info, err := os.Stat(paths.CheckpointsDir)
	require.NoError(t, err)
	require.True(t, info.IsDir())
}

func TestWritePID_WritesASCIIDigits(t *testing.T) {
	path := filepath.Join(t.TempDir(), "daemon.pid")
	require.NoError(t, WritePID(path, 4242))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Equal(t, "4242", string(data))
}

func TestLoadProcessConfig_MissingFileReturnsDefaults(t *testing.T) {
	cfg, err := LoadProcessConfig(filepath.Join(t.TempDir(), "minna.hcl"))
	require.NoError(t, err)
	require.Equal(t, "info", cfg.LogLevel)
	require.Equal(t, 3, cfg.MaxConcurrentSyncs)
	require.Equal(t, 1000, cfg.HourlyAPIBudget)
}

func TestLoadProcessConfig_PartialFileKeepsDefaultsForUnset(t *testing.T) {
	path := filepath.Join(t.TempDir(), "minna.hcl")
	require.NoError(t, os.WriteFile(path, []byte(`log_level = "debug"`+"\n"), 0o644))

	cfg, err := LoadProcessConfig(path)
	require.NoError(t, err)
	require.Equal(t, "debug", cfg.LogLevel)
	require.Equal(t, 3, cfg.MaxConcurrentSyncs)
}
