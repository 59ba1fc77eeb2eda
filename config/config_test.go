package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	cfg := Default()
	assert.Equal(t, DefaultGRPCAddress, cfg.GRPC.Address)
	assert.Equal(t, "/run/bpfd", cfg.Runtime.Dir)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.False(t, cfg.CSI.Enabled)
}

func TestLoadMissingFileYieldsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.toml"))
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoadOverlaysDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bpfd.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
[logging]
level = "debug,manager=trace"

[csi]
enabled = true
`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "debug,manager=trace", cfg.Logging.Level)
	assert.True(t, cfg.CSI.Enabled)
	// Unspecified sections keep defaults.
	assert.Equal(t, DefaultGRPCAddress, cfg.GRPC.Address)
	assert.Equal(t, "/run/bpfd", cfg.Runtime.Dir)
}

func TestLoadRejectsInvalidTOML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bpfd.toml")
	require.NoError(t, os.WriteFile(path, []byte("[grpc\naddress ="), 0o644))

	_, err := Load(path)
	require.Error(t, err)
}
