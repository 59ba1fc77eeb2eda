package fsutil

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestRead(t *testing.T) {
	path := filepath.Join(t.TempDir(), "f")
	require.NoError(t, os.WriteFile(path, []byte("hello"), 0o644))

	data, err := Read(path)
	require.NoError(t, err)
	assert.Equal(t, []byte("hello"), data)
}

func TestReadToString(t *testing.T) {
	path := filepath.Join(t.TempDir(), "f")
	require.NoError(t, os.WriteFile(path, []byte("config contents\n"), 0o644))

	s, err := ReadToString(path)
	require.NoError(t, err)
	assert.Equal(t, "config contents\n", s)
}

func TestReadMissingFile(t *testing.T) {
	_, err := Read(filepath.Join(t.TempDir(), "missing"))
	require.Error(t, err)
	assert.True(t, os.IsNotExist(err))
}

func TestSetFilePermissions(t *testing.T) {
	path := filepath.Join(t.TempDir(), "f")
	require.NoError(t, os.WriteFile(path, nil, 0o644))

	SetFilePermissions(discardLogger(), path, PinMode)

	fi, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, PinMode, fi.Mode().Perm())
}

func TestSetFilePermissionsMissingFileDoesNotPanic(t *testing.T) {
	SetFilePermissions(discardLogger(), filepath.Join(t.TempDir(), "missing"), PinMode)
}

func TestSetDirPermissions(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"a", "b"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), nil, 0o644))
	}

	SetDirPermissions(discardLogger(), dir, PinMode)

	for _, name := range []string{"a", "b"} {
		fi, err := os.Stat(filepath.Join(dir, name))
		require.NoError(t, err)
		assert.Equal(t, PinMode, fi.Mode().Perm(), "entry %s", name)
	}
}
