// Package fsutil provides file helpers for a privileged daemon:
// reads that refuse to acquire a controlling terminal, and best-effort
// permission tightening.
package fsutil

import (
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"golang.org/x/sys/unix"
)

// PinMode is the mode applied to pin files and daemon sockets:
// read/write for owner and group, no world access.
const PinMode fs.FileMode = 0o660

// openNoCtty opens path read-only with O_NOCTTY so that opening a
// device node can never make it the process's controlling terminal.
func openNoCtty(path string) (*os.File, error) {
	fd, err := unix.Open(path, unix.O_RDONLY|unix.O_NOCTTY|unix.O_CLOEXEC, 0)
	if err != nil {
		return nil, &os.PathError{Op: "open", Path: path, Err: err}
	}
	return os.NewFile(uintptr(fd), path), nil
}

// Read reads the file at path. Unlike os.ReadFile it opens with
// O_NOCTTY, for safety when the path could name a device node.
func Read(path string) ([]byte, error) {
	f, err := openNoCtty(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return data, nil
}

// ReadToString reads the file at path as a string, opening with
// O_NOCTTY.
func ReadToString(path string) (string, error) {
	data, err := Read(path)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// SetFilePermissions sets mode on path. Failure is logged and
// swallowed: permission tightening is a best-effort hardening step and
// must never fail the enclosing operation.
func SetFilePermissions(logger *slog.Logger, path string, mode fs.FileMode) {
	if err := os.Chmod(path, mode); err != nil {
		logger.Warn("unable to set permissions, continuing", "path", path, "mode", mode, "error", err)
	}
}

// SetDirPermissions applies mode to every entry directly inside
// directory. As with SetFilePermissions, failures are logged, not
// propagated.
func SetDirPermissions(logger *slog.Logger, directory string, mode fs.FileMode) {
	entries, err := os.ReadDir(directory)
	if err != nil {
		logger.Warn("unable to read directory for permission setting, continuing", "directory", directory, "error", err)
		return
	}
	for _, entry := range entries {
		SetFilePermissions(logger, filepath.Join(directory, entry.Name()), mode)
	}
}
