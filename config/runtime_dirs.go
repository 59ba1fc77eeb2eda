package config

import (
	"fmt"
	"os"
	"path/filepath"
)

// RuntimeDirs holds the daemon's runtime directory layout:
//
//	{base}/           runtime root
//	{base}/fs/        per-interface pin filesystems ({base}/fs/{iface}/)
//	{base}/db/        registry database
//	{base}/csi/       CSI socket and per-pod mounts
//	{base}-sock/      gRPC unix socket
//	{base}/.lock      single-instance lock file
//
// RuntimeDirs is immutable after construction; use NewRuntimeDirs.
type RuntimeDirs struct {
	base  string
	fs    string
	db    string
	csi   string
	csiFS string
	sock  string
	lock  string
}

// DefaultRuntimeDirs returns the production layout under /run/bpfd.
func DefaultRuntimeDirs() RuntimeDirs {
	dirs, err := NewRuntimeDirs("/run/bpfd")
	if err != nil {
		panic(fmt.Sprintf("DefaultRuntimeDirs: %v", err))
	}
	return dirs
}

// NewRuntimeDirs derives the full layout from base. The socket
// directory is {base}-sock so it can be volume-mounted separately.
func NewRuntimeDirs(base string) (RuntimeDirs, error) {
	if base == "" {
		return RuntimeDirs{}, fmt.Errorf("base path cannot be empty")
	}
	if !filepath.IsAbs(base) {
		return RuntimeDirs{}, fmt.Errorf("base path must be absolute, got %q", base)
	}

	return RuntimeDirs{
		base:  base,
		fs:    filepath.Join(base, "fs"),
		db:    filepath.Join(base, "db"),
		csi:   filepath.Join(base, "csi"),
		csiFS: filepath.Join(base, "csi", "fs"),
		sock:  base + "-sock",
		lock:  filepath.Join(base, ".lock"),
	}, nil
}

// Base returns the runtime root.
func (d RuntimeDirs) Base() string { return d.base }

// FS returns the root under which per-interface pin filesystems are
// mounted.
func (d RuntimeDirs) FS() string { return d.fs }

// DB returns the database directory.
func (d RuntimeDirs) DB() string { return d.db }

// DBPath returns the registry database file path.
func (d RuntimeDirs) DBPath() string { return filepath.Join(d.db, "bpfd.db") }

// CSI returns the CSI socket directory.
func (d RuntimeDirs) CSI() string { return d.csi }

// CSIFS returns the root of CSI per-pod mounts.
func (d RuntimeDirs) CSIFS() string { return d.csiFS }

// CSISocketPath returns the CSI driver's unix socket path.
func (d RuntimeDirs) CSISocketPath() string { return filepath.Join(d.csi, "csi.sock") }

// Sock returns the gRPC socket directory.
func (d RuntimeDirs) Sock() string { return d.sock }

// SocketPath returns the daemon's gRPC unix socket path.
func (d RuntimeDirs) SocketPath() string { return filepath.Join(d.sock, "bpfd.sock") }

// LockPath returns the single-instance lock file path.
func (d RuntimeDirs) LockPath() string { return d.lock }

// EnsureDirectories creates the runtime directory tree. Per-interface
// pin filesystems under FS are mounted lazily when the first program
// is added to an interface.
func (d RuntimeDirs) EnsureDirectories() error {
	for _, dir := range []string{d.base, d.fs, d.db, d.sock} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create %s: %w", dir, err)
		}
	}
	return nil
}

// EnsureCSIDirectories creates the CSI directories. Only called when
// CSI support is enabled.
func (d RuntimeDirs) EnsureCSIDirectories() error {
	for _, dir := range []string{d.csi, d.csiFS} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create %s: %w", dir, err)
		}
	}
	return nil
}
