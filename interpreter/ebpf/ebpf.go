// Package ebpf provides kernel operations using cilium/ebpf.
package ebpf

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/cilium/ebpf"

	"github.com/frobware/go-bpfd/interpreter"
)

// kernelAdapter implements interpreter.KernelOperations using cilium/ebpf.
type kernelAdapter struct {
	logger *slog.Logger
}

// Option configures a kernelAdapter.
type Option func(*kernelAdapter)

// WithLogger sets the logger for kernel operations.
func WithLogger(logger *slog.Logger) Option {
	return func(k *kernelAdapter) {
		k.logger = logger
	}
}

// New creates a new kernel adapter.
func New(opts ...Option) interpreter.KernelOperations {
	k := &kernelAdapter{
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(k)
	}
	return k
}

// RemovePin removes a pin or empty directory from bpffs.
// Returns nil if the path does not exist.
func (k *kernelAdapter) RemovePin(ctx context.Context, path string) error {
	if err := os.Remove(path); err != nil {
		if os.IsNotExist(err) {
			return nil // Already gone
		}
		return fmt.Errorf("remove pin %s: %w", path, err)
	}
	return nil
}

// RemovePinTree removes a directory of pins recursively.
// Returns nil if the path does not exist.
func (k *kernelAdapter) RemovePinTree(ctx context.Context, path string) error {
	if err := os.RemoveAll(path); err != nil {
		return fmt.Errorf("remove pin tree %s: %w", path, err)
	}
	return nil
}

// RepinMap loads a pinned map and re-pins it to a new path.
// This is used by CSI to expose maps to per-pod bpffs.
func (k *kernelAdapter) RepinMap(ctx context.Context, srcPath, dstPath string) error {
	m, err := ebpf.LoadPinnedMap(srcPath, nil)
	if err != nil {
		return fmt.Errorf("load pinned map %s: %w", srcPath, err)
	}
	defer m.Close()

	// Clone the map FD to get a map without pin path tracking.
	// Pinning an already-pinned map to a different bpffs instance
	// fails with "invalid cross-device link" because cilium/ebpf
	// tries to move the existing pin.
	cloned, err := m.Clone()
	if err != nil {
		return fmt.Errorf("clone map: %w", err)
	}
	defer cloned.Close()

	if err := cloned.Pin(dstPath); err != nil {
		return fmt.Errorf("re-pin map to %s: %w", dstPath, err)
	}
	return nil
}

// pinner is satisfied by ebpf programs, maps and links.
type pinner interface {
	Pin(string) error
}

// pinWithRetry pins an object, retrying briefly when bpffs reports the
// path busy. A stale pin from an interrupted previous run is removed
// before the first attempt.
func pinWithRetry(p pinner, path string) error {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove stale pin %s: %w", path, err)
	}

	var err error
	for attempt := 0; attempt < 3; attempt++ {
		if err = p.Pin(path); err == nil {
			return nil
		}
		if !errors.Is(err, os.ErrExist) {
			return err
		}
		time.Sleep(10 * time.Millisecond)
	}
	return err
}
