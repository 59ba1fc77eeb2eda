// Package manager provides high-level orchestration using
// the fetch/compute/execute pattern.
//
// # Atomic Add Model
//
// The Manager provides atomic semantics for admitting programs to an
// interface's chain. The goal is that either the new chain is live at
// the hook with its metadata persisted, or nothing changed (no partial
// state, no traffic interruption).
//
// The atomic model:
//  1. Build a complete new dispatcher revision, fully pinned but not
//     yet attached.
//  2. Swap it in atomically via the interface's pinned XDP link.
//  3. On success: persist the entry and dispatcher state to the DB in
//     a single transaction.
//  4. On a failure at any step: undo the kernel work, leave the DB
//     untouched.
//
// Packets traverse either the old revision or the new one; the hook is
// never empty mid-swap.
//
// # Map Sharing
//
// A program's maps pin by name under the interface's maps directory:
//
//	{fs}/{iface}/maps/{name}
//
// Rebuilds reuse existing pins, so a program keeps its map contents
// across chain changes and programs built from the same object share
// maps. A map pin is removed only when the last entry naming it leaves
// the interface.
package manager

import (
	"fmt"
	"log/slog"
	"net"

	bpfd "github.com/frobware/go-bpfd"
	"github.com/frobware/go-bpfd/bpffs"
	"github.com/frobware/go-bpfd/config"
	"github.com/frobware/go-bpfd/fsutil"
	"github.com/frobware/go-bpfd/interpreter"
)

// NetIfaceResolver resolves interface names to indexes. The default
// implementation consults the kernel; tests substitute a fake.
type NetIfaceResolver interface {
	// InterfaceIndex returns the ifindex for a named interface, or
	// bpfd.InvalidInterfaceError.
	InterfaceIndex(name string) (int, error)
}

// NetIfaceResolverFunc adapts a function to NetIfaceResolver.
type NetIfaceResolverFunc func(name string) (int, error)

func (f NetIfaceResolverFunc) InterfaceIndex(name string) (int, error) {
	return f(name)
}

// DefaultNetIfaceResolver resolves interfaces via the kernel.
func DefaultNetIfaceResolver() NetIfaceResolver {
	return NetIfaceResolverFunc(func(name string) (int, error) {
		iface, err := net.InterfaceByName(name)
		if err != nil {
			return 0, bpfd.InvalidInterfaceError{Name: name}
		}
		return iface.Index, nil
	})
}

// Mounter manages per-interface bpffs mounts. The default
// implementation performs real mounts; tests substitute a fake.
type Mounter interface {
	// EnsureMounted mounts a bpffs at directory unless one is
	// already mounted there.
	EnsureMounted(directory string) error
	// Unmount removes the bpffs mount at directory.
	Unmount(directory string) error
}

// osMounter mounts real bpf filesystems.
type osMounter struct {
	logger *slog.Logger
}

func (o osMounter) EnsureMounted(directory string) error {
	if err := bpffs.EnsureMounted(bpffs.DefaultMountInfoPath, directory); err != nil {
		return err
	}
	// Group access lets unprivileged readers inspect pinned maps.
	fsutil.SetDirPermissions(o.logger, directory, fsutil.PinMode)
	return nil
}

func (o osMounter) Unmount(directory string) error {
	return bpffs.Unmount(directory)
}

// Manager orchestrates chain management using fetch/compute/execute.
// It is not safe for concurrent use; the daemon serialises all calls
// through a single actor.
type Manager struct {
	dirs     config.RuntimeDirs
	template []byte
	store    interpreter.Store
	kernel   interpreter.KernelOperations
	executor interpreter.ActionExecutor
	resolver NetIfaceResolver
	mounter  Mounter
	logger   *slog.Logger
}

// Option configures a Manager.
type Option func(*Manager)

// WithResolver overrides interface name resolution.
func WithResolver(r NetIfaceResolver) Option {
	return func(m *Manager) { m.resolver = r }
}

// WithMounter overrides bpffs mount handling.
func WithMounter(mnt Mounter) Option {
	return func(m *Manager) { m.mounter = mnt }
}

// New creates a new Manager. template holds the dispatcher ELF
// bytecode instantiated for every chain revision.
func New(dirs config.RuntimeDirs, template []byte, store interpreter.Store, kernel interpreter.KernelOperations, logger *slog.Logger, opts ...Option) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "manager")

	m := &Manager{
		dirs:     dirs,
		template: template,
		store:    store,
		kernel:   kernel,
		executor: interpreter.NewExecutor(store, kernel),
		resolver: DefaultNetIfaceResolver(),
		mounter:  osMounter{logger: logger},
		logger:   logger,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Dirs returns the runtime directories configuration.
func (m *Manager) Dirs() config.RuntimeDirs {
	return m.dirs
}

// ifaceEntries returns the subset of entries on the named interface.
func ifaceEntries(entries []bpfd.ProgramEntry, iface string) []bpfd.ProgramEntry {
	var out []bpfd.ProgramEntry
	for _, e := range entries {
		if e.Iface == iface {
			out = append(out, e)
		}
	}
	return out
}

// nextSeq returns the next insertion sequence number. Sequence numbers
// are derived from persisted entries so the total order survives
// restarts.
func nextSeq(entries []bpfd.ProgramEntry) uint64 {
	var max uint64
	for _, e := range entries {
		if e.Seq > max {
			max = e.Seq
		}
	}
	return max + 1
}

// chainPosition returns the slot index of id within chain, or an error
// if the id is not a chain member.
func chainPosition(chain []bpfd.ProgramEntry, id bpfd.ProgramID) (int, error) {
	for i, e := range chain {
		if e.ID == id {
			return i, nil
		}
	}
	return 0, fmt.Errorf("program %s not in chain", id)
}
