// Package interpreter contains the interfaces and executors for
// effects. This is the only layer that performs actual I/O against the
// kernel and the store.
package interpreter

import (
	"context"
	"io"

	bpfd "github.com/frobware/go-bpfd"
	"github.com/frobware/go-bpfd/dispatcher"
)

// ProgramStore persists program entries.
type ProgramStore interface {
	// SaveProgram creates or updates an entry.
	SaveProgram(ctx context.Context, entry bpfd.ProgramEntry) error
	// DeleteProgram removes an entry.
	DeleteProgram(ctx context.Context, id bpfd.ProgramID) error
	// GetProgram returns an entry, or store.ErrNotFound.
	GetProgram(ctx context.Context, id bpfd.ProgramID) (bpfd.ProgramEntry, error)
	// ListPrograms returns all entries.
	ListPrograms(ctx context.Context) ([]bpfd.ProgramEntry, error)
}

// DispatcherStore persists per-interface dispatcher state.
type DispatcherStore interface {
	// SaveDispatcher creates or updates an interface's state.
	SaveDispatcher(ctx context.Context, state dispatcher.State) error
	// DeleteDispatcher removes an interface's state.
	DeleteDispatcher(ctx context.Context, iface string) error
	// GetDispatcher returns an interface's state, or
	// store.ErrNotFound.
	GetDispatcher(ctx context.Context, iface string) (dispatcher.State, error)
	// ListDispatchers returns every interface's state.
	ListDispatchers(ctx context.Context) ([]dispatcher.State, error)
}

// Transactional provides atomic execution of store operations. The
// callback receives a Store participating in the transaction; a nil
// return commits, an error rolls back.
type Transactional interface {
	RunInTransaction(ctx context.Context, fn func(Store) error) error
}

// Store combines program and dispatcher persistence.
type Store interface {
	io.Closer
	ProgramStore
	DispatcherStore
	Transactional
}

// DispatcherSpec describes one dispatcher instance to build: the
// template to instantiate, the chain to encode, and where its objects
// pin.
type DispatcherSpec struct {
	// Iface is the interface name (for error reporting).
	Iface string
	// Ifindex is the resolved interface index.
	Ifindex int
	// Template is the dispatcher ELF bytecode.
	Template []byte
	// Chain is the full chain in dispatch order; slot i receives
	// Chain[i] as an extension.
	Chain []bpfd.ProgramEntry
	// RevisionDir receives the dispatcher program pin and the
	// extension link pins.
	RevisionDir string
	// MapsDir receives map pins, shared by name across chain
	// members.
	MapsDir string
}

// BuiltDispatcher is the result of building a dispatcher revision. The
// instance is fully pinned but not yet attached to the hook.
type BuiltDispatcher struct {
	// KernelID is the dispatcher's kernel program ID.
	KernelID uint32
	// ProgPinPath is the dispatcher program pin.
	ProgPinPath string
	// MapPins maps each chain member to the names of its maps now
	// pinned (or reused) under MapsDir.
	MapPins map[bpfd.ProgramID][]string
}

// DispatcherBuilder instantiates dispatcher revisions.
type DispatcherBuilder interface {
	// BuildDispatcher loads a dispatcher encoding spec.Chain,
	// attaches every chain member as an extension, pins all objects
	// under spec.RevisionDir and eligible maps under spec.MapsDir.
	// On failure no pins of the new revision survive; previously
	// attached dispatchers are untouched.
	BuildDispatcher(ctx context.Context, spec DispatcherSpec) (BuiltDispatcher, error)
}

// DispatcherAttacher installs dispatcher revisions at the hook.
type DispatcherAttacher interface {
	// AttachDispatcher attaches the pinned dispatcher program to
	// the interface and pins the XDP link at linkPinPath. Used only
	// for an interface's first revision.
	AttachDispatcher(ctx context.Context, ifindex int, progPinPath, linkPinPath string) (linkID uint32, err error)

	// ReplaceDispatcher atomically swaps the program behind the
	// pinned XDP link at linkPinPath for the pinned dispatcher at
	// progPinPath. The hook is never without a program.
	ReplaceDispatcher(ctx context.Context, linkPinPath, progPinPath string) error

	// DetachDispatcher removes the pinned XDP link, detaching the
	// dispatcher from the hook.
	DetachDispatcher(ctx context.Context, linkPinPath string) error
}

// PinRemover removes pins from bpffs.
type PinRemover interface {
	// RemovePin removes a single pin or empty directory. A missing
	// path is not an error.
	RemovePin(ctx context.Context, path string) error
	// RemovePinTree removes a directory of pins recursively. A
	// missing path is not an error.
	RemovePinTree(ctx context.Context, path string) error
}

// MapRepinner re-pins maps to new locations. Used by the CSI driver to
// expose maps to per-pod filesystems.
type MapRepinner interface {
	RepinMap(ctx context.Context, srcPath, dstPath string) error
}

// KernelOperations combines all kernel effects the manager needs.
type KernelOperations interface {
	DispatcherBuilder
	DispatcherAttacher
	PinRemover
	MapRepinner
}
