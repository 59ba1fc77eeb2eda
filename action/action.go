// Package action contains reified effects - descriptions of what to do
// without actually doing it. These are pure data structures.
package action

import (
	bpfd "github.com/frobware/go-bpfd"
	"github.com/frobware/go-bpfd/dispatcher"
)

// Action represents an effect to be executed.
// Actions are data - they describe what to do, not how.
type Action interface {
	isAction()
}

// Store actions - operations on the metadata store

// SaveProgram saves a program entry to the store.
type SaveProgram struct {
	Entry bpfd.ProgramEntry
}

func (SaveProgram) isAction() {}

// DeleteProgram removes a program entry from the store.
type DeleteProgram struct {
	ID bpfd.ProgramID
}

func (DeleteProgram) isAction() {}

// SaveDispatcher creates or updates an interface's dispatcher state.
type SaveDispatcher struct {
	State dispatcher.State
}

func (SaveDispatcher) isAction() {}

// DeleteDispatcher removes an interface's dispatcher state.
type DeleteDispatcher struct {
	Iface string
}

func (DeleteDispatcher) isAction() {}

// Kernel actions - operations on the BPF subsystem

// DetachDispatcher removes a pinned XDP link, detaching the dispatcher
// from its hook.
type DetachDispatcher struct {
	LinkPinPath string
}

func (DetachDispatcher) isAction() {}

// RemovePin removes a single pin from bpffs.
type RemovePin struct {
	Path string
}

func (RemovePin) isAction() {}

// RemovePinTree removes a directory of pins recursively.
type RemovePinTree struct {
	Path string
}

func (RemovePinTree) isAction() {}

// Sequence executes actions in order, stopping on first error.
type Sequence struct {
	Actions []Action
}

func (Sequence) isAction() {}
