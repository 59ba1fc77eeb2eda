package manager

import (
	"context"
	"errors"
	"fmt"

	bpfd "github.com/frobware/go-bpfd"
	"github.com/frobware/go-bpfd/action"
	"github.com/frobware/go-bpfd/dispatcher"
	"github.com/frobware/go-bpfd/interpreter"
	"github.com/frobware/go-bpfd/interpreter/store"
)

// RemoveProgram retires a program from its interface's chain. The
// remaining chain is rebuilt and swapped in atomically; removing the
// last program tears the interface down entirely. iface, when
// non-empty, must match the entry's interface.
func (m *Manager) RemoveProgram(ctx context.Context, id bpfd.ProgramID, iface string) error {
	// Fetch.
	entry, err := m.store.GetProgram(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return bpfd.NotFoundError{ID: id, Iface: iface}
		}
		return fmt.Errorf("get program: %w", err)
	}
	if iface != "" && entry.Iface != iface {
		return bpfd.NotFoundError{ID: id, Iface: iface}
	}

	state, err := m.store.GetDispatcher(ctx, entry.Iface)
	if err != nil {
		return fmt.Errorf("get dispatcher for %s: %w", entry.Iface, err)
	}

	all, err := m.store.ListPrograms(ctx)
	if err != nil {
		return fmt.Errorf("list programs: %w", err)
	}

	// Compute.
	var remaining []bpfd.ProgramEntry
	for _, e := range ifaceEntries(all, entry.Iface) {
		if e.ID != id {
			remaining = append(remaining, e)
		}
	}

	if len(remaining) == 0 {
		return m.teardownInterface(ctx, entry, state)
	}
	return m.shrinkChain(ctx, entry, state, remaining)
}

// teardownInterface detaches the dispatcher and removes every trace of
// the interface: pins, map pins, the bpffs mount and its directory.
func (m *Manager) teardownInterface(ctx context.Context, entry bpfd.ProgramEntry, state dispatcher.State) error {
	if err := m.kernel.DetachDispatcher(ctx, state.LinkPinPath); err != nil {
		return fmt.Errorf("detach dispatcher from %s: %w", entry.Iface, err)
	}

	err := m.store.RunInTransaction(ctx, func(tx interpreter.Store) error {
		return interpreter.NewExecutor(tx, m.kernel).ExecuteAll(ctx, []action.Action{
			action.DeleteProgram{ID: entry.ID},
			action.DeleteDispatcher{Iface: entry.Iface},
		})
	})
	if err != nil {
		return fmt.Errorf("delete program %s: %w", entry.ID, err)
	}

	fs := m.dirs.FS()
	ifaceDir := dispatcher.IfaceDir(fs, entry.Iface)
	m.discardRevision(ctx, state.RevisionDir)
	m.discardRevision(ctx, dispatcher.MapsDir(fs, entry.Iface))

	if err := m.mounter.Unmount(ifaceDir); err != nil {
		m.logger.Warn("failed to unmount interface bpffs", "iface", entry.Iface, "error", err)
	}
	if err := m.kernel.RemovePinTree(ctx, ifaceDir); err != nil {
		m.logger.Warn("failed to remove interface dir", "dir", ifaceDir, "error", err)
	}

	m.logger.Info("removed last program, interface torn down",
		"id", entry.ID, "iface", entry.Iface)
	return nil
}

// shrinkChain rebuilds the chain without the removed entry and swaps
// the new revision in. Map pins referenced only by the removed entry
// are unpinned afterwards.
func (m *Manager) shrinkChain(ctx context.Context, entry bpfd.ProgramEntry, state dispatcher.State, remaining []bpfd.ProgramEntry) error {
	chain := dispatcher.ComputeChain(remaining)

	fs := m.dirs.FS()
	revision := state.Revision + 1
	revDir := dispatcher.RevisionDir(fs, entry.Iface, revision)
	mapsDir := dispatcher.MapsDir(fs, entry.Iface)

	built, err := m.kernel.BuildDispatcher(ctx, interpreter.DispatcherSpec{
		Iface:       entry.Iface,
		Ifindex:     state.Ifindex,
		Template:    m.template,
		Chain:       chain,
		RevisionDir: revDir,
		MapsDir:     mapsDir,
	})
	if err != nil {
		return err
	}

	if err := m.kernel.ReplaceDispatcher(ctx, state.LinkPinPath, built.ProgPinPath); err != nil {
		m.discardRevision(ctx, revDir)
		return fmt.Errorf("replace dispatcher on %s: %w", entry.Iface, err)
	}

	newState := state
	newState.Revision = revision
	newState.KernelID = built.KernelID
	newState.RevisionDir = revDir
	newState.NumPrograms = len(chain)

	err = m.store.RunInTransaction(ctx, func(tx interpreter.Store) error {
		return interpreter.NewExecutor(tx, m.kernel).ExecuteAll(ctx, []action.Action{
			action.DeleteProgram{ID: entry.ID},
			action.SaveDispatcher{State: newState},
		})
	})
	if err != nil {
		m.rollbackSwap(ctx, &state, state.LinkPinPath, revDir)
		return fmt.Errorf("delete program %s: %w", entry.ID, err)
	}

	m.discardRevision(ctx, state.RevisionDir)
	m.unpinExclusiveMaps(ctx, entry, remaining, mapsDir)

	m.logger.Info("removed program",
		"id", entry.ID, "iface", entry.Iface, "remaining", len(chain), "revision", revision)
	return nil
}

// unpinExclusiveMaps removes the map pins only the departed entry
// referenced. Maps shared with surviving entries stay pinned.
func (m *Manager) unpinExclusiveMaps(ctx context.Context, entry bpfd.ProgramEntry, remaining []bpfd.ProgramEntry, mapsDir string) {
	inUse := make(map[string]bool)
	for _, e := range remaining {
		for _, name := range e.Maps {
			inUse[name] = true
		}
	}
	for _, name := range entry.Maps {
		if inUse[name] {
			continue
		}
		path := dispatcher.MapPinPath(mapsDir, name)
		if err := m.kernel.RemovePin(ctx, path); err != nil {
			m.logger.Warn("failed to unpin map", "path", path, "error", err)
		}
	}
}
