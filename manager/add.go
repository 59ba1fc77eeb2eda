package manager

import (
	"context"
	"errors"
	"fmt"
	"time"

	bpfd "github.com/frobware/go-bpfd"
	"github.com/frobware/go-bpfd/action"
	"github.com/frobware/go-bpfd/dispatcher"
	"github.com/frobware/go-bpfd/interpreter"
	"github.com/frobware/go-bpfd/interpreter/store"
)

// AddSpec describes a program to admit to an interface's chain.
type AddSpec struct {
	Iface       string
	ObjectPath  string
	SectionName string
	Priority    int32
}

// AddProgram admits a program to the named interface's chain. The
// chain is rebuilt as a new dispatcher revision and swapped in
// atomically; on any failure the previous revision stays live and
// nothing persists.
func (m *Manager) AddProgram(ctx context.Context, spec AddSpec) (bpfd.ProgramSummary, error) {
	ifindex, err := m.resolver.InterfaceIndex(spec.Iface)
	if err != nil {
		return bpfd.ProgramSummary{}, err
	}

	// Fetch.
	all, err := m.store.ListPrograms(ctx)
	if err != nil {
		return bpfd.ProgramSummary{}, fmt.Errorf("list programs: %w", err)
	}
	existing := ifaceEntries(all, spec.Iface)

	var prevState *dispatcher.State
	state, err := m.store.GetDispatcher(ctx, spec.Iface)
	switch {
	case err == nil:
		prevState = &state
	case errors.Is(err, store.ErrNotFound):
	default:
		return bpfd.ProgramSummary{}, fmt.Errorf("get dispatcher: %w", err)
	}

	// Compute. Capacity is checked before any kernel work.
	if err := dispatcher.CheckCapacity(spec.Iface, len(existing)+1); err != nil {
		return bpfd.ProgramSummary{}, err
	}

	entry := bpfd.ProgramEntry{
		ID:          bpfd.NewProgramID(),
		Iface:       spec.Iface,
		Priority:    spec.Priority,
		Seq:         nextSeq(all),
		SectionName: spec.SectionName,
		ObjectPath:  spec.ObjectPath,
		CreatedAt:   time.Now().UTC(),
	}
	chain := dispatcher.ComputeChain(append(existing, entry))

	// Execute.
	fs := m.dirs.FS()
	if err := m.mounter.EnsureMounted(dispatcher.IfaceDir(fs, spec.Iface)); err != nil {
		return bpfd.ProgramSummary{}, err
	}

	var revision uint32 = 1
	if prevState != nil {
		revision = prevState.Revision + 1
	}
	revDir := dispatcher.RevisionDir(fs, spec.Iface, revision)
	mapsDir := dispatcher.MapsDir(fs, spec.Iface)

	built, err := m.kernel.BuildDispatcher(ctx, interpreter.DispatcherSpec{
		Iface:       spec.Iface,
		Ifindex:     ifindex,
		Template:    m.template,
		Chain:       chain,
		RevisionDir: revDir,
		MapsDir:     mapsDir,
	})
	if err != nil {
		return bpfd.ProgramSummary{}, err
	}

	linkPinPath := dispatcher.LinkPinPath(fs, spec.Iface)
	newState := dispatcher.State{
		Iface:       spec.Iface,
		Ifindex:     ifindex,
		Revision:    revision,
		KernelID:    built.KernelID,
		LinkPinPath: linkPinPath,
		RevisionDir: revDir,
		NumPrograms: len(chain),
	}

	if prevState == nil {
		linkID, err := m.kernel.AttachDispatcher(ctx, ifindex, built.ProgPinPath, linkPinPath)
		if err != nil {
			m.discardRevision(ctx, revDir)
			return bpfd.ProgramSummary{}, fmt.Errorf("attach dispatcher to %s: %w", spec.Iface, err)
		}
		newState.LinkID = linkID
	} else {
		if err := m.kernel.ReplaceDispatcher(ctx, linkPinPath, built.ProgPinPath); err != nil {
			m.discardRevision(ctx, revDir)
			return bpfd.ProgramSummary{}, fmt.Errorf("replace dispatcher on %s: %w", spec.Iface, err)
		}
		newState.LinkID = prevState.LinkID
	}

	entry.Maps = built.MapPins[entry.ID]

	// Persist. The entry and the dispatcher state commit together;
	// a failed commit rolls the hook back to the previous revision.
	err = m.store.RunInTransaction(ctx, func(tx interpreter.Store) error {
		return interpreter.NewExecutor(tx, m.kernel).ExecuteAll(ctx, []action.Action{
			action.SaveProgram{Entry: entry},
			action.SaveDispatcher{State: newState},
		})
	})
	if err != nil {
		m.rollbackSwap(ctx, prevState, linkPinPath, revDir)
		return bpfd.ProgramSummary{}, fmt.Errorf("persist program %s: %w", entry.ID, err)
	}

	if prevState != nil {
		m.discardRevision(ctx, prevState.RevisionDir)
	}

	position, err := chainPosition(chain, entry.ID)
	if err != nil {
		return bpfd.ProgramSummary{}, err
	}

	m.logger.Info("added program",
		"id", entry.ID, "iface", spec.Iface, "section", spec.SectionName,
		"priority", spec.Priority, "position", position, "revision", revision)

	return bpfd.ProgramSummary{
		ID:          entry.ID,
		Iface:       entry.Iface,
		Priority:    entry.Priority,
		SectionName: entry.SectionName,
		Position:    position,
	}, nil
}

// discardRevision removes a revision directory and everything pinned
// beneath it. Failures are logged, not returned; a leftover directory
// is inert and swept on the next rebuild.
func (m *Manager) discardRevision(ctx context.Context, revDir string) {
	if err := m.kernel.RemovePinTree(ctx, revDir); err != nil {
		m.logger.Warn("failed to remove revision dir", "dir", revDir, "error", err)
	}
}

// rollbackSwap restores the hook after a failed persist. With a
// previous revision the link swaps back to it; without one the link is
// detached entirely. The failed revision's pins are removed either way.
func (m *Manager) rollbackSwap(ctx context.Context, prevState *dispatcher.State, linkPinPath, revDir string) {
	if prevState == nil {
		if err := m.kernel.DetachDispatcher(ctx, linkPinPath); err != nil {
			m.logger.Error("rollback: failed to detach dispatcher", "link", linkPinPath, "error", err)
		}
	} else {
		prevProgPin := dispatcher.ProgPinPath(prevState.RevisionDir)
		if err := m.kernel.ReplaceDispatcher(ctx, linkPinPath, prevProgPin); err != nil {
			m.logger.Error("rollback: failed to restore previous revision", "link", linkPinPath, "prog", prevProgPin, "error", err)
		}
	}
	m.discardRevision(ctx, revDir)
}
