package manager

import (
	"context"
	"fmt"

	bpfd "github.com/frobware/go-bpfd"
	"github.com/frobware/go-bpfd/action"
	"github.com/frobware/go-bpfd/dispatcher"
	"github.com/frobware/go-bpfd/interpreter"
)

// Restore reconciles persisted state with the world at startup.
// Dispatchers survive daemon restarts through their bpffs pins, so the
// normal case is a no-op beyond logging. An interface that disappeared
// while the daemon was down took its dispatcher with it; its rows and
// pins are swept here.
func (m *Manager) Restore(ctx context.Context) error {
	states, err := m.store.ListDispatchers(ctx)
	if err != nil {
		return fmt.Errorf("list dispatchers: %w", err)
	}
	all, err := m.store.ListPrograms(ctx)
	if err != nil {
		return fmt.Errorf("list programs: %w", err)
	}

	for _, state := range states {
		if _, err := m.resolver.InterfaceIndex(state.Iface); err == nil {
			m.logger.Info("restored dispatcher",
				"iface", state.Iface, "revision", state.Revision,
				"programs", state.NumPrograms)
			continue
		}

		m.logger.Warn("interface gone, sweeping its state", "iface", state.Iface)
		if err := m.sweepInterface(ctx, state, ifaceEntries(all, state.Iface)); err != nil {
			return err
		}
	}
	return nil
}

// sweepInterface removes the rows and pins of an interface that no
// longer exists. The kernel already dropped the dispatcher when the
// interface went away.
func (m *Manager) sweepInterface(ctx context.Context, state dispatcher.State, entries []bpfd.ProgramEntry) error {
	actions := make([]action.Action, 0, len(entries)+1)
	for _, e := range entries {
		actions = append(actions, action.DeleteProgram{ID: e.ID})
	}
	actions = append(actions, action.DeleteDispatcher{Iface: state.Iface})

	err := m.store.RunInTransaction(ctx, func(tx interpreter.Store) error {
		return interpreter.NewExecutor(tx, m.kernel).ExecuteAll(ctx, actions)
	})
	if err != nil {
		return fmt.Errorf("sweep %s: %w", state.Iface, err)
	}

	ifaceDir := dispatcher.IfaceDir(m.dirs.FS(), state.Iface)
	if err := m.mounter.Unmount(ifaceDir); err != nil {
		m.logger.Warn("failed to unmount interface bpffs", "iface", state.Iface, "error", err)
	}
	if err := m.kernel.RemovePinTree(ctx, ifaceDir); err != nil {
		m.logger.Warn("failed to remove interface dir", "dir", ifaceDir, "error", err)
	}
	return nil
}
