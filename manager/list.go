package manager

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sort"

	bpfd "github.com/frobware/go-bpfd"
	"github.com/frobware/go-bpfd/dispatcher"
	"github.com/frobware/go-bpfd/interpreter/store"
)

// ListPrograms returns the named interface's chain in dispatch order.
// An empty iface selects every interface with programs; positions are
// still per-interface slot indices. An interface with no programs
// returns an empty list.
func (m *Manager) ListPrograms(ctx context.Context, iface string) ([]bpfd.ProgramSummary, error) {
	if iface != "" {
		if _, err := m.resolver.InterfaceIndex(iface); err != nil {
			return nil, err
		}
	}

	all, err := m.store.ListPrograms(ctx)
	if err != nil {
		return nil, fmt.Errorf("list programs: %w", err)
	}

	ifaces := []string{iface}
	if iface == "" {
		seen := map[string]bool{}
		ifaces = ifaces[:0]
		for _, e := range all {
			if !seen[e.Iface] {
				seen[e.Iface] = true
				ifaces = append(ifaces, e.Iface)
			}
		}
		sort.Strings(ifaces)
	}

	var summaries []bpfd.ProgramSummary
	for _, name := range ifaces {
		chain := dispatcher.ComputeChain(ifaceEntries(all, name))
		for position, e := range chain {
			summaries = append(summaries, bpfd.ProgramSummary{
				ID:          e.ID,
				Iface:       e.Iface,
				Priority:    e.Priority,
				SectionName: e.SectionName,
				Position:    position,
			})
		}
	}
	return summaries, nil
}

// GetMapPath returns the pin path of one of a program's maps. The
// server opens the pin and hands the descriptor to the caller.
func (m *Manager) GetMapPath(ctx context.Context, id bpfd.ProgramID, iface, mapName string) (string, error) {
	entry, err := m.store.GetProgram(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return "", bpfd.NotFoundError{ID: id, Iface: iface}
		}
		return "", fmt.Errorf("get program: %w", err)
	}
	if iface != "" && entry.Iface != iface {
		return "", bpfd.NotFoundError{ID: id, Iface: iface}
	}

	if !slices.Contains(entry.Maps, mapName) {
		return "", bpfd.MapNotFoundError{ID: id, Iface: entry.Iface, MapName: mapName}
	}

	mapsDir := dispatcher.MapsDir(m.dirs.FS(), entry.Iface)
	return dispatcher.MapPinPath(mapsDir, mapName), nil
}
