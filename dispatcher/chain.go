package dispatcher

import (
	"sort"

	bpfd "github.com/frobware/go-bpfd"
)

// ComputeChain returns the dispatch order for the given entries: sorted
// by priority ascending, then insertion sequence ascending.
//
// The sequence tie-break makes the order a total order: no two distinct
// entries ever compare equal, so the result is deterministic and
// independent of the order entries arrive in. The input is not
// modified.
func ComputeChain(entries []bpfd.ProgramEntry) []bpfd.ProgramEntry {
	chain := make([]bpfd.ProgramEntry, len(entries))
	copy(chain, entries)
	sort.Slice(chain, func(i, j int) bool {
		if chain[i].Priority != chain[j].Priority {
			return chain[i].Priority < chain[j].Priority
		}
		return chain[i].Seq < chain[j].Seq
	})
	return chain
}

// CheckCapacity returns a CapacityError if a chain of n programs would
// not fit in the dispatcher's slots. Callers must reject the triggering
// mutation before touching kernel state.
func CheckCapacity(iface string, n int) error {
	if n > MaxPrograms {
		return bpfd.CapacityError{Iface: iface, Chain: n, Max: MaxPrograms}
	}
	return nil
}
