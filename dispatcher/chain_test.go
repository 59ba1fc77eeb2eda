package dispatcher_test

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	bpfd "github.com/frobware/go-bpfd"
	"github.com/frobware/go-bpfd/dispatcher"
)

func entry(id string, priority int32, seq uint64) bpfd.ProgramEntry {
	return bpfd.ProgramEntry{
		ID:       bpfd.ProgramID(id),
		Iface:    "eth0",
		Priority: priority,
		Seq:      seq,
	}
}

func ids(chain []bpfd.ProgramEntry) []string {
	out := make([]string, len(chain))
	for i, e := range chain {
		out[i] = string(e.ID)
	}
	return out
}

func TestComputeChainOrdersByPriority(t *testing.T) {
	chain := dispatcher.ComputeChain([]bpfd.ProgramEntry{
		entry("a", 10, 1),
		entry("b", 5, 2),
		entry("c", 50, 3),
	})
	assert.Equal(t, []string{"b", "a", "c"}, ids(chain))
}

func TestComputeChainBreaksTiesByInsertionOrder(t *testing.T) {
	chain := dispatcher.ComputeChain([]bpfd.ProgramEntry{
		entry("second", 20, 7),
		entry("first", 20, 3),
	})
	assert.Equal(t, []string{"first", "second"}, ids(chain))
}

func TestComputeChainIsInputOrderIndependent(t *testing.T) {
	entries := []bpfd.ProgramEntry{
		entry("a", 10, 1),
		entry("b", 10, 2),
		entry("c", 5, 3),
		entry("d", 5, 4),
		entry("e", 99, 5),
	}
	want := ids(dispatcher.ComputeChain(entries))

	rng := rand.New(rand.NewSource(1))
	for i := 0; i < 20; i++ {
		shuffled := make([]bpfd.ProgramEntry, len(entries))
		copy(shuffled, entries)
		rng.Shuffle(len(shuffled), func(i, j int) {
			shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
		})
		assert.Equal(t, want, ids(dispatcher.ComputeChain(shuffled)))
	}
}

func TestComputeChainDoesNotMutateInput(t *testing.T) {
	entries := []bpfd.ProgramEntry{
		entry("a", 10, 1),
		entry("b", 5, 2),
	}
	_ = dispatcher.ComputeChain(entries)
	assert.Equal(t, "a", string(entries[0].ID), "input slice must not be reordered")
}

func TestCheckCapacity(t *testing.T) {
	require.NoError(t, dispatcher.CheckCapacity("eth0", dispatcher.MaxPrograms))

	err := dispatcher.CheckCapacity("eth0", dispatcher.MaxPrograms+1)
	require.Error(t, err)
	var capErr bpfd.CapacityError
	require.ErrorAs(t, err, &capErr)
	assert.Equal(t, "eth0", capErr.Iface)
	assert.Equal(t, dispatcher.MaxPrograms, capErr.Max)
}
