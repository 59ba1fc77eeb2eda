package dispatcher_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	bpfd "github.com/frobware/go-bpfd"
	"github.com/frobware/go-bpfd/dispatcher"
)

func TestNewConfig(t *testing.T) {
	cfg, err := dispatcher.NewConfig([]bpfd.ProgramEntry{
		entry("a", 5, 1),
		entry("b", 20, 2),
	})
	require.NoError(t, err)

	assert.Equal(t, uint8(2), cfg.NumProgsEnabled)
	assert.Equal(t, uint32(5), cfg.RunPrios[0])
	assert.Equal(t, uint32(20), cfg.RunPrios[1])

	// Every slot must proceed on XDP_PASS (bit 2) and on the
	// empty-slot sentinel (bit 31), or the chain stalls at the
	// first unused slot.
	for i, actions := range cfg.ChainCallActions {
		assert.NotZero(t, actions&(1<<2), "slot %d missing XDP_PASS", i)
		assert.NotZero(t, actions&(1<<31), "slot %d missing dispatcher retval", i)
	}
}

func TestNewConfigRejectsOversizedChain(t *testing.T) {
	chain := make([]bpfd.ProgramEntry, dispatcher.MaxPrograms+1)
	_, err := dispatcher.NewConfig(chain)
	require.Error(t, err)
}

func TestLoadSpecRejectsInvalidTemplate(t *testing.T) {
	cfg, err := dispatcher.NewConfig(nil)
	require.NoError(t, err)

	_, err = dispatcher.LoadSpec([]byte("not an ELF"), cfg)
	require.Error(t, err)
}

func TestSlotName(t *testing.T) {
	assert.Equal(t, "prog0", dispatcher.SlotName(0))
	assert.Equal(t, "prog9", dispatcher.SlotName(9))
}
