// Package dispatcher builds the XDP dispatcher that multiplexes a
// single interface hook across many user programs.
//
// The dispatcher template has 10 stub slots (prog0-prog9) that user
// programs replace at load time using BPF extension programs
// (freplace). Each mutation of an interface's program set produces a
// freshly loaded dispatcher instance encoding the new chain; the live
// instance is then swapped atomically at the hook.
package dispatcher

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"github.com/cilium/ebpf"

	bpfd "github.com/frobware/go-bpfd"
)

// MaxPrograms is the number of slots in the dispatcher template, and
// therefore the maximum chain length per interface.
const MaxPrograms = 10

// ProgramName is the dispatcher's entry function in the template.
const ProgramName = "xdp_dispatcher"

const (
	// Template constants from xdp_dispatcher_v2.bpf.c.
	dispatcherMagic   = 236
	dispatcherVersion = 2

	// XDP_DISPATCHER_RETVAL is returned by empty slots; the
	// proceed-on mask must include it so the chain continues past
	// unused slots.
	dispatcherRetval = 31

	// xdpPass is the XDP_PASS return code. A program returning
	// XDP_PASS hands the packet to the next chain member.
	xdpPass = 2
)

// Config mirrors struct xdp_dispatcher_conf in the dispatcher
// template. It is serialised little-endian into the template's .rodata
// section, so the kernel sees the chain parameters at verification
// time.
type Config struct {
	Magic             uint8
	DispatcherVersion uint8
	NumProgsEnabled   uint8
	IsXDPFrags        uint8
	ChainCallActions  [MaxPrograms]uint32
	RunPrios          [MaxPrograms]uint32
	ProgramFlags      [MaxPrograms]uint32
}

// NewConfig builds the dispatcher config for a chain. Slot i carries
// chain[i]'s priority; every enabled slot proceeds on XDP_PASS and on
// the empty-slot sentinel value.
func NewConfig(chain []bpfd.ProgramEntry) (Config, error) {
	if len(chain) > MaxPrograms {
		return Config{}, fmt.Errorf("chain of %d exceeds %d dispatcher slots", len(chain), MaxPrograms)
	}
	cfg := Config{
		Magic:             dispatcherMagic,
		DispatcherVersion: dispatcherVersion,
		NumProgsEnabled:   uint8(len(chain)),
	}
	for i := range cfg.ChainCallActions {
		cfg.ChainCallActions[i] = 1<<xdpPass | 1<<dispatcherRetval
	}
	for i, entry := range chain {
		cfg.RunPrios[i] = uint32(entry.Priority)
	}
	return cfg, nil
}

// LoadSpec parses the dispatcher template and injects cfg into its
// .rodata section. The returned spec is ready to be instantiated as a
// kernel collection.
func LoadSpec(template []byte, cfg Config) (*ebpf.CollectionSpec, error) {
	spec, err := ebpf.LoadCollectionSpecFromReader(bytes.NewReader(template))
	if err != nil {
		return nil, fmt.Errorf("parse dispatcher template: %w", err)
	}

	// The config is a static variable, so the whole .rodata section
	// is exactly one instance of it.
	rodata, ok := spec.Maps[".rodata"]
	if !ok {
		return nil, fmt.Errorf("dispatcher template missing .rodata map")
	}

	buf := new(bytes.Buffer)
	if err := binary.Write(buf, binary.LittleEndian, cfg); err != nil {
		return nil, fmt.Errorf("serialise dispatcher config: %w", err)
	}

	rodata.Contents = []ebpf.MapKV{
		{Key: uint32(0), Value: buf.Bytes()},
	}

	return spec, nil
}

// SlotName returns the stub function name for a dispatcher slot. It is
// the freplace target for the extension attached at that position.
func SlotName(position int) string {
	return fmt.Sprintf("prog%d", position)
}
