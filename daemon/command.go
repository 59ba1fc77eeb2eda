// Package daemon serialises all chain mutations through a single
// actor. Callers enqueue commands onto a bounded queue; one goroutine
// consumes them in arrival order and runs each to completion. The
// manager therefore never sees concurrent calls, and the order
// commands are accepted is the order their effects apply.
package daemon

import (
	bpfd "github.com/frobware/go-bpfd"
	"github.com/frobware/go-bpfd/manager"
)

// Command is a request for the actor. Commands are data; each variant
// carries its own response channel, buffered so the actor never blocks
// delivering a result to a caller that gave up waiting.
type Command interface {
	isCommand()
}

// Load admits a program to an interface's chain.
type Load struct {
	Spec manager.AddSpec
	Resp chan LoadResult
}

func (Load) isCommand() {}

// LoadResult is the outcome of a Load command.
type LoadResult struct {
	Summary bpfd.ProgramSummary
	Err     error
}

// NewLoad creates a Load command with its response channel.
func NewLoad(spec manager.AddSpec) Load {
	return Load{Spec: spec, Resp: make(chan LoadResult, 1)}
}

// Unload retires a program from an interface's chain.
type Unload struct {
	ID    bpfd.ProgramID
	Iface string
	Resp  chan error
}

func (Unload) isCommand() {}

// NewUnload creates an Unload command with its response channel.
func NewUnload(id bpfd.ProgramID, iface string) Unload {
	return Unload{ID: id, Iface: iface, Resp: make(chan error, 1)}
}

// List reports an interface's chain in dispatch order.
type List struct {
	Iface string
	Resp  chan ListResult
}

func (List) isCommand() {}

// ListResult is the outcome of a List command.
type ListResult struct {
	Programs []bpfd.ProgramSummary
	Err      error
}

// NewList creates a List command with its response channel.
func NewList(iface string) List {
	return List{Iface: iface, Resp: make(chan ListResult, 1)}
}

// GetMap hands a program's pinned map to the caller over a unix
// socket. The daemon connects to SocketPath and sends the map's file
// descriptor as SCM_RIGHTS ancillary data.
type GetMap struct {
	ID         bpfd.ProgramID
	Iface      string
	MapName    string
	SocketPath string
	Resp       chan error
}

func (GetMap) isCommand() {}

// NewGetMap creates a GetMap command with its response channel.
func NewGetMap(id bpfd.ProgramID, iface, mapName, socketPath string) GetMap {
	return GetMap{ID: id, Iface: iface, MapName: mapName, SocketPath: socketPath, Resp: make(chan error, 1)}
}
