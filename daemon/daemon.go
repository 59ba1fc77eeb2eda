package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/cilium/ebpf"

	"github.com/frobware/go-bpfd/fdpass"
	"github.com/frobware/go-bpfd/manager"
)

// QueueDepth bounds the number of commands waiting for the actor.
// Enqueue blocks once the queue is full, pushing back on producers
// rather than growing without bound.
const QueueDepth = 32

// ErrStopped is returned by Enqueue after the actor has shut down.
var ErrStopped = errors.New("daemon stopped")

// MapSender delivers a pinned map's file descriptor to a unix socket.
type MapSender func(pinPath, socketPath string) error

// sendPinnedMap opens a pinned map and hands its descriptor to
// whoever listens on socketPath. The pin path travels with the fd so
// the receiver knows what it was given.
func sendPinnedMap(pinPath, socketPath string) error {
	m, err := ebpf.LoadPinnedMap(pinPath, nil)
	if err != nil {
		return fmt.Errorf("load pinned map %s: %w", pinPath, err)
	}
	defer m.Close()

	return fdpass.SendFdTo(socketPath, pinPath, m.FD())
}

// Daemon owns the command queue and the actor consuming it.
type Daemon struct {
	manager *manager.Manager
	queue   chan Command
	done    chan struct{}
	sender  MapSender
	logger  *slog.Logger
}

// Option configures a Daemon.
type Option func(*Daemon)

// WithMapSender overrides map descriptor delivery. Tests use this to
// avoid real bpffs access.
func WithMapSender(s MapSender) Option {
	return func(d *Daemon) { d.sender = s }
}

// New creates a Daemon around a manager. Run must be started for
// enqueued commands to execute.
func New(mgr *manager.Manager, logger *slog.Logger, opts ...Option) *Daemon {
	if logger == nil {
		logger = slog.Default()
	}
	d := &Daemon{
		manager: mgr,
		queue:   make(chan Command, QueueDepth),
		done:    make(chan struct{}),
		sender:  sendPinnedMap,
		logger:  logger.With("component", "daemon"),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Enqueue submits a command to the actor. It blocks while the queue is
// full and returns the context's error if the caller gives up first,
// or ErrStopped once the actor has shut down. A nil return means the
// command will eventually execute; the caller reads its outcome from
// the command's response channel.
func (d *Daemon) Enqueue(ctx context.Context, cmd Command) error {
	select {
	case <-d.done:
		return ErrStopped
	default:
	}
	select {
	case d.queue <- cmd:
		return nil
	case <-d.done:
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Run consumes commands until ctx is cancelled. A command dequeued
// before cancellation always runs to completion; cancellation is only
// observed between commands. Commands still queued at shutdown are
// answered with ErrStopped.
func (d *Daemon) Run(ctx context.Context) error {
	defer close(d.done)

	for {
		select {
		case <-ctx.Done():
			d.drain()
			return ctx.Err()
		case cmd := <-d.queue:
			d.execute(ctx, cmd)
		}
	}
}

// drain answers queued commands that will never execute.
func (d *Daemon) drain() {
	for {
		select {
		case cmd := <-d.queue:
			d.fail(cmd, ErrStopped)
		default:
			return
		}
	}
}

func (d *Daemon) fail(cmd Command, err error) {
	switch c := cmd.(type) {
	case Load:
		d.respond(func() bool {
			select {
			case c.Resp <- LoadResult{Err: err}:
				return true
			default:
				return false
			}
		})
	case Unload:
		d.respond(func() bool {
			select {
			case c.Resp <- err:
				return true
			default:
				return false
			}
		})
	case List:
		d.respond(func() bool {
			select {
			case c.Resp <- ListResult{Err: err}:
				return true
			default:
				return false
			}
		})
	case GetMap:
		d.respond(func() bool {
			select {
			case c.Resp <- err:
				return true
			default:
				return false
			}
		})
	}
}

// respond delivers a result without blocking the actor. A full
// response channel means the caller stopped listening; the result is
// dropped and the loss logged.
func (d *Daemon) respond(deliver func() bool) {
	if !deliver() {
		d.logger.Warn("dropping response, caller gone")
	}
}

// execute runs one command to completion. The actor is the only
// goroutine calling the manager, which is what makes every operation's
// fetch/compute/execute atomic with respect to other commands.
func (d *Daemon) execute(ctx context.Context, cmd Command) {
	switch c := cmd.(type) {
	case Load:
		summary, err := d.manager.AddProgram(ctx, c.Spec)
		d.respond(func() bool {
			select {
			case c.Resp <- LoadResult{Summary: summary, Err: err}:
				return true
			default:
				return false
			}
		})

	case Unload:
		err := d.manager.RemoveProgram(ctx, c.ID, c.Iface)
		d.respond(func() bool {
			select {
			case c.Resp <- err:
				return true
			default:
				return false
			}
		})

	case List:
		programs, err := d.manager.ListPrograms(ctx, c.Iface)
		d.respond(func() bool {
			select {
			case c.Resp <- ListResult{Programs: programs, Err: err}:
				return true
			default:
				return false
			}
		})

	case GetMap:
		err := d.getMap(ctx, c)
		d.respond(func() bool {
			select {
			case c.Resp <- err:
				return true
			default:
				return false
			}
		})

	default:
		d.logger.Error("unknown command type", "type", fmt.Sprintf("%T", cmd))
	}
}

func (d *Daemon) getMap(ctx context.Context, c GetMap) error {
	pinPath, err := d.manager.GetMapPath(ctx, c.ID, c.Iface, c.MapName)
	if err != nil {
		return err
	}
	return d.sender(pinPath, c.SocketPath)
}
