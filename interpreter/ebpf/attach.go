package ebpf

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/cilium/ebpf"
	"github.com/cilium/ebpf/link"
)

// AttachDispatcher attaches a pinned dispatcher program to an interface
// and pins the resulting XDP link. The pinned link is the stable handle
// subsequent revisions update; it is only created here, for an
// interface's first revision.
func (k *kernelAdapter) AttachDispatcher(ctx context.Context, ifindex int, progPinPath, linkPinPath string) (uint32, error) {
	prog, err := ebpf.LoadPinnedProgram(progPinPath, nil)
	if err != nil {
		return 0, fmt.Errorf("load pinned dispatcher %s: %w", progPinPath, err)
	}
	defer prog.Close()

	lnk, err := link.AttachXDP(link.XDPOptions{
		Program:   prog,
		Interface: ifindex,
	})
	if err != nil {
		return 0, fmt.Errorf("attach XDP dispatcher to ifindex %d: %w", ifindex, err)
	}

	if err := pinWithRetry(lnk, linkPinPath); err != nil {
		lnk.Close()
		return 0, fmt.Errorf("pin dispatcher link to %s: %w", linkPinPath, err)
	}

	info, err := lnk.Info()
	if err != nil {
		lnk.Close()
		return 0, fmt.Errorf("get dispatcher link info: %w", err)
	}

	// The pin holds the link open; our fd is no longer needed.
	if err := lnk.Close(); err != nil {
		return 0, fmt.Errorf("close dispatcher link fd: %w", err)
	}

	return uint32(info.ID), nil
}

// ReplaceDispatcher atomically swaps the program behind the pinned XDP
// link for the pinned dispatcher at progPinPath. Packets see either the
// old revision or the new one; the hook is never empty.
func (k *kernelAdapter) ReplaceDispatcher(ctx context.Context, linkPinPath, progPinPath string) error {
	lnk, err := link.LoadPinnedLink(linkPinPath, nil)
	if err != nil {
		return fmt.Errorf("load pinned link %s: %w", linkPinPath, err)
	}
	defer lnk.Close()

	prog, err := ebpf.LoadPinnedProgram(progPinPath, nil)
	if err != nil {
		return fmt.Errorf("load pinned dispatcher %s: %w", progPinPath, err)
	}
	defer prog.Close()

	if err := lnk.Update(prog); err != nil {
		return fmt.Errorf("update link %s: %w", linkPinPath, err)
	}
	return nil
}

// DetachDispatcher removes the pinned XDP link. Deleting the pin drops
// the last reference, detaching the dispatcher from the hook.
func (k *kernelAdapter) DetachDispatcher(ctx context.Context, linkPinPath string) error {
	lnk, err := link.LoadPinnedLink(linkPinPath, nil)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil // Already gone
		}
		return fmt.Errorf("load pinned link %s: %w", linkPinPath, err)
	}

	if err := lnk.Unpin(); err != nil {
		lnk.Close()
		return fmt.Errorf("unpin link %s: %w", linkPinPath, err)
	}
	if err := lnk.Close(); err != nil {
		return fmt.Errorf("close link %s: %w", linkPinPath, err)
	}
	return nil
}
