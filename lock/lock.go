// Package lock provides the daemon's single-instance lock using
// flock(2). Exactly one bpfd process may own the runtime directory at
// a time; a second instance blocks (with backoff) until the first
// exits or its context is cancelled.
package lock

import (
	"context"
	"fmt"
	"os"
	"syscall"
	"time"
)

// Lock is a held single-instance lock. Release it with Close.
type Lock struct {
	f *os.File
}

// Acquire opens (creating if needed) the lock file at path and takes
// an exclusive flock. If another process holds the lock, Acquire
// retries with exponential backoff until it succeeds or ctx is done.
func Acquire(ctx context.Context, path string) (*Lock, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0o600)
	if err != nil {
		return nil, fmt.Errorf("open lock file: %w", err)
	}

	backoff := 25 * time.Millisecond
	const maxBackoff = 500 * time.Millisecond

	for {
		err := syscall.Flock(int(f.Fd()), syscall.LOCK_EX|syscall.LOCK_NB)
		if err == nil {
			return &Lock{f: f}, nil
		}
		if err != syscall.EWOULDBLOCK {
			f.Close()
			return nil, fmt.Errorf("flock %s: %w", path, err)
		}

		select {
		case <-ctx.Done():
			f.Close()
			return nil, fmt.Errorf("waiting for lock %s: %w", path, ctx.Err())
		case <-time.After(backoff):
		}

		if backoff < maxBackoff {
			backoff *= 2
		}
	}
}

// Close releases the lock. The flock is dropped when the descriptor
// closes.
func (l *Lock) Close() error {
	if l == nil || l.f == nil {
		return nil
	}
	return l.f.Close()
}

// Path returns the lock file path.
func (l *Lock) Path() string {
	return l.f.Name()
}
