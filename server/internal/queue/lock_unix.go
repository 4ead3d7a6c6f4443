//go:build unix

package queue

import (
	"errors"
	"fmt"
	"os"

	"golang.org/x/sys/unix"
)

// consumerLock is an advisory flock held for the lifetime of a running Queue.
type consumerLock struct {
	f *os.File
}

func acquireLock(path string) (*consumerLock, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		return nil, fmt.Errorf("queue: open lock file: %w", err)
	}
	if err := unix.Flock(int(f.Fd()), unix.LOCK_EX|unix.LOCK_NB); err != nil {
		f.Close()
		if errors.Is(err, unix.EWOULDBLOCK) {
			return nil, ErrConsumerLocked
		}
		return nil, fmt.Errorf("queue: flock %q: %w", path, err)
	}
	fmt.Fprintf(f, "%d\n", os.Getpid())
	return &consumerLock{f: f}, nil
}

func (l *consumerLock) release() error {
	if l == nil {
		return nil
	}
	_ = unix.Flock(int(l.f.Fd()), unix.LOCK_UN)
	return l.f.Close()
}
