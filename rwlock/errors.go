package rwlock

import "errors"

var (
	// ErrBusy is returned by Close while the lock has holders or waiters.
	ErrBusy = errors.New("rwlock: lock is busy")
	// ErrClosed is returned by Close on an already closed lock.
	ErrClosed = errors.New("rwlock: lock is closed")
)
