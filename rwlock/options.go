package rwlock

import "github.com/jonboulle/clockwork"

type Option func(*RWLock)

// WithObserver installs o to receive acquisition and release events.
func WithObserver(o Observer) Option {
	return func(rw *RWLock) {
		if o != nil {
			rw.obs = o
		}
	}
}

// WithClock sets the clock used to measure how long acquisitions wait.
func WithClock(c clockwork.Clock) Option {
	return func(rw *RWLock) {
		if c != nil {
			rw.clock = c
		}
	}
}
