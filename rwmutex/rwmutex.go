package rwmutex

import (
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/rogov-ks/rwlock/rwlock"
)

// A RWMutex is a reader/writer mutual exclusion lock with writer priority
// built on channels instead of condition variables.
// The lock can be held by an arbitrary number of readers or a single writer.
//
// All lock state lives in one coordinator goroutine started by New.
// Lock, RLock, Unlock and RUnlock send requests to it and wait for a grant.
// A blocked Lock call excludes new readers from acquiring the lock, so no
// goroutine should expect to acquire a read lock recursively.
//
// Close stops the coordinator. Using the mutex after Close panics.
type RWMutex struct {
	rlockCh   chan chan bool
	wlockCh   chan chan bool
	runlockCh chan chan bool
	unlockCh  chan chan bool
	stateCh   chan chan rwlock.State
	stopCh    chan struct{}
	doneCh    chan struct{}
	stopOnce  sync.Once

	obs   rwlock.Observer
	clock clockwork.Clock
}

type Option func(*RWMutex)

// WithObserver installs o to receive acquisition and release events.
func WithObserver(o rwlock.Observer) Option {
	return func(rw *RWMutex) {
		if o != nil {
			rw.obs = o
		}
	}
}

// WithClock sets the clock used to measure how long queued acquisitions wait.
func WithClock(c clockwork.Clock) Option {
	return func(rw *RWMutex) {
		if c != nil {
			rw.clock = c
		}
	}
}

// New creates *RWMutex and starts its coordinator.
func New(opts ...Option) *RWMutex {
	mut := &RWMutex{
		rlockCh:   make(chan chan bool),
		wlockCh:   make(chan chan bool),
		runlockCh: make(chan chan bool),
		unlockCh:  make(chan chan bool),
		stateCh:   make(chan chan rwlock.State),
		stopCh:    make(chan struct{}),
		doneCh:    make(chan struct{}),
		obs:       rwlock.MultiObserver(),
		clock:     clockwork.NewRealClock(),
	}
	for _, opt := range opts {
		opt(mut)
	}
	go mut.run()
	return mut
}

// RLock locks rw for reading.
//
// It should not be used for recursive read locking; a blocked Lock
// call excludes new readers from acquiring the lock.
func (rw *RWMutex) RLock() {
	rw.acquire(rw.rlockCh, rwlock.ModeShared)
}

// RUnlock undoes a single RLock call;
// it does not affect other simultaneous readers.
// It panics if rw is not locked for reading on entry to RUnlock.
func (rw *RWMutex) RUnlock() {
	if _, ok := <-rw.send(rw.runlockCh); !ok {
		panic("rwmutex: RUnlock of unlocked RWMutex")
	}
	rw.obs.Released(rwlock.ModeShared)
}

// Lock locks rw for writing.
// If the lock is already locked for reading or writing,
// Lock blocks until the lock is available.
func (rw *RWMutex) Lock() {
	rw.acquire(rw.wlockCh, rwlock.ModeExclusive)
}

// Unlock unlocks rw for writing. It panics if rw is
// not locked for writing on entry to Unlock.
func (rw *RWMutex) Unlock() {
	if _, ok := <-rw.send(rw.unlockCh); !ok {
		panic("rwmutex: Unlock of unlocked RWMutex")
	}
	rw.obs.Released(rwlock.ModeExclusive)
}

// Snapshot returns the coordinator's current counters.
func (rw *RWMutex) Snapshot() rwlock.State {
	reply := make(chan rwlock.State, 1)
	select {
	case rw.stateCh <- reply:
		return <-reply
	case <-rw.stopCh:
		panic("rwmutex: use of closed RWMutex")
	}
}

// Close stops the coordinator goroutine and waits for it to exit.
// Goroutines still blocked in Lock or RLock panic.
func (rw *RWMutex) Close() {
	rw.stopOnce.Do(func() { close(rw.stopCh) })
	<-rw.doneCh
}

func (rw *RWMutex) acquire(ch chan chan bool, m rwlock.Mode) {
	start := rw.clock.Now()
	var waited time.Duration
	if queued := rw.wait(rw.send(ch)); queued {
		waited = rw.clock.Since(start)
	}
	rw.obs.Acquired(m, waited)
}

// send hands a fresh reply channel to the coordinator.
func (rw *RWMutex) send(ch chan chan bool) chan bool {
	reply := make(chan bool, 1)
	select {
	case ch <- reply:
		return reply
	case <-rw.stopCh:
		panic("rwmutex: use of closed RWMutex")
	}
}

// wait blocks until the grant arrives and reports whether the request was
// queued before being granted.
func (rw *RWMutex) wait(grant chan bool) bool {
	select {
	case queued := <-grant:
		return queued
	case <-rw.doneCh:
		// Грант мог прийти одновременно с остановкой координатора.
		select {
		case queued := <-grant:
			return queued
		default:
			panic("rwmutex: RWMutex closed while waiting")
		}
	}
}
