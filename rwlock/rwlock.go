package rwlock

import (
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

// A RWLock is a reader/writer mutual exclusion lock with writer priority.
// The lock can be held by an arbitrary number of readers or a single writer.
//
// A writer that has started waiting blocks every reader that arrives after
// it, even while earlier readers still hold the lock. This bounds writer
// wait time; under a steady stream of writers readers may starve.
//
// Waiters of the same class are not served in FIFO order. Acquisition can
// not be cancelled and is not reentrant: a goroutine that already holds the
// lock and asks for it again deadlocks.
type RWLock struct {
	mu        sync.Mutex
	readCond  *sync.Cond
	writeCond *sync.Cond

	readersActive  int
	readersWaiting int
	writersWaiting int
	writerActive   bool
	closed         bool

	obs   Observer
	clock clockwork.Clock
}

// New creates an idle *RWLock.
func New(opts ...Option) *RWLock {
	rw := &RWLock{
		obs:   nopObserver{},
		clock: clockwork.NewRealClock(),
	}
	for _, opt := range opts {
		opt(rw)
	}
	rw.readCond = sync.NewCond(&rw.mu)
	rw.writeCond = sync.NewCond(&rw.mu)
	return rw
}

// Close retires the lock. It returns ErrBusy if the lock is held or has
// waiters, and ErrClosed if it was already closed. Any acquisition after a
// successful Close panics.
func (rw *RWLock) Close() error {
	rw.mu.Lock()
	defer rw.mu.Unlock()

	if rw.closed {
		return ErrClosed
	}
	if rw.writerActive || rw.readersActive > 0 || rw.readersWaiting > 0 || rw.writersWaiting > 0 {
		return ErrBusy
	}
	rw.closed = true
	return nil
}

// RLock locks rw for reading.
//
// RLock blocks while a writer holds the lock or while any writer is
// waiting for it.
func (rw *RWLock) RLock() {
	rw.mu.Lock()
	rw.checkOpen()

	var start time.Time
	waited := false
	for rw.writerActive || rw.writersWaiting > 0 {
		if !waited {
			start = rw.clock.Now()
			waited = true
		}
		rw.readersWaiting++
		rw.readCond.Wait()
		rw.readersWaiting--
	}
	rw.readersActive++
	rw.mu.Unlock()

	rw.obs.Acquired(ModeShared, rw.since(start, waited))
}

// RUnlock undoes a single RLock call;
// it does not affect other simultaneous readers.
// It panics if rw is not locked for reading on entry to RUnlock.
func (rw *RWLock) RUnlock() {
	rw.mu.Lock()
	if rw.readersActive == 0 {
		rw.mu.Unlock()
		panic("rwlock: RUnlock of unlocked RWLock")
	}
	rw.releaseShared()
	rw.mu.Unlock()

	rw.obs.Released(ModeShared)
}

// Lock locks rw for writing.
// If the lock is already locked for reading or writing,
// Lock blocks until the lock is available.
func (rw *RWLock) Lock() {
	rw.mu.Lock()
	rw.checkOpen()

	// Отмечаемся сразу: новые читатели должны встать в очередь за нами.
	rw.writersWaiting++

	var start time.Time
	waited := false
	for rw.writerActive || rw.readersActive > 0 {
		if !waited {
			start = rw.clock.Now()
			waited = true
		}
		rw.writeCond.Wait()
	}
	rw.writersWaiting--
	rw.writerActive = true
	rw.mu.Unlock()

	rw.obs.Acquired(ModeExclusive, rw.since(start, waited))
}

// Unlock unlocks rw for writing. It panics if rw is not locked for writing
// on entry to Unlock.
//
// As with sync.RWMutex, a locked RWLock is not associated with a particular
// goroutine.
func (rw *RWLock) Unlock() {
	rw.mu.Lock()
	if !rw.writerActive {
		rw.mu.Unlock()
		panic("rwlock: Unlock of unlocked RWLock")
	}
	rw.releaseExclusive()
	rw.mu.Unlock()

	rw.obs.Released(ModeExclusive)
}

// Release releases whichever kind of access is currently held, deciding
// from the lock state alone: if a writer is active the writer path runs,
// otherwise one reader is released.
//
// This is only correct because at most one writer can be active. Callers
// that know their role should use Unlock, RUnlock or a guard instead.
func (rw *RWLock) Release() {
	rw.mu.Lock()
	var mode Mode
	switch {
	case rw.writerActive:
		rw.releaseExclusive()
		mode = ModeExclusive
	case rw.readersActive > 0:
		rw.releaseShared()
		mode = ModeShared
	default:
		rw.mu.Unlock()
		panic("rwlock: Release of unlocked RWLock")
	}
	rw.mu.Unlock()

	rw.obs.Released(mode)
}

// RLocker returns a sync.Locker that implements Lock and Unlock
// by calling rw.RLock and rw.RUnlock.
func (rw *RWLock) RLocker() sync.Locker {
	return (*rlocker)(rw)
}

// Snapshot returns a consistent copy of the internal counters.
func (rw *RWLock) Snapshot() State {
	rw.mu.Lock()
	defer rw.mu.Unlock()
	return State{
		ReadersActive:  rw.readersActive,
		ReadersWaiting: rw.readersWaiting,
		WritersWaiting: rw.writersWaiting,
		WriterActive:   rw.writerActive,
	}
}

// releaseShared must be called with rw.mu held.
func (rw *RWLock) releaseShared() {
	rw.readersActive--
	if rw.readersActive == 0 && rw.writersWaiting > 0 {
		rw.writeCond.Signal()
	}
}

// releaseExclusive must be called with rw.mu held.
func (rw *RWLock) releaseExclusive() {
	rw.writerActive = false
	if rw.writersWaiting > 0 {
		// Пройти может только один писатель, будить всех бессмысленно.
		rw.writeCond.Signal()
	} else {
		rw.readCond.Broadcast()
	}
}

func (rw *RWLock) checkOpen() {
	if rw.closed {
		rw.mu.Unlock()
		panic("rwlock: use of closed RWLock")
	}
}

func (rw *RWLock) since(start time.Time, waited bool) time.Duration {
	if !waited {
		return 0
	}
	return rw.clock.Since(start)
}

type rlocker RWLock

func (r *rlocker) Lock()   { (*RWLock)(r).RLock() }
func (r *rlocker) Unlock() { (*RWLock)(r).RUnlock() }
