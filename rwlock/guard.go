package rwlock

import "sync/atomic"

// SharedGuard is proof of shared access obtained from AcquireShared.
// Release must be called exactly once.
type SharedGuard struct {
	rw       *RWLock
	released atomic.Bool
}

// AcquireShared locks rw for reading and returns the guard that releases it.
func (rw *RWLock) AcquireShared() *SharedGuard {
	rw.RLock()
	return &SharedGuard{rw: rw}
}

// Release gives up the shared access. A second call panics.
func (g *SharedGuard) Release() {
	if !g.released.CompareAndSwap(false, true) {
		panic("rwlock: SharedGuard released twice")
	}
	g.rw.RUnlock()
}

// ExclusiveGuard is proof of exclusive access obtained from AcquireExclusive.
// Release must be called exactly once.
type ExclusiveGuard struct {
	rw       *RWLock
	released atomic.Bool
}

// AcquireExclusive locks rw for writing and returns the guard that releases it.
func (rw *RWLock) AcquireExclusive() *ExclusiveGuard {
	rw.Lock()
	return &ExclusiveGuard{rw: rw}
}

// Release gives up the exclusive access. A second call panics.
func (g *ExclusiveGuard) Release() {
	if !g.released.CompareAndSwap(false, true) {
		panic("rwlock: ExclusiveGuard released twice")
	}
	g.rw.Unlock()
}
