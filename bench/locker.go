package bench

import (
	"fmt"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/rogov-ks/rwlock/rwlock"
	"github.com/rogov-ks/rwlock/rwmutex"
)

// Locker is the reader/writer lock interface shared by all implementations.
type Locker interface {
	RLock()
	RUnlock()
	Lock()
	Unlock()
}

var (
	_ Locker = (*rwlock.RWLock)(nil)
	_ Locker = (*rwmutex.RWMutex)(nil)
	_ Locker = (*sync.RWMutex)(nil)
	_ Locker = (*observedLocker)(nil)
)

// NewLocker builds the lock named by impl and attaches obs to it; obs may
// be nil. The returned close function releases the lock's resources and
// must be called after every participant is done.
func NewLocker(impl string, obs rwlock.Observer) (Locker, func() error, error) {
	switch impl {
	case ImplMonitor:
		rw := rwlock.New(rwlock.WithObserver(obs))
		return rw, rw.Close, nil
	case ImplChannel:
		mu := rwmutex.New(rwmutex.WithObserver(obs))
		return mu, func() error { mu.Close(); return nil }, nil
	case ImplStdlib:
		if obs == nil {
			return &sync.RWMutex{}, func() error { return nil }, nil
		}
		return Observe(&sync.RWMutex{}, obs, nil), func() error { return nil }, nil
	default:
		return nil, nil, fmt.Errorf("%w: unknown impl %q", ErrInvalidConfig, impl)
	}
}

// TryLocker is a Locker that can also attempt acquisition without blocking,
// as sync.RWMutex does.
type TryLocker interface {
	Locker
	TryRLock() bool
	TryLock() bool
}

type observedLocker struct {
	l     TryLocker
	obs   rwlock.Observer
	clock clockwork.Clock
}

// Observe wraps l so that acquisitions and releases are reported to obs.
// An acquisition counts as waited only if the non-blocking attempt failed.
// A nil clock means the real clock.
func Observe(l TryLocker, obs rwlock.Observer, clock clockwork.Clock) Locker {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &observedLocker{l: l, obs: obs, clock: clock}
}

func (o *observedLocker) RLock() {
	o.obs.Acquired(rwlock.ModeShared, o.acquire(o.l.TryRLock, o.l.RLock))
}

func (o *observedLocker) RUnlock() {
	o.l.RUnlock()
	o.obs.Released(rwlock.ModeShared)
}

func (o *observedLocker) Lock() {
	o.obs.Acquired(rwlock.ModeExclusive, o.acquire(o.l.TryLock, o.l.Lock))
}

func (o *observedLocker) Unlock() {
	o.l.Unlock()
	o.obs.Released(rwlock.ModeExclusive)
}

func (o *observedLocker) acquire(try func() bool, lock func()) time.Duration {
	if try() {
		return 0
	}
	start := o.clock.Now()
	lock()
	// Без часов с точностью до наносекунды ожидание могло выйти нулевым.
	return max(o.clock.Since(start), time.Nanosecond)
}
