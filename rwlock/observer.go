package rwlock

import "time"

// Observer receives lock events. Methods are called outside the internal
// mutex, right after the state change they report, and must not acquire
// the observed lock.
type Observer interface {
	// Acquired is called after access in mode m was granted. waited is
	// zero when the caller did not block.
	Acquired(m Mode, waited time.Duration)
	Released(m Mode)
}

type nopObserver struct{}

func (nopObserver) Acquired(Mode, time.Duration) {}
func (nopObserver) Released(Mode)                {}

type multiObserver []Observer

// MultiObserver returns an Observer that forwards every event to each of
// obs in order.
func MultiObserver(obs ...Observer) Observer {
	return multiObserver(obs)
}

func (m multiObserver) Acquired(mode Mode, waited time.Duration) {
	for _, o := range m {
		o.Acquired(mode, waited)
	}
}

func (m multiObserver) Released(mode Mode) {
	for _, o := range m {
		o.Released(mode)
	}
}
