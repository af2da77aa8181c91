package rwlock

// Mode is the access mode a lock is in, or the kind of access an
// acquisition or release concerns.
type Mode int

const (
	ModeIdle Mode = iota
	ModeShared
	ModeExclusive
)

func (m Mode) String() string {
	switch m {
	case ModeIdle:
		return "idle"
	case ModeShared:
		return "shared"
	case ModeExclusive:
		return "exclusive"
	default:
		return "unknown"
	}
}

// State is a point-in-time copy of the lock counters.
type State struct {
	ReadersActive  int
	ReadersWaiting int
	WritersWaiting int
	WriterActive   bool
}

// Mode reports which state machine state s belongs to.
// Waiting participants do not affect the result.
func (s State) Mode() Mode {
	switch {
	case s.WriterActive:
		return ModeExclusive
	case s.ReadersActive > 0:
		return ModeShared
	default:
		return ModeIdle
	}
}

// Valid reports whether s satisfies the lock invariants: no negative
// counters and never a writer together with readers.
func (s State) Valid() bool {
	if s.ReadersActive < 0 || s.ReadersWaiting < 0 || s.WritersWaiting < 0 {
		return false
	}
	return !(s.WriterActive && s.ReadersActive > 0)
}
