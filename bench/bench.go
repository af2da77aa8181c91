// Package bench drives a reader/writer workload against a lock and checks
// that the data it protects is never observed half-written.
package bench

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/rogov-ks/rwlock/parallel"
)

var ErrInconsistent = errors.New("bench: inconsistent state observed")

// Result summarizes a finished run.
type Result struct {
	Reads   int64
	Writes  int64
	Elapsed time.Duration
}

// Runner executes workloads. The zero value uses the real clock.
type Runner struct {
	Clock clockwork.Clock
}

// record is the shared state. Writers keep a and b equal outside of their
// critical section, so a reader that sees them differ has raced a writer.
// The fields are atomic only so that a broken lock is reported as
// ErrInconsistent instead of tripping the race detector.
type record struct {
	a, b atomic.Int64
}

type run struct {
	cfg   Config
	lock  Locker
	clock clockwork.Clock

	rec     record
	writing atomic.Bool
	reads   atomic.Int64
	writes  atomic.Int64
}

// Run starts cfg.Readers readers and cfg.Writers writers at once and waits
// for all of them to finish their operations.
func (r Runner) Run(ctx context.Context, cfg Config, l Locker) (Result, error) {
	if err := cfg.Validate(); err != nil {
		return Result{}, err
	}
	clock := r.Clock
	if clock == nil {
		clock = clockwork.NewRealClock()
	}

	st := &run{cfg: cfg, lock: l, clock: clock}
	participants := cfg.Readers + cfg.Writers

	start := clock.Now()
	err := parallel.For(ctx, participants, participants, func(ctx context.Context, i int) error {
		if i < cfg.Writers {
			return st.writer(ctx)
		}
		return st.reader(ctx)
	})
	res := Result{
		Reads:   st.reads.Load(),
		Writes:  st.writes.Load(),
		Elapsed: clock.Since(start),
	}
	if err != nil {
		return res, err
	}

	l.RLock()
	a, b := st.rec.a.Load(), st.rec.b.Load()
	l.RUnlock()
	if a != res.Writes || b != res.Writes {
		return res, fmt.Errorf("%w: record (%d, %d) after %d writes", ErrInconsistent, a, b, res.Writes)
	}
	return res, nil
}

func (st *run) reader(ctx context.Context) error {
	for op := 0; op < st.cfg.OpsPerReader; op++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := st.read(); err != nil {
			return err
		}
	}
	return nil
}

func (st *run) read() error {
	st.lock.RLock()
	defer st.lock.RUnlock()

	if st.writing.Load() {
		return fmt.Errorf("%w: reader admitted while a writer is active", ErrInconsistent)
	}
	if a, b := st.rec.a.Load(), st.rec.b.Load(); a != b {
		return fmt.Errorf("%w: reader saw (%d, %d)", ErrInconsistent, a, b)
	}
	st.hold(st.cfg.ReadHold)
	st.reads.Add(1)
	return nil
}

func (st *run) writer(ctx context.Context) error {
	for op := 0; op < st.cfg.OpsPerWriter; op++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := st.write(); err != nil {
			return err
		}
	}
	return nil
}

func (st *run) write() error {
	st.lock.Lock()
	defer st.lock.Unlock()

	if st.writing.Swap(true) {
		return fmt.Errorf("%w: two writers inside the critical section", ErrInconsistent)
	}
	st.rec.a.Add(1)
	st.hold(st.cfg.WriteHold)
	st.rec.b.Add(1)
	st.writing.Store(false)
	st.writes.Add(1)
	return nil
}

func (st *run) hold(d time.Duration) {
	if d > 0 {
		st.clock.Sleep(d)
	}
}
