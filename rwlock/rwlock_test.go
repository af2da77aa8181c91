package rwlock

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

const (
	waitFor = time.Second
	tick    = time.Millisecond
)

func waitState(t *testing.T, rw *RWLock, cond func(s State) bool) {
	t.Helper()
	require.Eventually(t, func() bool { return cond(rw.Snapshot()) }, waitFor, tick)
}

func requireBlocked(t *testing.T, done <-chan struct{}) {
	t.Helper()
	require.Never(t, func() bool {
		select {
		case <-done:
			return true
		default:
			return false
		}
	}, 50*time.Millisecond, 5*time.Millisecond)
}

func requireDone(t *testing.T, done <-chan struct{}) {
	t.Helper()
	select {
	case <-done:
	case <-time.After(waitFor):
		t.Fatal("goroutine did not acquire the lock")
	}
}

func requireIdle(t *testing.T, rw *RWLock) {
	t.Helper()
	if diff := cmp.Diff(State{}, rw.Snapshot()); diff != "" {
		t.Fatalf("lock is not idle (-want +got):\n%s", diff)
	}
}

func TestNew(t *testing.T) {
	rw := New()
	requireIdle(t, rw)
	require.Equal(t, ModeIdle, rw.Snapshot().Mode())
	require.NoError(t, rw.Close())
}

func TestReaderBlocksOnActiveWriter(t *testing.T) {
	rw := New()
	rw.Lock()

	acquired := make(chan struct{})
	go func() {
		rw.RLock()
		close(acquired)
	}()

	waitState(t, rw, func(s State) bool { return s.ReadersWaiting == 1 })
	requireBlocked(t, acquired)

	rw.Unlock()
	requireDone(t, acquired)
	require.Equal(t, State{ReadersActive: 1}, rw.Snapshot())

	rw.RUnlock()
	requireIdle(t, rw)
}

func TestConcurrentReaders(t *testing.T) {
	rw := New()

	var wg sync.WaitGroup
	for k := 0; k < 2; k++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			rw.RLock()
		}()
	}
	wg.Wait()

	s := rw.Snapshot()
	require.Equal(t, 2, s.ReadersActive)
	require.Equal(t, ModeShared, s.Mode())

	rw.RUnlock()
	rw.RUnlock()
	requireIdle(t, rw)
}

func TestWriterWaitsForReaders(t *testing.T) {
	rw := New()
	rw.RLock()

	acquired := make(chan struct{})
	go func() {
		rw.Lock()
		close(acquired)
	}()

	waitState(t, rw, func(s State) bool { return s.WritersWaiting == 1 })
	requireBlocked(t, acquired)

	rw.RUnlock()
	requireDone(t, acquired)
	require.Equal(t, State{WriterActive: true}, rw.Snapshot())

	rw.Unlock()
	requireIdle(t, rw)
}

func TestWaitingWriterBlocksNewReaders(t *testing.T) {
	rw := New()
	rw.RLock()

	writerIn := make(chan struct{})
	writerOut := make(chan struct{})
	go func() {
		rw.Lock()
		close(writerIn)
		<-writerOut
		rw.Unlock()
	}()
	waitState(t, rw, func(s State) bool { return s.WritersWaiting == 1 })

	readerIn := make(chan struct{})
	go func() {
		rw.RLock()
		close(readerIn)
	}()
	waitState(t, rw, func(s State) bool { return s.ReadersWaiting == 1 })

	// Первый читатель всё ещё держит блокировку, а второй уже ждёт.
	requireBlocked(t, readerIn)
	require.Equal(t, State{ReadersActive: 1, ReadersWaiting: 1, WritersWaiting: 1}, rw.Snapshot())

	rw.RUnlock()
	requireDone(t, writerIn)
	requireBlocked(t, readerIn)

	close(writerOut)
	requireDone(t, readerIn)

	rw.RUnlock()
	requireIdle(t, rw)
}

func TestReaderReleaseWakesSingleWriter(t *testing.T) {
	rw := New()
	rw.RLock()

	acquired := make(chan int, 2)
	release := make(chan struct{})
	for id := 0; id < 2; id++ {
		id := id
		go func() {
			rw.Lock()
			acquired <- id
			<-release
			rw.Unlock()
		}()
	}
	waitState(t, rw, func(s State) bool { return s.WritersWaiting == 2 })

	rw.RUnlock()

	first := <-acquired
	require.Never(t, func() bool { return len(acquired) > 0 }, 50*time.Millisecond, 5*time.Millisecond)
	require.Equal(t, State{WritersWaiting: 1, WriterActive: true}, rw.Snapshot())

	release <- struct{}{}
	second := <-acquired
	require.NotEqual(t, first, second)

	release <- struct{}{}
	waitState(t, rw, func(s State) bool { return s == State{} })
}

func TestWriterReleaseWakesAllReaders(t *testing.T) {
	rw := New()
	rw.Lock()

	var wg sync.WaitGroup
	for k := 0; k < 2; k++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			rw.RLock()
		}()
	}
	waitState(t, rw, func(s State) bool { return s.ReadersWaiting == 2 })

	rw.Unlock()
	wg.Wait()
	require.Equal(t, State{ReadersActive: 2}, rw.Snapshot())

	rw.RUnlock()
	rw.RUnlock()
	requireIdle(t, rw)
}

func TestRelease(t *testing.T) {
	t.Run("writer", func(t *testing.T) {
		rw := New()
		rw.Lock()
		rw.Release()
		requireIdle(t, rw)
	})

	t.Run("reader", func(t *testing.T) {
		rw := New()
		rw.RLock()
		rw.RLock()
		rw.Release()
		require.Equal(t, State{ReadersActive: 1}, rw.Snapshot())
		rw.Release()
		requireIdle(t, rw)
	})

	t.Run("unlocked", func(t *testing.T) {
		rw := New()
		require.Panics(t, rw.Release)
		requireIdle(t, rw)
	})
}

func TestMisuse(t *testing.T) {
	rw := New()
	require.PanicsWithValue(t, "rwlock: RUnlock of unlocked RWLock", rw.RUnlock)
	require.PanicsWithValue(t, "rwlock: Unlock of unlocked RWLock", rw.Unlock)

	rw.RLock()
	require.Panics(t, rw.Unlock)
	rw.RUnlock()
	requireIdle(t, rw)
}

func TestClose(t *testing.T) {
	rw := New()

	rw.RLock()
	require.ErrorIs(t, rw.Close(), ErrBusy)
	rw.RUnlock()

	rw.Lock()
	require.ErrorIs(t, rw.Close(), ErrBusy)
	rw.Unlock()

	require.NoError(t, rw.Close())
	require.ErrorIs(t, rw.Close(), ErrClosed)

	require.PanicsWithValue(t, "rwlock: use of closed RWLock", rw.RLock)
	require.PanicsWithValue(t, "rwlock: use of closed RWLock", rw.Lock)
}

func TestCloseWithWaiter(t *testing.T) {
	rw := New()
	rw.RLock()

	done := make(chan struct{})
	go func() {
		rw.Lock()
		rw.Unlock()
		close(done)
	}()
	waitState(t, rw, func(s State) bool { return s.WritersWaiting == 1 })

	rw.RUnlock()
	requireDone(t, done)
	require.NoError(t, rw.Close())
}

func TestRLocker(t *testing.T) {
	rw := New()
	l := rw.RLocker()

	l.Lock()
	l.Lock()
	require.Equal(t, 2, rw.Snapshot().ReadersActive)
	l.Unlock()
	l.Unlock()
	requireIdle(t, rw)
}

func TestMutualExclusion(t *testing.T) {
	const (
		readers = 16
		writers = 4
		ops     = 300
	)

	rw := New()

	var (
		readersIn  atomic.Int32
		writersIn  atomic.Int32
		violations atomic.Int32
		wg         sync.WaitGroup
	)

	for k := 0; k < readers; k++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for k := 0; k < ops; k++ {
				rw.RLock()
				readersIn.Add(1)
				if writersIn.Load() != 0 {
					violations.Add(1)
				}
				readersIn.Add(-1)
				rw.RUnlock()
			}
		}()
	}

	for k := 0; k < writers; k++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for k := 0; k < ops; k++ {
				rw.Lock()
				if writersIn.Add(1) != 1 || readersIn.Load() != 0 {
					violations.Add(1)
				}
				writersIn.Add(-1)
				rw.Unlock()
			}
		}()
	}

	stop := make(chan struct{})
	sampled := make(chan struct{})
	go func() {
		defer close(sampled)
		for {
			select {
			case <-stop:
				return
			default:
			}
			if !rw.Snapshot().Valid() {
				violations.Add(1)
			}
		}
	}()

	wg.Wait()
	close(stop)
	<-sampled

	require.Zero(t, violations.Load())
	requireIdle(t, rw)
}

func TestReadersProgressWhenWritersStop(t *testing.T) {
	rw := New()

	var wg sync.WaitGroup
	for k := 0; k < 4; k++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for k := 0; k < 50; k++ {
				g := rw.AcquireExclusive()
				time.Sleep(10 * time.Microsecond)
				g.Release()
			}
		}()
	}

	readersDone := make(chan struct{})
	var readers sync.WaitGroup
	for k := 0; k < 8; k++ {
		readers.Add(1)
		go func() {
			defer readers.Done()
			for k := 0; k < 50; k++ {
				g := rw.AcquireShared()
				g.Release()
			}
		}()
	}
	go func() {
		readers.Wait()
		close(readersDone)
	}()

	wg.Wait()
	select {
	case <-readersDone:
	case <-time.After(5 * time.Second):
		t.Fatal("readers starved after writers stopped")
	}
	requireIdle(t, rw)
}
