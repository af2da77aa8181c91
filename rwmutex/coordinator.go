package rwmutex

import "github.com/rogov-ks/rwlock/rwlock"

// coordinator is the state owned by the run goroutine.
type coordinator struct {
	readersActive int
	writerActive  bool

	// Очереди ожидающих: длина очереди писателей и есть writers_waiting.
	readers []chan bool
	writers []chan bool
}

func (rw *RWMutex) run() {
	defer close(rw.doneCh)

	var c coordinator
	for {
		select {
		case reply := <-rw.rlockCh:
			c.rlock(reply)
		case reply := <-rw.wlockCh:
			c.lock(reply)
		case reply := <-rw.runlockCh:
			c.runlock(reply)
		case reply := <-rw.unlockCh:
			c.unlock(reply)
		case reply := <-rw.stateCh:
			reply <- c.state()
		case <-rw.stopCh:
			return
		}
	}
}

func (c *coordinator) rlock(reply chan bool) {
	if c.writerActive || len(c.writers) > 0 {
		c.readers = append(c.readers, reply)
		return
	}
	c.readersActive++
	reply <- false
}

func (c *coordinator) lock(reply chan bool) {
	if !c.writerActive && c.readersActive == 0 && len(c.writers) == 0 {
		c.writerActive = true
		reply <- false
		return
	}
	c.writers = append(c.writers, reply)
}

func (c *coordinator) runlock(reply chan bool) {
	if c.readersActive == 0 {
		close(reply)
		return
	}
	c.readersActive--
	reply <- true

	if c.readersActive == 0 && len(c.writers) > 0 {
		c.grantWriter()
	}
}

func (c *coordinator) unlock(reply chan bool) {
	if !c.writerActive {
		close(reply)
		return
	}
	c.writerActive = false
	reply <- true

	if len(c.writers) > 0 {
		c.grantWriter()
		return
	}
	c.grantReaders()
}

// grantWriter admits exactly one queued writer.
func (c *coordinator) grantWriter() {
	w := c.writers[0]
	c.writers[0] = nil
	c.writers = c.writers[1:]
	c.writerActive = true
	w <- true
}

// grantReaders admits every queued reader at once.
func (c *coordinator) grantReaders() {
	for _, r := range c.readers {
		c.readersActive++
		r <- true
	}
	c.readers = nil
}

func (c *coordinator) state() rwlock.State {
	return rwlock.State{
		ReadersActive:  c.readersActive,
		ReadersWaiting: len(c.readers),
		WritersWaiting: len(c.writers),
		WriterActive:   c.writerActive,
	}
}
