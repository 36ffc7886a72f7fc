package server

import (
	"context"
	"sync"
	"time"

	"dungeonsync/logger"
	"dungeonsync/store"
)

const saveTimeout = 5 * time.Second

type saveJob struct {
	c     store.Character
	after func()
}

// saveQueue writes character records one at a time, in the order they were
// queued. The registry queues while holding its lock, so the store always
// ends up with the latest state of every character.
type saveQueue struct {
	st store.Store

	mu      sync.Mutex
	cond    *sync.Cond
	pending []saveJob
	closed  bool
	done    chan struct{}
}

func newSaveQueue(st store.Store) *saveQueue {
	q := &saveQueue{st: st, done: make(chan struct{})}
	q.cond = sync.NewCond(&q.mu)
	return q
}

// push queues c. after, if set, runs once c has been written or has failed.
// push never blocks on the store.
func (q *saveQueue) push(c store.Character, after func()) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		logger.Log.Warnf("save of %q after shutdown dropped", c.Name)
		return
	}
	q.pending = append(q.pending, saveJob{c: c, after: after})
	q.cond.Signal()
}

// run writes queued records until close has been called and the queue is
// empty.
func (q *saveQueue) run(ctx context.Context) {
	defer close(q.done)
	for {
		q.mu.Lock()
		for len(q.pending) == 0 && !q.closed {
			q.cond.Wait()
		}
		batch := q.pending
		q.pending = nil
		q.mu.Unlock()

		if len(batch) == 0 {
			return
		}
		for _, job := range batch {
			q.save(ctx, job)
		}
	}
}

func (q *saveQueue) save(ctx context.Context, job saveJob) {
	ctx, cancel := context.WithTimeout(ctx, saveTimeout)
	defer cancel()
	if err := q.st.Save(ctx, job.c); err != nil {
		logger.Log.Errorf("persist %q: %v", job.c.Name, err)
	}
	if job.after != nil {
		job.after()
	}
}

// close stops accepting records and waits for the queued ones to be written.
func (q *saveQueue) close() {
	q.mu.Lock()
	q.closed = true
	q.cond.Broadcast()
	q.mu.Unlock()
	<-q.done
}
