package statements

import (
	"sync"
	"sync/atomic"
)

// queueEntry is either a work item or a sentinel telling one worker to stop.
type queueEntry struct {
	item     WorkItem
	sentinel bool
}

// workQueue is a FIFO with join semantics: every entry put must later be
// marked done, and join blocks until that has happened for all of them.
type workQueue struct {
	ch      chan queueEntry
	pending atomic.Int64
	wg      sync.WaitGroup
}

func newWorkQueue(capacity int) *workQueue {
	return &workQueue{ch: make(chan queueEntry, capacity)}
}

// put enqueues e. The queue is sized for every item plus every sentinel, so
// put never blocks during setup.
func (q *workQueue) put(e queueEntry) {
	q.wg.Add(1)
	q.pending.Add(1)
	q.ch <- e
}

// get blocks until an entry is available. Workers only start once every
// item and sentinel has been put, so it always returns.
func (q *workQueue) get() queueEntry { return <-q.ch }

// taskDone marks one previously dequeued entry as finished.
func (q *workQueue) taskDone() {
	q.pending.Add(-1)
	q.wg.Done()
}

func (q *workQueue) join() { q.wg.Wait() }

// len reports entries not yet marked done.
func (q *workQueue) len() int { return int(q.pending.Load()) }
