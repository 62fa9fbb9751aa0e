// Package queue provides the prioritized event queue at the heart of each
// manager's loop. Push is safe from any goroutine; Pop is single-consumer,
// owned by the manager's loop. Lower priority values pop first; equal
// priorities pop in push order.
package queue

import (
	"container/heap"
	"sync"

	"github.com/c360/servicekit/event"
)

// PriorityQueue is a thread-safe multimap keyed by priority with FIFO order
// within a priority. It is the only mandatory cross-thread synchronization
// point on the hot path.
type PriorityQueue struct {
	mu       sync.Mutex
	notEmpty *sync.Cond
	items    entryHeap
	seq      uint64
	shutdown bool
}

type entry struct {
	priority uint64
	seq      uint64
	ev       event.Event
}

type entryHeap []entry

func (h entryHeap) Len() int { return len(h) }

func (h entryHeap) Less(i, j int) bool {
	if h[i].priority != h[j].priority {
		return h[i].priority < h[j].priority
	}
	return h[i].seq < h[j].seq
}

func (h entryHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *entryHeap) Push(x any) { *h = append(*h, x.(entry)) }

func (h *entryHeap) Pop() any {
	old := *h
	n := len(old)
	it := old[n-1]
	old[n-1] = entry{}
	*h = old[:n-1]
	return it
}

// NewPriorityQueue creates an empty queue.
func NewPriorityQueue() *PriorityQueue {
	q := &PriorityQueue{}
	q.notEmpty = sync.NewCond(&q.mu)
	return q
}

// Push enqueues an event at the given priority and wakes one waiter.
// Pushing after Shutdown is a no-op.
func (q *PriorityQueue) Push(priority uint64, ev event.Event) {
	q.mu.Lock()
	if q.shutdown {
		q.mu.Unlock()
		return
	}
	heap.Push(&q.items, entry{priority: priority, seq: q.seq, ev: ev})
	q.seq++
	q.mu.Unlock()
	q.notEmpty.Signal()
}

// Pop blocks until an event is available or the queue is shut down. After
// Shutdown it returns (nil, false) regardless of remaining items; use TryPop
// to drain.
func (q *PriorityQueue) Pop() (event.Event, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	for q.items.Len() == 0 && !q.shutdown {
		q.notEmpty.Wait()
	}
	if q.shutdown {
		return nil, false
	}
	it := heap.Pop(&q.items).(entry)
	return it.ev, true
}

// TryPop removes the highest-priority event without blocking. It reports
// false when the queue is empty. TryPop still drains after Shutdown.
func (q *PriorityQueue) TryPop() (event.Event, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.items.Len() == 0 {
		return nil, false
	}
	it := heap.Pop(&q.items).(entry)
	return it.ev, true
}

// Len returns the number of queued events.
func (q *PriorityQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.items.Len()
}

// Shutdown wakes all waiters. Subsequent Pop calls return (nil, false) and
// subsequent Push calls are dropped.
func (q *PriorityQueue) Shutdown() {
	q.mu.Lock()
	q.shutdown = true
	q.mu.Unlock()
	q.notEmpty.Broadcast()
}

// IsShutdown reports whether Shutdown was called.
func (q *PriorityQueue) IsShutdown() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.shutdown
}
