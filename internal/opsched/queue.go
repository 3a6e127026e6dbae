package opsched

import "sync"

// normalQueue is an unbounded, blocking FIFO. It is the normal-priority
// queue described in §3: partition worker queues are single-consumer,
// multi-producer; generic worker queues are multi-consumer,
// multi-producer. Both share this implementation — sync.Cond's Wait/
// Broadcast already support any number of waiters.
//
// There is no bounded variant in this revision (queues are unbounded by
// design, §1), so Enqueue cannot fail. TryEnqueue exists as the seam a
// future bounded queue would occupy; it is unused today.
type normalQueue struct {
	mu     sync.Mutex
	cond   *sync.Cond
	items  []Task
	closed bool
}

func newNormalQueue() *normalQueue {
	q := &normalQueue{}
	q.cond = sync.NewCond(&q.mu)
	return q
}

// Enqueue appends a task and wakes one blocked consumer.
func (q *normalQueue) Enqueue(t Task) {
	q.mu.Lock()
	q.items = append(q.items, t)
	q.mu.Unlock()
	q.cond.Signal()
}

// TryEnqueue is the non-blocking counterpart a bounded queue would use to
// report overload instead of blocking the producer. With unbounded
// storage it always succeeds.
func (q *normalQueue) TryEnqueue(t Task) bool {
	q.Enqueue(t)
	return true
}

// Dequeue blocks until a task is available or the queue is closed, in
// which case it returns (nil, false).
func (q *normalQueue) Dequeue() (Task, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	for len(q.items) == 0 && !q.closed {
		q.cond.Wait()
	}
	if len(q.items) == 0 {
		return nil, false
	}
	t := q.items[0]
	q.items = q.items[1:]
	return t, true
}

// Size returns the current queue length. Read without additional
// synchronization beyond the queue's own mutex; callers (metrics readers)
// accept slight skew, per §4.7.
func (q *normalQueue) Size() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Close wakes every blocked consumer; subsequent Dequeue calls on an
// empty queue return immediately with ok=false. Used during shutdown so a
// worker parked on an empty queue notices the run-flag went false.
func (q *normalQueue) Close() {
	q.mu.Lock()
	q.closed = true
	q.mu.Unlock()
	q.cond.Broadcast()
}

// priorityQueue is a non-blocking FIFO, always drained to empty before a
// worker's next normalQueue.Dequeue (§4.2). It is never waited on
// directly; the trigger-task protocol in worker_partition.go and
// worker_generic.go is what wakes a worker when only the priority queue
// gained work.
type priorityQueue struct {
	mu    sync.Mutex
	items []Task
}

func newPriorityQueue() *priorityQueue {
	return &priorityQueue{}
}

func (q *priorityQueue) Enqueue(t Task) {
	q.mu.Lock()
	q.items = append(q.items, t)
	q.mu.Unlock()
}

// TryDequeue returns the oldest priority task, if any, without blocking.
func (q *priorityQueue) TryDequeue() (Task, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.items) == 0 {
		return nil, false
	}
	t := q.items[0]
	q.items = q.items[1:]
	return t, true
}

func (q *priorityQueue) Size() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}
