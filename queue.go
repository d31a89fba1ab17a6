package statechart

import "sync"

// queueItem is either an external event or a drain barrier
type queueItem struct {
	event   any
	barrier chan error
}

// eventQueue is the unbounded FIFO input queue of a processor. Producers never
// block; the single consumer waits on wake when the queue is empty.
type eventQueue struct {
	mu     sync.Mutex
	items  []queueItem
	wake   chan struct{}
	closed bool
}

func newEventQueue() *eventQueue {
	return &eventQueue{
		wake: make(chan struct{}, 1),
	}
}

// push appends item and reports false once the queue is closed
func (q *eventQueue) push(item queueItem) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return false
	}
	q.items = append(q.items, item)

	select {
	case q.wake <- struct{}{}:
	default:
	}
	return true
}

// pop removes the oldest item
func (q *eventQueue) pop() (queueItem, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.items) == 0 {
		return queueItem{}, false
	}
	item := q.items[0]
	q.items[0] = queueItem{}
	q.items = q.items[1:]
	return item, true
}

// close rejects further pushes; queued items stay until drained
func (q *eventQueue) close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.closed = true
}

// drain removes and returns every remaining item
func (q *eventQueue) drain() []queueItem {
	q.mu.Lock()
	defer q.mu.Unlock()
	items := q.items
	q.items = nil
	return items
}

func (q *eventQueue) len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}
