package notify

import (
	"runtime"
	"sync"
	"sync/atomic"
)

// node represents a single event in the queue
type node[T interface{}] struct {
	value *T
	next  atomic.Pointer[node[T]]
}

// eventQueue is a lock-free multi-producer single-consumer queue.
// Sessions push commit and registration events from their own goroutines,
// the coordinator worker is the only consumer (via recv()).
//
// Under concurrent push operations the order of events is decided by which producer
// completes first. Events pushed by one goroutine are delivered in push order.
type eventQueue[T interface{}] struct {
	head     atomic.Pointer[node[T]]
	tail     atomic.Pointer[node[T]]
	out      chan *T
	consumer sync.WaitGroup
	closed   atomic.Bool

	// Condition variable for efficient waiting
	mu   sync.Mutex
	cond *sync.Cond
}

// newEventQueue creates a queue and starts the goroutine feeding recv()
func newEventQueue[T interface{}]() *eventQueue[T] {
	// Create a sentinel node (dummy node at the beginning)
	sentinel := &node[T]{}

	q := &eventQueue[T]{
		out: make(chan *T),
	}
	q.cond = sync.NewCond(&q.mu)

	q.head.Store(sentinel)
	q.tail.Store(sentinel)

	q.consumer.Add(1)
	go q.consume()

	return q
}

// push adds an event to the queue.
// Returns false if the event is nil or the queue is closed.
//
// Thread-safety: This method is thread-safe and can be called concurrently.
func (q *eventQueue[T]) push(value *T) bool {
	if value == nil || q.closed.Load() {
		return false
	}

	newNode := &node[T]{value: value}
	var backoff uint8 = 0

	for {
		tailNode := q.tail.Load()
		next := tailNode.next.Load()
		if next == nil {
			if tailNode.next.CompareAndSwap(nil, newNode) {
				// another producer may already have moved the tail, that's fine
				q.tail.CompareAndSwap(tailNode, newNode)

				// the consumer may be waiting between its emptiness check and cond.Wait
				q.mu.Lock()
				q.cond.Signal()
				q.mu.Unlock()
				return true
			}
		} else {
			// help a producer that appended but did not move the tail yet
			q.tail.CompareAndSwap(tailNode, next)
		}

		// spin at low contention, yield at high contention
		if backoff < 10 {
			backoff++
			for i := 0; i < 1<<backoff; i++ {
				runtime.Gosched()
			}
		}
		runtime.Gosched()
	}
}

// consume moves events from the linked list to the output channel
func (q *eventQueue[T]) consume() {
	defer q.consumer.Done()
	defer close(q.out)

	for {
		hasItems := false

		for {
			head := q.head.Load()
			next := head.next.Load()
			if next == nil {
				break
			}
			hasItems = true

			value := next.value
			q.head.Store(next)
			q.out <- value

			// help go gc - safe to clear after sending
			next.value = nil
		}

		if !hasItems && q.closed.Load() {
			return
		}

		if !hasItems {
			q.mu.Lock()
			head := q.head.Load()
			if head.next.Load() == nil && !q.closed.Load() {
				q.cond.Wait()
			}
			q.mu.Unlock()
		}
	}
}

// recv returns the channel the consumer reads events from.
// The channel is closed after close() once all pending events were delivered.
func (q *eventQueue[T]) recv() <-chan *T {
	return q.out
}

// close prevents further pushes. Pending events are still delivered.
func (q *eventQueue[T]) close() {
	q.closed.Store(true)

	q.mu.Lock()
	q.cond.Signal()
	q.mu.Unlock()
}

// len returns the number of pending events. This is O(n), only used for stats.
func (q *eventQueue[T]) len() int {
	count := 0
	current := q.head.Load()
	for {
		next := current.next.Load()
		if next == nil {
			break
		}
		count++
		current = next
	}
	return count
}
