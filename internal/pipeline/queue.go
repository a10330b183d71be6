package pipeline

import (
	"errors"
	"runtime"
	"sync"
)

// ErrQueueClosed is returned by Push once Drain or Stop has been called.
var ErrQueueClosed = errors.New("queue is shut down")

// Queue is an unbounded FIFO served by a fixed pool of workers. Each item
// is handed to the handler by exactly one worker.
type Queue[T any] struct {
	mu      sync.Mutex
	cond    *sync.Cond
	items   []T
	closed  bool // no more pushes
	stopped bool // abandon what is left

	handle func(T)
	wg     sync.WaitGroup
}

// NewQueue starts workers goroutines running handle. A workers count of
// zero or less means one per CPU.
func NewQueue[T any](workers int, handle func(T)) *Queue[T] {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	q := &Queue[T]{handle: handle}
	q.cond = sync.NewCond(&q.mu)

	q.wg.Add(workers)
	for range workers {
		go func() {
			defer q.wg.Done()
			q.work()
		}()
	}
	return q
}

func (q *Queue[T]) work() {
	for {
		item, ok := q.next()
		if !ok {
			return
		}
		q.handle(item)
	}
}

// next blocks until an item is available or the queue is finished.
func (q *Queue[T]) next() (T, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	for len(q.items) == 0 && !q.closed {
		q.cond.Wait()
	}

	var zero T
	if q.stopped || len(q.items) == 0 {
		return zero, false
	}
	item := q.items[0]
	q.items[0] = zero
	q.items = q.items[1:]
	return item, true
}

// Push appends an item for the workers.
func (q *Queue[T]) Push(item T) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return ErrQueueClosed
	}
	q.items = append(q.items, item)
	q.cond.Signal()
	return nil
}

// Len returns the number of items waiting for a worker.
func (q *Queue[T]) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Drain refuses new items, lets the workers finish everything already
// queued and waits for them to exit.
func (q *Queue[T]) Drain() {
	q.mu.Lock()
	q.closed = true
	q.cond.Broadcast()
	q.mu.Unlock()

	q.wg.Wait()
}

// Stop refuses new items, drops everything not yet picked up and waits for
// the workers to finish their current item.
func (q *Queue[T]) Stop() {
	q.mu.Lock()
	q.closed = true
	q.stopped = true
	clear(q.items)
	q.items = nil
	q.cond.Broadcast()
	q.mu.Unlock()

	q.wg.Wait()
}
