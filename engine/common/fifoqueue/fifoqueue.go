package fifoqueue

import (
	"fmt"
	"math"
	"sync"

	"github.com/ef-ds/deque"
)

// FifoQueue is a concurrency-safe FIFO queue of T with an optional capacity bound.
// Pushing to a full queue drops the element. After every length change the
// length observer is called with the new length; it must not block.
type FifoQueue[T any] struct {
	mu             sync.RWMutex
	queue          deque.Deque
	maxCapacity    int
	lengthObserver QueueLengthObserver
}

// ConstructorOption configures a FifoQueue in NewFifoQueue.
type ConstructorOption func(*options) error

type options struct {
	maxCapacity    int
	lengthObserver QueueLengthObserver
}

// QueueLengthObserver receives the queue length after each change.
type QueueLengthObserver func(int)

// WithCapacity bounds the number of queued elements. Unbounded by default.
func WithCapacity(capacity int) ConstructorOption {
	return func(o *options) error {
		if capacity < 1 {
			return fmt.Errorf("capacity for Fifo queue must be positive, got %d", capacity)
		}
		o.maxCapacity = capacity
		return nil
	}
}

// WithLengthObserver sets the callback invoked with the new length after each push or pop.
func WithLengthObserver(callback QueueLengthObserver) ConstructorOption {
	return func(o *options) error {
		if callback == nil {
			return fmt.Errorf("nil is not a valid QueueLengthObserver")
		}
		o.lengthObserver = callback
		return nil
	}
}

func NewFifoQueue[T any](opts ...ConstructorOption) (*FifoQueue[T], error) {
	o := &options{
		maxCapacity:    math.MaxInt,
		lengthObserver: func(int) {},
	}
	for _, opt := range opts {
		if err := opt(o); err != nil {
			return nil, fmt.Errorf("failed to apply constructor option to fifoqueue queue: %w", err)
		}
	}
	return &FifoQueue[T]{
		maxCapacity:    o.maxCapacity,
		lengthObserver: o.lengthObserver,
	}, nil
}

// Push appends element to the tail. Returns false if the queue is full and the element was dropped.
func (q *FifoQueue[T]) Push(element T) bool {
	q.mu.Lock()
	if q.queue.Len() >= q.maxCapacity {
		q.mu.Unlock()
		return false
	}
	q.queue.PushBack(element)
	length := q.queue.Len()
	q.mu.Unlock()

	q.lengthObserver(length)
	return true
}

// Front returns the head element without removing it.
func (q *FifoQueue[T]) Front() (T, bool) {
	q.mu.RLock()
	defer q.mu.RUnlock()

	front, ok := q.queue.Front()
	if !ok {
		var zero T
		return zero, false
	}
	return front.(T), true
}

// Pop removes and returns the head element, or (zero value, false) if the queue is empty.
func (q *FifoQueue[T]) Pop() (T, bool) {
	q.mu.Lock()
	element, ok := q.queue.PopFront()
	length := q.queue.Len()
	q.mu.Unlock()

	if !ok {
		var zero T
		return zero, false
	}
	q.lengthObserver(length)
	return element.(T), true
}

// Len returns the current length of the queue.
func (q *FifoQueue[T]) Len() int {
	q.mu.RLock()
	defer q.mu.RUnlock()

	return q.queue.Len()
}
