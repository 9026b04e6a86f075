package batchverify

import (
	"slices"
	"sync"
	"time"
)

// maxPreallocatedItems caps the capacity reserved for a new open batch.
const maxPreallocatedItems = 1024

// FlushTrigger is the reason an open batch was closed.
type FlushTrigger int

const (
	// SizeReached closes a batch once it holds MaxBatchSize requests.
	SizeReached FlushTrigger = iota
	// TimerElapsed closes a batch MaxBatchLatency after its first request arrived.
	TimerElapsed
	// Shutdown closes the open batch when the verifier stops.
	Shutdown
)

func (t FlushTrigger) String() string {
	switch t {
	case SizeReached:
		return "size"
	case TimerElapsed:
		return "timer"
	case Shutdown:
		return "shutdown"
	default:
		return "unknown"
	}
}

// batch is an ordered group of pending requests. Once closed, a batch is immutable.
type batch[R any] struct {
	seq     uint64
	opened  time.Time
	trigger FlushTrigger
	items   []*pendingItem[R]
}

// requests returns the requests of all items in submission order.
func (b *batch[R]) requests() []R {
	reqs := make([]R, len(b.items))
	for i, item := range b.items {
		reqs[i] = item.request
	}
	return reqs
}

// live returns the number of items which are not yet resolved.
func (b *batch[R]) live() int {
	n := 0
	for _, item := range b.items {
		if !item.resolved() {
			n++
		}
	}
	return n
}

// accumulator holds the single open batch. A batch is closed when it reaches maxSize
// or when maxLatency has elapsed since its first item was added, whichever comes first.
// Closed batches are handed to onFlush, which is called while holding the accumulator
// lock, so batches are handed over in the order they were closed.
type accumulator[R any] struct {
	mu         sync.Mutex
	maxSize    int
	maxLatency time.Duration
	onFlush    func(*batch[R])

	open     *batch[R]
	seq      uint64
	timer    *time.Timer
	timerGen uint64 // identifies the armed timer; a stale timer callback is ignored
	closed   bool
}

func newAccumulator[R any](maxSize uint, maxLatency time.Duration, onFlush func(*batch[R])) *accumulator[R] {
	a := &accumulator[R]{
		maxSize:    int(maxSize),
		maxLatency: maxLatency,
		onFlush:    onFlush,
	}
	a.open = a.newBatch()
	return a
}

// add appends item to the open batch. If this fills the batch, the batch is closed
// before add returns. Returns ErrCancelled if the accumulator was closed.
func (a *accumulator[R]) add(item *pendingItem[R]) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.closed {
		return ErrCancelled
	}

	a.open.items = append(a.open.items, item)
	if len(a.open.items) >= a.maxSize {
		a.flush(SizeReached)
		return nil
	}
	if len(a.open.items) == 1 {
		a.open.opened = time.Now()
		a.armTimer()
	}
	return nil
}

// remove takes item out of the open batch. Returns false if the item is not part of
// the open batch, i.e. its batch was already closed.
func (a *accumulator[R]) remove(item *pendingItem[R]) bool {
	a.mu.Lock()
	defer a.mu.Unlock()

	i := slices.Index(a.open.items, item)
	if i < 0 {
		return false
	}
	a.open.items = slices.Delete(a.open.items, i, i+1)
	if len(a.open.items) == 0 {
		a.stopTimer()
	}
	return true
}

// close flushes the open batch, if it is not empty, and rejects all further items.
// Calling close more than once is a no-op.
func (a *accumulator[R]) close() {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.closed {
		return
	}
	a.closed = true
	if len(a.open.items) > 0 {
		a.flush(Shutdown)
	} else {
		a.stopTimer()
	}
}

// size returns the number of items in the open batch.
func (a *accumulator[R]) size() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.open.items)
}

// onTimer is called when the latency timer of generation gen fires.
func (a *accumulator[R]) onTimer(gen uint64) {
	a.mu.Lock()
	defer a.mu.Unlock()

	// the batch the timer was armed for has already been closed, or all of its
	// items were removed in the meantime
	if a.closed || gen != a.timerGen || len(a.open.items) == 0 {
		return
	}
	a.flush(TimerElapsed)
}

// flush closes the open batch and opens a new, empty one.
// Caller must hold the lock.
func (a *accumulator[R]) flush(trigger FlushTrigger) {
	a.stopTimer()
	closed := a.open
	closed.trigger = trigger
	a.open = a.newBatch()
	a.onFlush(closed)
}

// Caller must hold the lock.
func (a *accumulator[R]) newBatch() *batch[R] {
	a.seq++
	return &batch[R]{
		seq:   a.seq,
		items: make([]*pendingItem[R], 0, min(a.maxSize, maxPreallocatedItems)),
	}
}

// Caller must hold the lock.
func (a *accumulator[R]) armTimer() {
	a.timerGen++
	gen := a.timerGen
	a.timer = time.AfterFunc(a.maxLatency, func() {
		a.onTimer(gen)
	})
}

// Caller must hold the lock.
func (a *accumulator[R]) stopTimer() {
	if a.timer == nil {
		return
	}
	a.timer.Stop()
	a.timer = nil
	a.timerGen++
}
