package batchverify

import (
	"slices"
	"sync"
	"testing"
	"testing/synctest"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// flushRecorder collects the batches closed by an accumulator. Timer flushes run on
// the timer's goroutine.
type flushRecorder struct {
	mu      sync.Mutex
	batches []*batch[int]
}

func (r *flushRecorder) onFlush(b *batch[int]) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.batches = append(r.batches, b)
}

func (r *flushRecorder) closed() []*batch[int] {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Clone(r.batches)
}

func ids(b *batch[int]) []int {
	return b.requests()
}

// TestAccumulator_SizeFlush verifies that the batch is closed synchronously by the add
// which fills it, and that requests keep their submission order.
func TestAccumulator_SizeFlush(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		rec := &flushRecorder{}
		acc := newAccumulator(3, time.Second, rec.onFlush)

		for i := range 7 {
			require.NoError(t, acc.add(newPendingItem(i)))
		}

		require.Len(t, rec.closed(), 2)
		assert.Equal(t, []int{0, 1, 2}, ids(rec.closed()[0]))
		assert.Equal(t, []int{3, 4, 5}, ids(rec.closed()[1]))
		assert.Equal(t, SizeReached, rec.closed()[0].trigger)
		assert.Less(t, rec.closed()[0].seq, rec.closed()[1].seq)
		assert.Equal(t, 1, acc.size())

		acc.close()
		require.Len(t, rec.closed(), 3)
		assert.Equal(t, []int{6}, ids(rec.closed()[2]))
		assert.Equal(t, Shutdown, rec.closed()[2].trigger)
	})
}

// TestAccumulator_TimerFlush verifies that a batch is closed once the latency has
// elapsed since its first request, and not earlier.
func TestAccumulator_TimerFlush(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		rec := &flushRecorder{}
		acc := newAccumulator(10, 50*time.Millisecond, rec.onFlush)

		require.NoError(t, acc.add(newPendingItem(1)))
		time.Sleep(30 * time.Millisecond)
		require.NoError(t, acc.add(newPendingItem(2)))
		synctest.Wait()
		assert.Empty(t, rec.closed())

		// the deadline is relative to the first request of the batch
		time.Sleep(20 * time.Millisecond)
		synctest.Wait()
		require.Len(t, rec.closed(), 1)
		assert.Equal(t, []int{1, 2}, ids(rec.closed()[0]))
		assert.Equal(t, TimerElapsed, rec.closed()[0].trigger)

		// the next batch gets a fresh deadline
		require.NoError(t, acc.add(newPendingItem(3)))
		time.Sleep(49 * time.Millisecond)
		synctest.Wait()
		assert.Len(t, rec.closed(), 1)
		time.Sleep(time.Millisecond)
		synctest.Wait()
		require.Len(t, rec.closed(), 2)
		assert.Equal(t, []int{3}, ids(rec.closed()[1]))
	})
}

// TestAccumulator_SizeFlushStopsTimer verifies that the timer of a batch closed by size
// does not close the following batch early.
func TestAccumulator_SizeFlushStopsTimer(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		rec := &flushRecorder{}
		acc := newAccumulator(2, 50*time.Millisecond, rec.onFlush)

		require.NoError(t, acc.add(newPendingItem(1)))
		time.Sleep(40 * time.Millisecond)
		require.NoError(t, acc.add(newPendingItem(2)))
		require.NoError(t, acc.add(newPendingItem(3)))
		require.Len(t, rec.closed(), 1)

		// first batch's deadline passes, second batch must stay open
		time.Sleep(20 * time.Millisecond)
		synctest.Wait()
		assert.Len(t, rec.closed(), 1)

		time.Sleep(30 * time.Millisecond)
		synctest.Wait()
		require.Len(t, rec.closed(), 2)
		assert.Equal(t, []int{3}, ids(rec.closed()[1]))
	})
}

// TestAccumulator_Remove verifies that requests removed from the open batch are not
// flushed, and that a batch emptied by removal does not flush an empty batch.
func TestAccumulator_Remove(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		rec := &flushRecorder{}
		acc := newAccumulator(10, 50*time.Millisecond, rec.onFlush)

		first, second := newPendingItem(1), newPendingItem(2)
		require.NoError(t, acc.add(first))
		require.NoError(t, acc.add(second))
		assert.True(t, acc.remove(first))
		assert.False(t, acc.remove(first))

		time.Sleep(50 * time.Millisecond)
		synctest.Wait()
		require.Len(t, rec.closed(), 1)
		assert.Equal(t, []int{2}, ids(rec.closed()[0]))

		// removal after flush is not possible
		assert.False(t, acc.remove(second))

		only := newPendingItem(3)
		require.NoError(t, acc.add(only))
		assert.True(t, acc.remove(only))
		time.Sleep(time.Second)
		synctest.Wait()
		assert.Len(t, rec.closed(), 1)
	})
}

// TestAccumulator_Close verifies that close flushes a non-empty open batch once and
// rejects further requests.
func TestAccumulator_Close(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		rec := &flushRecorder{}
		acc := newAccumulator(10, 50*time.Millisecond, rec.onFlush)

		acc.close()
		assert.Empty(t, rec.closed())
		assert.ErrorIs(t, acc.add(newPendingItem(1)), ErrCancelled)

		acc = newAccumulator(10, 50*time.Millisecond, rec.onFlush)
		require.NoError(t, acc.add(newPendingItem(1)))
		acc.close()
		acc.close()
		require.Len(t, rec.closed(), 1)
		assert.Equal(t, Shutdown, rec.closed()[0].trigger)

		// the timer of the flushed batch must not fire into a closed accumulator
		time.Sleep(time.Second)
		synctest.Wait()
		assert.Len(t, rec.closed(), 1)
	})
}

func TestBatch_Live(t *testing.T) {
	b := &batch[int]{items: []*pendingItem[int]{newPendingItem(1), newPendingItem(2)}}
	assert.Equal(t, 2, b.live())
	b.items[0].handle.resolve(ErrCancelled)
	assert.Equal(t, 1, b.live())
}

func TestFlushTrigger_String(t *testing.T) {
	assert.Equal(t, "size", SizeReached.String())
	assert.Equal(t, "timer", TimerElapsed.String())
	assert.Equal(t, "shutdown", Shutdown.String())
	assert.Equal(t, "unknown", FlushTrigger(42).String())
}
