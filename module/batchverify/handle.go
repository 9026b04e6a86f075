package batchverify

import (
	"context"
	"time"

	"go.uber.org/atomic"
)

// Handle is the caller's side of a submitted request. It receives exactly one terminal
// result: nil if the request is valid, a VerifyError if it is invalid, a BackendError if
// the backend could not decide, or ErrCancelled.
//
// All methods are safe for concurrent use.
type Handle struct {
	done     chan struct{}
	err      error
	resolved *atomic.Bool

	// cancel is installed by the verifier which created the handle. It resolves the
	// handle with ErrCancelled and removes the request from the open batch if it has
	// not been flushed yet.
	cancel func(cause error) bool
	// onResolve, if set, observes the terminal result before it becomes visible to waiters.
	onResolve func(err error)
}

func newHandle() *Handle {
	return &Handle{
		done:     make(chan struct{}),
		resolved: atomic.NewBool(false),
	}
}

// resolve delivers the terminal result. Only the first call has an effect.
// Returns true if this call resolved the handle.
func (h *Handle) resolve(err error) bool {
	if !h.resolved.CompareAndSwap(false, true) {
		return false
	}
	h.err = err
	if h.onResolve != nil {
		h.onResolve(err)
	}
	close(h.done)
	return true
}

// Done returns a channel which is closed once the result is available.
func (h *Handle) Done() <-chan struct{} {
	return h.done
}

// Result returns true and the terminal result if the request is resolved.
// It returns false if the request is still pending.
func (h *Handle) Result() (bool, error) {
	select {
	case <-h.done:
		return true, h.err
	default:
		return false, nil
	}
}

// Wait blocks until the result is available or ctx ends. If ctx ends first, the
// request is cancelled and an error wrapping ErrCancelled is returned, unless the
// result became available concurrently, in which case the result wins.
func (h *Handle) Wait(ctx context.Context) error {
	select {
	case <-h.done:
		return h.err
	case <-ctx.Done():
		h.cancelWithCause(cancelled(ctx))
		<-h.done
		return h.err
	}
}

// Cancel abandons the request. A request still waiting in the open batch is removed
// and never reaches the backend. A request already handed to the backend is still
// verified but its result is discarded. Returns false if the request was already resolved.
func (h *Handle) Cancel() bool {
	return h.cancelWithCause(ErrCancelled)
}

func (h *Handle) cancelWithCause(cause error) bool {
	if h.cancel != nil {
		return h.cancel(cause)
	}
	return h.resolve(cause)
}

// pendingItem is a request waiting for its terminal result.
type pendingItem[R any] struct {
	request   R
	submitted time.Time
	handle    *Handle
}

func newPendingItem[R any](req R) *pendingItem[R] {
	return &pendingItem[R]{
		request:   req,
		submitted: time.Now(),
		handle:    newHandle(),
	}
}

// resolved returns true if the item already has its terminal result, e.g. because
// its caller cancelled it.
func (p *pendingItem[R]) resolved() bool {
	return p.handle.resolved.Load()
}

// ResolvedHandle returns a handle which already carries result. Used by layers in front
// of a verifier which can answer a request without submitting it.
func ResolvedHandle(result error) *Handle {
	h := newHandle()
	h.resolve(result)
	return h
}
