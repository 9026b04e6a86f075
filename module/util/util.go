package util

import (
	"context"
	"sync"

	"github.com/onflow/batch-verifier/module"
)

// AllReady returns a channel which closes once every component is ready.
func AllReady(components ...module.ReadyDoneAware) <-chan struct{} {
	chans := make([]<-chan struct{}, len(components))
	for i, c := range components {
		chans[i] = c.Ready()
	}
	return AllClosed(chans...)
}

// AllDone returns a channel which closes once every component is done.
func AllDone(components ...module.ReadyDoneAware) <-chan struct{} {
	chans := make([]<-chan struct{}, len(components))
	for i, c := range components {
		chans[i] = c.Done()
	}
	return AllClosed(chans...)
}

// AllClosed returns a channel which closes once every input channel is closed.
func AllClosed(channels ...<-chan struct{}) <-chan struct{} {
	done := make(chan struct{})
	var wg sync.WaitGroup
	for _, ch := range channels {
		wg.Go(func() { <-ch })
	}
	go func() {
		wg.Wait()
		close(done)
	}()
	return done
}

// WaitClosed blocks until ch is closed or ctx ends. It returns nil if ch is closed,
// even if ctx ended at the same time, and the context error otherwise.
func WaitClosed(ctx context.Context, ch <-chan struct{}) error {
	select {
	case <-ch:
		return nil
	case <-ctx.Done():
		select {
		case <-ch:
			return nil
		default:
			return ctx.Err()
		}
	}
}

// WaitError blocks until an error arrives on errChan or done is closed. An error which is
// available when done closes is still returned, so that a shutdown caused by an error
// is never mistaken for a graceful one.
func WaitError(errChan <-chan error, done <-chan struct{}) error {
	select {
	case err := <-errChan:
		return err
	case <-done:
		select {
		case err := <-errChan:
			return err
		default:
			return nil
		}
	}
}
