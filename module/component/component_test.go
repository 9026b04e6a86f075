package component_test

import (
	"context"
	"errors"
	"testing"
	"testing/synctest"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/onflow/batch-verifier/module"
	"github.com/onflow/batch-verifier/module/component"
	"github.com/onflow/batch-verifier/module/irrecoverable"
)

func isClosed(ch <-chan struct{}) bool {
	select {
	case <-ch:
		return true
	default:
		return false
	}
}

// TestComponentManager_Lifecycle verifies that Ready waits for every worker to be ready
// and Done waits for every worker to return after the context is cancelled.
func TestComponentManager_Lifecycle(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		release := make(chan struct{})
		cm := component.NewComponentManagerBuilder().
			AddWorker(func(ctx irrecoverable.SignalerContext, ready component.ReadyFunc) {
				ready()
				<-ctx.Done()
			}).
			AddWorker(func(ctx irrecoverable.SignalerContext, ready component.ReadyFunc) {
				<-release
				ready()
				ready() // repeated calls are harmless
				<-ctx.Done()
				// slow shutdown
				time.Sleep(time.Second)
			}).
			Build()

		ctx, cancel := irrecoverable.NewMockSignalerContextWithCancel(t, context.Background())
		cm.Start(ctx)

		synctest.Wait()
		assert.False(t, isClosed(cm.Ready()))

		close(release)
		synctest.Wait()
		assert.True(t, isClosed(cm.Ready()))
		assert.False(t, isClosed(cm.Done()))

		cancel()
		synctest.Wait()
		assert.False(t, isClosed(cm.Done()), "done before the slow worker returned")

		time.Sleep(time.Second)
		synctest.Wait()
		assert.True(t, isClosed(cm.Done()))
	})
}

// TestComponentManager_ThrowPropagates verifies that an error thrown by one worker stops
// all workers and reaches the parent context before Done closes.
func TestComponentManager_ThrowPropagates(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		errBoom := errors.New("boom")
		var stopped bool
		cm := component.NewComponentManagerBuilder().
			AddWorker(func(ctx irrecoverable.SignalerContext, ready component.ReadyFunc) {
				ready()
				<-ctx.Done()
				stopped = true
			}).
			AddWorker(func(ctx irrecoverable.SignalerContext, ready component.ReadyFunc) {
				ready()
				ctx.Throw(errBoom)
			}).
			Build()

		parent, errChan := irrecoverable.WithSignaler(context.Background())
		cm.Start(parent)
		<-cm.Done()

		assert.True(t, stopped)
		select {
		case err := <-errChan:
			assert.ErrorIs(t, err, errBoom)
		default:
			require.Fail(t, "error was not propagated before done")
		}
	})
}

func TestComponentManager_StartTwice(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		cm := component.NewComponentManagerBuilder().Build()
		ctx, cancel := irrecoverable.NewMockSignalerContextWithCancel(t, context.Background())
		defer cancel()

		cm.Start(ctx)
		assert.PanicsWithValue(t, module.ErrMultipleStartup, func() { cm.Start(ctx) })

		// a manager without workers is ready and done right away
		<-cm.Ready()
		cancel()
		<-cm.Done()
	})
}
