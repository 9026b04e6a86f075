package unittest

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/onflow/batch-verifier/module"
	"github.com/onflow/batch-verifier/module/irrecoverable"
	"github.com/onflow/batch-verifier/module/util"
)

// RequireCloseBefore requires that the given channel returns before the
// duration expires.
func RequireCloseBefore(t testing.TB, c <-chan struct{}, duration time.Duration, message string) {
	select {
	case <-time.After(duration):
		require.Fail(t, "could not close done channel on time: "+message)
	case <-c:
		return
	}
}

// RequireComponentsReadyBefore requires that all the given components are ready before the
// duration expires.
func RequireComponentsReadyBefore(t testing.TB, duration time.Duration, components ...module.ReadyDoneAware) {
	RequireCloseBefore(t, util.AllReady(components...), duration, "failed to start all components on time")
}

// RequireComponentsDoneBefore requires that all the given components are done before the
// duration expires.
func RequireComponentsDoneBefore(t testing.TB, duration time.Duration, components ...module.ReadyDoneAware) {
	RequireCloseBefore(t, util.AllDone(components...), duration, "failed to stop all components on time")
}

type startable interface {
	module.Startable
	module.ReadyDoneAware
}

// RunComponent starts c with a context that fails the test on irrecoverable errors and
// waits until c is ready. The returned function cancels the context and waits until c
// is done.
func RunComponent(t *testing.T, c startable, duration time.Duration) (stop func()) {
	ctx, cancel := irrecoverable.NewMockSignalerContextWithCancel(t, context.Background())
	c.Start(ctx)
	RequireComponentsReadyBefore(t, duration, c)
	return func() {
		cancel()
		RequireComponentsDoneBefore(t, duration, c)
	}
}

// SkipIfShort skips the test when the -short flag is set. Used for tests that load
// large setups, such as cryptographic trusted setups.
func SkipIfShort(t testing.TB, reason string) {
	if testing.Short() {
		t.Skip("skipping in short mode: " + reason)
	}
}
