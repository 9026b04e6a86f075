package component

import (
	"context"
	"sync"

	"go.uber.org/atomic"

	"github.com/onflow/batch-verifier/module"
	"github.com/onflow/batch-verifier/module/irrecoverable"
	"github.com/onflow/batch-verifier/module/util"
)

// Component can be started once and reports startup and shutdown through its Ready and
// Done channels. After Start, Done must eventually close, either because the start
// context was cancelled or because an irrecoverable error was thrown.
type Component interface {
	module.Startable
	module.ReadyDoneAware
}

// ReadyFunc is called by a ComponentWorker once it is ready.
type ReadyFunc func()

// ComponentWorker is a long-running routine of a component. It must call ready once it
// is able to serve, return once ctx is cancelled, and report irrecoverable errors with
// ctx.Throw.
type ComponentWorker func(ctx irrecoverable.SignalerContext, ready ReadyFunc)

// ComponentManagerBuilder collects the workers of a ComponentManager.
type ComponentManagerBuilder interface {
	AddWorker(ComponentWorker) ComponentManagerBuilder
	Build() *ComponentManager
}

type componentManagerBuilderImpl struct {
	workers []ComponentWorker
}

func NewComponentManagerBuilder() ComponentManagerBuilder {
	return &componentManagerBuilderImpl{}
}

// AddWorker adds a worker. Not concurrency-safe.
func (c *componentManagerBuilderImpl) AddWorker(worker ComponentWorker) ComponentManagerBuilder {
	c.workers = append(c.workers, worker)
	return c
}

// Build returns a ComponentManager running the added workers. Each call returns an
// independent manager running the same worker functions.
func (c *componentManagerBuilderImpl) Build() *ComponentManager {
	return &ComponentManager{
		started:     atomic.NewBool(false),
		ready:       make(chan struct{}),
		done:        make(chan struct{}),
		workersDone: make(chan struct{}),
		workers:     c.workers,
	}
}

var _ Component = (*ComponentManager)(nil)

// ComponentManager implements Component by running a fixed set of workers.
//
// Ready closes once every worker called its ReadyFunc; Done closes once every worker
// returned. Cancelling the context passed to Start shuts the workers down. An error
// thrown by any worker cancels all workers and is rethrown on the context passed to
// Start, but only after the workers have returned.
type ComponentManager struct {
	started     *atomic.Bool
	ready       chan struct{}
	done        chan struct{}
	workersDone chan struct{}

	workers []ComponentWorker
}

// Start launches all workers. It panics with module.ErrMultipleStartup if called twice.
func (c *ComponentManager) Start(parent irrecoverable.SignalerContext) {
	if !c.started.CompareAndSwap(false, true) {
		panic(module.ErrMultipleStartup)
	}

	ctx, cancel := context.WithCancel(parent)
	signalerCtx, errChan := irrecoverable.WithSignaler(ctx)

	var workersReady, workersDone sync.WaitGroup
	workersReady.Add(len(c.workers))
	for _, worker := range c.workers {
		workersDone.Go(func() {
			var once sync.Once
			worker(signalerCtx, func() {
				once.Do(workersReady.Done)
			})
		})
	}

	go func() {
		workersReady.Wait()
		close(c.ready)
	}()
	go func() {
		workersDone.Wait()
		close(c.workersDone)
	}()

	go func() {
		defer close(c.done)
		err := util.WaitError(errChan, c.workersDone)
		cancel()
		<-c.workersDone
		if err != nil {
			// Done closes only after the parent has received the error
			parent.Throw(err)
		}
	}()
}

// Ready closes once all workers are ready. It never closes if a worker returns without
// calling its ReadyFunc.
func (c *ComponentManager) Ready() <-chan struct{} {
	return c.ready
}

// Done closes once all workers have returned.
func (c *ComponentManager) Done() <-chan struct{} {
	return c.done
}
