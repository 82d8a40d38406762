package session

import (
	"errors"
	"sync"
)

// ErrExecutorStopped is returned by Submit after Stop.
var ErrExecutorStopped = errors.New("executor is stopped")

// Executor is a bounded worker pool for in-flight actions. Session
// drivers submit work and observe completion; they never run actions on
// their own goroutine.
type Executor struct {
	tasks  chan func()
	stopCh chan struct{}
	wg     sync.WaitGroup
	once   sync.Once
}

// NewExecutor creates a pool with the given number of workers.
func NewExecutor(workers int) *Executor {
	if workers < 1 {
		workers = 1
	}
	e := &Executor{
		tasks:  make(chan func()),
		stopCh: make(chan struct{}),
	}
	for i := 0; i < workers; i++ {
		e.wg.Add(1)
		go e.worker()
	}
	return e
}

func (e *Executor) worker() {
	defer e.wg.Done()
	for {
		select {
		case fn := <-e.tasks:
			fn()
		case <-e.stopCh:
			return
		}
	}
}

// Submit hands fn to a pool worker, blocking until one is free.
func (e *Executor) Submit(fn func()) error {
	select {
	case <-e.stopCh:
		return ErrExecutorStopped
	case e.tasks <- fn:
		return nil
	}
}

// Stop shuts the pool down and waits for idle workers. In-flight actions
// finish; queued-but-unstarted work is dropped.
func (e *Executor) Stop() {
	e.once.Do(func() { close(e.stopCh) })
	e.wg.Wait()
}
