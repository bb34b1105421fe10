package scheduler

import (
	"sync"
)

// Loop runs submitted tasks sequentially on a single goroutine.
//
// It provides the ordering guarantee the fusion pipeline relies on:
// tracker and sensor updates for all groups are serialised, so consumers
// of loop-owned state never need their own locking.
//
// The task queue is unbounded and Submit never blocks. Loop tasks
// routinely submit follow-up work (a tracker update dispatches to its
// sensor), so a bounded queue could wedge the loop goroutine against
// itself under backlog.
type Loop struct {
	mu      sync.Mutex
	tasks   []func()
	closing bool

	wake   chan struct{}
	done   chan struct{}
	closed chan struct{}

	closeOnce sync.Once
}

// NewLoop creates a task loop and starts its goroutine.
// Call Close to stop it.
func NewLoop() *Loop {
	l := &Loop{
		wake:   make(chan struct{}, 1),
		done:   make(chan struct{}),
		closed: make(chan struct{}),
	}
	go l.run()
	return l
}

// run drains the task queue until Close.
func (l *Loop) run() {
	defer close(l.done)
	for {
		select {
		case <-l.closed:
			// Run tasks already queued so submitted work is not lost.
			l.drain()
			return
		case <-l.wake:
			l.drain()
		}
	}
}

// drain runs queued tasks until the queue is observed empty. Tasks run
// outside the lock so they can submit more work.
func (l *Loop) drain() {
	for {
		l.mu.Lock()
		if len(l.tasks) == 0 {
			l.tasks = nil
			l.mu.Unlock()
			return
		}
		fn := l.tasks[0]
		l.tasks = l.tasks[1:]
		l.mu.Unlock()
		fn()
	}
}

// Submit queues fn for execution on the loop goroutine and returns
// immediately. It never blocks, so it is safe to call from a task
// already running on the loop. Returns ErrLoopClosed if the loop has
// been closed.
func (l *Loop) Submit(fn func()) error {
	l.mu.Lock()
	if l.closing {
		l.mu.Unlock()
		return ErrLoopClosed
	}
	l.tasks = append(l.tasks, fn)
	l.mu.Unlock()

	select {
	case l.wake <- struct{}{}:
	default:
	}
	return nil
}

// Call runs fn on the loop goroutine and blocks until it completes.
//
// Call must never be invoked from a task already running on the loop:
// doing so deadlocks, as the loop cannot run the new task while blocked
// inside the current one. Use Submit from loop tasks instead.
func (l *Loop) Call(fn func()) error {
	doneCh := make(chan struct{})
	err := l.Submit(func() {
		defer close(doneCh)
		fn()
	})
	if err != nil {
		return err
	}

	select {
	case <-doneCh:
		return nil
	case <-l.done:
		// Loop exited before running the task.
		select {
		case <-doneCh:
			return nil
		default:
			return ErrLoopClosed
		}
	}
}

// Close stops the loop after draining already-queued tasks.
// It blocks until the loop goroutine has exited. Safe to call multiple times.
func (l *Loop) Close() {
	l.closeOnce.Do(func() {
		l.mu.Lock()
		l.closing = true
		l.mu.Unlock()
		close(l.closed)
	})
	<-l.done
}
