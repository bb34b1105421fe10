package scheduler

import (
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

func TestLoopRunsTasksInOrder(t *testing.T) {
	l := NewLoop()
	defer l.Close()

	var got []int
	done := make(chan struct{})
	for i := 1; i <= 5; i++ {
		i := i
		err := l.Submit(func() {
			got = append(got, i)
			if i == 5 {
				close(done)
			}
		})
		if err != nil {
			t.Fatalf("Submit() error = %v", err)
		}
	}

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("tasks did not run within 1s")
	}

	for i, v := range got {
		if v != i+1 {
			t.Fatalf("tasks ran out of order: %v", got)
		}
	}
}

func TestLoopSubmitFromTaskNeverBlocks(t *testing.T) {
	l := NewLoop()
	defer l.Close()

	// A task submitting a large burst of follow-up work must not wedge
	// the loop goroutine against its own queue.
	const burst = 10_000
	var count atomic.Int32
	done := make(chan struct{})
	err := l.Submit(func() {
		for i := 0; i < burst; i++ {
			if err := l.Submit(func() {
				if count.Add(1) == burst {
					close(done)
				}
			}); err != nil {
				t.Errorf("nested Submit() error = %v", err)
				return
			}
		}
	})
	if err != nil {
		t.Fatalf("Submit() error = %v", err)
	}

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatalf("ran %d of %d nested tasks", count.Load(), burst)
	}
}

func TestLoopCallBlocksUntilDone(t *testing.T) {
	l := NewLoop()
	defer l.Close()

	var ran atomic.Bool
	if err := l.Call(func() {
		time.Sleep(10 * time.Millisecond)
		ran.Store(true)
	}); err != nil {
		t.Fatalf("Call() error = %v", err)
	}
	if !ran.Load() {
		t.Error("Call() returned before task completed")
	}
}

func TestLoopCloseDrainsQueuedTasks(t *testing.T) {
	l := NewLoop()

	var count atomic.Int32
	for i := 0; i < 10; i++ {
		if err := l.Submit(func() { count.Add(1) }); err != nil {
			t.Fatalf("Submit() error = %v", err)
		}
	}

	l.Close()
	if got := count.Load(); got != 10 {
		t.Errorf("tasks run after Close = %d, want 10", got)
	}
}

func TestLoopSubmitAfterClose(t *testing.T) {
	l := NewLoop()
	l.Close()

	if err := l.Submit(func() {}); !errors.Is(err, ErrLoopClosed) {
		t.Errorf("Submit() after Close error = %v, want ErrLoopClosed", err)
	}
	if err := l.Call(func() {}); !errors.Is(err, ErrLoopClosed) {
		t.Errorf("Call() after Close error = %v, want ErrLoopClosed", err)
	}
}

func TestLoopCloseIdempotent(t *testing.T) {
	l := NewLoop()
	l.Close()
	l.Close() // must not panic or block
}
