package dispatch

import (
	"testing"
	"time"

	"github.com/nerrad567/gray-logic-presence/internal/scheduler"
)

func TestDispatcherDeliversToConnectedHandlers(t *testing.T) {
	loop := scheduler.NewLoop()
	defer loop.Close()
	d := NewDispatcher(loop)

	got := make(chan []any, 1)
	d.Connect("group-1", func(args ...any) {
		got <- args
	})

	if err := d.Send("group-1", "a", 42); err != nil {
		t.Fatalf("Send() error = %v", err)
	}

	select {
	case args := <-got:
		if len(args) != 2 || args[0] != "a" || args[1] != 42 {
			t.Errorf("handler args = %v, want [a 42]", args)
		}
	case <-time.After(time.Second):
		t.Fatal("handler not invoked within 1s")
	}
}

func TestDispatcherSignalIsolation(t *testing.T) {
	loop := scheduler.NewLoop()
	defer loop.Close()
	d := NewDispatcher(loop)

	wrong := make(chan struct{}, 1)
	d.Connect("group-other", func(...any) {
		wrong <- struct{}{}
	})

	if err := d.Send("group-1"); err != nil {
		t.Fatalf("Send() error = %v", err)
	}

	// Flush the loop so any misdelivery would have happened.
	if err := loop.Call(func() {}); err != nil {
		t.Fatalf("Call() error = %v", err)
	}

	select {
	case <-wrong:
		t.Error("handler invoked for signal it is not connected to")
	default:
	}
}

func TestDispatcherDisconnect(t *testing.T) {
	loop := scheduler.NewLoop()
	defer loop.Close()
	d := NewDispatcher(loop)

	calls := 0
	disconnect := d.Connect("group-1", func(...any) {
		calls++
	})

	if err := d.Send("group-1"); err != nil {
		t.Fatalf("Send() error = %v", err)
	}
	disconnect()
	if err := d.Send("group-1"); err != nil {
		t.Fatalf("Send() error = %v", err)
	}

	if err := loop.Call(func() {}); err != nil {
		t.Fatalf("Call() error = %v", err)
	}
	if calls != 1 {
		t.Errorf("handler calls = %d, want 1 (disconnect should stop delivery)", calls)
	}
}

func TestDispatcherSendNoHandlers(t *testing.T) {
	loop := scheduler.NewLoop()
	defer loop.Close()
	d := NewDispatcher(loop)

	if err := d.Send("nobody-listening"); err != nil {
		t.Errorf("Send() with no handlers error = %v, want nil", err)
	}
}
