package dispatch

import (
	"sync"

	"github.com/nerrad567/gray-logic-presence/internal/scheduler"
)

// Handler receives the arguments passed to Send.
type Handler func(args ...any)

// Dispatcher is a keyed signal bus between loosely coupled components.
//
// The composite tracker announces accepted sightings on a per-group
// signal; the group's speed sensor connects to that signal without either
// side holding a reference to the other. Handlers run on the scheduler
// loop, so delivery is ordered and single-threaded.
type Dispatcher struct {
	loop *scheduler.Loop

	mu       sync.Mutex
	handlers map[string]map[int]Handler
	nextID   int
}

// NewDispatcher creates a dispatcher that delivers on the given loop.
func NewDispatcher(loop *scheduler.Loop) *Dispatcher {
	return &Dispatcher{
		loop:     loop,
		handlers: make(map[string]map[int]Handler),
	}
}

// Connect registers a handler for a signal and returns a function that
// removes it. Safe to call from any goroutine.
func (d *Dispatcher) Connect(signal string, fn Handler) (disconnect func()) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.handlers[signal] == nil {
		d.handlers[signal] = make(map[int]Handler)
	}
	id := d.nextID
	d.nextID++
	d.handlers[signal][id] = fn

	return func() {
		d.mu.Lock()
		defer d.mu.Unlock()
		delete(d.handlers[signal], id)
		if len(d.handlers[signal]) == 0 {
			delete(d.handlers, signal)
		}
	}
}

// Send queues delivery of args to every handler connected to the signal.
// Delivery happens asynchronously on the scheduler loop; Send itself never
// blocks on handler execution.
//
// Returns scheduler.ErrLoopClosed if the loop has shut down.
func (d *Dispatcher) Send(signal string, args ...any) error {
	d.mu.Lock()
	targets := make([]Handler, 0, len(d.handlers[signal]))
	for _, fn := range d.handlers[signal] {
		targets = append(targets, fn)
	}
	d.mu.Unlock()

	if len(targets) == 0 {
		return nil
	}

	return d.loop.Submit(func() {
		for _, fn := range targets {
			fn(args...)
		}
	})
}
