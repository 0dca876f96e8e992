package event

import (
	"sync"
)

const defaultBuffer = 256

// Publisher accepts events from the core.
type Publisher interface {
	Publish(ev Event)
}

// Sink consumes events in publication order.
type Sink interface {
	Handle(ev Event)
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(ev Event)

// Handle calls f.
func (f SinkFunc) Handle(ev Event) { f(ev) }

// Bus is the single ordered channel between the core and its consumers.
// One dispatcher goroutine (Run) hands every event to every sink, in order.
type Bus struct {
	ch chan Event

	sinkMu sync.Mutex
	sinks  []Sink

	// mu guards closed; Publish holds it shared while sending so Close
	// cannot close the channel under a pending send.
	mu     sync.RWMutex
	closed bool

	done chan struct{}
}

// NewBus creates a bus with the given buffer size.
func NewBus(buffer int) *Bus {
	if buffer <= 0 {
		buffer = defaultBuffer
	}
	return &Bus{
		ch:   make(chan Event, buffer),
		done: make(chan struct{}),
	}
}

// Subscribe registers a sink. Sinks added after Run started only see later events.
func (b *Bus) Subscribe(s Sink) {
	b.sinkMu.Lock()
	b.sinks = append(b.sinks, s)
	b.sinkMu.Unlock()
}

// Publish enqueues ev. It blocks while the buffer is full and drops events
// once the bus is closed.
func (b *Bus) Publish(ev Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return
	}
	b.ch <- ev
}

// Run dispatches events until Close is called and the buffer is drained.
func (b *Bus) Run() {
	defer close(b.done)
	for ev := range b.ch {
		b.sinkMu.Lock()
		sinks := b.sinks
		b.sinkMu.Unlock()
		for _, s := range sinks {
			s.Handle(ev)
		}
	}
}

// Close stops accepting events. Run returns after delivering what is buffered.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	close(b.ch)
}

// Done is closed once Run has delivered the last event.
func (b *Bus) Done() <-chan struct{} {
	return b.done
}

// Recorder keeps every event it sees. It is both a Publisher and a Sink.
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

// Publish records ev.
func (r *Recorder) Publish(ev Event) { r.Handle(ev) }

// Handle records ev.
func (r *Recorder) Handle(ev Event) {
	r.mu.Lock()
	r.events = append(r.events, ev)
	r.mu.Unlock()
}

// Events returns a copy of everything recorded so far.
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Event(nil), r.events...)
}

// Kinds returns the kinds of the recorded events, in order.
func (r *Recorder) Kinds() []Kind {
	events := r.Events()
	kinds := make([]Kind, 0, len(events))
	for _, ev := range events {
		kinds = append(kinds, ev.Kind())
	}
	return kinds
}

// Count returns how many recorded events have kind k.
func (r *Recorder) Count(k Kind) int {
	n := 0
	for _, ev := range r.Events() {
		if ev.Kind() == k {
			n++
		}
	}
	return n
}

// Reset forgets all recorded events.
func (r *Recorder) Reset() {
	r.mu.Lock()
	r.events = nil
	r.mu.Unlock()
}
