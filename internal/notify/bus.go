// ABOUTME: Notification bus delivering ride lifecycle and log events to registered listeners.
// ABOUTME: Dispatch is synchronous; a failing or panicking listener never blocks the others.
package notify

import (
	"fmt"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/harperreed/bikey/internal/timeutil"
)

// Kind identifies an event type.
type Kind string

const (
	KindLogAdded  Kind = "log_added"
	KindActivated Kind = "activated"
	KindPaused    Kind = "paused"
)

// Event is a notification about a ride.
type Event struct {
	Kind   Kind
	RideID int64
	At     time.Time
}

// Listener receives events.
type Listener interface {
	HandleEvent(Event) error
}

// ListenerFunc adapts a function to Listener.
type ListenerFunc func(Event) error

// HandleEvent calls f(e).
func (f ListenerFunc) HandleEvent(e Event) error {
	return f(e)
}

// Funcs adapts per-kind callbacks to Listener. Nil callbacks are skipped.
type Funcs struct {
	LogAdded  func(rideID int64)
	Activated func(rideID int64)
	Paused    func(rideID int64)
}

// HandleEvent dispatches e to the matching callback.
func (f Funcs) HandleEvent(e Event) error {
	var fn func(int64)
	switch e.Kind {
	case KindLogAdded:
		fn = f.LogAdded
	case KindActivated:
		fn = f.Activated
	case KindPaused:
		fn = f.Paused
	}
	if fn != nil {
		fn(e.RideID)
	}
	return nil
}

// ListenerID identifies a registration.
type ListenerID uint64

// Bus is a registry of listeners. The bus references a listener only
// between Add and Remove; the caller owns its lifetime.
type Bus struct {
	mu        sync.RWMutex
	next      ListenerID
	listeners map[ListenerID]Listener
	logger    *log.Logger
	clock     timeutil.Clock
}

// NewBus creates an empty bus.
func NewBus(logger *log.Logger, clock timeutil.Clock) *Bus {
	if logger == nil {
		logger = log.Default()
	}
	if clock == nil {
		clock = timeutil.RealClock{}
	}
	return &Bus{
		listeners: make(map[ListenerID]Listener),
		logger:    logger,
		clock:     clock,
	}
}

// Add registers l and returns its registration ID.
func (b *Bus) Add(l Listener) ListenerID {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.next++
	b.listeners[b.next] = l
	return b.next
}

// Remove unregisters a listener. It reports whether the ID was registered.
func (b *Bus) Remove(id ListenerID) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.listeners[id]; !ok {
		return false
	}
	delete(b.listeners, id)
	return true
}

// Len returns the number of registered listeners.
func (b *Bus) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.listeners)
}

// Publish delivers e to every listener registered at the time of the call.
// Listeners may Add or Remove during delivery.
func (b *Bus) Publish(e Event) {
	if e.At.IsZero() {
		e.At = b.clock.Now()
	}

	b.mu.RLock()
	snapshot := make(map[ListenerID]Listener, len(b.listeners))
	for id, l := range b.listeners {
		snapshot[id] = l
	}
	b.mu.RUnlock()

	for id, l := range snapshot {
		if err := b.deliver(l, e); err != nil {
			b.logger.Warn("listener failed", "listener", id, "event", e.Kind, "ride", e.RideID, "err", err)
		}
	}
}

func (b *Bus) deliver(l Listener, e Event) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("listener panic: %v", r)
		}
	}()
	return l.HandleEvent(e)
}

// LogAdded announces a new log point for the ride.
func (b *Bus) LogAdded(rideID int64) {
	b.Publish(Event{Kind: KindLogAdded, RideID: rideID})
}

// Activated announces that the ride started or resumed recording.
func (b *Bus) Activated(rideID int64) {
	b.Publish(Event{Kind: KindActivated, RideID: rideID})
}

// Paused announces that the ride stopped recording.
func (b *Bus) Paused(rideID int64) {
	b.Publish(Event{Kind: KindPaused, RideID: rideID})
}
