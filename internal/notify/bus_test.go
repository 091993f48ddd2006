// ABOUTME: Tests for the notification bus.
// ABOUTME: Covers registration, removal, failure isolation and callback adapters.
package notify

import (
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/harperreed/bikey/internal/timeutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *recorder) HandleEvent(e Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
	return nil
}

func (r *recorder) kinds() []Kind {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Kind, 0, len(r.events))
	for _, e := range r.events {
		out = append(out, e.Kind)
	}
	return out
}

func newTestBus() (*Bus, *timeutil.MockClock) {
	clock := timeutil.NewMockClock(time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC))
	return NewBus(log.New(io.Discard), clock), clock
}

func TestBusDelivers(t *testing.T) {
	bus, clock := newTestBus()
	rec := &recorder{}
	bus.Add(rec)

	bus.Activated(1)
	bus.LogAdded(1)
	bus.Paused(1)

	assert.Equal(t, []Kind{KindActivated, KindLogAdded, KindPaused}, rec.kinds())
	assert.Equal(t, int64(1), rec.events[0].RideID)
	assert.True(t, rec.events[0].At.Equal(clock.Now()))
}

func TestBusRemove(t *testing.T) {
	bus, _ := newTestBus()
	rec := &recorder{}
	id := bus.Add(rec)
	require.Equal(t, 1, bus.Len())

	assert.True(t, bus.Remove(id))
	assert.False(t, bus.Remove(id))
	assert.Zero(t, bus.Len())

	bus.LogAdded(1)
	assert.Empty(t, rec.kinds())
}

func TestBusIsolatesFailures(t *testing.T) {
	bus, _ := newTestBus()
	rec := &recorder{}

	bus.Add(ListenerFunc(func(Event) error { panic("listener bug") }))
	bus.Add(ListenerFunc(func(Event) error { return errors.New("listener error") }))
	bus.Add(rec)

	assert.NotPanics(t, func() { bus.Paused(7) })
	assert.Equal(t, []Kind{KindPaused}, rec.kinds())
}

func TestBusRemoveDuringDispatch(t *testing.T) {
	bus, _ := newTestBus()
	rec := &recorder{}
	var selfID ListenerID
	selfID = bus.Add(ListenerFunc(func(Event) error {
		bus.Remove(selfID)
		return nil
	}))
	bus.Add(rec)

	bus.LogAdded(1)
	bus.LogAdded(1)

	assert.Equal(t, 1, bus.Len())
	assert.Len(t, rec.kinds(), 2)
}

func TestFuncs(t *testing.T) {
	var added, activated []int64
	l := Funcs{
		LogAdded:  func(id int64) { added = append(added, id) },
		Activated: func(id int64) { activated = append(activated, id) },
	}

	require.NoError(t, l.HandleEvent(Event{Kind: KindLogAdded, RideID: 3}))
	require.NoError(t, l.HandleEvent(Event{Kind: KindActivated, RideID: 4}))
	require.NoError(t, l.HandleEvent(Event{Kind: KindPaused, RideID: 5}))

	assert.Equal(t, []int64{3}, added)
	assert.Equal(t, []int64{4}, activated)
}
