package testutil

import (
	"context"
	"sync"

	"github.com/spec-kit/support-desk/internal/events"
)

// EventRecorder subscribes to a dispatcher and keeps every event it sees.
type EventRecorder struct {
	mu     sync.Mutex
	events []events.Event
}

// RecordAll subscribes the recorder to the given event types.
func RecordAll(d events.Dispatcher, types ...events.EventType) *EventRecorder {
	r := &EventRecorder{}
	for _, t := range types {
		d.Subscribe(t, r.handle)
	}
	return r
}

func (r *EventRecorder) handle(_ context.Context, e events.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
	return nil
}

// Events returns a copy of the recorded events.
func (r *EventRecorder) Events() []events.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]events.Event(nil), r.events...)
}
