package realtime

import (
	"context"
	"sync"
)

// Recorded is one captured emission. Room is empty for global emits.
type Recorded struct {
	Room    string
	Event   string
	Payload any
}

// Recorder captures emissions in memory; tests substitute it for the real sinks.
type Recorder struct {
	mu     sync.Mutex
	events []Recorded
	Err    error
}

func (r *Recorder) Emit(_ context.Context, event string, payload any) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, Recorded{Event: event, Payload: payload})
	return r.Err
}

func (r *Recorder) ToRoom(room string) Emitter {
	return roomEmitter{room: room, emit: func(_ context.Context, room, event string, payload any) error {
		r.mu.Lock()
		defer r.mu.Unlock()
		r.events = append(r.events, Recorded{Room: room, Event: event, Payload: payload})
		return r.Err
	}}
}

func (r *Recorder) Events() []Recorded {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Recorded, len(r.events))
	copy(out, r.events)
	return out
}

// Named returns the captured emissions for one event name.
func (r *Recorder) Named(event string) []Recorded {
	var out []Recorded
	for _, e := range r.Events() {
		if e.Event == event {
			out = append(out, e)
		}
	}
	return out
}
