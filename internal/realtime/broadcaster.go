// Package realtime carries best-effort notifications (new pickups, status
// updates, collector GPS) to sockets, push devices and the event stream.
// Nothing here may fail the state mutation that triggered it.
package realtime

import (
	"context"
	"encoding/json"
	"errors"
)

const (
	EventNewPickup           = "new_pickup_available"
	EventPickupStatusUpdated = "pickup_status_updated"
	EventCollectorLocation   = "collector_location"
	EventTransactionCreated  = "transaction_created"
)

// Emitter sends one event to a fixed audience.
type Emitter interface {
	Emit(ctx context.Context, event string, payload any) error
}

// Broadcaster emits globally or to a named room (a user id or a pickup id).
type Broadcaster interface {
	Emitter
	ToRoom(room string) Emitter
}

// envelope is the wire form shared by every sink.
type envelope struct {
	Event   string `json:"event"`
	Room    string `json:"room,omitempty"`
	Payload any    `json:"payload"`
}

func encode(event, room string, payload any) ([]byte, error) {
	return json.Marshal(envelope{Event: event, Room: room, Payload: payload})
}

type roomEmitter struct {
	room string
	emit func(ctx context.Context, room, event string, payload any) error
}

func (r roomEmitter) Emit(ctx context.Context, event string, payload any) error {
	return r.emit(ctx, r.room, event, payload)
}

// Fanout delivers to every sink and joins their errors.
type Fanout []Broadcaster

func (f Fanout) Emit(ctx context.Context, event string, payload any) error {
	var errs []error
	for _, b := range f {
		if err := b.Emit(ctx, event, payload); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (f Fanout) ToRoom(room string) Emitter {
	return roomEmitter{room: room, emit: func(ctx context.Context, room, event string, payload any) error {
		var errs []error
		for _, b := range f {
			if err := b.ToRoom(room).Emit(ctx, event, payload); err != nil {
				errs = append(errs, err)
			}
		}
		return errors.Join(errs...)
	}}
}

// Nop drops everything.
type Nop struct{}

func (Nop) Emit(context.Context, string, any) error { return nil }
func (Nop) ToRoom(string) Emitter                  { return Nop{} }
