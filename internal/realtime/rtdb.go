// README: Firebase RTDB sink; mobile clients listen on /events/{event} and /rooms/{room}.
package realtime

import (
	"context"
	"time"

	"firebase.google.com/go/v4/db"
)

type RTDBSink struct {
	client *db.Client
}

func NewRTDBSink(client *db.Client) *RTDBSink {
	return &RTDBSink{client: client}
}

type rtdbEntry struct {
	Event     string `json:"event"`
	Payload   any    `json:"payload"`
	Timestamp int64  `json:"timestamp"`
}

func (s *RTDBSink) Emit(ctx context.Context, event string, payload any) error {
	_, err := s.client.NewRef("events/"+event).Push(ctx, rtdbEntry{
		Event:     event,
		Payload:   payload,
		Timestamp: time.Now().UnixMilli(),
	})
	return err
}

func (s *RTDBSink) ToRoom(room string) Emitter {
	return roomEmitter{room: room, emit: func(ctx context.Context, room, event string, payload any) error {
		_, err := s.client.NewRef("rooms/"+room+"/events").Push(ctx, rtdbEntry{
			Event:     event,
			Payload:   payload,
			Timestamp: time.Now().UnixMilli(),
		})
		return err
	}}
}
