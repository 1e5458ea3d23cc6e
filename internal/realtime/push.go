// README: FCM sink; rooms that resolve to a device token get a data push, global emits go to a topic.
package realtime

import (
	"context"
	"fmt"

	"firebase.google.com/go/v4/messaging"
)

// DeviceTokens resolves a room (a user id) to an FCM registration token.
// An empty token with nil error means the room is not a push target.
type DeviceTokens interface {
	DeviceToken(ctx context.Context, userID string) (string, error)
}

type fcmSender interface {
	Send(ctx context.Context, message *messaging.Message) (string, error)
}

type PushSink struct {
	client fcmSender
	tokens DeviceTokens
}

func NewPushSink(client *messaging.Client, tokens DeviceTokens) *PushSink {
	return &PushSink{client: client, tokens: tokens}
}

func (p *PushSink) Emit(ctx context.Context, event string, payload any) error {
	data, err := encode(event, "", payload)
	if err != nil {
		return err
	}
	_, err = p.client.Send(ctx, &messaging.Message{
		Topic: event,
		Data:  map[string]string{"type": event, "body": string(data)},
	})
	return err
}

func (p *PushSink) ToRoom(room string) Emitter {
	return roomEmitter{room: room, emit: p.sendToRoom}
}

func (p *PushSink) sendToRoom(ctx context.Context, room, event string, payload any) error {
	token, err := p.tokens.DeviceToken(ctx, room)
	if err != nil {
		return fmt.Errorf("resolve device token for %s: %w", room, err)
	}
	if token == "" {
		return nil
	}
	data, err := encode(event, room, payload)
	if err != nil {
		return err
	}
	msg := &messaging.Message{
		Token: token,
		Data:  map[string]string{"type": event, "body": string(data)},
		Android: &messaging.AndroidConfig{
			Priority: "high",
		},
	}
	if event == EventNewPickup {
		msg.Notification = &messaging.Notification{
			Title: "New pickup nearby",
			Body:  "A citizen near you requested a waste pickup",
		}
	}
	if _, err := p.client.Send(ctx, msg); err != nil {
		return fmt.Errorf("sending FCM to %s: %w", room, err)
	}
	return nil
}
