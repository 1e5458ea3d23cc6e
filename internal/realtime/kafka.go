// README: Kafka sink; one topic per event, room used as the message key.
package realtime

import (
	"context"

	kafka "github.com/segmentio/kafka-go"
)

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
}

type KafkaSink struct {
	writer messageWriter
	prefix string
}

func NewKafkaSink(writer *kafka.Writer, topicPrefix string) *KafkaSink {
	return &KafkaSink{writer: writer, prefix: topicPrefix}
}

func (k *KafkaSink) Emit(ctx context.Context, event string, payload any) error {
	return k.write(ctx, "", event, payload)
}

func (k *KafkaSink) ToRoom(room string) Emitter {
	return roomEmitter{room: room, emit: k.write}
}

func (k *KafkaSink) write(ctx context.Context, room, event string, payload any) error {
	data, err := encode(event, room, payload)
	if err != nil {
		return err
	}
	msg := kafka.Message{Topic: k.prefix + event, Value: data}
	if room != "" {
		msg.Key = []byte(room)
	}
	return k.writer.WriteMessages(ctx, msg)
}
