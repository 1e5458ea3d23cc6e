// README: Kafka writer for the pickup domain event stream.
package infra

import (
	"time"

	kafka "github.com/segmentio/kafka-go"
)

// NewKafkaWriter returns a writer without a fixed topic; each message names its own.
func NewKafkaWriter(brokers []string) *kafka.Writer {
	return &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireOne,
		BatchTimeout:           50 * time.Millisecond,
		AllowAutoTopicCreation: true,
	}
}
