// README: Async, failure-isolated dispatch of notifications after a committed mutation.
package realtime

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"wastelink/internal/metrics"
)

const deliveryTimeout = 10 * time.Second

// Message addresses one event to a set of rooms and optionally to everyone.
type Message struct {
	Event   string
	Payload any
	Rooms   []string
	Global  bool
}

// Notifier dispatches messages on background goroutines. Delivery errors and
// panics are logged and counted, never returned.
type Notifier struct {
	out    Broadcaster
	logger *logrus.Logger
	wg     sync.WaitGroup
}

func NewNotifier(out Broadcaster, logger *logrus.Logger) *Notifier {
	if out == nil {
		out = Nop{}
	}
	return &Notifier{out: out, logger: logger}
}

// Publish returns immediately. The request context is detached so a finished
// HTTP request does not cancel delivery.
func (n *Notifier) Publish(ctx context.Context, msg Message) {
	n.wg.Add(1)
	go func() {
		defer n.wg.Done()
		defer func() {
			if r := recover(); r != nil {
				n.fail(msg, "panic", fmt.Errorf("panic: %v", r))
			}
		}()
		dctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), deliveryTimeout)
		defer cancel()

		if msg.Global {
			if err := n.out.Emit(dctx, msg.Event, msg.Payload); err != nil {
				n.fail(msg, "global", err)
			}
		}
		for _, room := range msg.Rooms {
			if room == "" {
				continue
			}
			if err := n.out.ToRoom(room).Emit(dctx, msg.Event, msg.Payload); err != nil {
				n.fail(msg, "room", err)
			}
		}
	}()
}

// Wait blocks until every in-flight Publish has finished.
func (n *Notifier) Wait() {
	n.wg.Wait()
}

func (n *Notifier) fail(msg Message, sink string, err error) {
	metrics.NotificationsFailed.WithLabelValues(sink).Inc()
	if n.logger != nil {
		n.logger.WithFields(logrus.Fields{"event": msg.Event, "sink": sink}).WithError(err).Warn("notification dropped")
	}
}
