package pubsub

import (
	"context"
	"errors"
	"fmt"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"

	"github.com/webitel/im-presence-service/internal/domain/event"
	"github.com/webitel/im-presence-service/internal/service"
)

var ErrNilEvent = errors.New("event dispatcher: cannot publish nil event")

// EventDispatcher is the bus side of presence notifications.
type EventDispatcher interface {
	service.Exporter
	Publisher() message.Publisher
}

type eventDispatcher struct {
	publisher message.Publisher
}

func NewEventDispatcher(pub message.Publisher) EventDispatcher {
	return &eventDispatcher{publisher: pub}
}

// Export publishes exportable events under their routing key and ignores the rest.
func (d *eventDispatcher) Export(ctx context.Context, ev event.Eventer) error {
	if ev == nil {
		return ErrNilEvent
	}
	exp, ok := ev.(event.Exportable)
	if !ok || exp.GetRoutingKey() == "" {
		return nil
	}

	// Same bytes the sockets receive.
	payload, err := event.Marshal(ev)
	if err != nil {
		return fmt.Errorf("event dispatcher: marshal failure: %w", err)
	}

	topic := exp.GetRoutingKey()
	msg := message.NewMessage(watermill.NewUUID(), payload)
	msg.Metadata.Set("routing_key", topic)
	msg.Metadata.Set("event_id", ev.GetID())
	msg.SetContext(ctx)

	if err := d.publisher.Publish(topic, msg); err != nil {
		return fmt.Errorf("event dispatcher: failed to publish to topic %s: %w", topic, err)
	}
	return nil
}

func (d *eventDispatcher) Publisher() message.Publisher {
	return d.publisher
}
