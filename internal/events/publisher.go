package events

import (
	"fmt"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/message/router/middleware"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"

	"work-item-svc/internal/models"
)

// Publisher fans a single outbox event out to the durable bus and the
// in-process channel. Both sinks receive the same payload with the
// correlation id attached as message metadata.
type Publisher struct {
	durable message.Publisher
	local   message.Publisher
}

// NewPublisher wires the two sinks. Both are plain Watermill publishers so
// tests can substitute in-memory ones.
func NewPublisher(durable, local message.Publisher) *Publisher {
	return &Publisher{durable: durable, local: local}
}

// NewLocalBus returns the in-process pub/sub channel. Subscribers register
// against it explicitly; there is no ambient global emitter.
func NewLocalBus(logger watermill.LoggerAdapter) *gochannel.GoChannel {
	return gochannel.NewGoChannel(gochannel.Config{OutputChannelBuffer: 64}, logger)
}

// Publish delivers the event to both sinks. The durable bus is attempted
// first; a failure on either sink fails the whole delivery so the dispatcher
// retries it.
func (p *Publisher) Publish(event models.OutboxEvent) error {
	if err := p.durable.Publish(event.Topic, newMessage(event)); err != nil {
		return fmt.Errorf("durable publish failed: %w", err)
	}
	if err := p.local.Publish(event.Topic, newMessage(event)); err != nil {
		return fmt.Errorf("local publish failed: %w", err)
	}
	return nil
}

// Close closes both sinks.
func (p *Publisher) Close() error {
	if err := p.durable.Close(); err != nil {
		return err
	}
	return p.local.Close()
}

// LogSubscriber drains an in-process subscription, logging and acking each
// delivery. serve registers it as the default local listener.
func LogSubscriber(msgs <-chan *message.Message, logf func(format string, args ...interface{})) {
	for msg := range msgs {
		logf("local event %s correlation_id=%s", msg.UUID, middleware.MessageCorrelationID(msg))
		msg.Ack()
	}
}

func newMessage(event models.OutboxEvent) *message.Message {
	msg := message.NewMessage(event.ID.String(), event.Payload)
	middleware.SetCorrelationID(event.CorrelationID, msg)
	return msg
}
