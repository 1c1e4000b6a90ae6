package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

// RabbitMQPublisher routes triggers through the trigger exchange by kind and waits for the
// broker to confirm each one. Its channel is reused until the broker closes it.
type RabbitMQPublisher struct {
	client *RabbitMQ

	mu sync.Mutex
	ch *amqp.Channel
}

func NewRabbitMQPublisher(client *RabbitMQ) *RabbitMQPublisher {
	return &RabbitMQPublisher{client: client}
}

func (p *RabbitMQPublisher) Publish(ctx context.Context, msg TriggerMessage) error {
	if p == nil || p.client == nil {
		return fmt.Errorf("publisher is not initialized")
	}

	publishing, err := newPublishing(msg, time.Now())
	if err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	ch, err := p.confirmChannel(ctx)
	if err != nil {
		return err
	}

	confirm, err := ch.PublishWithDeferredConfirmWithContext(ctx, triggerExchangeName, msg.Kind.String(), false, false, publishing)
	if err != nil {
		p.resetChannel()
		return fmt.Errorf("failed to publish %s trigger %q: %w", msg.Kind, msg.ID, err)
	}

	acked, err := confirm.WaitContext(ctx)
	if err != nil {
		return fmt.Errorf("waiting for broker confirm of %q: %w", msg.ID, err)
	}
	if !acked {
		return fmt.Errorf("broker nacked trigger %q", msg.ID)
	}
	return nil
}

func newPublishing(msg TriggerMessage, now time.Time) (amqp.Publishing, error) {
	if err := msg.Validate(); err != nil {
		return amqp.Publishing{}, fmt.Errorf("invalid trigger message: %w", err)
	}

	body, err := json.Marshal(msg)
	if err != nil {
		return amqp.Publishing{}, fmt.Errorf("failed to marshal trigger message: %w", err)
	}

	return amqp.Publishing{
		ContentType:   "application/json",
		DeliveryMode:  amqp.Persistent,
		Timestamp:     now.UTC(),
		MessageId:     msg.ID,
		CorrelationId: msg.CorrelationID,
		Type:          msg.Kind.String(),
		Body:          body,
	}, nil
}

// confirmChannel must be called with p.mu held.
func (p *RabbitMQPublisher) confirmChannel(ctx context.Context) (*amqp.Channel, error) {
	if p.ch != nil && !p.ch.IsClosed() {
		return p.ch, nil
	}

	ch, err := p.client.channel(ctx)
	if err != nil {
		return nil, err
	}
	if err := ch.Confirm(false); err != nil {
		_ = ch.Close()
		return nil, fmt.Errorf("failed to enable publisher confirms: %w", err)
	}

	p.ch = ch
	return ch, nil
}

func (p *RabbitMQPublisher) resetChannel() {
	if p.ch != nil {
		_ = p.ch.Close()
		p.ch = nil
	}
}

func (p *RabbitMQPublisher) Close() error {
	if p == nil || p.client == nil {
		return nil
	}

	p.mu.Lock()
	p.resetChannel()
	p.mu.Unlock()

	return p.client.Close()
}
