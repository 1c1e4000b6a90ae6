package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

type RabbitMQConsumer struct {
	client   *RabbitMQ
	prefetch int
	logger   *zap.Logger
}

func NewRabbitMQConsumer(client *RabbitMQ, prefetch int, logger *zap.Logger) *RabbitMQConsumer {
	if logger == nil {
		logger = zap.NewNop()
	}

	return &RabbitMQConsumer{
		client:   client,
		prefetch: max(prefetch, 1),
		logger:   logger,
	}
}

// Consume blocks until ctx is done, resubscribing with backoff whenever the channel drops.
func (c *RabbitMQConsumer) Consume(ctx context.Context, queue string, handler MessageHandler) error {
	if c == nil || c.client == nil {
		return fmt.Errorf("consumer is not initialized")
	}
	if queue == "" {
		return fmt.Errorf("queue name is required")
	}
	if handler == nil {
		return fmt.Errorf("message handler is required")
	}

	backoff := reconnectBackoff
	for ctx.Err() == nil {
		started := time.Now()
		err := c.subscribe(ctx, queue, handler)
		if ctx.Err() != nil {
			break
		}
		// A subscription that lived for a while earns a fresh backoff.
		if time.Since(started) > maxBackoff {
			backoff = reconnectBackoff
		}

		c.logger.Warn("trigger subscription lost",
			zap.String("queue", queue),
			zap.Duration("backoff", backoff),
			zap.Error(err),
		)

		select {
		case <-ctx.Done():
		case <-time.After(backoff):
		}
		backoff = min(backoff*2, maxBackoff)
	}
	return nil
}

func (c *RabbitMQConsumer) subscribe(ctx context.Context, queue string, handler MessageHandler) error {
	ch, err := c.client.channel(ctx)
	if err != nil {
		return err
	}
	defer ch.Close() //nolint:errcheck

	if err := ch.Qos(c.prefetch, 0, false); err != nil {
		return fmt.Errorf("failed to set qos: %w", err)
	}

	deliveries, err := ch.ConsumeWithContext(ctx, queue, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("failed to consume queue %q: %w", queue, err)
	}
	closed := ch.NotifyClose(make(chan *amqp.Error, 1))

	for {
		select {
		case <-ctx.Done():
			return nil
		case amqpErr := <-closed:
			if amqpErr == nil {
				return fmt.Errorf("channel closed")
			}
			return fmt.Errorf("channel closed: %w", amqpErr)
		case d, ok := <-deliveries:
			if !ok {
				return fmt.Errorf("delivery stream ended")
			}
			if err := c.handleDelivery(ctx, d, handler); err != nil {
				return err
			}
		}
	}
}

// handleDelivery never requeues. Undecodable deliveries and handler errors are dead-lettered;
// everything else is acked once the handler returns. The handler runs on a context that keeps
// ctx's values but not its cancellation.
func (c *RabbitMQConsumer) handleDelivery(ctx context.Context, d amqp.Delivery, handler MessageHandler) error {
	msg, err := decodeDelivery(d)
	if err != nil {
		c.logger.Warn("dead-lettering trigger: undecodable delivery",
			zap.String("routingKey", d.RoutingKey),
			zap.String("messageId", d.MessageId),
			zap.Error(err),
		)
		return settle(d, false)
	}

	// Shutdown stops the next delivery, not this one: the fan-out settles and is acked.
	if err := handler(context.WithoutCancel(ctx), msg); err != nil {
		c.logger.Warn("dead-lettering trigger: handler failed",
			zap.String("triggerId", msg.ID),
			zap.String("kind", msg.Kind.String()),
			zap.Error(err),
		)
		return settle(d, false)
	}

	return settle(d, true)
}

// decodeDelivery parses and validates the envelope. The AMQP correlation id fills in a missing
// body one, and a Type header that disagrees with the body kind is refused.
func decodeDelivery(d amqp.Delivery) (TriggerMessage, error) {
	var msg TriggerMessage
	if err := json.Unmarshal(d.Body, &msg); err != nil {
		return TriggerMessage{}, fmt.Errorf("invalid JSON: %w", err)
	}
	if msg.CorrelationID == "" {
		msg.CorrelationID = d.CorrelationId
	}
	if err := msg.Validate(); err != nil {
		return TriggerMessage{}, err
	}
	if d.Type != "" && d.Type != msg.Kind.String() {
		return TriggerMessage{}, fmt.Errorf("type header %q does not match kind %q", d.Type, msg.Kind)
	}
	return msg, nil
}

func settle(d amqp.Delivery, ack bool) error {
	if ack {
		if err := d.Ack(false); err != nil {
			return fmt.Errorf("failed to ack delivery %d: %w", d.DeliveryTag, err)
		}
		return nil
	}
	if err := d.Reject(false); err != nil {
		return fmt.Errorf("failed to reject delivery %d: %w", d.DeliveryTag, err)
	}
	return nil
}

func (c *RabbitMQConsumer) Close() error {
	if c == nil || c.client == nil {
		return nil
	}
	return c.client.Close()
}
