package queue

import (
	"context"
	"fmt"

	"github.com/kursadbilgin/push-fanout/internal/domain"
)

// Publisher publishes a trigger message to the work queue of its kind.
type Publisher interface {
	Publish(ctx context.Context, msg TriggerMessage) error
	Close() error
}

// MessageHandler handles a consumed trigger message.
type MessageHandler func(ctx context.Context, msg TriggerMessage) error

// Consumer consumes trigger messages from a queue.
type Consumer interface {
	Consume(ctx context.Context, queue string, handler MessageHandler) error
	Close() error
}

const queuePrefix = "trigger"

// QueueName returns the work queue for a trigger kind, e.g. trigger.badge_earned.
func QueueName(kind domain.TriggerKind) string {
	return fmt.Sprintf("%s.%s", queuePrefix, kind)
}

// DLQName returns the dead-letter queue for a trigger kind, e.g. dlq.trigger.badge_earned.
func DLQName(kind domain.TriggerKind) string {
	return fmt.Sprintf("dlq.%s", QueueName(kind))
}

func WorkQueueNames() []string {
	queues := make([]string, 0, len(domain.TriggerKinds))
	for _, kind := range domain.TriggerKinds {
		queues = append(queues, QueueName(kind))
	}
	return queues
}

func DLQNames() []string {
	queues := make([]string, 0, len(domain.TriggerKinds))
	for _, kind := range domain.TriggerKinds {
		queues = append(queues, DLQName(kind))
	}
	return queues
}
