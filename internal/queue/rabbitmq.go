package queue

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/kursadbilgin/push-fanout/internal/domain"
	amqp "github.com/rabbitmq/amqp091-go"
)

const (
	triggerExchangeName = "trigger.events"
	dlxExchangeName     = "trigger.dlx"
	dialTimeout         = 15 * time.Second
	reconnectBackoff    = time.Second
	maxBackoff          = 30 * time.Second
)

// RabbitMQ owns the single broker connection of a process. The trigger topology is declared
// once per connection; callers open their own channels on top of it.
type RabbitMQ struct {
	url  string
	dial func(url string) (*amqp.Connection, error)

	mu   sync.Mutex
	conn *amqp.Connection
}

func NewRabbitMQ(url string) (*RabbitMQ, error) {
	if strings.TrimSpace(url) == "" {
		return nil, fmt.Errorf("rabbitmq url is required")
	}

	r := &RabbitMQ{url: url, dial: amqp.Dial}

	ctx, cancel := context.WithTimeout(context.Background(), dialTimeout)
	defer cancel()

	if _, err := r.connection(ctx); err != nil {
		return nil, err
	}
	return r, nil
}

func (r *RabbitMQ) Close() error {
	r.mu.Lock()
	conn := r.conn
	r.conn = nil
	r.mu.Unlock()

	if conn == nil || conn.IsClosed() {
		return nil
	}
	return conn.Close()
}

// Ping reports whether the broker is reachable, redialing if the connection dropped.
func (r *RabbitMQ) Ping(ctx context.Context) error {
	_, err := r.connection(ctx)
	return err
}

func (r *RabbitMQ) channel(ctx context.Context) (*amqp.Channel, error) {
	conn, err := r.connection(ctx)
	if err != nil {
		return nil, err
	}

	ch, err := conn.Channel()
	if err == nil {
		return ch, nil
	}

	// The connection can close between the liveness check and Channel(); redial once.
	r.drop(conn)
	if conn, err = r.connection(ctx); err != nil {
		return nil, err
	}
	if ch, err = conn.Channel(); err != nil {
		return nil, fmt.Errorf("failed to open rabbitmq channel: %w", err)
	}
	return ch, nil
}

// connection returns a live connection, dialing with exponential backoff until ctx is done.
func (r *RabbitMQ) connection(ctx context.Context) (*amqp.Connection, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.conn != nil && !r.conn.IsClosed() {
		return r.conn, nil
	}

	wait := reconnectBackoff
	for {
		conn, err := r.dial(r.url)
		if err == nil {
			if err = declareTopology(conn); err == nil {
				r.conn = conn
				return conn, nil
			}
			_ = conn.Close()
			return nil, err
		}

		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("rabbitmq connect canceled (last error: %v): %w", err, ctx.Err())
		case <-time.After(wait):
		}

		wait = min(wait*2, maxBackoff)
	}
}

func (r *RabbitMQ) drop(conn *amqp.Connection) {
	r.mu.Lock()
	if r.conn == conn {
		r.conn = nil
	}
	r.mu.Unlock()
	_ = conn.Close()
}

// declareTopology binds one durable work queue per trigger kind to the trigger exchange.
// Rejected deliveries dead-letter to dlq.trigger.<kind> through the dlx.
func declareTopology(conn *amqp.Connection) error {
	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("failed to open topology channel: %w", err)
	}
	defer ch.Close() //nolint:errcheck

	for _, exchange := range []string{triggerExchangeName, dlxExchangeName} {
		if err := ch.ExchangeDeclare(exchange, amqp.ExchangeDirect, true, false, false, false, nil); err != nil {
			return fmt.Errorf("failed to declare exchange %q: %w", exchange, err)
		}
	}

	for _, kind := range domain.TriggerKinds {
		if err := declareQueue(ch, DLQName(kind), dlxExchangeName, kind, nil); err != nil {
			return err
		}
		if err := declareQueue(ch, QueueName(kind), triggerExchangeName, kind, queueArgs(kind)); err != nil {
			return err
		}
	}
	return nil
}

func declareQueue(ch *amqp.Channel, name, exchange string, kind domain.TriggerKind, args amqp.Table) error {
	if _, err := ch.QueueDeclare(name, true, false, false, false, args); err != nil {
		return fmt.Errorf("failed to declare queue %q: %w", name, err)
	}
	if err := ch.QueueBind(name, kind.String(), exchange, false, nil); err != nil {
		return fmt.Errorf("failed to bind queue %q to %q: %w", name, exchange, err)
	}
	return nil
}

func queueArgs(kind domain.TriggerKind) amqp.Table {
	return amqp.Table{
		"x-dead-letter-exchange":    dlxExchangeName,
		"x-dead-letter-routing-key": kind.String(),
	}
}
