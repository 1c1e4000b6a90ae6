package service

import (
	"context"
	"errors"
	"sort"
	"testing"
	"time"

	"github.com/kursadbilgin/push-fanout/internal/queue"
	"go.uber.org/zap"
)

func noopHandler(ctx context.Context, msg queue.TriggerMessage) error { return nil }

func TestTriggerWorkerConsumesEveryQueue(t *testing.T) {
	t.Parallel()

	consumer := &fakeConsumer{}
	worker, err := NewTriggerWorker(consumer, noopHandler, zap.NewNop())
	if err != nil {
		t.Fatalf("NewTriggerWorker() error = %v", err)
	}

	if err := worker.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	got := append([]string(nil), consumer.queues...)
	sort.Strings(got)
	want := queue.WorkQueueNames()
	sort.Strings(want)

	if len(got) != len(want) {
		t.Fatalf("consumed queues = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("consumed queues = %v, want %v", got, want)
		}
	}
}

func TestTriggerWorkerStopsOnConsumerError(t *testing.T) {
	t.Parallel()

	consumeErr := errors.New("channel closed")
	consumer := &fakeConsumer{
		consumeFn: func(ctx context.Context, queueName string, handler queue.MessageHandler) error {
			if queueName == queue.WorkQueueNames()[0] {
				return consumeErr
			}
			<-ctx.Done()
			return nil
		},
	}

	worker, err := NewTriggerWorker(consumer, noopHandler, zap.NewNop())
	if err != nil {
		t.Fatalf("NewTriggerWorker() error = %v", err)
	}

	done := make(chan error, 1)
	go func() { done <- worker.Start(context.Background()) }()

	select {
	case err := <-done:
		if !errors.Is(err, consumeErr) {
			t.Fatalf("Start() error = %v, want %v", err, consumeErr)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Start() did not return after consumer failure")
	}
}

func TestTriggerWorkerStopsOnCancel(t *testing.T) {
	t.Parallel()

	consumer := &fakeConsumer{
		consumeFn: func(ctx context.Context, queueName string, handler queue.MessageHandler) error {
			<-ctx.Done()
			return nil
		},
	}
	worker, err := NewTriggerWorker(consumer, noopHandler, nil)
	if err != nil {
		t.Fatalf("NewTriggerWorker() error = %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- worker.Start(ctx) }()
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Start() error = %v, want nil", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Start() did not return after cancel")
	}
}

func TestNewTriggerWorkerRequiresDependencies(t *testing.T) {
	t.Parallel()

	if _, err := NewTriggerWorker(nil, noopHandler, nil); err == nil {
		t.Fatal("expected error for nil consumer")
	}
	if _, err := NewTriggerWorker(&fakeConsumer{}, nil, nil); err == nil {
		t.Fatal("expected error for nil handler")
	}
}
