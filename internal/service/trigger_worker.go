package service

import (
	"context"
	"fmt"

	"github.com/kursadbilgin/push-fanout/internal/domain"
	"github.com/kursadbilgin/push-fanout/internal/queue"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// TriggerWorker runs one consumer per trigger queue and feeds messages to a handler.
type TriggerWorker struct {
	consumer queue.Consumer
	handler  queue.MessageHandler
	kinds    []domain.TriggerKind
	logger   *zap.Logger
}

func NewTriggerWorker(consumer queue.Consumer, handler queue.MessageHandler, logger *zap.Logger) (*TriggerWorker, error) {
	if consumer == nil {
		return nil, fmt.Errorf("consumer is required")
	}
	if handler == nil {
		return nil, fmt.Errorf("message handler is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &TriggerWorker{
		consumer: consumer,
		handler:  handler,
		kinds:    domain.TriggerKinds,
		logger:   logger,
	}, nil
}

// Start blocks until ctx is canceled or a consumer fails.
func (w *TriggerWorker) Start(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if len(w.kinds) == 0 {
		return fmt.Errorf("no trigger kinds configured")
	}

	g, groupCtx := errgroup.WithContext(ctx)
	for _, kind := range w.kinds {
		queueName := queue.QueueName(kind)

		g.Go(func() error {
			w.logger.Info("trigger consumer started", zap.String("queue", queueName))

			if err := w.consumer.Consume(groupCtx, queueName, w.handler); err != nil {
				w.logger.Error("trigger consumer stopped with error",
					zap.String("queue", queueName),
					zap.Error(err),
				)
				return fmt.Errorf("consume %s: %w", queueName, err)
			}

			w.logger.Info("trigger consumer stopped", zap.String("queue", queueName))
			return nil
		})
	}

	return g.Wait()
}
