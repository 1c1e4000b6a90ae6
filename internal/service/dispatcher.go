package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/kursadbilgin/push-fanout/internal/domain"
	"github.com/kursadbilgin/push-fanout/internal/gateway"
	"github.com/kursadbilgin/push-fanout/internal/observability"
	"github.com/kursadbilgin/push-fanout/internal/repository"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Dispatcher fans one intent out to a set of recipients. Each recipient is
// dispatched independently; Dispatch returns once every dispatch has settled.
type Dispatcher struct {
	users       repository.UserRepository
	gateway     gateway.Gateway
	composer    *PayloadComposer
	recorder    *DeliveryRecorder
	logger      *zap.Logger
	metrics     *observability.Metrics
	concurrency int
	now         func() time.Time
}

func NewDispatcher(
	users repository.UserRepository,
	gw gateway.Gateway,
	composer *PayloadComposer,
	recorder *DeliveryRecorder,
	concurrency int,
	logger *zap.Logger,
) (*Dispatcher, error) {
	if users == nil {
		return nil, fmt.Errorf("user repository is required")
	}
	if gw == nil {
		return nil, fmt.Errorf("gateway is required")
	}
	if recorder == nil {
		return nil, fmt.Errorf("delivery recorder is required")
	}
	if composer == nil {
		composer = NewPayloadComposer("")
	}
	if concurrency < 0 {
		concurrency = 0
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Dispatcher{
		users:       users,
		gateway:     gw,
		composer:    composer,
		recorder:    recorder,
		logger:      logger,
		concurrency: concurrency,
		now:         time.Now,
	}, nil
}

func (d *Dispatcher) SetMetrics(metrics *observability.Metrics) {
	if d == nil {
		return
	}
	d.metrics = metrics
}

// Dispatch returns one outcome per unique, non-blank recipient in input order.
// An intent that fails Validate yields a failed outcome for every recipient.
// A plain errgroup.Group is used so no failure cancels its siblings.
func (d *Dispatcher) Dispatch(ctx context.Context, recipients []string, intent domain.Intent) []domain.Outcome {
	unique := uniqueRecipients(recipients)
	outcomes := make([]domain.Outcome, len(unique))

	d.metrics.ObserveFanoutSize(intent.Type.String(), len(unique))
	if len(unique) == 0 {
		return outcomes
	}

	// An unroutable intent fails every recipient without touching the store or the gateway.
	if err := intent.Validate(); err != nil {
		for i, recipient := range unique {
			outcomes[i] = domain.Outcome{Recipient: recipient, Status: domain.OutcomeFailed, Err: err}
			d.observe(ctx, intent.Type, outcomes[i])
		}
		return outcomes
	}

	var g errgroup.Group
	if d.concurrency > 0 {
		g.SetLimit(d.concurrency)
	}

	for i, recipient := range unique {
		g.Go(func() error {
			outcomes[i] = d.dispatchOne(ctx, recipient, intent)
			return nil
		})
	}
	_ = g.Wait()

	return outcomes
}

func (d *Dispatcher) dispatchOne(ctx context.Context, recipient string, intent domain.Intent) (outcome domain.Outcome) {
	outcome = domain.Outcome{Recipient: recipient}

	defer func() {
		if r := recover(); r != nil {
			outcome.Status = domain.OutcomeFailed
			outcome.Err = fmt.Errorf("dispatch panicked: %v", r)
		}
		d.observe(ctx, intent.Type, outcome)
	}()

	user, err := d.users.GetByID(ctx, recipient)
	if errors.Is(err, domain.ErrNotFound) {
		return skipped(recipient, domain.SkipUserNotFound)
	}
	if err != nil {
		outcome.Status = domain.OutcomeFailed
		outcome.Err = fmt.Errorf("failed to load profile: %w", err)
		return outcome
	}

	profile := user.Profile()
	if !Allows(profile, intent.Type) {
		return skipped(recipient, gate(profile, intent.Type))
	}

	payload := d.composer.Compose(intent)

	start := d.now()
	deliveryID, sendErr := d.gateway.Send(ctx, *profile.DeliveryToken, payload)
	d.metrics.ObserveGatewaySendDuration(intent.Type.String(), d.now().Sub(start))

	if sendErr != nil {
		outcome.Status = domain.OutcomeFailed
		outcome.Err = sendErr

		if gateway.IsInvalidToken(sendErr) {
			if err := d.recorder.InvalidateToken(ctx, recipient); err != nil {
				outcome.Err = errors.Join(sendErr, err)
			} else {
				outcome.TokenInvalidated = true
			}
		}
		return outcome
	}

	outcome.DeliveryID = deliveryID
	if err := d.recorder.Record(ctx, recipient, intent, deliveryID); err != nil {
		outcome.Status = domain.OutcomeFailed
		outcome.Err = err
		return outcome
	}

	outcome.Status = domain.OutcomeSent
	return outcome
}

func (d *Dispatcher) observe(ctx context.Context, t domain.NotificationType, outcome domain.Outcome) {
	logger := observability.WithContextLogger(d.logger, ctx).With(
		zap.String("recipient", outcome.Recipient),
		zap.String("type", t.String()),
		zap.String("status", outcome.Status.String()),
	)

	reason := string(outcome.SkipReason)
	switch outcome.Status {
	case domain.OutcomeSent:
		logger.Info("notification sent", zap.String("deliveryId", outcome.DeliveryID))
	case domain.OutcomeSkipped:
		logger.Info("notification skipped", zap.String("reason", reason))
	default:
		reason = failureReason(outcome.Err)
		logger.Warn("notification failed",
			zap.String("reason", reason),
			zap.Bool("tokenInvalidated", outcome.TokenInvalidated),
			zap.Error(outcome.Err),
		)
	}

	d.metrics.IncDispatchOutcome(t.String(), outcome.Status.String(), reason)
	if outcome.TokenInvalidated {
		d.metrics.IncTokenInvalidated(t.String())
	}
}

func failureReason(err error) string {
	switch {
	case gateway.IsInvalidToken(err):
		return "invalid_token"
	case gateway.IsTransient(err):
		return "transient"
	default:
		return "error"
	}
}

func skipped(recipient string, reason domain.SkipReason) domain.Outcome {
	return domain.Outcome{
		Recipient:  recipient,
		Status:     domain.OutcomeSkipped,
		SkipReason: reason,
	}
}

func uniqueRecipients(recipients []string) []string {
	seen := make(map[string]struct{}, len(recipients))
	unique := make([]string, 0, len(recipients))
	for _, r := range recipients {
		id := strings.TrimSpace(r)
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		unique = append(unique, id)
	}
	return unique
}
