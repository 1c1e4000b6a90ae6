package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/kursadbilgin/push-fanout/internal/domain"
	"github.com/kursadbilgin/push-fanout/internal/repository"
)

// DeliveryRecorder owns the two writes a dispatch may make: a history append on success
// and a token clear when the gateway rejects the token.
type DeliveryRecorder struct {
	records repository.DeliveryRecordRepository
	users   repository.UserRepository
	now     func() time.Time
}

func NewDeliveryRecorder(records repository.DeliveryRecordRepository, users repository.UserRepository) (*DeliveryRecorder, error) {
	if records == nil {
		return nil, fmt.Errorf("delivery record repository is required")
	}
	if users == nil {
		return nil, fmt.Errorf("user repository is required")
	}

	return &DeliveryRecorder{
		records: records,
		users:   users,
		now:     time.Now,
	}, nil
}

func (r *DeliveryRecorder) Record(ctx context.Context, recipient string, intent domain.Intent, deliveryID string) error {
	data := make(map[string]string, len(intent.Data))
	for k, v := range intent.Data {
		data[k] = v
	}

	record := &domain.DeliveryRecord{
		ID:         uuid.NewString(),
		UserID:     recipient,
		DeliveryID: deliveryID,
		Title:      intent.Title,
		Body:       intent.Body,
		Type:       intent.Type,
		Data:       data,
		Timestamp:  r.now().UTC(),
		IsRead:     false,
		ImageURL:   intent.ImageURL,
		ActionURL:  intent.ActionURL,
	}

	if err := r.records.Append(ctx, record); err != nil {
		return fmt.Errorf("failed to append delivery record: %w", err)
	}
	return nil
}

// InvalidateToken is idempotent.
func (r *DeliveryRecorder) InvalidateToken(ctx context.Context, recipient string) error {
	if err := r.users.ClearDeliveryToken(ctx, recipient); err != nil {
		return fmt.Errorf("failed to clear delivery token: %w", err)
	}
	return nil
}
