package repository

import (
	"context"

	"github.com/kursadbilgin/push-fanout/internal/domain"
	"gorm.io/gorm"
)

const defaultHistoryLimit = 50

type DeliveryRecordRepository interface {
	Append(ctx context.Context, record *domain.DeliveryRecord) error
	ListByUser(ctx context.Context, userID string, limit int) ([]domain.DeliveryRecord, error)
}

type GormDeliveryRecordRepo struct {
	db *gorm.DB
}

func NewGormDeliveryRecordRepo(db *gorm.DB) *GormDeliveryRecordRepo {
	return &GormDeliveryRecordRepo{db: db}
}

// Append inserts a history row; records are never updated afterwards.
func (r *GormDeliveryRecordRepo) Append(ctx context.Context, record *domain.DeliveryRecord) error {
	model := deliveryRecordModelFromDomain(record)
	if err := r.db.WithContext(ctx).Create(model).Error; err != nil {
		return err
	}
	if record != nil {
		*record = *deliveryRecordModelToDomain(model)
	}
	return nil
}

func (r *GormDeliveryRecordRepo) ListByUser(ctx context.Context, userID string, limit int) ([]domain.DeliveryRecord, error) {
	if limit < 1 {
		limit = defaultHistoryLimit
	}

	var models []DeliveryRecordModel
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("timestamp DESC").
		Limit(limit).
		Find(&models).Error
	if err != nil {
		return nil, err
	}

	records := make([]domain.DeliveryRecord, 0, len(models))
	for i := range models {
		records = append(records, *deliveryRecordModelToDomain(&models[i]))
	}

	return records, nil
}
