package repository

import (
	"context"
	"errors"

	"github.com/kursadbilgin/push-fanout/internal/domain"
	"gorm.io/gorm"
)

type EventRepository interface {
	GetByID(ctx context.Context, id string) (*domain.Event, error)
	ListAcceptedParticipantIDs(ctx context.Context, eventID string) ([]string, error)
}

type GormEventRepo struct {
	db *gorm.DB
}

func NewGormEventRepo(db *gorm.DB) *GormEventRepo {
	return &GormEventRepo{db: db}
}

func (r *GormEventRepo) GetByID(ctx context.Context, id string) (*domain.Event, error) {
	var model EventModel
	err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return eventModelToDomain(&model), nil
}

func (r *GormEventRepo) ListAcceptedParticipantIDs(ctx context.Context, eventID string) ([]string, error) {
	var ids []string
	err := r.db.WithContext(ctx).
		Model(&EventParticipantModel{}).
		Where("event_id = ? AND status = ?", eventID, domain.ParticipantStatusAccepted).
		Order("user_id ASC").
		Pluck("user_id", &ids).Error
	if err != nil {
		return nil, err
	}
	return ids, nil
}
