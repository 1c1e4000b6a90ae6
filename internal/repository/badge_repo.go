package repository

import (
	"context"
	"errors"

	"github.com/kursadbilgin/push-fanout/internal/domain"
	"gorm.io/gorm"
)

type BadgeRepository interface {
	GetByID(ctx context.Context, id string) (*domain.Badge, error)
}

type GormBadgeRepo struct {
	db *gorm.DB
}

func NewGormBadgeRepo(db *gorm.DB) *GormBadgeRepo {
	return &GormBadgeRepo{db: db}
}

func (r *GormBadgeRepo) GetByID(ctx context.Context, id string) (*domain.Badge, error) {
	var model BadgeModel
	err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return badgeModelToDomain(&model), nil
}
