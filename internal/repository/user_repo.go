package repository

import (
	"context"
	"errors"

	"github.com/kursadbilgin/push-fanout/internal/domain"
	"gorm.io/gorm"
)

type UserRepository interface {
	GetByID(ctx context.Context, id string) (*domain.User, error)
	ListIDs(ctx context.Context) ([]string, error)
	ClearDeliveryToken(ctx context.Context, id string) error
}

type GormUserRepo struct {
	db *gorm.DB
}

func NewGormUserRepo(db *gorm.DB) *GormUserRepo {
	return &GormUserRepo{db: db}
}

func (r *GormUserRepo) GetByID(ctx context.Context, id string) (*domain.User, error) {
	var model UserModel
	err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return userModelToDomain(&model), nil
}

// ListIDs scans the whole users table.
func (r *GormUserRepo) ListIDs(ctx context.Context) ([]string, error) {
	var ids []string
	err := r.db.WithContext(ctx).
		Model(&UserModel{}).
		Order("id ASC").
		Pluck("id", &ids).Error
	if err != nil {
		return nil, err
	}
	return ids, nil
}

// ClearDeliveryToken nulls the stored token. Clearing an absent token or a missing user is a no-op.
func (r *GormUserRepo) ClearDeliveryToken(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).
		Model(&UserModel{}).
		Where("id = ? AND delivery_token IS NOT NULL", id).
		Update("delivery_token", nil).Error
}
