package repository

import (
	"context"
	"errors"

	"github.com/kursadbilgin/push-fanout/internal/domain"
	"gorm.io/gorm"
)

type ChatRepository interface {
	GetByID(ctx context.Context, id string) (*domain.Chat, error)
}

type GormChatRepo struct {
	db *gorm.DB
}

func NewGormChatRepo(db *gorm.DB) *GormChatRepo {
	return &GormChatRepo{db: db}
}

func (r *GormChatRepo) GetByID(ctx context.Context, id string) (*domain.Chat, error) {
	var model ChatModel
	err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return chatModelToDomain(&model), nil
}
