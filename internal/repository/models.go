package repository

import (
	"time"

	"github.com/kursadbilgin/push-fanout/internal/domain"
)

// UserModel is the persistence model for the users table.
type UserModel struct {
	ID                    string          `gorm:"type:varchar(128);primaryKey"`
	DisplayName           string          `gorm:"type:varchar(255);not null;default:''"`
	DeliveryToken         *string         `gorm:"type:text"`
	NotificationsEnabled  bool            `gorm:"not null;default:false"`
	NotificationOverrides map[string]bool `gorm:"type:jsonb;serializer:json"`
	CreatedAt             time.Time
	UpdatedAt             time.Time
}

func (UserModel) TableName() string {
	return "users"
}

// ChatModel is the persistence model for chats.
type ChatModel struct {
	ID           string   `gorm:"type:varchar(128);primaryKey"`
	Participants []string `gorm:"type:jsonb;serializer:json;not null"`
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

func (ChatModel) TableName() string {
	return "chats"
}

// EventModel is the persistence model for events.
type EventModel struct {
	ID          string    `gorm:"type:varchar(128);primaryKey"`
	Title       string    `gorm:"type:varchar(255);not null"`
	Description string    `gorm:"type:text;not null;default:''"`
	Datetime    time.Time `gorm:"type:timestamptz"`
	Location    string    `gorm:"type:varchar(255);not null;default:''"`
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

func (EventModel) TableName() string {
	return "events"
}

// EventParticipantModel is the persistence model for event_participants.
type EventParticipantModel struct {
	EventID   string `gorm:"type:varchar(128);primaryKey"`
	UserID    string `gorm:"type:varchar(128);primaryKey"`
	Status    string `gorm:"type:varchar(20);not null"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (EventParticipantModel) TableName() string {
	return "event_participants"
}

// BadgeModel is the persistence model for badges.
type BadgeModel struct {
	ID        string `gorm:"type:varchar(128);primaryKey"`
	Name      string `gorm:"type:varchar(255);not null"`
	CreatedAt time.Time
}

func (BadgeModel) TableName() string {
	return "badges"
}

// DeliveryRecordModel is the persistence model for delivery_records.
type DeliveryRecordModel struct {
	ID         string            `gorm:"type:uuid;primaryKey"`
	UserID     string            `gorm:"type:varchar(128);not null"`
	DeliveryID string            `gorm:"type:varchar(255);not null"`
	Title      string            `gorm:"type:varchar(255);not null"`
	Body       string            `gorm:"type:text;not null"`
	Type       string            `gorm:"type:varchar(32);not null"`
	Data       map[string]string `gorm:"type:jsonb;serializer:json"`
	Timestamp  time.Time         `gorm:"type:timestamptz;not null"`
	IsRead     bool              `gorm:"not null;default:false"`
	ImageURL   *string           `gorm:"type:text"`
	ActionURL  *string           `gorm:"type:text"`
}

func (DeliveryRecordModel) TableName() string {
	return "delivery_records"
}

func userModelToDomain(m *UserModel) *domain.User {
	if m == nil {
		return nil
	}

	overrides := make(map[domain.NotificationType]bool, len(m.NotificationOverrides))
	for key, enabled := range m.NotificationOverrides {
		notificationType, err := domain.ParseNotificationType(key)
		if err != nil {
			// Stale or foreign keys never suppress delivery.
			continue
		}
		overrides[notificationType] = enabled
	}

	return &domain.User{
		ID:            m.ID,
		DisplayName:   m.DisplayName,
		DeliveryToken: m.DeliveryToken,
		Enabled:       m.NotificationsEnabled,
		Overrides:     overrides,
	}
}

func chatModelToDomain(m *ChatModel) *domain.Chat {
	if m == nil {
		return nil
	}

	participants := make([]string, len(m.Participants))
	copy(participants, m.Participants)

	return &domain.Chat{
		ID:           m.ID,
		Participants: participants,
	}
}

func eventModelToDomain(m *EventModel) *domain.Event {
	if m == nil {
		return nil
	}

	return &domain.Event{
		ID:          m.ID,
		Title:       m.Title,
		Description: m.Description,
		Datetime:    m.Datetime,
		Location:    m.Location,
	}
}

func badgeModelToDomain(m *BadgeModel) *domain.Badge {
	if m == nil {
		return nil
	}

	return &domain.Badge{
		ID:   m.ID,
		Name: m.Name,
	}
}

func deliveryRecordModelFromDomain(r *domain.DeliveryRecord) *DeliveryRecordModel {
	if r == nil {
		return nil
	}

	return &DeliveryRecordModel{
		ID:         r.ID,
		UserID:     r.UserID,
		DeliveryID: r.DeliveryID,
		Title:      r.Title,
		Body:       r.Body,
		Type:       r.Type.String(),
		Data:       r.Data,
		Timestamp:  r.Timestamp,
		IsRead:     r.IsRead,
		ImageURL:   r.ImageURL,
		ActionURL:  r.ActionURL,
	}
}

func deliveryRecordModelToDomain(m *DeliveryRecordModel) *domain.DeliveryRecord {
	if m == nil {
		return nil
	}

	return &domain.DeliveryRecord{
		ID:         m.ID,
		UserID:     m.UserID,
		DeliveryID: m.DeliveryID,
		Title:      m.Title,
		Body:       m.Body,
		Type:       domain.NotificationType(m.Type),
		Data:       m.Data,
		Timestamp:  m.Timestamp,
		IsRead:     m.IsRead,
		ImageURL:   m.ImageURL,
		ActionURL:  m.ActionURL,
	}
}
