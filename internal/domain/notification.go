package domain

import (
	"fmt"
	"strings"
	"time"
)

// NotificationType identifies the kind of notification and keys per-type preferences.
type NotificationType string

const (
	TypeNewMessage         NotificationType = "new_message"
	TypeEventInvitation    NotificationType = "event_invitation"
	TypeBadgeEarned        NotificationType = "badge_earned"
	TypeFriendRequest      NotificationType = "friend_request"
	TypeEventUpdate        NotificationType = "event_update"
	TypeSystemAnnouncement NotificationType = "system_announcement"
)

func (t NotificationType) String() string { return string(t) }

func (t NotificationType) IsValid() bool {
	switch t {
	case TypeNewMessage, TypeEventInvitation, TypeBadgeEarned, TypeFriendRequest, TypeEventUpdate, TypeSystemAnnouncement:
		return true
	}
	return false
}

func ParseNotificationType(s string) (NotificationType, error) {
	t := NotificationType(strings.ToLower(strings.TrimSpace(s)))
	if !t.IsValid() {
		return "", fmt.Errorf("%w: invalid notification type %q", ErrValidation, s)
	}
	return t, nil
}

// Intent is the logical notification content before channel formatting.
// It is built once by an event handler and must not be mutated afterwards.
type Intent struct {
	Title     string
	Body      string
	Type      NotificationType
	Data      map[string]string
	ImageURL  *string
	ActionURL *string
}

func (i Intent) Validate() error {
	if strings.TrimSpace(i.Title) == "" {
		return fmt.Errorf("%w: title is required", ErrValidation)
	}
	if strings.TrimSpace(i.Body) == "" {
		return fmt.Errorf("%w: body is required", ErrValidation)
	}
	if !i.Type.IsValid() {
		return fmt.Errorf("%w: invalid notification type %q", ErrValidation, i.Type)
	}
	return nil
}

// Profile is the per-dispatch snapshot of a recipient's delivery settings.
type Profile struct {
	UserID          string
	DeliveryToken   *string
	SettingsEnabled bool
	// Overrides holds explicit per-type switches. A missing key inherits SettingsEnabled.
	Overrides map[NotificationType]bool
}

func (p *Profile) HasToken() bool {
	return p != nil && p.DeliveryToken != nil && strings.TrimSpace(*p.DeliveryToken) != ""
}

// DeliveryRecord is one entry of a user's notification history, written after a successful send.
type DeliveryRecord struct {
	ID         string
	UserID     string
	DeliveryID string
	Title      string
	Body       string
	Type       NotificationType
	Data       map[string]string
	Timestamp  time.Time
	IsRead     bool
	ImageURL   *string
	ActionURL  *string
}
