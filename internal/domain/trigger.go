package domain

import (
	"fmt"
	"strings"
)

// TriggerKind names a store change that fans out notifications.
type TriggerKind string

const (
	TriggerMessageCreated       TriggerKind = "message_created"
	TriggerInvitationCreated    TriggerKind = "invitation_created"
	TriggerBadgeEarned          TriggerKind = "badge_earned"
	TriggerFriendRequestCreated TriggerKind = "friend_request_created"
	TriggerEventUpdated         TriggerKind = "event_updated"
)

// TriggerKinds lists every supported trigger in a stable order.
var TriggerKinds = []TriggerKind{
	TriggerMessageCreated,
	TriggerInvitationCreated,
	TriggerBadgeEarned,
	TriggerFriendRequestCreated,
	TriggerEventUpdated,
}

func (k TriggerKind) String() string { return string(k) }

func (k TriggerKind) IsValid() bool {
	for _, known := range TriggerKinds {
		if k == known {
			return true
		}
	}
	return false
}

func ParseTriggerKind(s string) (TriggerKind, error) {
	k := TriggerKind(strings.ToLower(strings.TrimSpace(s)))
	if !k.IsValid() {
		return "", fmt.Errorf("%w: invalid trigger kind %q", ErrValidation, s)
	}
	return k, nil
}

type MessageCreated struct {
	ChatID     string `json:"chatId" validate:"required"`
	MessageID  string `json:"messageId"`
	SenderID   string `json:"senderId" validate:"required"`
	SenderName string `json:"senderName"`
	Text       string `json:"text"`
}

type InvitationCreated struct {
	EventID      string `json:"eventId" validate:"required"`
	InvitationID string `json:"invitationId"`
	InviteeID    string `json:"inviteeId" validate:"required"`
	InviterID    string `json:"inviterId"`
}

type BadgeEarned struct {
	UserID  string `json:"userId" validate:"required"`
	BadgeID string `json:"badgeId" validate:"required"`
}

type FriendRequestCreated struct {
	RequestID  string `json:"requestId"`
	FromUserID string `json:"fromUserId" validate:"required"`
	ToUserID   string `json:"toUserId" validate:"required"`
}

type EventUpdated struct {
	EventID string        `json:"eventId" validate:"required"`
	Before  EventSnapshot `json:"before"`
	After   EventSnapshot `json:"after"`
}
