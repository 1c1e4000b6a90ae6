package service

import (
	"strings"

	"github.com/kursadbilgin/push-fanout/internal/domain"
	"github.com/kursadbilgin/push-fanout/internal/gateway"
)

const (
	DefaultAndroidChannelID = "linkup_high_importance"

	androidPriorityHigh = "high"
	apnsDefaultSound    = "default"
	apnsBadge           = 1
)

// PayloadComposer formats an intent into the cross-platform gateway payload.
type PayloadComposer struct {
	androidChannelID string
}

func NewPayloadComposer(androidChannelID string) *PayloadComposer {
	channelID := strings.TrimSpace(androidChannelID)
	if channelID == "" {
		channelID = DefaultAndroidChannelID
	}
	return &PayloadComposer{androidChannelID: channelID}
}

// Compose never fails. The returned payload owns its data map.
func (c *PayloadComposer) Compose(intent domain.Intent) *gateway.Payload {
	data := make(map[string]string, len(intent.Data)+1)
	for k, v := range intent.Data {
		data[k] = v
	}
	data["type"] = intent.Type.String()

	notification := gateway.Notification{
		Title: intent.Title,
		Body:  intent.Body,
	}
	if intent.ImageURL != nil {
		notification.Image = strings.TrimSpace(*intent.ImageURL)
	}

	return &gateway.Payload{
		Notification: notification,
		Data:         data,
		Android: gateway.AndroidConfig{
			Priority: androidPriorityHigh,
			Notification: gateway.AndroidNotification{
				ChannelID:             c.androidChannelID,
				DefaultSound:          true,
				DefaultVibrateTimings: true,
			},
		},
		APNS: gateway.APNSConfig{
			Payload: gateway.APNSPayload{
				Aps: gateway.Aps{
					Alert: gateway.ApsAlert{Title: intent.Title, Body: intent.Body},
					Badge: apnsBadge,
					Sound: apnsDefaultSound,
				},
			},
		},
	}
}
