package gateway

import "context"

// Gateway is the outbound push delivery port. Send transmits one payload to one device token
// and returns the gateway-assigned message id.
type Gateway interface {
	Send(ctx context.Context, token string, payload *Payload) (string, error)
}

// Payload is the cross-platform message handed to the gateway.
type Payload struct {
	Notification Notification      `json:"notification"`
	Data         map[string]string `json:"data"`
	Android      AndroidConfig     `json:"android"`
	APNS         APNSConfig        `json:"apns"`
}

type Notification struct {
	Title string `json:"title"`
	Body  string `json:"body"`
	Image string `json:"image,omitempty"`
}

type AndroidConfig struct {
	Priority     string              `json:"priority"`
	Notification AndroidNotification `json:"notification"`
}

type AndroidNotification struct {
	ChannelID             string `json:"channel_id"`
	DefaultSound          bool   `json:"default_sound"`
	DefaultVibrateTimings bool   `json:"default_vibrate_timings"`
}

type APNSConfig struct {
	Payload APNSPayload `json:"payload"`
}

type APNSPayload struct {
	Aps Aps `json:"aps"`
}

type Aps struct {
	Alert ApsAlert `json:"alert"`
	Badge int      `json:"badge"`
	Sound string   `json:"sound"`
}

type ApsAlert struct {
	Title string `json:"title"`
	Body  string `json:"body"`
}
