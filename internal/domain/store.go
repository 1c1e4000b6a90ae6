package domain

import "time"

const ParticipantStatusAccepted = "accepted"

type User struct {
	ID            string
	DisplayName   string
	DeliveryToken *string
	Enabled       bool
	Overrides     map[NotificationType]bool
}

// Profile returns the notification view of the user.
func (u *User) Profile() *Profile {
	if u == nil {
		return nil
	}

	overrides := make(map[NotificationType]bool, len(u.Overrides))
	for k, v := range u.Overrides {
		overrides[k] = v
	}

	return &Profile{
		UserID:          u.ID,
		DeliveryToken:   u.DeliveryToken,
		SettingsEnabled: u.Enabled,
		Overrides:       overrides,
	}
}

type Chat struct {
	ID           string
	Participants []string
}

type Event struct {
	ID          string
	Title       string
	Description string
	Datetime    time.Time
	Location    string
}

type Badge struct {
	ID   string
	Name string
}

// EventSnapshot is the set of event fields whose change is worth notifying attendees about.
type EventSnapshot struct {
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Datetime    time.Time `json:"datetime"`
	Location    string    `json:"location"`
}

// HasImportantChange compares snapshots field by field.
func (s EventSnapshot) HasImportantChange(after EventSnapshot) bool {
	return s.Title != after.Title ||
		s.Description != after.Description ||
		!s.Datetime.Equal(after.Datetime) ||
		s.Location != after.Location
}
