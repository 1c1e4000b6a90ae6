package domain

import (
	"errors"
	"testing"
	"time"
)

func TestParseNotificationType(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		input   string
		want    NotificationType
		wantErr bool
	}{
		{name: "valid lowercase", input: "badge_earned", want: TypeBadgeEarned},
		{name: "valid uppercase with spaces", input: " NEW_MESSAGE ", want: TypeNewMessage},
		{name: "invalid", input: "newsletter", wantErr: true},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, err := ParseNotificationType(tt.input)
			if tt.wantErr {
				if !errors.Is(err, ErrValidation) {
					t.Fatalf("ParseNotificationType() error = %v, want ErrValidation", err)
				}
				return
			}

			if err != nil {
				t.Fatalf("ParseNotificationType() unexpected error = %v", err)
			}
			if got != tt.want {
				t.Fatalf("ParseNotificationType() = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestParseTriggerKind(t *testing.T) {
	t.Parallel()

	got, err := ParseTriggerKind(" event_updated ")
	if err != nil {
		t.Fatalf("ParseTriggerKind() unexpected error = %v", err)
	}
	if got != TriggerEventUpdated {
		t.Fatalf("ParseTriggerKind() = %s, want %s", got, TriggerEventUpdated)
	}

	_, err = ParseTriggerKind("user_deleted")
	if !errors.Is(err, ErrValidation) {
		t.Fatalf("ParseTriggerKind() error = %v, want ErrValidation", err)
	}
}

func TestIntentValidate(t *testing.T) {
	t.Parallel()

	base := Intent{
		Title: "Arkadaşlık İsteği",
		Body:  "Birisi size arkadaşlık isteği gönderdi",
		Type:  TypeFriendRequest,
	}

	tests := []struct {
		name    string
		mutate  func(*Intent)
		wantErr bool
	}{
		{name: "valid intent", mutate: func(i *Intent) {}},
		{name: "missing title", mutate: func(i *Intent) { i.Title = " " }, wantErr: true},
		{name: "missing body", mutate: func(i *Intent) { i.Body = "" }, wantErr: true},
		{name: "invalid type", mutate: func(i *Intent) { i.Type = "digest" }, wantErr: true},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			current := base
			tt.mutate(&current)

			err := current.Validate()
			if tt.wantErr {
				if !errors.Is(err, ErrValidation) {
					t.Fatalf("Validate() error = %v, want ErrValidation", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Validate() unexpected error = %v", err)
			}
		})
	}
}

func TestEventSnapshotHasImportantChange(t *testing.T) {
	t.Parallel()

	at := time.Date(2026, 5, 1, 18, 0, 0, 0, time.UTC)
	base := EventSnapshot{
		Title:       "Piknik",
		Description: "Moda sahili",
		Datetime:    at,
		Location:    "Kadıköy",
	}

	tests := []struct {
		name   string
		mutate func(*EventSnapshot)
		want   bool
	}{
		{name: "identical", mutate: func(s *EventSnapshot) {}, want: false},
		{name: "same instant in another zone", mutate: func(s *EventSnapshot) { s.Datetime = at.In(time.FixedZone("TRT", 3*3600)) }, want: false},
		{name: "title changed", mutate: func(s *EventSnapshot) { s.Title = "Piknik (iptal)" }, want: true},
		{name: "description changed", mutate: func(s *EventSnapshot) { s.Description = "Fenerbahçe parkı" }, want: true},
		{name: "datetime changed", mutate: func(s *EventSnapshot) { s.Datetime = at.Add(time.Hour) }, want: true},
		{name: "location changed", mutate: func(s *EventSnapshot) { s.Location = "Beşiktaş" }, want: true},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			after := base
			tt.mutate(&after)
			if got := base.HasImportantChange(after); got != tt.want {
				t.Fatalf("HasImportantChange() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestUserProfileCopiesOverrides(t *testing.T) {
	t.Parallel()

	token := "tok-1"
	user := &User{
		ID:            "u1",
		DeliveryToken: &token,
		Enabled:       true,
		Overrides:     map[NotificationType]bool{TypeBadgeEarned: false},
	}

	profile := user.Profile()
	if !profile.HasToken() {
		t.Fatal("profile should carry the delivery token")
	}
	profile.Overrides[TypeBadgeEarned] = true
	if user.Overrides[TypeBadgeEarned] {
		t.Fatal("profile overrides must not alias the user overrides")
	}

	var missing *User
	if missing.Profile() != nil {
		t.Fatal("nil user should yield nil profile")
	}
}

func TestSummarize(t *testing.T) {
	t.Parallel()

	got := Summarize([]Outcome{
		{Recipient: "a", Status: OutcomeSent},
		{Recipient: "b", Status: OutcomeSkipped, SkipReason: SkipNoToken},
		{Recipient: "c", Status: OutcomeFailed},
		{Recipient: "d", Status: OutcomeSent},
	})

	want := Summary{Total: 4, Sent: 2, Skipped: 1, Failed: 1}
	if got != want {
		t.Fatalf("Summarize() = %+v, want %+v", got, want)
	}
}
