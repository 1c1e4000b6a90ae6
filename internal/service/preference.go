package service

import "github.com/kursadbilgin/push-fanout/internal/domain"

// Allows reports whether the profile accepts notifications of type t.
// Unset per-type overrides inherit the global switch.
func Allows(profile *domain.Profile, t domain.NotificationType) bool {
	return gate(profile, t) == domain.SkipNone
}

// gate returns why profile must not receive a notification of type t, or SkipNone.
func gate(profile *domain.Profile, t domain.NotificationType) domain.SkipReason {
	if !profile.HasToken() {
		return domain.SkipNoToken
	}
	if !profile.SettingsEnabled {
		return domain.SkipDisabled
	}
	if enabled, ok := profile.Overrides[t]; ok && !enabled {
		return domain.SkipTypeDisabled
	}
	return domain.SkipNone
}
