package models

import "time"

// Support pseudo-identity. The support counterpart is always available,
// resolves without any directory lookup, and never expires from caches.
const (
	SupportCounterpartID = "support"
	SupportDisplayName   = "Placelet Support"
	SupportAvatarRef     = "asset://avatars/support.png"
)

// PlaceholderDisplayName is shown while a counterpart's profile has not
// been resolved, or when the directory has no record for it.
const PlaceholderDisplayName = "Unknown"

// Conversation is the derived per-counterpart summary shown in the inbox.
// It is never authored directly: every field is computed from the message
// collection and the profile cache, and the conversation disappears when
// its messages do.
type Conversation struct {
	CounterpartID string    `json:"counterpartId"`
	DisplayName   string    `json:"displayName"`
	AvatarRef     string    `json:"avatarRef,omitempty"`
	PreviewText   string    `json:"previewText"`
	LastMessageAt time.Time `json:"lastMessageAt"`
	UnreadCount   int       `json:"unreadCount"`
}

// ProfileSummary is the cached display identity of a counterpart.
type ProfileSummary struct {
	CounterpartID string `json:"counterpartId"`
	DisplayName   string `json:"displayName"`
	AvatarRef     string `json:"avatarRef,omitempty"`
}

// SupportProfile returns the fixed summary for the support counterpart.
func SupportProfile() ProfileSummary {
	return ProfileSummary{
		CounterpartID: SupportCounterpartID,
		DisplayName:   SupportDisplayName,
		AvatarRef:     SupportAvatarRef,
	}
}

// PlaceholderProfile returns the summary used before (or instead of) a
// successful directory lookup.
func PlaceholderProfile(counterpartID string) ProfileSummary {
	return ProfileSummary{
		CounterpartID: counterpartID,
		DisplayName:   PlaceholderDisplayName,
	}
}

// Placeholder reports whether the summary still carries the unresolved
// display name.
func (p ProfileSummary) Placeholder() bool {
	return p.DisplayName == "" || p.DisplayName == PlaceholderDisplayName
}
