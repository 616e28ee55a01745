package domain

import "time"

const InviteCodeLen = 8

// InviteLink grants a role to whoever redeems it while it is usable.
type InviteLink struct {
	ID         string `json:"id"`
	RoomID     RoomID `json:"roomId"`
	Role       Role   `json:"role"`
	CreatedBy  UserID `json:"createdBy"`
	ExpiresAt  *int64 `json:"expiresAt,omitempty"` // unix millis
	UsageCount int    `json:"usageCount"`
	MaxUsage   *int   `json:"maxUsage,omitempty"`
}

// Usable reports whether the invite is neither expired nor exhausted at now.
func (l *InviteLink) Usable(now time.Time) bool {
	if l.ExpiresAt != nil && *l.ExpiresAt < now.UnixMilli() {
		return false
	}
	if l.MaxUsage != nil && l.UsageCount >= *l.MaxUsage {
		return false
	}
	return true
}

// Invites is the persisted invite set keyed by code.
type Invites map[string]*InviteLink

// Clone deep-copies the set; pointer fields are immutable after creation.
func (s Invites) Clone() Invites {
	out := make(Invites, len(s))
	for id, l := range s {
		c := *l
		out[id] = &c
	}
	return out
}
