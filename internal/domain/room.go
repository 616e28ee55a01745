package domain

import "unicode/utf8"

const (
	MaxRoomIDLen = 256
	RoomIDLen    = 10
)

type RoomID string

// Valid reports whether the id has between 1 and MaxRoomIDLen characters.
func (id RoomID) Valid() bool {
	n := utf8.RuneCountInString(string(id))
	return n > 0 && n <= MaxRoomIDLen
}

type RoomType string

const (
	RoomPublic  RoomType = "public"
	RoomPrivate RoomType = "private"
)

func (t RoomType) Valid() bool {
	return t == RoomPublic || t == RoomPrivate
}

// PrivacyConfig only applies to private rooms.
type PrivacyConfig struct {
	GuestCanViewMessages bool `json:"guestCanViewMessages"`
	GuestCanViewUserList bool `json:"guestCanViewUserList"`
	RequireInviteToJoin  bool `json:"requireInviteToJoin"`
}

// DefaultPrivacy is installed when a room turns private.
func DefaultPrivacy() *PrivacyConfig {
	return &PrivacyConfig{
		GuestCanViewMessages: true,
		GuestCanViewUserList: true,
		RequireInviteToJoin:  false,
	}
}

// RoomConfig is the persisted per-room configuration record.
type RoomConfig struct {
	Type                       RoomType       `json:"type"`
	CreatorID                  UserID         `json:"creatorId"`
	Privacy                    *PrivacyConfig `json:"privacy,omitempty"`
	EnableMessageCount         bool           `json:"enableMessageCount"`
	MessageCount               int64          `json:"messageCount"`
	MessageCountVisibleToUser  bool           `json:"messageCountVisibleToUser"`
	MessageCountVisibleToGuest bool           `json:"messageCountVisibleToGuest"`
}

// NewRoomConfig builds the config written when the first member authenticates.
func NewRoomConfig(creator UserID) *RoomConfig {
	return &RoomConfig{
		Type:                       RoomPublic,
		CreatorID:                  creator,
		EnableMessageCount:         true,
		MessageCountVisibleToUser:  true,
		MessageCountVisibleToGuest: true,
	}
}

// Clone returns a deep copy so callers can stage changes before persisting them.
func (c *RoomConfig) Clone() *RoomConfig {
	if c == nil {
		return nil
	}
	out := *c
	if c.Privacy != nil {
		p := *c.Privacy
		out.Privacy = &p
	}
	return &out
}
