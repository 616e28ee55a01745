// Package protocol defines the JSON messages exchanged over a room socket.
// Every message is an object with a "type" discriminator.
package protocol

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/dkeye/Cipher/internal/domain"
)

var ErrBadJSON = errors.New("invalid JSON format")

// UnknownTypeError is returned by Decode for an unrecognized discriminator.
type UnknownTypeError struct{ Type string }

func (e *UnknownTypeError) Error() string { return "unknown message type: " + e.Type }

// Inbound is implemented by every client to server message.
type Inbound interface {
	MessageType() string
}

// ReplyInfo references the message being answered.
type ReplyInfo struct {
	SenderID      domain.UserID `json:"senderId"`
	Timestamp     int64         `json:"timestamp"`
	MessageNumber *int64        `json:"messageNumber,omitempty"`
}

// SyncInfo marks a re-delivered copy of an earlier message.
type SyncInfo struct {
	OriginalSenderID      domain.UserID `json:"originalSenderId"`
	OriginalTimestamp     int64         `json:"originalTimestamp"`
	OriginalMessageNumber *int64        `json:"originalMessageNumber,omitempty"`
	SyncedBy              domain.UserID `json:"syncedBy"`
}

type Register struct {
	PublicKey string `json:"publicKey"`
	InviteID  string `json:"inviteId,omitempty"`
}

type ChallengeResponse struct {
	Response string `json:"response"`
}

type GetUsers struct{}

type Message struct {
	EncryptedData string          `json:"encryptedData"`
	ReplyTo       *ReplyInfo      `json:"replyTo,omitempty"`
	SyncedFrom    *SyncInfo       `json:"syncedFrom,omitempty"`
	TargetUserIDs []domain.UserID `json:"targetUserIds,omitempty"`
}

type ConvertRoomType struct {
	TargetType domain.RoomType `json:"targetType"`
}

type KickUser struct {
	TargetUserID domain.UserID `json:"targetUserId"`
	Reason       string        `json:"reason,omitempty"`
}

type BanUser struct {
	TargetUserID domain.UserID  `json:"targetUserId"`
	BanType      domain.BanKind `json:"banType"`
	Reason       string         `json:"reason,omitempty"`
}

type Unban struct {
	BanType domain.BanKind `json:"banType"`
	Value   string         `json:"value"`
}

type ChangeRole struct {
	TargetUserID domain.UserID `json:"targetUserId"`
	NewRole      domain.Role   `json:"newRole"`
}

type GenerateInvite struct {
	Role domain.Role `json:"role"`
	// ExpiresIn is an offset in milliseconds.
	ExpiresIn *int64 `json:"expiresIn,omitempty"`
	MaxUsage  *int   `json:"maxUsage,omitempty"`
}

type UpdatePrivacyConfig struct {
	Config *domain.PrivacyConfig `json:"config"`
}

type GetBanList struct{}

type GetInviteLinks struct{}

type DeleteInviteLink struct {
	InviteID string `json:"inviteId"`
}

type TransferCreator struct {
	TargetUserID domain.UserID `json:"targetUserId"`
}

type UpdateMessageCountConfig struct {
	EnableMessageCount         bool `json:"enableMessageCount"`
	MessageCountVisibleToUser  bool `json:"messageCountVisibleToUser"`
	MessageCountVisibleToGuest bool `json:"messageCountVisibleToGuest"`
}

type Ping struct{}

type Pong struct{}

func (Register) MessageType() string                 { return "register" }
func (ChallengeResponse) MessageType() string        { return "challengeResponse" }
func (GetUsers) MessageType() string                 { return "getUsers" }
func (Message) MessageType() string                  { return "message" }
func (ConvertRoomType) MessageType() string          { return "convertRoomType" }
func (KickUser) MessageType() string                 { return "kickUser" }
func (BanUser) MessageType() string                  { return "banUser" }
func (Unban) MessageType() string                    { return "unban" }
func (ChangeRole) MessageType() string               { return "changeRole" }
func (GenerateInvite) MessageType() string           { return "generateInvite" }
func (UpdatePrivacyConfig) MessageType() string      { return "updatePrivacyConfig" }
func (GetBanList) MessageType() string               { return "getBanList" }
func (GetInviteLinks) MessageType() string           { return "getInviteLinks" }
func (DeleteInviteLink) MessageType() string         { return "deleteInviteLink" }
func (TransferCreator) MessageType() string          { return "transferCreator" }
func (UpdateMessageCountConfig) MessageType() string { return "updateMessageCountConfig" }
func (Ping) MessageType() string                     { return "ping" }
func (Pong) MessageType() string                     { return "pong" }

type validator interface {
	validate() error
}

func (m ConvertRoomType) validate() error {
	if !m.TargetType.Valid() {
		return fmt.Errorf("invalid room type %q", m.TargetType)
	}
	return nil
}

func (m BanUser) validate() error {
	if !m.BanType.Valid() {
		return fmt.Errorf("invalid ban type %q", m.BanType)
	}
	return nil
}

func (m Unban) validate() error {
	if !m.BanType.Valid() {
		return fmt.Errorf("invalid ban type %q", m.BanType)
	}
	return nil
}

func (m ChangeRole) validate() error {
	if !m.NewRole.Valid() {
		return fmt.Errorf("invalid role %q", m.NewRole)
	}
	return nil
}

func (m GenerateInvite) validate() error {
	if !m.Role.Valid() {
		return fmt.Errorf("invalid role %q", m.Role)
	}
	if m.ExpiresIn != nil && *m.ExpiresIn <= 0 {
		return errors.New("expiresIn must be positive")
	}
	if m.MaxUsage != nil && *m.MaxUsage <= 0 {
		return errors.New("maxUsage must be positive")
	}
	return nil
}

func (m UpdatePrivacyConfig) validate() error {
	if m.Config == nil {
		return errors.New("missing privacy config")
	}
	return nil
}

func decodeAs[T Inbound](data []byte) (Inbound, error) {
	var m T
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, ErrBadJSON
	}
	if v, ok := any(m).(validator); ok {
		if err := v.validate(); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// Decode reads the discriminator and returns the matching message value.
func Decode(data []byte) (Inbound, error) {
	var env struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, ErrBadJSON
	}

	switch env.Type {
	case "register":
		return decodeAs[Register](data)
	case "challengeResponse":
		return decodeAs[ChallengeResponse](data)
	case "getUsers":
		return GetUsers{}, nil
	case "message":
		return decodeAs[Message](data)
	case "convertRoomType":
		return decodeAs[ConvertRoomType](data)
	case "kickUser":
		return decodeAs[KickUser](data)
	case "banUser":
		return decodeAs[BanUser](data)
	case "unban":
		return decodeAs[Unban](data)
	case "changeRole":
		return decodeAs[ChangeRole](data)
	case "generateInvite":
		return decodeAs[GenerateInvite](data)
	case "updatePrivacyConfig":
		return decodeAs[UpdatePrivacyConfig](data)
	case "getBanList":
		return GetBanList{}, nil
	case "getInviteLinks":
		return GetInviteLinks{}, nil
	case "deleteInviteLink":
		return decodeAs[DeleteInviteLink](data)
	case "transferCreator":
		return decodeAs[TransferCreator](data)
	case "updateMessageCountConfig":
		return decodeAs[UpdateMessageCountConfig](data)
	case "ping":
		return Ping{}, nil
	case "pong":
		return Pong{}, nil
	default:
		return nil, &UnknownTypeError{Type: env.Type}
	}
}
