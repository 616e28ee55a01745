package protocol

import (
	"encoding/json"

	"github.com/dkeye/Cipher/internal/core"
	"github.com/dkeye/Cipher/internal/domain"
)

const (
	TypeAuthChallenge             = "authChallenge"
	TypeRegistered                = "registered"
	TypeRoomInfo                  = "roomInfo"
	TypeEncryptedMessage          = "encryptedMessage"
	TypeSystemMessage             = "systemMessage"
	TypeUserList                  = "userList"
	TypeRoomTypeConverted         = "roomTypeConverted"
	TypeUserKicked                = "userKicked"
	TypeUserBanned                = "userBanned"
	TypeRoleChanged               = "roleChanged"
	TypeInviteLinkGenerated       = "inviteLinkGenerated"
	TypeBanList                   = "banList"
	TypeInviteLinks               = "inviteLinks"
	TypePrivacyConfigUpdated      = "privacyConfigUpdated"
	TypeMessageCountConfigUpdated = "messageCountConfigUpdated"
	TypeCreatorTransferred        = "creatorTransferred"
	TypePermissionDenied          = "permissionDenied"
	TypeError                     = "error"
	TypePing                      = "ping"
	TypePong                      = "pong"
)

// SystemMessage kinds.
const (
	SysUserJoined       = "userJoined"
	SysUserReconnected  = "userReconnected"
	SysUserDisconnected = "userDisconnected"
)

type AuthChallenge struct {
	Type               string `json:"type"`
	EncryptedChallenge string `json:"encryptedChallenge"`
}

type Registered struct {
	Type         string         `json:"type"`
	Profile      domain.Profile `json:"profile"`
	AssignedRole domain.Role    `json:"assignedRole"`
}

// RoomInfo is shaped per recipient; MessageCount is only set for roles allowed to see it.
type RoomInfo struct {
	Type                       string                `json:"type"`
	RoomType                   domain.RoomType       `json:"roomType"`
	IsCreator                  bool                  `json:"isCreator"`
	YourRole                   domain.Role           `json:"yourRole"`
	Privacy                    *domain.PrivacyConfig `json:"privacy,omitempty"`
	MessageCount               *int64                `json:"messageCount,omitempty"`
	EnableMessageCount         bool                  `json:"enableMessageCount"`
	MessageCountVisibleToUser  bool                  `json:"messageCountVisibleToUser"`
	MessageCountVisibleToGuest bool                  `json:"messageCountVisibleToGuest"`
}

type EncryptedMessage struct {
	Type          string        `json:"type"`
	SenderID      domain.UserID `json:"senderId"`
	EncryptedData string        `json:"encryptedData"`
	Timestamp     int64         `json:"timestamp"`
	MessageNumber *int64        `json:"messageNumber,omitempty"`
	ReplyTo       *ReplyInfo    `json:"replyTo,omitempty"`
	SyncedFrom    *SyncInfo     `json:"syncedFrom,omitempty"`
}

type SystemMessage struct {
	Type        string `json:"type"`
	Content     string `json:"content"`
	Timestamp   int64  `json:"timestamp"`
	MessageType string `json:"messageType"`
}

type UserList struct {
	Type  string          `json:"type"`
	Users []domain.Member `json:"users"`
}

type RoomTypeConverted struct {
	Type        string          `json:"type"`
	NewType     domain.RoomType `json:"newType"`
	ConvertedBy domain.UserID   `json:"convertedBy"`
}

type UserKicked struct {
	Type         string        `json:"type"`
	TargetUserID domain.UserID `json:"targetUserId"`
	KickedBy     domain.UserID `json:"kickedBy"`
	Reason       string        `json:"reason,omitempty"`
}

type UserBanned struct {
	Type         string         `json:"type"`
	TargetUserID domain.UserID  `json:"targetUserId"`
	BannedBy     domain.UserID  `json:"bannedBy"`
	BanType      domain.BanKind `json:"banType"`
	Reason       string         `json:"reason,omitempty"`
}

type RoleChanged struct {
	Type         string        `json:"type"`
	TargetUserID domain.UserID `json:"targetUserId"`
	OldRole      domain.Role   `json:"oldRole"`
	NewRole      domain.Role   `json:"newRole"`
	ChangedBy    domain.UserID `json:"changedBy"`
}

// InviteSummary is the part of an invite echoed back to its creator.
type InviteSummary struct {
	ID         string      `json:"id"`
	Role       domain.Role `json:"role"`
	ExpiresAt  *int64      `json:"expiresAt,omitempty"`
	MaxUsage   *int        `json:"maxUsage,omitempty"`
	UsageCount int         `json:"usageCount"`
}

type InviteLinkGenerated struct {
	Type    string        `json:"type"`
	Invite  InviteSummary `json:"invite"`
	FullURL string        `json:"fullUrl"`
}

type BanList struct {
	Type    string             `json:"type"`
	Records []domain.BanRecord `json:"records"`
}

type InviteLinks struct {
	Type  string               `json:"type"`
	Links []*domain.InviteLink `json:"links"`
}

type PrivacyConfigUpdated struct {
	Type      string               `json:"type"`
	Config    domain.PrivacyConfig `json:"config"`
	UpdatedBy domain.UserID        `json:"updatedBy"`
}

type MessageCountConfigUpdated struct {
	Type                       string        `json:"type"`
	EnableMessageCount         bool          `json:"enableMessageCount"`
	MessageCountVisibleToUser  bool          `json:"messageCountVisibleToUser"`
	MessageCountVisibleToGuest bool          `json:"messageCountVisibleToGuest"`
	UpdatedBy                  domain.UserID `json:"updatedBy"`
}

type CreatorTransferred struct {
	Type         string        `json:"type"`
	OldCreatorID domain.UserID `json:"oldCreatorId"`
	NewCreatorID domain.UserID `json:"newCreatorId"`
}

type PermissionDenied struct {
	Type   string `json:"type"`
	Action string `json:"action"`
	Reason string `json:"reason"`
}

type Error struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// Bare carries only the discriminator (ping, pong).
type Bare struct {
	Type string `json:"type"`
}

func NewError(msg string) Error { return Error{Type: TypeError, Message: msg} }

func NewPermissionDenied(action, reason string) PermissionDenied {
	return PermissionDenied{Type: TypePermissionDenied, Action: action, Reason: reason}
}

func NewSystemMessage(content, kind string, ts int64) SystemMessage {
	return SystemMessage{Type: TypeSystemMessage, Content: content, Timestamp: ts, MessageType: kind}
}

// Encode marshals an outbound message into a frame.
func Encode(v any) (core.Frame, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return core.Frame(b), nil
}
