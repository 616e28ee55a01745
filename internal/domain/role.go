package domain

import "slices"

// Role is a member's capability tier inside one room.
type Role string

const (
	RoleCreator Role = "creator"
	RoleAdmin   Role = "admin"
	RoleUser    Role = "user"
	RoleGuest   Role = "guest"
)

// Valid reports whether r is one of the four known roles.
func (r Role) Valid() bool {
	return slices.Contains(AllRoles, r)
}

type Permission string

const (
	PermViewMessages             Permission = "view_messages"
	PermViewUserList             Permission = "view_user_list"
	PermSendMessages             Permission = "send_messages"
	PermKickUsers                Permission = "kick_users"
	PermBanUsers                 Permission = "ban_users"
	PermChangeRoles              Permission = "change_roles"
	PermGenerateInvites          Permission = "generate_invites"
	PermViewBanList              Permission = "view_ban_list"
	PermConvertRoomType          Permission = "convert_room_type"
	PermUpdatePrivacyConfig      Permission = "update_privacy_config"
	PermUpdateMessageCountConfig Permission = "update_message_count_config"
	PermTransferCreator          Permission = "transfer_creator"
)

// AllPermissions lists every permission in declaration order.
var AllPermissions = []Permission{
	PermViewMessages,
	PermViewUserList,
	PermSendMessages,
	PermKickUsers,
	PermBanUsers,
	PermChangeRoles,
	PermGenerateInvites,
	PermViewBanList,
	PermConvertRoomType,
	PermUpdatePrivacyConfig,
	PermUpdateMessageCountConfig,
	PermTransferCreator,
}

// AllRoles lists roles from strongest to weakest.
var AllRoles = []Role{RoleCreator, RoleAdmin, RoleUser, RoleGuest}
