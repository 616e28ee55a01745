package core

import (
	"fmt"

	"github.com/dkeye/Cipher/internal/domain"
)

// Denial is returned for any authorization failure. It is only ever shown to the requester.
type Denial struct {
	Action string
	Reason string
}

func (d *Denial) Error() string { return fmt.Sprintf("%s: %s", d.Action, d.Reason) }

func deny(action, reason string) *Denial { return &Denial{Action: action, Reason: reason} }

var rolePermissions = func() map[domain.Role]map[domain.Permission]bool {
	grant := func(ps ...domain.Permission) map[domain.Permission]bool {
		m := make(map[domain.Permission]bool, len(ps))
		for _, p := range ps {
			m[p] = true
		}
		return m
	}
	return map[domain.Role]map[domain.Permission]bool{
		domain.RoleCreator: grant(domain.AllPermissions...),
		domain.RoleAdmin: grant(
			domain.PermViewMessages,
			domain.PermViewUserList,
			domain.PermSendMessages,
			domain.PermKickUsers,
			domain.PermBanUsers,
			domain.PermChangeRoles,
			domain.PermGenerateInvites,
			domain.PermViewBanList,
		),
		domain.RoleUser: grant(
			domain.PermViewMessages,
			domain.PermViewUserList,
			domain.PermSendMessages,
		),
		domain.RoleGuest: grant(
			domain.PermViewMessages,
			domain.PermViewUserList,
		),
	}
}()

// HasPermission applies the base table and, for guests, the privacy overlay.
func HasPermission(role domain.Role, perm domain.Permission, privacy *domain.PrivacyConfig) bool {
	if !rolePermissions[role][perm] {
		return false
	}
	if role == domain.RoleGuest && privacy != nil {
		switch perm {
		case domain.PermViewMessages:
			return privacy.GuestCanViewMessages
		case domain.PermViewUserList:
			return privacy.GuestCanViewUserList
		}
	}
	return true
}

// Require is HasPermission returning a Denial for the given action.
func Require(role domain.Role, perm domain.Permission, privacy *domain.PrivacyConfig, action, reason string) error {
	if HasPermission(role, perm, privacy) {
		return nil
	}
	return deny(action, reason)
}

// CanKick checks the pairwise rules before the base permission.
func CanKick(actor, target domain.Role, privacy *domain.PrivacyConfig) error {
	const action = "kickUser"
	switch {
	case target == domain.RoleCreator:
		return deny(action, "the room creator cannot be kicked")
	case actor == domain.RoleAdmin && target == domain.RoleAdmin:
		return deny(action, "admins cannot kick other admins")
	}
	return Require(actor, domain.PermKickUsers, privacy, action, "you are not allowed to kick this user")
}

// CanBan checks the pairwise rules; target is empty when the target's role is unknown.
func CanBan(actor, target domain.Role, privacy *domain.PrivacyConfig) error {
	const action = "banUser"
	switch {
	case target == domain.RoleCreator:
		return deny(action, "the room creator cannot be banned")
	case actor == domain.RoleAdmin && target == domain.RoleAdmin:
		return deny(action, "admins cannot ban other admins")
	}
	return Require(actor, domain.PermBanUsers, privacy, action, "you are not allowed to ban this user")
}

// CanChangeRole forbids touching the creator, promoting to creator and admin-on-admin changes.
func CanChangeRole(actor, target, newRole domain.Role, privacy *domain.PrivacyConfig) error {
	const action = "changeRole"
	switch {
	case target == domain.RoleCreator:
		return deny(action, "the room creator's role cannot be changed")
	case newRole == domain.RoleCreator:
		return deny(action, "creator status can only be transferred")
	case actor == domain.RoleAdmin && target == domain.RoleAdmin:
		return deny(action, "admins cannot change the role of other admins")
	}
	return Require(actor, domain.PermChangeRoles, privacy, action, "you are not allowed to change this user's role")
}

// CanViewMessageCount: creator and admin always, others per config while counting is on.
func CanViewMessageCount(role domain.Role, cfg *domain.RoomConfig) bool {
	if role == domain.RoleCreator || role == domain.RoleAdmin {
		return true
	}
	if cfg == nil || !cfg.EnableMessageCount {
		return false
	}
	switch role {
	case domain.RoleUser:
		return cfg.MessageCountVisibleToUser
	case domain.RoleGuest:
		return cfg.MessageCountVisibleToGuest
	}
	return false
}
