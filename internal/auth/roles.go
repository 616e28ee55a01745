package auth

import (
	"time"

	"github.com/dkeye/Cipher/internal/domain"
)

// RoleRequest collects everything the assignment policy looks at.
type RoleRequest struct {
	// Persisted is the role stored for this identity, empty when none.
	Persisted domain.Role
	// FirstInRoom is set for the first identity admitted to an empty room.
	FirstInRoom bool
	Config      *domain.RoomConfig
	// Invite is the looked-up invite for the supplied code, nil when absent or unknown.
	Invite *domain.InviteLink
	Now    time.Time
}

// RoleDecision tells the caller which role to grant and whether to consume the invite.
type RoleDecision struct {
	Role         domain.Role
	RedeemInvite bool
}

// AssignRole evaluates the join policy in order: persisted role, first member,
// public room, valid invite, invite requirement, guest.
func AssignRole(req RoleRequest) (RoleDecision, error) {
	if req.Persisted.Valid() {
		return RoleDecision{Role: req.Persisted}, nil
	}
	if req.FirstInRoom {
		return RoleDecision{Role: domain.RoleCreator}, nil
	}
	if req.Config == nil || req.Config.Type == domain.RoomPublic {
		return RoleDecision{Role: domain.RoleUser}, nil
	}
	if req.Invite != nil && req.Invite.Usable(req.Now) && req.Invite.Role.Valid() && req.Invite.Role != domain.RoleCreator {
		return RoleDecision{Role: req.Invite.Role, RedeemInvite: true}, nil
	}
	if req.Config.Privacy != nil && req.Config.Privacy.RequireInviteToJoin {
		return RoleDecision{}, domain.ErrInviteRequired
	}
	return RoleDecision{Role: domain.RoleGuest}, nil
}
