package room

import (
	"context"
	"fmt"

	"github.com/dkeye/Cipher/internal/core"
	"github.com/dkeye/Cipher/internal/domain"
	"github.com/dkeye/Cipher/internal/protocol"
)

// onConvertRoomType switches public and private. Either direction clears invites
// and bans and resets every non-creator role to user.
func (r *Room) onConvertRoomType(ctx context.Context, s *session, m protocol.ConvertRoomType) {
	if err := core.Require(s.role(), domain.PermConvertRoomType, r.state.privacy(),
		"convertRoomType", "only the creator can convert the room type"); err != nil {
		r.reject(s, err)
		return
	}
	if m.TargetType == r.state.config.Type {
		r.sendError(s, fmt.Sprintf("room is already %s", m.TargetType))
		return
	}

	cfg := r.state.config.Clone()
	cfg.Type = m.TargetType
	if m.TargetType == domain.RoomPrivate {
		cfg.Privacy = domain.DefaultPrivacy()
	} else {
		cfg.Privacy = nil
	}
	roles := r.state.cloneRoles()
	for id := range roles {
		if id != cfg.CreatorID {
			roles[id] = domain.RoleUser
		}
	}
	for _, ms := range r.sessions.members() {
		if ms.userID() != cfg.CreatorID {
			roles[ms.userID()] = domain.RoleUser
		}
	}
	invites := domain.Invites{}
	bans := domain.BanList{}

	if err := r.persist(ctx,
		write{keyConfig, cfg},
		write{keyInvites, invites},
		write{keyBanList, banListRecord{Records: bans}},
		write{keyUserRoles, roles},
	); err != nil {
		r.reject(s, err)
		return
	}
	r.state.config = cfg
	r.state.invites = invites
	r.state.bans = bans
	r.state.roles = roles
	for _, ms := range r.sessions.members() {
		ms.member.Role = roles[ms.userID()]
	}

	r.log.Info().Str("user", string(s.userID())).Str("type", string(cfg.Type)).Msg("room type converted")
	r.broadcast(protocol.RoomTypeConverted{
		Type:        protocol.TypeRoomTypeConverted,
		NewType:     cfg.Type,
		ConvertedBy: s.userID(),
	})
	r.broadcastRoomInfo()
	r.broadcastUserList()
}

func (r *Room) onKickUser(ctx context.Context, s *session, m protocol.KickUser) {
	target := r.sessions.byUserID(m.TargetUserID)
	if target == nil {
		r.sendError(s, domain.ErrUserNotFound.Error())
		return
	}
	if err := core.CanKick(s.role(), target.role(), r.state.privacy()); err != nil {
		r.reject(s, err)
		return
	}

	r.log.Info().Str("user", string(s.userID())).Str("target", string(target.userID())).Msg("member kicked")
	r.broadcast(protocol.UserKicked{
		Type:         protocol.TypeUserKicked,
		TargetUserID: m.TargetUserID,
		KickedBy:     s.userID(),
		Reason:       m.Reason,
	})
	r.evict(ctx, target)
}

// targetRole resolves the role of a possibly offline identity; empty when unknown.
func (r *Room) targetRole(id domain.UserID) domain.Role {
	if id == r.state.config.CreatorID {
		return domain.RoleCreator
	}
	if t := r.sessions.byUserID(id); t != nil {
		return t.role()
	}
	return r.state.roles[id]
}

func (r *Room) onBanUser(ctx context.Context, s *session, m protocol.BanUser) {
	if err := core.CanBan(s.role(), r.targetRole(m.TargetUserID), r.state.privacy()); err != nil {
		r.reject(s, err)
		return
	}

	target := r.sessions.byUserID(m.TargetUserID)
	value := string(m.TargetUserID)
	if m.BanType == domain.BanIP {
		value = domain.UnknownAddress
		if target != nil && target.addr != "" {
			value = target.addr
		}
	}
	rec := domain.BanRecord{
		Kind:     m.BanType,
		Value:    value,
		BannedAt: r.now().UnixMilli(),
		BannedBy: s.userID(),
		Reason:   m.Reason,
	}
	bans := append(append(domain.BanList{}, r.state.bans...), rec)
	if err := r.persist(ctx, write{keyBanList, banListRecord{Records: bans}}); err != nil {
		r.reject(s, err)
		return
	}
	r.state.bans = bans

	r.log.Info().
		Str("user", string(s.userID())).
		Str("target", string(m.TargetUserID)).
		Str("kind", string(m.BanType)).
		Bool("online", target != nil).
		Msg("ban recorded")
	r.broadcast(protocol.UserBanned{
		Type:         protocol.TypeUserBanned,
		TargetUserID: m.TargetUserID,
		BannedBy:     s.userID(),
		BanType:      m.BanType,
		Reason:       m.Reason,
	})
	if target != nil {
		r.evict(ctx, target)
	}
}

func (r *Room) onUnban(ctx context.Context, s *session, m protocol.Unban) {
	if err := core.Require(s.role(), domain.PermBanUsers, r.state.privacy(),
		"unban", "you are not allowed to lift bans"); err != nil {
		r.reject(s, err)
		return
	}
	bans := r.state.bans.Without(m.BanType, m.Value)
	if err := r.persist(ctx, write{keyBanList, banListRecord{Records: bans}}); err != nil {
		r.reject(s, err)
		return
	}
	removed := len(r.state.bans) - len(bans)
	r.state.bans = bans
	r.log.Info().Str("user", string(s.userID())).Str("kind", string(m.BanType)).Int("removed", removed).Msg("ban lifted")
	r.onGetBanList(s)
}

func (r *Room) onGetBanList(s *session) {
	if err := core.Require(s.role(), domain.PermViewBanList, r.state.privacy(),
		"getBanList", "you are not allowed to view the ban list"); err != nil {
		r.reject(s, err)
		return
	}
	records := append(domain.BanList{}, r.state.bans...)
	r.send(s, protocol.BanList{Type: protocol.TypeBanList, Records: records})
}

func (r *Room) onChangeRole(ctx context.Context, s *session, m protocol.ChangeRole) {
	target := r.sessions.byUserID(m.TargetUserID)
	if target == nil {
		r.sendError(s, domain.ErrUserNotFound.Error())
		return
	}
	if err := core.CanChangeRole(s.role(), target.role(), m.NewRole, r.state.privacy()); err != nil {
		r.reject(s, err)
		return
	}

	roles := r.state.cloneRoles()
	roles[target.userID()] = m.NewRole
	if err := r.persist(ctx, write{keyUserRoles, roles}); err != nil {
		r.reject(s, err)
		return
	}
	r.state.roles = roles
	old := target.role()
	target.member.Role = m.NewRole

	r.log.Info().Str("user", string(s.userID())).Str("target", string(target.userID())).
		Str("from", string(old)).Str("to", string(m.NewRole)).Msg("role changed")
	r.broadcast(protocol.RoleChanged{
		Type:         protocol.TypeRoleChanged,
		TargetUserID: target.userID(),
		OldRole:      old,
		NewRole:      m.NewRole,
		ChangedBy:    s.userID(),
	})
	r.sendRoomInfo(target)
	r.broadcastUserList()
}

func (r *Room) onUpdatePrivacyConfig(ctx context.Context, s *session, m protocol.UpdatePrivacyConfig) {
	if err := core.Require(s.role(), domain.PermUpdatePrivacyConfig, r.state.privacy(),
		"updatePrivacyConfig", "only the creator can change privacy settings"); err != nil {
		r.reject(s, err)
		return
	}
	if r.state.config.Type != domain.RoomPrivate {
		r.sendError(s, "privacy settings only apply to private rooms")
		return
	}

	cfg := r.state.config.Clone()
	p := *m.Config
	cfg.Privacy = &p
	if err := r.persist(ctx, write{keyConfig, cfg}); err != nil {
		r.reject(s, err)
		return
	}
	r.state.config = cfg

	r.log.Info().Str("user", string(s.userID())).Interface("privacy", p).Msg("privacy updated")
	r.broadcast(protocol.PrivacyConfigUpdated{
		Type:      protocol.TypePrivacyConfigUpdated,
		Config:    p,
		UpdatedBy: s.userID(),
	})
	r.broadcastUserList()
}

func (r *Room) onUpdateMessageCountConfig(ctx context.Context, s *session, m protocol.UpdateMessageCountConfig) {
	if err := core.Require(s.role(), domain.PermUpdateMessageCountConfig, r.state.privacy(),
		"updateMessageCountConfig", "only the creator can change message counting"); err != nil {
		r.reject(s, err)
		return
	}

	cfg := r.state.config.Clone()
	cfg.EnableMessageCount = m.EnableMessageCount
	cfg.MessageCountVisibleToUser = m.MessageCountVisibleToUser
	cfg.MessageCountVisibleToGuest = m.MessageCountVisibleToGuest
	if err := r.persist(ctx, write{keyConfig, cfg}); err != nil {
		r.reject(s, err)
		return
	}
	r.state.config = cfg

	r.broadcast(protocol.MessageCountConfigUpdated{
		Type:                       protocol.TypeMessageCountConfigUpdated,
		EnableMessageCount:         cfg.EnableMessageCount,
		MessageCountVisibleToUser:  cfg.MessageCountVisibleToUser,
		MessageCountVisibleToGuest: cfg.MessageCountVisibleToGuest,
		UpdatedBy:                  s.userID(),
	})
	r.broadcastRoomInfo()
}

// onTransferCreator hands the creator role to another online member; the old creator becomes admin.
func (r *Room) onTransferCreator(ctx context.Context, s *session, m protocol.TransferCreator) {
	if err := core.Require(s.role(), domain.PermTransferCreator, r.state.privacy(),
		"transferCreator", "only the creator can transfer the room"); err != nil {
		r.reject(s, err)
		return
	}
	target := r.sessions.byUserID(m.TargetUserID)
	if target == nil {
		r.sendError(s, domain.ErrUserNotFound.Error())
		return
	}
	if target == s {
		r.sendError(s, "you are already the creator")
		return
	}

	oldCreator := r.state.config.CreatorID
	cfg := r.state.config.Clone()
	cfg.CreatorID = target.userID()
	roles := r.state.cloneRoles()
	roles[s.userID()] = domain.RoleAdmin
	roles[target.userID()] = domain.RoleCreator
	if err := r.persist(ctx, write{keyUserRoles, roles}, write{keyConfig, cfg}); err != nil {
		r.reject(s, err)
		return
	}
	r.state.config = cfg
	r.state.roles = roles
	s.member.Role = domain.RoleAdmin
	target.member.Role = domain.RoleCreator

	r.log.Info().Str("from", string(oldCreator)).Str("to", string(cfg.CreatorID)).Msg("creator transferred")
	r.broadcast(protocol.CreatorTransferred{
		Type:         protocol.TypeCreatorTransferred,
		OldCreatorID: oldCreator,
		NewCreatorID: cfg.CreatorID,
	})
	r.sendRoomInfo(s)
	r.sendRoomInfo(target)
	r.broadcastUserList()
}
