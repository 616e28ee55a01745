package room

import (
	"context"
	"net/url"
	"sort"

	"github.com/dkeye/Cipher/internal/core"
	"github.com/dkeye/Cipher/internal/domain"
	"github.com/dkeye/Cipher/internal/protocol"
)

const inviteAlphabet = "0123456789abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ"

func (r *Room) inviteURL(code string) string {
	return r.origin + "/?r=" + url.QueryEscape(string(r.id)) + "&i=" + code
}

func (r *Room) onGenerateInvite(ctx context.Context, s *session, m protocol.GenerateInvite) {
	if err := core.Require(s.role(), domain.PermGenerateInvites, r.state.privacy(),
		"generateInvite", "you are not allowed to create invite links"); err != nil {
		r.reject(s, err)
		return
	}
	if m.Role == domain.RoleCreator {
		r.sendError(s, "invite links cannot grant the creator role")
		return
	}

	code := r.inviteCode()
	for r.state.invites[code] != nil {
		code = r.inviteCode()
	}
	link := &domain.InviteLink{
		ID:        code,
		RoomID:    r.id,
		Role:      m.Role,
		CreatedBy: s.userID(),
		MaxUsage:  m.MaxUsage,
	}
	if m.ExpiresIn != nil {
		at := r.now().UnixMilli() + *m.ExpiresIn
		link.ExpiresAt = &at
	}

	invites := r.state.invites.Clone()
	invites[code] = link
	if err := r.persist(ctx, write{keyInvites, invites}); err != nil {
		r.reject(s, err)
		return
	}
	r.state.invites = invites

	r.log.Info().Str("user", string(s.userID())).Str("invite", code).Str("role", string(m.Role)).Msg("invite created")
	r.send(s, protocol.InviteLinkGenerated{
		Type: protocol.TypeInviteLinkGenerated,
		Invite: protocol.InviteSummary{
			ID:         link.ID,
			Role:       link.Role,
			ExpiresAt:  link.ExpiresAt,
			MaxUsage:   link.MaxUsage,
			UsageCount: link.UsageCount,
		},
		FullURL: r.inviteURL(code),
	})
}

func (r *Room) onGetInviteLinks(s *session) {
	if err := core.Require(s.role(), domain.PermGenerateInvites, r.state.privacy(),
		"getInviteLinks", "you are not allowed to view invite links"); err != nil {
		r.reject(s, err)
		return
	}
	r.sendInviteLinks(s)
}

func (r *Room) sendInviteLinks(s *session) {
	links := make([]*domain.InviteLink, 0, len(r.state.invites))
	for _, l := range r.state.invites.Clone() {
		links = append(links, l)
	}
	sort.Slice(links, func(i, j int) bool { return links[i].ID < links[j].ID })
	r.send(s, protocol.InviteLinks{Type: protocol.TypeInviteLinks, Links: links})
}

func (r *Room) onDeleteInviteLink(ctx context.Context, s *session, m protocol.DeleteInviteLink) {
	if err := core.Require(s.role(), domain.PermGenerateInvites, r.state.privacy(),
		"deleteInviteLink", "you are not allowed to delete invite links"); err != nil {
		r.reject(s, err)
		return
	}
	if r.state.invites[m.InviteID] == nil {
		r.sendError(s, domain.ErrInviteNotFound.Error())
		return
	}

	invites := r.state.invites.Clone()
	delete(invites, m.InviteID)
	if err := r.persist(ctx, write{keyInvites, invites}); err != nil {
		r.reject(s, err)
		return
	}
	r.state.invites = invites
	r.log.Info().Str("user", string(s.userID())).Str("invite", m.InviteID).Msg("invite deleted")
	r.sendInviteLinks(s)
}
