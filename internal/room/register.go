package room

import (
	"context"
	"fmt"

	"github.com/dkeye/Cipher/internal/auth"
	"github.com/dkeye/Cipher/internal/core"
	"github.com/dkeye/Cipher/internal/domain"
	"github.com/dkeye/Cipher/internal/pgp"
	"github.com/dkeye/Cipher/internal/protocol"
)

// refuse reports an authentication failure and closes the connection.
func (r *Room) refuse(ctx context.Context, s *session, msg string) {
	r.log.Info().Str("sid", string(s.sid)).Str("reason", msg).Msg("authentication refused")
	r.sendError(s, msg)
	r.evict(ctx, s)
}

func (r *Room) onRegister(ctx context.Context, s *session, m protocol.Register) {
	if s.authenticated() {
		r.sendError(s, domain.ErrAlreadyRegistered.Error())
		return
	}
	r.challenges.Sweep()

	key, err := pgp.ParsePublicKey(m.PublicKey)
	if err != nil {
		r.log.Debug().Err(err).Str("sid", string(s.sid)).Msg("bad public key")
		r.sendError(s, domain.ErrInvalidPublicKey.Error())
		return
	}
	if r.state.bans.Banned(key.Fingerprint(), s.addr) {
		r.refuse(ctx, s, domain.ErrBanned.Error())
		return
	}

	encrypted, err := r.challenges.Issue(s.sid, key, m.InviteID)
	if err != nil {
		r.log.Error().Err(err).Str("sid", string(s.sid)).Msg("issue challenge")
		r.refuse(ctx, s, "challenge generation failed")
		return
	}
	r.send(s, protocol.AuthChallenge{Type: protocol.TypeAuthChallenge, EncryptedChallenge: encrypted})
}

func (r *Room) onChallengeResponse(ctx context.Context, s *session, m protocol.ChallengeResponse) {
	if s.authenticated() {
		r.sendError(s, domain.ErrAlreadyRegistered.Error())
		return
	}
	ch, err := r.challenges.Verify(s.sid, m.Response)
	if err != nil {
		r.refuse(ctx, s, err.Error())
		return
	}

	profile := ch.Key.Profile
	uid := profile.ID
	if r.state.bans.Banned(uid, s.addr) {
		r.refuse(ctx, s, domain.ErrBanned.Error())
		return
	}

	now := r.now()
	first := !r.state.initialized()
	cfg := r.state.config
	if first {
		cfg = domain.NewRoomConfig(uid)
	}
	persisted := r.state.roles[uid]

	req := auth.RoleRequest{
		Persisted:   persisted,
		FirstInRoom: first,
		Config:      cfg,
		Now:         now,
	}
	if ch.InviteID != "" {
		req.Invite = r.state.invites[ch.InviteID]
	}
	decision, err := auth.AssignRole(req)
	if err != nil {
		r.refuse(ctx, s, err.Error())
		return
	}

	var writes []write
	if first {
		writes = append(writes, write{keyConfig, cfg})
	}
	invites := r.state.invites
	if decision.RedeemInvite {
		invites = invites.Clone()
		invites[ch.InviteID].UsageCount++
		writes = append(writes, write{keyInvites, invites})
	}
	roles := r.state.cloneRoles()
	roles[uid] = decision.Role
	writes = append(writes, write{keyUserRoles, roles})

	if err := r.persist(ctx, writes...); err != nil {
		r.refuse(ctx, s, domain.ErrStorage.Error())
		return
	}
	r.state.config = cfg
	r.state.invites = invites
	r.state.roles = roles

	if old := r.sessions.byUserID(uid); old != nil && old.sid != s.sid {
		r.log.Info().Str("user", string(uid)).Str("old_sid", string(old.sid)).Msg("replacing previous connection")
		r.sessions.remove(old.sid)
		old.conn.Close()
	}
	r.sessions.authenticate(s, domain.Member{
		ID:        uid,
		Name:      profile.Name,
		Email:     profile.Email,
		PublicKey: ch.Key.Armored,
		Role:      decision.Role,
	}, now)

	r.log.Info().
		Str("sid", string(s.sid)).
		Str("user", string(uid)).
		Str("role", string(decision.Role)).
		Bool("creator", first).
		Msg("member authenticated")

	r.send(s, protocol.Registered{Type: protocol.TypeRegistered, Profile: profile, AssignedRole: decision.Role})
	r.sendRoomInfo(s)
	r.broadcastUserList()
	r.announceJoin(s, persisted.Valid())
}

func (r *Room) announceJoin(s *session, returning bool) {
	name := s.member.Name
	if !returning {
		r.systemNotice(fmt.Sprintf("%s joined the room", name), protocol.SysUserJoined)
		return
	}
	counter := r.state.counter()
	missed := counter - r.state.lastSeen[s.userID()]
	if counter > 0 && missed > 0 {
		r.systemNotice(fmt.Sprintf("%s reconnected (missed %d messages)", name, missed), protocol.SysUserReconnected)
		return
	}
	r.systemNotice(fmt.Sprintf("%s reconnected", name), protocol.SysUserReconnected)
}

// onDisconnect is idempotent: a session already removed is ignored.
func (r *Room) onDisconnect(ctx context.Context, sid core.SessionID) {
	s := r.sessions.remove(sid)
	r.challenges.Discard(sid)
	if s == nil || !s.authenticated() {
		return
	}
	uid := s.userID()

	if r.state.initialized() {
		lastSeen := r.state.cloneLastSeen()
		lastSeen[uid] = r.state.counter()
		if err := r.persist(ctx, write{keyLastSeen, lastSeen}); err != nil {
			r.log.Warn().Err(err).Str("user", string(uid)).Msg("last seen not persisted")
		}
		r.state.lastSeen = lastSeen
	}

	r.log.Info().Str("sid", string(sid)).Str("user", string(uid)).Int("remaining", r.sessions.memberCount()).Msg("member left")
	r.systemNotice(fmt.Sprintf("%s left the room", s.member.Name), protocol.SysUserDisconnected)
	r.broadcastUserList()

	if r.sessions.memberCount() == 0 {
		r.purge(ctx)
	}
}
