package room

import (
	"context"
	"errors"

	"github.com/dkeye/Cipher/internal/core"
	"github.com/dkeye/Cipher/internal/domain"
	"github.com/dkeye/Cipher/internal/protocol"
)

// send delivers v to one session. A failed send schedules the session for eviction.
func (r *Room) send(s *session, v any) {
	f, err := protocol.Encode(v)
	if err != nil {
		r.log.Error().Err(err).Msg("encode outbound")
		return
	}
	if err := s.conn.TrySend(f); err != nil {
		r.log.Warn().Err(err).Str("sid", string(s.sid)).Msg("send failed")
		r.evictions = append(r.evictions, s.sid)
	}
}

func (r *Room) sendError(s *session, msg string) {
	r.send(s, protocol.NewError(msg))
}

// reject answers a failed operation: denials become permissionDenied, anything else an error.
func (r *Room) reject(s *session, err error) {
	var d *core.Denial
	if errors.As(err, &d) {
		r.send(s, protocol.NewPermissionDenied(d.Action, d.Reason))
		return
	}
	if errors.Is(err, domain.ErrStorage) {
		r.sendError(s, domain.ErrStorage.Error())
		return
	}
	r.sendError(s, err.Error())
}

// fanout sends v to every member accepted by include and, when perm is set,
// holding perm. Failed recipients are reported in Dropped and scheduled for eviction.
func (r *Room) fanout(v any, perm domain.Permission, include func(*session) bool) core.PublishResult {
	var res core.PublishResult
	f, err := protocol.Encode(v)
	if err != nil {
		r.log.Error().Err(err).Msg("encode broadcast")
		return res
	}
	privacy := r.state.privacy()
	for _, s := range r.sessions.members() {
		if include != nil && !include(s) {
			continue
		}
		if perm != "" && !core.HasPermission(s.role(), perm, privacy) {
			continue
		}
		if err := s.conn.TrySend(f); err != nil {
			r.log.Warn().Err(err).Str("sid", string(s.sid)).Msg("broadcast send failed")
			res.Dropped = append(res.Dropped, s.sid)
			continue
		}
		res.SendTo++
	}
	if len(res.Dropped) > 0 {
		r.log.Warn().Int("sent", res.SendTo).Int("dropped", len(res.Dropped)).Msg("broadcast partially delivered")
		r.evictions = append(r.evictions, res.Dropped...)
	}
	return res
}

// broadcast delivers to every member; only chat messages are filtered by permission.
func (r *Room) broadcast(v any) core.PublishResult {
	var perm domain.Permission
	if _, ok := v.(protocol.EncryptedMessage); ok {
		perm = domain.PermViewMessages
	}
	return r.fanout(v, perm, nil)
}

// broadcastTo delivers a chat message to the listed identities only.
func (r *Room) broadcastTo(v protocol.EncryptedMessage, ids map[domain.UserID]struct{}) core.PublishResult {
	return r.fanout(v, domain.PermViewMessages, func(s *session) bool {
		_, ok := ids[s.userID()]
		return ok
	})
}

func (r *Room) systemNotice(content, kind string) {
	r.broadcast(protocol.NewSystemMessage(content, kind, r.now().UnixMilli()))
}

func (r *Room) memberList() []domain.Member {
	ms := r.sessions.members()
	out := make([]domain.Member, 0, len(ms))
	for _, s := range ms {
		out = append(out, *s.member)
	}
	return out
}

// sendUserList sends the full list, or only the requester when they may not view it.
func (r *Room) sendUserList(s *session) {
	users := []domain.Member{*s.member}
	if core.HasPermission(s.role(), domain.PermViewUserList, r.state.privacy()) {
		users = r.memberList()
	}
	r.send(s, protocol.UserList{Type: protocol.TypeUserList, Users: users})
}

func (r *Room) broadcastUserList() {
	for _, s := range r.sessions.members() {
		r.sendUserList(s)
	}
}

func (r *Room) roomInfoFor(s *session) protocol.RoomInfo {
	cfg := r.state.config
	info := protocol.RoomInfo{
		Type:                       protocol.TypeRoomInfo,
		RoomType:                   cfg.Type,
		IsCreator:                  s.userID() == cfg.CreatorID,
		YourRole:                   s.role(),
		Privacy:                    cfg.Privacy,
		EnableMessageCount:         cfg.EnableMessageCount,
		MessageCountVisibleToUser:  cfg.MessageCountVisibleToUser,
		MessageCountVisibleToGuest: cfg.MessageCountVisibleToGuest,
	}
	if core.CanViewMessageCount(s.role(), cfg) {
		n := cfg.MessageCount
		info.MessageCount = &n
	}
	return info
}

func (r *Room) sendRoomInfo(s *session) {
	if r.state.config == nil {
		return
	}
	r.send(s, r.roomInfoFor(s))
}

func (r *Room) broadcastRoomInfo() {
	for _, s := range r.sessions.members() {
		r.sendRoomInfo(s)
	}
}

// evict closes the session's socket and runs the disconnection flow right away.
func (r *Room) evict(ctx context.Context, s *session) {
	s.conn.Close()
	r.onDisconnect(ctx, s.sid)
}

// flushEvictions disconnects sessions whose sends failed during the last event.
func (r *Room) flushEvictions(ctx context.Context) {
	for len(r.evictions) > 0 {
		sid := r.evictions[0]
		r.evictions = r.evictions[1:]
		s := r.sessions.get(sid)
		if s == nil {
			continue
		}
		r.log.Info().Str("sid", string(sid)).Msg("evicting unreachable session")
		r.evict(ctx, s)
	}
}
