package room

import (
	"sort"
	"time"

	"github.com/dkeye/Cipher/internal/core"
	"github.com/dkeye/Cipher/internal/domain"
)

// session is one live connection. member is nil until the challenge is answered.
type session struct {
	sid         core.SessionID
	conn        core.SignalConnection
	addr        string
	connectedAt time.Time

	member   *domain.Member
	joinSeq  uint64
	lastPong time.Time
}

func (s *session) authenticated() bool { return s.member != nil }

func (s *session) userID() domain.UserID {
	if s.member == nil {
		return ""
	}
	return s.member.ID
}

func (s *session) role() domain.Role {
	if s.member == nil {
		return ""
	}
	return s.member.Role
}

// sessionTable indexes sessions by connection id and authenticated sessions by identity.
type sessionTable struct {
	bySID  map[core.SessionID]*session
	byUser map[domain.UserID]core.SessionID
	seq    uint64
}

func newSessionTable() *sessionTable {
	return &sessionTable{
		bySID:  make(map[core.SessionID]*session),
		byUser: make(map[domain.UserID]core.SessionID),
	}
}

func (t *sessionTable) add(s *session) {
	t.bySID[s.sid] = s
}

func (t *sessionTable) get(sid core.SessionID) *session {
	return t.bySID[sid]
}

func (t *sessionTable) byUserID(id domain.UserID) *session {
	sid, ok := t.byUser[id]
	if !ok {
		return nil
	}
	return t.bySID[sid]
}

// authenticate promotes a pending session to a member. The caller removes any
// previous session of the same identity first.
func (t *sessionTable) authenticate(s *session, m domain.Member, now time.Time) {
	t.seq++
	s.member = &m
	s.joinSeq = t.seq
	s.lastPong = now
	t.byUser[m.ID] = s.sid
}

// remove deletes the session and returns it, or nil when it was already gone.
func (t *sessionTable) remove(sid core.SessionID) *session {
	s, ok := t.bySID[sid]
	if !ok {
		return nil
	}
	delete(t.bySID, sid)
	if s.member != nil && t.byUser[s.member.ID] == sid {
		delete(t.byUser, s.member.ID)
	}
	return s
}

// members returns authenticated sessions in join order.
func (t *sessionTable) members() []*session {
	out := make([]*session, 0, len(t.byUser))
	for _, sid := range t.byUser {
		if s := t.bySID[sid]; s != nil {
			out = append(out, s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].joinSeq < out[j].joinSeq })
	return out
}

func (t *sessionTable) all() []*session {
	out := make([]*session, 0, len(t.bySID))
	for _, s := range t.bySID {
		out = append(out, s)
	}
	return out
}

func (t *sessionTable) memberCount() int { return len(t.byUser) }

func (t *sessionTable) len() int { return len(t.bySID) }
