package room

import (
	"context"

	"github.com/dkeye/Cipher/internal/protocol"
)

// heartbeat evicts members silent for longer than the pong timeout and pings the rest.
func (r *Room) heartbeat(ctx context.Context) {
	now := r.now()
	for _, s := range r.sessions.members() {
		if now.Sub(s.lastPong) > r.pongTimeout {
			r.log.Info().Str("sid", string(s.sid)).Str("user", string(s.userID())).
				Dur("silent", now.Sub(s.lastPong)).Msg("heartbeat timeout")
			r.evict(ctx, s)
			continue
		}
		r.send(s, protocol.Bare{Type: protocol.TypePing})
	}
}
