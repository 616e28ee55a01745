package room

import (
	"context"

	"github.com/dkeye/Cipher/internal/core"
	"github.com/dkeye/Cipher/internal/domain"
	"github.com/dkeye/Cipher/internal/pgp"
	"github.com/dkeye/Cipher/internal/protocol"
)

// onMessage relays an opaque ciphertext. Fresh messages take the next sequence
// number when counting is on; sync copies keep the original sender, time and number.
func (r *Room) onMessage(ctx context.Context, s *session, m protocol.Message) {
	if err := core.Require(s.role(), domain.PermSendMessages, r.state.privacy(),
		"sendMessage", "you are not allowed to send messages"); err != nil {
		r.reject(s, err)
		return
	}
	if !pgp.IsArmoredMessage(m.EncryptedData) {
		r.sendError(s, domain.ErrInvalidCiphertext.Error())
		return
	}

	out := protocol.EncryptedMessage{
		Type:          protocol.TypeEncryptedMessage,
		SenderID:      s.userID(),
		EncryptedData: m.EncryptedData,
		Timestamp:     r.now().UnixMilli(),
		ReplyTo:       m.ReplyTo,
		SyncedFrom:    m.SyncedFrom,
	}

	if from := m.SyncedFrom; from != nil {
		out.SenderID = from.OriginalSenderID
		out.Timestamp = from.OriginalTimestamp
		out.MessageNumber = from.OriginalMessageNumber
	} else if r.state.config.EnableMessageCount {
		cfg := r.state.config.Clone()
		cfg.MessageCount++
		if err := r.persist(ctx, write{keyConfig, cfg}); err != nil {
			r.reject(s, err)
			return
		}
		r.state.config = cfg
		n := cfg.MessageCount
		out.MessageNumber = &n
	}

	var res core.PublishResult
	if len(m.TargetUserIDs) == 0 {
		res = r.broadcast(out)
	} else {
		targets := make(map[domain.UserID]struct{}, len(m.TargetUserIDs)+1)
		for _, id := range m.TargetUserIDs {
			targets[id] = struct{}{}
		}
		targets[s.userID()] = struct{}{}
		res = r.broadcastTo(out, targets)
	}
	r.log.Debug().
		Str("user", string(s.userID())).
		Int("sent", res.SendTo).
		Int("dropped", len(res.Dropped)).
		Bool("targeted", len(m.TargetUserIDs) > 0).
		Msg("message relayed")
}
