// Package room implements the per-room actor. One goroutine owns all state of a
// room and handles connect, frame, disconnect and heartbeat events in arrival
// order, so nothing inside a Room is locked.
package room

import (
	"context"
	"errors"
	"fmt"
	"time"

	nanoid "github.com/jaevor/go-nanoid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/Cipher/internal/auth"
	"github.com/dkeye/Cipher/internal/core"
	"github.com/dkeye/Cipher/internal/domain"
	"github.com/dkeye/Cipher/internal/protocol"
	"github.com/dkeye/Cipher/internal/storage"
)

const (
	DefaultPingPeriod  = 30 * time.Second
	DefaultPongTimeout = 60 * time.Second
	defaultInboxSize   = 64
	storeTimeout       = 5 * time.Second
)

var ErrStopped = errors.New("room stopped")

type Options struct {
	ID    domain.RoomID
	Store storage.Store
	// Origin is used for invite URLs; when empty the first upgrade request's origin is used.
	Origin       string
	PingPeriod   time.Duration
	PongTimeout  time.Duration
	ChallengeTTL time.Duration
	InboxSize    int
	Now          func() time.Time
	// After delays Run until a previous actor of the same room has exited.
	After <-chan struct{}
}

type Room struct {
	id          domain.RoomID
	store       storage.Store
	now         func() time.Time
	pingPeriod  time.Duration
	pongTimeout time.Duration
	after       <-chan struct{}
	log         zerolog.Logger

	inbox chan event
	done  chan struct{}

	// owned by the Run goroutine
	sessions      *sessionTable
	challenges    *auth.Challenger
	state         *roomState
	origin        string
	defaultOrigin string
	evictions     []core.SessionID
	inviteCode    func() string
}

type event interface{}

type connectEvent struct {
	sid    core.SessionID
	conn   core.SignalConnection
	origin string
}

type frameEvent struct {
	sid  core.SessionID
	data []byte
}

type disconnectEvent struct {
	sid core.SessionID
}

type stopEvent struct{}

func New(opts Options) (*Room, error) {
	if !opts.ID.Valid() {
		return nil, domain.ErrInvalidRoomID
	}
	if opts.Store == nil {
		opts.Store = storage.NewMemoryStore()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.PingPeriod <= 0 {
		opts.PingPeriod = DefaultPingPeriod
	}
	if opts.PongTimeout <= 0 {
		opts.PongTimeout = DefaultPongTimeout
	}
	if opts.InboxSize <= 0 {
		opts.InboxSize = defaultInboxSize
	}
	ch, err := auth.NewChallenger(opts.ChallengeTTL, opts.Now)
	if err != nil {
		return nil, err
	}
	code, err := nanoid.CustomASCII(inviteAlphabet, domain.InviteCodeLen)
	if err != nil {
		return nil, fmt.Errorf("invite generator: %w", err)
	}
	return &Room{
		id:            opts.ID,
		store:         opts.Store,
		now:           opts.Now,
		pingPeriod:    opts.PingPeriod,
		pongTimeout:   opts.PongTimeout,
		after:         opts.After,
		log:           log.With().Str("module", "room").Str("room", string(opts.ID)).Logger(),
		inbox:         make(chan event, opts.InboxSize),
		done:          make(chan struct{}),
		sessions:      newSessionTable(),
		challenges:    ch,
		state:         emptyState(),
		origin:        opts.Origin,
		defaultOrigin: opts.Origin,
		inviteCode:    code,
	}, nil
}

func (r *Room) ID() domain.RoomID { return r.id }

// Done is closed once Run has returned.
func (r *Room) Done() <-chan struct{} { return r.done }

func (r *Room) post(ev event) error {
	select {
	case <-r.done:
		return ErrStopped
	default:
	}
	select {
	case r.inbox <- ev:
		return nil
	case <-r.done:
		return ErrStopped
	}
}

// Attach hands a freshly upgraded connection to the room as a pending session.
func (r *Room) Attach(sid core.SessionID, conn core.SignalConnection, origin string) error {
	return r.post(connectEvent{sid: sid, conn: conn, origin: origin})
}

// Deliver queues one inbound frame; it blocks while the inbox is full.
func (r *Room) Deliver(sid core.SessionID, data []byte) error {
	return r.post(frameEvent{sid: sid, data: data})
}

func (r *Room) Detach(sid core.SessionID) error {
	return r.post(disconnectEvent{sid: sid})
}

// Stop asks the actor to exit after the events already queued.
func (r *Room) Stop() error {
	return r.post(stopEvent{})
}

// Run restores persisted state and processes events until Stop or ctx cancellation.
func (r *Room) Run(ctx context.Context) error {
	defer close(r.done)

	if r.after != nil {
		select {
		case <-r.after:
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	if err := r.restore(ctx); err != nil {
		r.log.Error().Err(err).Msg("restore failed, starting empty")
		r.state = emptyState()
	}
	r.log.Info().Bool("initialized", r.state.initialized()).Msg("room started")

	ticker := time.NewTicker(r.pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			r.shutdown()
			return nil
		case <-ticker.C:
			r.heartbeat(ctx)
		case ev := <-r.inbox:
			if _, ok := ev.(stopEvent); ok {
				r.shutdown()
				return nil
			}
			r.handle(ctx, ev)
		}
		r.flushEvictions(ctx)
	}
}

func (r *Room) handle(ctx context.Context, ev event) {
	switch e := ev.(type) {
	case connectEvent:
		r.onConnect(e)
	case frameEvent:
		r.onFrame(ctx, e.sid, e.data)
	case disconnectEvent:
		r.onDisconnect(ctx, e.sid)
	default:
		r.log.Warn().Str("event", fmt.Sprintf("%T", ev)).Msg("unknown event")
	}
}

func (r *Room) shutdown() {
	for _, s := range r.sessions.all() {
		s.conn.Close()
	}
	r.log.Info().Int("sessions", r.sessions.len()).Msg("room stopped")
}

func (r *Room) onConnect(e connectEvent) {
	if r.origin == "" {
		r.origin = e.origin
	}
	r.sessions.add(&session{
		sid:         e.sid,
		conn:        e.conn,
		addr:        e.conn.RemoteAddr(),
		connectedAt: r.now(),
	})
	r.log.Debug().Str("sid", string(e.sid)).Str("addr", e.conn.RemoteAddr()).Msg("connection attached")
}

func (r *Room) onFrame(ctx context.Context, sid core.SessionID, data []byte) {
	s := r.sessions.get(sid)
	if s == nil {
		return
	}

	msg, err := protocol.Decode(data)
	if err != nil {
		r.log.Debug().Err(err).Str("sid", string(sid)).Msg("bad frame")
		r.sendError(s, err.Error())
		return
	}

	switch m := msg.(type) {
	case protocol.Ping:
		r.send(s, protocol.Bare{Type: protocol.TypePong})
		return
	case protocol.Pong:
		s.lastPong = r.now()
		return
	case protocol.Register:
		r.onRegister(ctx, s, m)
		return
	case protocol.ChallengeResponse:
		r.onChallengeResponse(ctx, s, m)
		return
	}

	if !s.authenticated() {
		r.sendError(s, domain.ErrNotRegistered.Error())
		return
	}

	switch m := msg.(type) {
	case protocol.GetUsers:
		r.sendUserList(s)
	case protocol.Message:
		r.onMessage(ctx, s, m)
	case protocol.ConvertRoomType:
		r.onConvertRoomType(ctx, s, m)
	case protocol.KickUser:
		r.onKickUser(ctx, s, m)
	case protocol.BanUser:
		r.onBanUser(ctx, s, m)
	case protocol.Unban:
		r.onUnban(ctx, s, m)
	case protocol.ChangeRole:
		r.onChangeRole(ctx, s, m)
	case protocol.GenerateInvite:
		r.onGenerateInvite(ctx, s, m)
	case protocol.UpdatePrivacyConfig:
		r.onUpdatePrivacyConfig(ctx, s, m)
	case protocol.GetBanList:
		r.onGetBanList(s)
	case protocol.GetInviteLinks:
		r.onGetInviteLinks(s)
	case protocol.DeleteInviteLink:
		r.onDeleteInviteLink(ctx, s, m)
	case protocol.TransferCreator:
		r.onTransferCreator(ctx, s, m)
	case protocol.UpdateMessageCountConfig:
		r.onUpdateMessageCountConfig(ctx, s, m)
	default:
		r.sendError(s, "unsupported message type: "+msg.MessageType())
	}
}
