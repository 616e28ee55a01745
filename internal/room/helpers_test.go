package room

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/dkeye/Cipher/internal/core"
	"github.com/dkeye/Cipher/internal/domain"
	"github.com/dkeye/Cipher/internal/pgp/pgptest"
	"github.com/dkeye/Cipher/internal/storage"
)

const testCiphertext = "-----BEGIN PGP MESSAGE-----\n\nwcBMA0xyz\n-----END PGP MESSAGE-----\n"

type fakeConn struct {
	addr   string
	frames []core.Frame
	closed bool
	// failSends makes every TrySend report backpressure.
	failSends bool
}

func (c *fakeConn) TrySend(f core.Frame) error {
	if c.closed {
		return core.ErrConnClosed
	}
	if c.failSends {
		return core.ErrBackpressure
	}
	c.frames = append(c.frames, f)
	return nil
}

func (c *fakeConn) Close()             { c.closed = true }
func (c *fakeConn) RemoteAddr() string { return c.addr }

type fakeClock struct{ t time.Time }

func (c *fakeClock) Now() time.Time          { return c.t }
func (c *fakeClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

type harness struct {
	t     *testing.T
	ctx   context.Context
	room  *Room
	clock *fakeClock
	store storage.Store
}

func newHarness(t *testing.T, store storage.Store) *harness {
	t.Helper()
	if store == nil {
		store = storage.NewMemoryStore()
	}
	clk := &fakeClock{t: time.UnixMilli(1_700_000_000_000)}
	r, err := New(Options{
		ID:     "lobby-01",
		Store:  store,
		Origin: "https://chat.example",
		Now:    clk.Now,
	})
	require.NoError(t, err)
	h := &harness{t: t, ctx: context.Background(), room: r, clock: clk, store: store}
	require.NoError(t, r.restore(h.ctx))
	return h
}

// dispatch runs one event the way Run does.
func (h *harness) dispatch(ev event) {
	h.room.handle(h.ctx, ev)
	h.room.flushEvictions(h.ctx)
}

func (h *harness) connect(sid, addr string) *fakeConn {
	c := &fakeConn{addr: addr}
	h.dispatch(connectEvent{sid: core.SessionID(sid), conn: c, origin: "http://ignored"})
	return c
}

func (h *harness) send(sid string, msg map[string]any) {
	h.t.Helper()
	b, err := json.Marshal(msg)
	require.NoError(h.t, err)
	h.dispatch(frameEvent{sid: core.SessionID(sid), data: b})
}

func (h *harness) disconnect(sid string) {
	h.dispatch(disconnectEvent{sid: core.SessionID(sid)})
}

type client struct {
	h    *harness
	sid  string
	id   *pgptest.Identity
	conn *fakeConn
}

func (c *client) uid() domain.UserID { return domain.UserID(c.id.Fingerprint()) }

func (c *client) send(msg map[string]any) { c.h.send(c.sid, msg) }

// messages decodes every frame received of the given type, oldest first.
func (c *client) messages(typ string) []map[string]any {
	c.h.t.Helper()
	var out []map[string]any
	for _, f := range c.conn.frames {
		var m map[string]any
		require.NoError(c.h.t, json.Unmarshal(f, &m))
		if m["type"] == typ {
			out = append(out, m)
		}
	}
	return out
}

func (c *client) last(typ string) map[string]any {
	c.h.t.Helper()
	ms := c.messages(typ)
	if len(ms) == 0 {
		return nil
	}
	return ms[len(ms)-1]
}

func (c *client) reset() { c.conn.frames = nil }

// register connects a fresh key and sends register, stopping before the challenge is answered.
func (h *harness) register(sid, name, addr, invite string) *client {
	h.t.Helper()
	return h.registerIdentity(sid, pgptest.NewIdentity(h.t, name, name+"@example.org"), addr, invite)
}

func (h *harness) registerIdentity(sid string, id *pgptest.Identity, addr, invite string) *client {
	h.t.Helper()
	c := &client{h: h, sid: sid, id: id, conn: h.connect(sid, addr)}
	msg := map[string]any{"type": "register", "publicKey": id.PublicKey}
	if invite != "" {
		msg["inviteId"] = invite
	}
	c.send(msg)
	return c
}

// answer decrypts the last challenge and echoes it back.
func (c *client) answer() {
	c.h.t.Helper()
	ch := c.last("authChallenge")
	require.NotNil(c.h.t, ch, "no challenge received")
	plain := c.id.Decrypt(c.h.t, ch["encryptedChallenge"].(string))
	c.send(map[string]any{"type": "challengeResponse", "response": plain})
}

// join runs the full handshake and requires success.
func (h *harness) join(sid, name string) *client {
	h.t.Helper()
	c := h.register(sid, name, "10.0.0."+sid, "")
	c.answer()
	require.NotNil(h.t, c.last("registered"), "%s not registered", name)
	return c
}

func (h *harness) rejoin(sid string, id *pgptest.Identity, invite string) *client {
	h.t.Helper()
	c := h.registerIdentity(sid, id, "10.0.1."+sid, invite)
	c.answer()
	return c
}

func (h *harness) joinWithInvite(sid, name, invite string) *client {
	h.t.Helper()
	c := h.register(sid, name, "10.0.0."+sid, invite)
	c.answer()
	return c
}

func roleOf(m map[string]any) domain.Role {
	if m == nil {
		return ""
	}
	return domain.Role(m["assignedRole"].(string))
}
