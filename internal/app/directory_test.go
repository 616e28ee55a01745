package app

import (
	"context"
	"regexp"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dkeye/Cipher/internal/core"
	"github.com/dkeye/Cipher/internal/domain"
	"github.com/dkeye/Cipher/internal/room"
	"github.com/dkeye/Cipher/internal/storage"
)

type chanConn struct {
	frames chan core.Frame
	once   sync.Once
	closed chan struct{}
}

func newChanConn() *chanConn {
	return &chanConn{frames: make(chan core.Frame, 16), closed: make(chan struct{})}
}

func (c *chanConn) TrySend(f core.Frame) error {
	select {
	case c.frames <- f:
		return nil
	default:
		return core.ErrBackpressure
	}
}

func (c *chanConn) Close()             { c.once.Do(func() { close(c.closed) }) }
func (c *chanConn) RemoteAddr() string { return "127.0.0.1" }

func (c *chanConn) next(t *testing.T) string {
	t.Helper()
	select {
	case f := <-c.frames:
		return string(f)
	case <-time.After(2 * time.Second):
		t.Fatal("no frame")
		return ""
	}
}

func newTestDirectory(t *testing.T) (*Directory, context.CancelFunc) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	d, err := NewDirectory(ctx, room.Options{Store: storage.NewMemoryStore(), Origin: "http://localhost"})
	require.NoError(t, err)
	return d, cancel
}

func TestNewRoomID(t *testing.T) {
	d, cancel := newTestDirectory(t)
	defer cancel()

	re := regexp.MustCompile(`^[0-9a-zA-Z]{10}$`)
	seen := map[domain.RoomID]bool{}
	for i := 0; i < 100; i++ {
		id := d.NewRoomID()
		assert.Regexp(t, re, string(id))
		assert.False(t, seen[id])
		seen[id] = true
	}
}

func TestAcquireSharesOneActor(t *testing.T) {
	d, cancel := newTestDirectory(t)
	defer cancel()

	a, err := d.Acquire("room-1")
	require.NoError(t, err)
	b, err := d.Acquire("room-1")
	require.NoError(t, err)
	assert.Same(t, a, b)
	assert.Equal(t, []RoomInfo{{ID: "room-1", Connections: 2}}, d.List())

	d.Release("room-1")
	assert.Equal(t, []RoomInfo{{ID: "room-1", Connections: 1}}, d.List())

	d.Release("room-1")
	assert.Empty(t, d.List())
	select {
	case <-a.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("actor not stopped after last release")
	}

	// unknown ids are ignored
	d.Release("room-1")
}

func TestReacquireStartsFreshActor(t *testing.T) {
	d, cancel := newTestDirectory(t)
	defer cancel()

	old, err := d.Acquire("room-2")
	require.NoError(t, err)
	d.Release("room-2")

	r, err := d.Acquire("room-2")
	require.NoError(t, err)
	assert.NotSame(t, old, r)
	<-old.Done()

	conn := newChanConn()
	require.NoError(t, r.Attach("s1", conn, ""))
	require.NoError(t, r.Deliver("s1", []byte(`{"type":"ping"}`)))
	assert.JSONEq(t, `{"type":"pong"}`, conn.next(t))

	require.NoError(t, r.Detach("s1"))
	d.Release("room-2")
}

func TestAcquireRejectsInvalidID(t *testing.T) {
	d, cancel := newTestDirectory(t)
	defer cancel()

	_, err := d.Acquire("")
	assert.ErrorIs(t, err, domain.ErrInvalidRoomID)
	assert.Empty(t, d.List())
}

func TestShutdownStopsActors(t *testing.T) {
	d, cancel := newTestDirectory(t)

	r, err := d.Acquire("room-3")
	require.NoError(t, err)
	conn := newChanConn()
	require.NoError(t, r.Attach("s1", conn, ""))
	require.NoError(t, r.Deliver("s1", []byte(`{"type":"ping"}`)))
	conn.next(t)

	cancel()
	require.NoError(t, d.Wait())
	<-conn.closed

	_, err = d.Acquire("room-4")
	assert.ErrorIs(t, err, ErrClosed)
}
