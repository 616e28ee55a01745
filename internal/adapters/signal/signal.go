package signal

import (
	"fmt"
	"net/http"
	"net/netip"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/Cipher/internal/core"
	"github.com/dkeye/Cipher/internal/domain"
	"github.com/dkeye/Cipher/internal/room"
)

const (
	DefaultReadLimit  = 1 << 20
	DefaultPongWait   = 60 * time.Second
	DefaultSendBuffer = 64
	writeWait         = 5 * time.Second
)

// Rooms hands out room actors; every Acquire is paired with a Release.
type Rooms interface {
	Acquire(id domain.RoomID) (*room.Room, error)
	Release(id domain.RoomID)
}

type Options struct {
	ReadLimit int64
	// PongWait bounds the silence on the socket itself; control pings go out at 9/10 of it.
	PongWait   time.Duration
	SendBuffer int
	// PublicOrigin overrides the origin derived from the upgrade request.
	PublicOrigin string
	// TrustedProxies may set X-Forwarded-Proto and X-Forwarded-Host; anyone else gets r.Host.
	TrustedProxies []netip.Prefix
}

// ParseTrustedProxies accepts the same IP or CIDR list as gin's SetTrustedProxies.
func ParseTrustedProxies(list []string) ([]netip.Prefix, error) {
	out := make([]netip.Prefix, 0, len(list))
	for _, item := range list {
		item = strings.TrimSpace(item)
		if strings.Contains(item, "/") {
			p, err := netip.ParsePrefix(item)
			if err != nil {
				return nil, fmt.Errorf("trusted proxy %q: %w", item, err)
			}
			out = append(out, p.Masked())
			continue
		}
		a, err := netip.ParseAddr(item)
		if err != nil {
			return nil, fmt.Errorf("trusted proxy %q: %w", item, err)
		}
		a = a.Unmap()
		out = append(out, netip.PrefixFrom(a, a.BitLen()))
	}
	return out, nil
}

type SignalWSController struct {
	rooms    Rooms
	opts     Options
	upgrader websocket.Upgrader
}

func NewSignalWSController(rooms Rooms, opts Options) *SignalWSController {
	if opts.ReadLimit <= 0 {
		opts.ReadLimit = DefaultReadLimit
	}
	if opts.PongWait <= 0 {
		opts.PongWait = DefaultPongWait
	}
	if opts.SendBuffer <= 0 {
		opts.SendBuffer = DefaultSendBuffer
	}
	return &SignalWSController{
		rooms: rooms,
		opts:  opts,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

// WsSignalConn implements core.SignalConnection over a gorilla socket.
// Close is graceful: frames already queued are written before the socket closes.
type WsSignalConn struct {
	conn *websocket.Conn
	send chan core.Frame
	addr string

	mu     sync.RWMutex
	closed bool
}

func newWsSignalConn(ws *websocket.Conn, addr string, buffer int) *WsSignalConn {
	return &WsSignalConn{
		conn: ws,
		send: make(chan core.Frame, buffer),
		addr: addr,
	}
}

func (c *WsSignalConn) TrySend(f core.Frame) error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return core.ErrConnClosed
	}
	select {
	case c.send <- f:
	default:
		return core.ErrBackpressure
	}
	return nil
}

func (c *WsSignalConn) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	close(c.send)
}

func (c *WsSignalConn) RemoteAddr() string { return c.addr }

func (ctl *SignalWSController) trustedProxy(remoteIP string) bool {
	a, err := netip.ParseAddr(remoteIP)
	if err != nil {
		return false
	}
	a = a.Unmap()
	for _, p := range ctl.opts.TrustedProxies {
		if p.Contains(a) {
			return true
		}
	}
	return false
}

// requestOrigin is scheme://host as the browser saw it. Forwarded headers count
// only when the socket peer is a trusted proxy.
func (ctl *SignalWSController) requestOrigin(c *gin.Context) string {
	r := c.Request
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	host := r.Host
	if ctl.trustedProxy(c.RemoteIP()) {
		if strings.EqualFold(firstValue(r.Header.Get("X-Forwarded-Proto")), "https") {
			scheme = "https"
		}
		if fh := firstValue(r.Header.Get("X-Forwarded-Host")); fh != "" {
			host = fh
		}
	}
	return scheme + "://" + host
}

func firstValue(h string) string {
	v, _, _ := strings.Cut(h, ",")
	return strings.TrimSpace(v)
}

// HandleRoom upgrades the request and attaches the socket to the room's actor.
func (ctl *SignalWSController) HandleRoom(c *gin.Context, id domain.RoomID) {
	sid := core.SessionID(uuid.NewString())
	logger := log.With().Str("module", "signal").Str("sid", string(sid)).Str("room", string(id)).Logger()

	ws, err := ctl.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logger.Error().Err(err).Msg("ws upgrade")
		return
	}
	ws.SetReadLimit(ctl.opts.ReadLimit)

	r, err := ctl.rooms.Acquire(id)
	if err != nil {
		logger.Error().Err(err).Msg("acquire room")
		_ = ws.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseTryAgainLater, "room unavailable"),
			time.Now().Add(writeWait))
		_ = ws.Close()
		return
	}

	origin := ctl.opts.PublicOrigin
	if origin == "" {
		origin = ctl.requestOrigin(c)
	}
	// ClientIP honours X-Forwarded-For only from the engine's trusted proxies
	conn := newWsSignalConn(ws, c.ClientIP(), ctl.opts.SendBuffer)
	if err := r.Attach(sid, conn, origin); err != nil {
		logger.Error().Err(err).Msg("attach")
		ctl.rooms.Release(id)
		_ = ws.Close()
		return
	}
	logger.Info().Str("addr", conn.addr).Msg("new WS connection")

	go ctl.writePump(conn)
	go ctl.readPump(r, sid, conn)
}
