package http

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

// ConnectLimiter caps websocket upgrades per client address in a sliding window.
type ConnectLimiter struct {
	mu       sync.Mutex
	history  map[string][]time.Time
	limit    int
	interval time.Duration
	now      func() time.Time
}

func NewConnectLimiter(limit int, interval time.Duration) *ConnectLimiter {
	return &ConnectLimiter{
		history:  make(map[string][]time.Time),
		limit:    limit,
		interval: interval,
		now:      time.Now,
	}
}

// Allow records an attempt for addr unless the window is already full.
// A non-positive limit disables limiting.
func (rl *ConnectLimiter) Allow(addr string) bool {
	if rl.limit <= 0 {
		return true
	}
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	windowStart := now.Add(-rl.interval)

	attempts := rl.history[addr]
	fresh := make([]time.Time, 0, len(attempts)+1)
	for _, t := range attempts {
		if t.After(windowStart) {
			fresh = append(fresh, t)
		}
	}
	if len(fresh) >= rl.limit {
		rl.history[addr] = fresh
		return false
	}
	rl.history[addr] = append(fresh, now)

	// keep the map from growing with one-off clients
	if len(rl.history) > 1024 {
		for k, ts := range rl.history {
			if len(ts) == 0 || !ts[len(ts)-1].After(windowStart) {
				delete(rl.history, k)
			}
		}
	}
	return true
}

// Middleware rejects over-limit clients with 429.
func (rl *ConnectLimiter) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !rl.Allow(c.ClientIP()) {
			log.Warn().Str("module", "adapters.http").Str("addr", c.ClientIP()).Msg("connect rate limited")
			c.AbortWithStatus(http.StatusTooManyRequests)
			return
		}
		c.Next()
	}
}
