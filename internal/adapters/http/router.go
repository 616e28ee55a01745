package http

import (
	"fmt"
	"net/http"
	"path/filepath"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/Cipher/internal/adapters/signal"
	"github.com/dkeye/Cipher/internal/app"
	"github.com/dkeye/Cipher/internal/config"
	"github.com/dkeye/Cipher/internal/domain"
)

// Directory is what the front door needs from the room directory.
type Directory interface {
	signal.Rooms
	NewRoomID() domain.RoomID
	List() []app.RoomInfo
}

func SetupRouter(cfg *config.Config, dir Directory) (*gin.Engine, error) {
	if cfg.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	// room ids may contain percent-encoded slashes
	r.UseRawPath = true
	r.UnescapePathValues = true
	// ClientIP reads X-Forwarded-For only from these; none by default
	if err := r.SetTrustedProxies(cfg.TrustedProxies); err != nil {
		return nil, fmt.Errorf("trusted proxies: %w", err)
	}
	proxies, err := signal.ParseTrustedProxies(cfg.TrustedProxies)
	if err != nil {
		return nil, err
	}
	if cfg.Mode == "debug" {
		r.Use(gin.Logger())
	}
	r.Use(gin.Recovery())
	r.Use(cors.New(cors.Config{
		AllowAllOrigins: true,
		AllowMethods:    []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowHeaders:    []string{"Content-Type"},
		MaxAge:          12 * time.Hour,
	}))

	ctrl := signal.NewSignalWSController(dir, signal.Options{
		ReadLimit:      cfg.ReadLimit,
		PongWait:       cfg.PongTimeout,
		PublicOrigin:   cfg.PublicOrigin,
		TrustedProxies: proxies,
	})
	limiter := NewConnectLimiter(cfg.ConnectLimit, cfg.ConnectInterval)

	if cfg.StaticPath != "" {
		r.Static("/static", cfg.StaticPath)
		r.GET("/", func(c *gin.Context) {
			c.File(filepath.Join(cfg.StaticPath, "index.html"))
		})
	}

	log.Info().Str("module", "adapters.http").Str("static", cfg.StaticPath).Msg("router setup")

	api := r.Group("/api")

	api.POST("/room", func(c *gin.Context) {
		id := dir.NewRoomID()
		log.Info().Str("module", "adapters.http").Str("room", string(id)).Msg("room id allocated")
		c.String(http.StatusOK, string(id))
	})

	api.GET("/room/:roomId/websocket", roomIDParam(), limiter.Middleware(), func(c *gin.Context) {
		ctrl.HandleRoom(c, c.MustGet(roomIDKey).(domain.RoomID))
	})

	api.GET("/health", func(c *gin.Context) {
		rooms := dir.List()
		conns := 0
		for _, ri := range rooms {
			conns += ri.Connections
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok", "rooms": len(rooms), "connections": conns})
	})

	return r, nil
}

const roomIDKey = "room_id"

// roomIDParam rejects ids outside 1..256 characters after percent-decoding.
func roomIDParam() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := domain.RoomID(c.Param("roomId"))
		if !id.Valid() {
			c.String(http.StatusBadRequest, domain.ErrInvalidRoomID.Error())
			c.Abort()
			return
		}
		c.Set(roomIDKey, id)
		c.Next()
	}
}
