package http

import (
	"context"
	"net/http"
	"time"

	"github.com/dkeye/HangHub/internal/adapters/signal"
	"github.com/dkeye/HangHub/internal/app/orch"
	"github.com/dkeye/HangHub/internal/bus"
	"github.com/dkeye/HangHub/internal/config"
	"github.com/dkeye/HangHub/internal/domain"
	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

const clientTokenKey = "ct"

func genClientToken() string {
	idStr := uuid.NewString()
	return idStr
}

// ClientTokenMiddleware gives every browser a stable token in the signed
// session cookie. It keys connect rate limiting and whoami.
func ClientTokenMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		sess := sessions.Default(c)
		token, _ := sess.Get(clientTokenKey).(string)
		if token == "" {
			token = genClientToken()
			sess.Set(clientTokenKey, token)
			if err := sess.Save(); err != nil {
				log.Warn().Err(err).Str("module", "adapters.http").Msg("session save")
			}
		}
		c.Set("client_token", token)
		c.Next()
	}
}

func SetupRouter(ctx context.Context, cfg *config.Config, o *orch.Orchestrator, backbone bus.Bus) *gin.Engine {
	if cfg.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	if cfg.Mode == "debug" {
		r.Use(gin.Logger())
	}
	r.Use(gin.Recovery())

	store := cookie.NewStore([]byte(cfg.Secret))
	store.Options(sessions.Options{Path: "/", MaxAge: 3600 * 24 * 7, HttpOnly: true})
	r.Use(sessions.Sessions("HangHubSessions", store))
	r.Use(ClientTokenMiddleware())

	r.GET("/healthz", func(c *gin.Context) {
		pingCtx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()
		if err := backbone.Ping(pingCtx); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded", "error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok", "sessions": o.Registry.Count()})
	})

	log.Info().Str("module", "adapters.http").Str("mode", cfg.Mode).Msg("router setup")

	api := r.Group("/api")

	ctrl := signal.NewSignalWSController(o, signal.Settings{
		ReadLimit:  cfg.ReadLimit,
		PingPeriod: cfg.PingPeriod,
		PongWait:   cfg.PongWait,
		WriteWait:  cfg.WriteWait,
		SendBuffer: cfg.SendBuffer,
	})
	limiter := signal.NewConnectRateLimiter(cfg.ConnectRate.Limit, cfg.ConnectRate.Interval)

	api.GET("/ws/presence", func(c *gin.Context) {
		client := c.GetString("client_token")
		if !limiter.Allow(client) {
			log.Warn().Str("module", "adapters.http").Str("client", client).Msg("connect rate limited")
			c.JSON(http.StatusTooManyRequests, gin.H{"error": "too many connections"})
			return
		}
		log.Debug().Str("module", "adapters.http").Str("client", client).Msg("ws presence endpoint hit")
		ctrl.HandleSignal(ctx, c)
	})

	api.GET("/rooms", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"rooms": o.Rooms.List()})
	})

	api.GET("/presence/*path", func(c *gin.Context) {
		key, page, ok := domain.RoomKeyFromPath(c.Param("path"))
		if !ok {
			c.JSON(http.StatusNotFound, gin.H{"error": "not an issue or pull request page"})
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"repoName": key.Repo,
			"issueId":  key.Issue,
			"page":     page,
			"users":    nonNil(o.Rooms.Snapshot(key)),
		})
	})

	// Operator eviction: every local viewer of the room is disconnected.
	api.DELETE("/presence/*path", func(c *gin.Context) {
		key, _, ok := domain.RoomKeyFromPath(c.Param("path"))
		if !ok {
			c.JSON(http.StatusNotFound, gin.H{"error": "not an issue or pull request page"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"kicked": o.EvictRoom(key)})
	})

	return r
}

func nonNil(users []domain.User) []domain.User {
	if users == nil {
		return []domain.User{}
	}
	return users
}
