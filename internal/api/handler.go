package api

import (
	"context"
	"net/http"
	"time"

	"trading-bot/internal/bot"
	"trading-bot/internal/events"
	"trading-bot/internal/monitor"
	"trading-bot/pkg/db"

	"github.com/gin-gonic/gin"
)

// Controller is the slice of the trading loop the HTTP layer drives.
type Controller interface {
	Start() error
	Stop(ctx context.Context) error
	Running() bool
	Status(ctx context.Context) bot.Status
	ToggleMarket(market string) (added bool, err error)
	RefreshAsync() bool
	ForceRetrain(ctx context.Context) error
}

// Server wires HTTP endpoints around the bot and the event bus.
type Server struct {
	Router  *gin.Engine
	Bus     *events.Bus
	Bot     Controller
	Ledger  *db.Ledger
	Metrics *monitor.SystemMetrics
	Auth    AuthConfig
	Meta    SystemMeta
}

// SystemMeta describes runtime status exposed to the UI.
type SystemMeta struct {
	Execute    bool
	Exchange   string
	Markets    []string
	InstanceID string
	Version    string
}

func NewServer(ctrl Controller, ledger *db.Ledger, bus *events.Bus, metrics *monitor.SystemMetrics, auth AuthConfig, meta SystemMeta) *Server {
	r := gin.New()

	// Middleware stack (order matters!)
	r.Use(gin.Recovery())
	r.Use(RequestIDMiddleware())
	r.Use(RequestLogger(metrics))
	r.Use(RateLimitMiddleware())
	r.Use(TimeoutMiddleware(30 * time.Second))
	r.Use(CORSMiddleware())

	s := &Server{
		Router:  r,
		Bus:     bus,
		Bot:     ctrl,
		Ledger:  ledger,
		Metrics: metrics,
		Auth:    auth,
		Meta:    meta,
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	s.Router.GET("/health", s.health)
	s.Router.GET("/ws", s.websocket)

	api := s.Router.Group("/api")
	{
		api.GET("/system/status", s.getSystemStatus)
		api.GET("/metrics", s.getMetrics)

		api.POST("/auth/login", s.login)

		protected := api.Group("")
		protected.Use(AuthMiddleware(s.Auth.JWTSecret))
		{
			protected.GET("/status", s.getStatus)
			protected.GET("/positions", s.getPositions)
			protected.GET("/watchlist", s.getWatchlist)
			protected.GET("/recommendations", s.getRecommendations)
			protected.GET("/statistics", s.getStatistics)
			protected.GET("/trades", s.getTrades)
			protected.GET("/model", s.getModel)

			protected.POST("/bot/start", s.startBot)
			protected.POST("/bot/stop", s.stopBot)
			protected.POST("/bot/retrain", s.retrainModel)
			protected.POST("/watchlist/:market/toggle", s.toggleMarket)
			protected.POST("/recommendations/refresh", s.refreshRecommendations)
		}
	}
}

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) Start(addr string) error {
	return s.Router.Run(addr)
}
