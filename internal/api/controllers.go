package api

import (
	"errors"
	"net/http"
	"strconv"

	"trading-bot/internal/bot"

	"github.com/gin-gonic/gin"
)

// getSystemStatus reports runtime metadata without requiring auth, so the UI
// can render its header before login.
func (s *Server) getSystemStatus(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"running":     s.Bot.Running(),
		"execute":     s.Meta.Execute,
		"exchange":    s.Meta.Exchange,
		"markets":     s.Meta.Markets,
		"instance_id": s.Meta.InstanceID,
		"version":     s.Meta.Version,
	})
}

func (s *Server) getMetrics(c *gin.Context) {
	if s.Metrics == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"code":  "METRICS_UNAVAILABLE",
			"error": "metrics collection is disabled",
		})
		return
	}
	c.JSON(http.StatusOK, s.Metrics.GetSnapshot())
}

func (s *Server) getStatus(c *gin.Context) {
	c.JSON(http.StatusOK, s.Bot.Status(c.Request.Context()))
}

func (s *Server) getPositions(c *gin.Context) {
	st := s.Bot.Status(c.Request.Context())
	positions := st.Positions
	if positions == nil {
		positions = []bot.PositionView{}
	}
	c.JSON(http.StatusOK, gin.H{"positions": positions})
}

func (s *Server) getWatchlist(c *gin.Context) {
	st := s.Bot.Status(c.Request.Context())
	watchlist := st.Watchlist
	if watchlist == nil {
		watchlist = []bot.WatchlistView{}
	}
	c.JSON(http.StatusOK, gin.H{
		"watchlist": watchlist,
		"cooldowns": st.Cooldowns,
	})
}

func (s *Server) getRecommendations(c *gin.Context) {
	st := s.Bot.Status(c.Request.Context())
	c.JSON(http.StatusOK, gin.H{
		"recommendations": st.Recommendations,
		"recommended_at":  st.RecommendedAt,
	})
}

func (s *Server) getStatistics(c *gin.Context) {
	stats, err := s.Ledger.Statistics(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"code":  "INTERNAL_ERROR",
			"error": err.Error(),
		})
		return
	}
	st := s.Bot.Status(c.Request.Context())
	c.JSON(http.StatusOK, gin.H{
		"lifetime":         stats,
		"session_trades":   st.SessionTrades,
		"session_wins":     st.SessionWins,
		"session_win_rate": st.SessionWinRate,
	})
}

func (s *Server) getTrades(c *gin.Context) {
	limit := 50
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > 500 {
			c.JSON(http.StatusBadRequest, gin.H{
				"code":  "INVALID_LIMIT",
				"error": "limit must be between 1 and 500",
			})
			return
		}
		limit = n
	}

	trades, err := s.Ledger.RecentTrades(c.Request.Context(), limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"code":  "INTERNAL_ERROR",
			"error": err.Error(),
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{"trades": trades})
}

func (s *Server) getModel(c *gin.Context) {
	st := s.Bot.Status(c.Request.Context())
	resp := gin.H{"model": st.Model}
	if rec, err := s.Ledger.LastModelRecord(c.Request.Context()); err == nil {
		resp["last_training"] = rec
	}
	c.JSON(http.StatusOK, resp)
}

func (s *Server) startBot(c *gin.Context) {
	if err := s.Bot.Start(); err != nil {
		if errors.Is(err, bot.ErrAlreadyRunning) {
			c.JSON(http.StatusConflict, gin.H{
				"code":  "ALREADY_RUNNING",
				"error": err.Error(),
			})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{
			"code":  "INTERNAL_ERROR",
			"error": err.Error(),
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{"running": true})
}

func (s *Server) stopBot(c *gin.Context) {
	if err := s.Bot.Stop(c.Request.Context()); err != nil {
		if errors.Is(err, bot.ErrNotRunning) {
			c.JSON(http.StatusConflict, gin.H{
				"code":  "NOT_RUNNING",
				"error": err.Error(),
			})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{
			"code":  "INTERNAL_ERROR",
			"error": err.Error(),
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{"running": false})
}

func (s *Server) retrainModel(c *gin.Context) {
	if err := s.Bot.ForceRetrain(c.Request.Context()); err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{
			"code":  "RETRAIN_FAILED",
			"error": err.Error(),
		})
		return
	}
	st := s.Bot.Status(c.Request.Context())
	c.JSON(http.StatusOK, gin.H{"model": st.Model})
}

func (s *Server) toggleMarket(c *gin.Context) {
	market := c.Param("market")
	added, err := s.Bot.ToggleMarket(market)
	if err != nil {
		c.JSON(http.StatusConflict, gin.H{
			"code":  "TOGGLE_REJECTED",
			"error": err.Error(),
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{"market": market, "added": added})
}

// refreshRecommendations schedules an asynchronous refresh. Overlapping
// requests coalesce into the in-flight run.
func (s *Server) refreshRecommendations(c *gin.Context) {
	if !s.Bot.RefreshAsync() {
		c.JSON(http.StatusConflict, gin.H{
			"code":  "REFRESH_BUSY",
			"error": "refresh already in progress or bot not running",
		})
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"scheduled": true})
}
