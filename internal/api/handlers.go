package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
)

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
		"time":   time.Now().UTC(),
	})
}

func (s *Server) handleStatus(c *gin.Context) {
	reason, exitedAt := s.manager.LastExit()
	c.JSON(http.StatusOK, gin.H{
		"engine":           s.engine.Status(),
		"has_active_order": s.manager.HasActiveOrder(),
		"cooldown_active":  s.manager.CooldownActive(),
		"last_exit_reason": string(reason),
		"last_exit_time":   exitedAt,
	})
}

func (s *Server) handleOrders(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"orders": s.manager.Orders()})
}

func (s *Server) handleActiveOrder(c *gin.Context) {
	order, ok := s.manager.ActiveOrder()
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "no active order"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"order":             order,
		"unrealized_points": order.UnrealizedPoints(),
		"unrealized_profit": order.UnrealizedPoints() * float64(order.Quantity),
	})
}

func (s *Server) handleOrderByID(c *gin.Context) {
	order, ok := s.manager.GetOrder(c.Param("id"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "order not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"order":             order,
		"milestone_history": order.MilestoneHistory,
	})
}

func (s *Server) handleRecentTrades(c *gin.Context) {
	if s.trades == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "trade history not configured"})
		return
	}
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	rows, err := s.trades.RecentClosedOrders(c.Request.Context(), limit)
	if err != nil {
		s.logger.Error().Err(err).Msg("Failed to load recent trades")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load trades"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"trades": rows, "count": len(rows)})
}
