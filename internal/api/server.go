// Package api exposes the read-only query surface: bot status, active
// order detail with live P&L, and recent trade history.
package api

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"options-scalper-bot/config"
	"options-scalper-bot/internal/bot"
	"options-scalper-bot/internal/database"
	"options-scalper-bot/internal/lifecycle"
)

// RateLimiter is a simple in-memory per-client limiter.
type RateLimiter struct {
	mu       sync.Mutex
	requests map[string][]time.Time
	limit    int
	window   time.Duration
}

// NewRateLimiter creates a limiter allowing limit requests per window.
func NewRateLimiter(limit int, window time.Duration) *RateLimiter {
	return &RateLimiter{
		requests: make(map[string][]time.Time),
		limit:    limit,
		window:   window,
	}
}

// Allow checks and records a request for key.
func (r *RateLimiter) Allow(key string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now()
	windowStart := now.Add(-r.window)

	var recent []time.Time
	for _, t := range r.requests[key] {
		if t.After(windowStart) {
			recent = append(recent, t)
		}
	}
	if len(recent) >= r.limit {
		r.requests[key] = recent
		return false
	}
	r.requests[key] = append(recent, now)
	return true
}

// TradeHistory lists persisted closed trades.
type TradeHistory interface {
	RecentClosedOrders(ctx context.Context, limit int) ([]database.ClosedOrderRow, error)
}

// Server is the HTTP status server.
type Server struct {
	cfg     config.ServerConfig
	router  *gin.Engine
	engine  *bot.Engine
	manager *lifecycle.Manager
	trades  TradeHistory
	logger  zerolog.Logger
	limiter *RateLimiter
	httpSrv *http.Server
}

// NewServer builds the router. trades may be nil when the database is
// disabled.
func NewServer(cfg config.ServerConfig, engine *bot.Engine, manager *lifecycle.Manager, trades TradeHistory, logger zerolog.Logger) *Server {
	gin.SetMode(gin.ReleaseMode)

	s := &Server{
		cfg:     cfg,
		router:  gin.New(),
		engine:  engine,
		manager: manager,
		trades:  trades,
		logger:  logger.With().Str("component", "APIServer").Logger(),
		limiter: NewRateLimiter(60, time.Minute),
	}

	s.router.Use(gin.Recovery())
	s.router.Use(cors.New(cors.Config{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{"GET"},
		AllowHeaders: []string{"Authorization", "Content-Type"},
	}))

	s.router.GET("/health", s.handleHealth)

	authed := s.router.Group("/api")
	authed.Use(s.rateLimitMiddleware(), s.authMiddleware())
	{
		authed.GET("/status", s.handleStatus)
		authed.GET("/orders", s.handleOrders)
		authed.GET("/orders/active", s.handleActiveOrder)
		authed.GET("/orders/:id", s.handleOrderByID)
		authed.GET("/trades/recent", s.handleRecentTrades)
	}

	return s
}

// Start serves until Shutdown.
func (s *Server) Start() error {
	s.httpSrv = &http.Server{
		Addr:    fmt.Sprintf(":%d", s.cfg.Port),
		Handler: s.router,
	}
	s.logger.Info().Int("port", s.cfg.Port).Msg("API server starting")
	if err := s.httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown stops the server gracefully.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpSrv == nil {
		return nil
	}
	return s.httpSrv.Shutdown(ctx)
}
