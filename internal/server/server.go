package server

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-contrib/cors"
	ginzap "github.com/gin-contrib/zap"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/fluxtrade/orderflow/internal/config"
	"github.com/fluxtrade/orderflow/internal/orderflow"
	"github.com/fluxtrade/orderflow/pkg/metrics"
)

// APIResponse represents a standard API response
type APIResponse struct {
	Status    string      `json:"status"`
	Message   string      `json:"message"`
	Data      interface{} `json:"data,omitempty"`
	Error     string      `json:"error,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
}

// MarketDataUpdate is the ingestion payload for one scoring tick
type MarketDataUpdate struct {
	Timestamp time.Time                    `json:"timestamp"`
	Book      *orderflow.OrderBookSnapshot `json:"book" binding:"required"`
	Trades    []orderflow.Trade            `json:"trades"`
	Quotes    []orderflow.QuoteMessage     `json:"quotes"`
}

// Server exposes the scoring pipeline over HTTP
type Server struct {
	logger     *zap.Logger
	cfg        config.ServerConfig
	scorer     *orderflow.MicrostructureScorer
	flowScorer *orderflow.OrderFlowScorer
	started    time.Time
	httpServer *http.Server
}

// NewServer creates a new HTTP server around the two scorers
func NewServer(
	logger *zap.Logger,
	cfg config.ServerConfig,
	scorer *orderflow.MicrostructureScorer,
	flowScorer *orderflow.OrderFlowScorer,
) *Server {
	return &Server{
		logger:     logger,
		cfg:        cfg,
		scorer:     scorer,
		flowScorer: flowScorer,
		started:    time.Now(),
	}
}

// Router builds the gin engine with all routes registered
func (s *Server) Router() *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(ginzap.Ginzap(s.logger, time.RFC3339, true))
	router.Use(ginzap.RecoveryWithZap(s.logger, true))
	router.Use(cors.New(cors.Config{
		AllowOrigins:  []string{"*"},
		AllowMethods:  []string{"GET", "POST", "PUT", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Type", "Accept"},
		ExposeHeaders: []string{"Content-Length"},
		MaxAge:        12 * time.Hour,
	}))

	basePath := s.cfg.BasePath
	if basePath == "" {
		basePath = "/api/v1/orderflow"
	}
	api := router.Group(basePath)

	api.GET("/health", s.handleHealthCheck)
	api.POST("/ingest", s.handleIngest)
	api.GET("/score", s.handleGetScore)
	api.GET("/score/history", s.handleGetScoreHistory)
	api.GET("/flow", s.handleGetFlowScore)
	api.GET("/recommendations", s.handleGetRecommendations)
	api.GET("/opportunities", s.handleGetOpportunities)
	api.GET("/config", s.handleGetConfig)

	alerts := api.Group("/alerts")
	{
		alerts.GET("", s.handleListAlerts)
		alerts.PUT("/:id/acknowledge", s.handleAcknowledgeAlert)
	}

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	return router
}

// Start runs the HTTP server until the context is cancelled
func (s *Server) Start(ctx context.Context) error {
	if !s.cfg.Enabled {
		return nil
	}
	s.httpServer = &http.Server{
		Addr:    fmt.Sprintf(":%d", s.cfg.Port),
		Handler: s.Router(),
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("starting order flow API server", zap.String("addr", s.httpServer.Addr))
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return s.httpServer.Shutdown(shutdownCtx)
	}
}

// instrumentParams pulls the exchange/symbol pair every read endpoint
// requires
func instrumentParams(c *gin.Context) (string, string, bool) {
	exchange := c.Query("exchange")
	symbol := c.Query("symbol")
	if exchange == "" || symbol == "" {
		c.JSON(http.StatusBadRequest, APIResponse{
			Status:    "error",
			Message:   "exchange and symbol query parameters are required",
			Timestamp: time.Now(),
		})
		return "", "", false
	}
	return exchange, symbol, true
}

// handleHealthCheck handles health check requests
func (s *Server) handleHealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, APIResponse{
		Status:  "success",
		Message: "order flow analysis service health check",
		Data: map[string]interface{}{
			"status":     "healthy",
			"uptime":     time.Since(s.started).String(),
			"start_time": s.started,
		},
		Timestamp: time.Now(),
	})
}

// handleIngest runs one scoring tick over a posted market data update
func (s *Server) handleIngest(c *gin.Context) {
	var update MarketDataUpdate
	if err := c.ShouldBindJSON(&update); err != nil {
		c.JSON(http.StatusBadRequest, APIResponse{
			Status:    "error",
			Message:   "invalid market data payload",
			Error:     err.Error(),
			Timestamp: time.Now(),
		})
		return
	}
	if update.Timestamp.IsZero() {
		update.Timestamp = time.Now()
	}

	start := time.Now()
	score := s.scorer.UpdateMarketData(update.Timestamp, update.Book, update.Trades, update.Quotes)
	flowScore := s.flowScorer.CalculateScore(update.Timestamp, update.Book, update.Trades)
	metrics.ScoringLatency.Observe(time.Since(start).Seconds())

	if score == nil {
		c.JSON(http.StatusBadRequest, APIResponse{
			Status:    "error",
			Message:   "book snapshot is empty or missing a symbol",
			Timestamp: time.Now(),
		})
		return
	}

	metrics.ScoringTicks.WithLabelValues("microstructure", score.Symbol).Inc()
	metrics.ScoringTicks.WithLabelValues("orderflow", score.Symbol).Inc()
	metrics.ManipulationRisk.WithLabelValues(score.Exchange, score.Symbol).Set(score.ManipulationRisk)
	metrics.OverallScore.WithLabelValues(score.Exchange, score.Symbol).Set(score.OverallScore)

	c.JSON(http.StatusOK, APIResponse{
		Status:  "success",
		Message: "market data scored",
		Data: map[string]interface{}{
			"score":      score,
			"flow_score": flowScore,
		},
		Timestamp: time.Now(),
	})
}

// handleGetScore returns the latest microstructure score
func (s *Server) handleGetScore(c *gin.Context) {
	exchange, symbol, ok := instrumentParams(c)
	if !ok {
		return
	}
	score, found := s.scorer.LatestScore(exchange, symbol)
	if !found {
		c.JSON(http.StatusNotFound, APIResponse{
			Status:    "error",
			Message:   "no score available for instrument",
			Timestamp: time.Now(),
		})
		return
	}
	c.JSON(http.StatusOK, APIResponse{
		Status:    "success",
		Message:   "latest microstructure score",
		Data:      score,
		Timestamp: time.Now(),
	})
}

// handleGetScoreHistory returns recent scores, newest first
func (s *Server) handleGetScoreHistory(c *gin.Context) {
	exchange, symbol, ok := instrumentParams(c)
	if !ok {
		return
	}
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	c.JSON(http.StatusOK, APIResponse{
		Status:    "success",
		Message:   "score history",
		Data:      s.scorer.ScoreHistory(exchange, symbol, limit),
		Timestamp: time.Now(),
	})
}

// handleGetFlowScore returns the latest order flow score
func (s *Server) handleGetFlowScore(c *gin.Context) {
	exchange, symbol, ok := instrumentParams(c)
	if !ok {
		return
	}
	score, found := s.flowScorer.LatestScore(exchange, symbol)
	if !found {
		c.JSON(http.StatusNotFound, APIResponse{
			Status:    "error",
			Message:   "no flow score available for instrument",
			Timestamp: time.Now(),
		})
		return
	}
	c.JSON(http.StatusOK, APIResponse{
		Status:    "success",
		Message:   "latest order flow score",
		Data:      score,
		Timestamp: time.Now(),
	})
}

// handleGetRecommendations returns trading recommendations
func (s *Server) handleGetRecommendations(c *gin.Context) {
	exchange, symbol, ok := instrumentParams(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, APIResponse{
		Status:    "success",
		Message:   "trading recommendations",
		Data:      s.scorer.GetTradingRecommendations(exchange, symbol),
		Timestamp: time.Now(),
	})
}

// handleGetOpportunities returns recent trading opportunities
func (s *Server) handleGetOpportunities(c *gin.Context) {
	exchange, symbol, ok := instrumentParams(c)
	if !ok {
		return
	}
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	c.JSON(http.StatusOK, APIResponse{
		Status:    "success",
		Message:   "recent trading opportunities",
		Data:      s.flowScorer.GetRecentOpportunities(exchange, symbol, limit),
		Timestamp: time.Now(),
	})
}

// handleListAlerts returns queued alerts, newest first
func (s *Server) handleListAlerts(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "100"))
	c.JSON(http.StatusOK, APIResponse{
		Status:    "success",
		Message:   "alerts",
		Data:      s.scorer.Alerts(limit),
		Timestamp: time.Now(),
	})
}

// handleAcknowledgeAlert marks an alert acknowledged
func (s *Server) handleAcknowledgeAlert(c *gin.Context) {
	id := c.Param("id")
	if !s.scorer.AcknowledgeAlert(id) {
		c.JSON(http.StatusNotFound, APIResponse{
			Status:    "error",
			Message:   "alert not found",
			Timestamp: time.Now(),
		})
		return
	}
	c.JSON(http.StatusOK, APIResponse{
		Status:    "success",
		Message:   "alert acknowledged",
		Timestamp: time.Now(),
	})
}

// handleGetConfig echoes the live service configuration
func (s *Server) handleGetConfig(c *gin.Context) {
	c.JSON(http.StatusOK, APIResponse{
		Status:    "success",
		Message:   "service configuration",
		Data:      s.cfg,
		Timestamp: time.Now(),
	})
}
