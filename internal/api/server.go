package api

import (
	"context"
	"net/http"
	"time"

	"github.com/hamgua/alpha-trading-bot-okx-sub001/internal/api/handlers"
	"github.com/hamgua/alpha-trading-bot-okx-sub001/internal/api/middleware"
	"github.com/hamgua/alpha-trading-bot-okx-sub001/internal/api/websocket"
	"github.com/hamgua/alpha-trading-bot-okx-sub001/internal/orchestrator"
	"github.com/hamgua/alpha-trading-bot-okx-sub001/internal/storage"
	"github.com/labstack/echo/v4"
	echoMiddleware "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog/log"
)

// ServerConfig holds server configuration.
type ServerConfig struct {
	Port            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
	CORSOrigins     []string
	Symbol          string
	Timeframe       string
}

// DefaultServerConfig returns default configuration.
func DefaultServerConfig() *ServerConfig {
	return &ServerConfig{
		Port:            ":8080",
		ReadTimeout:     30 * time.Second,
		WriteTimeout:    30 * time.Second,
		ShutdownTimeout: 10 * time.Second,
		CORSOrigins:     []string{"*"},
	}
}

// Server is the read-only status and manual-override API (ambient
// observability surface, narrowed from the teacher's multi-tenant,
// auth-gated dashboard/strategy/risk/backtest API down to the single-bot,
// no-auth surface this spec's single-symbol engine actually needs: status,
// candles, ticker, position, and a manual close override).
type Server struct {
	config       *ServerConfig
	echo         *echo.Echo
	orchestrator *orchestrator.Orchestrator
	wsHub        *websocket.Hub
}

// NewServer creates a new API server.
func NewServer(config *ServerConfig, orch *orchestrator.Orchestrator, store *storage.TieredStore) *Server {
	if config == nil {
		config = DefaultServerConfig()
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	server := &Server{
		config:       config,
		echo:         e,
		orchestrator: orch,
		wsHub:        websocket.NewHub(),
	}

	server.setupMiddleware()
	server.setupRoutes(store)

	return server
}

func (s *Server) setupMiddleware() {
	s.echo.Use(echoMiddleware.Recover())
	s.echo.Use(middleware.Logger())
	s.echo.Use(echoMiddleware.CORSWithConfig(echoMiddleware.CORSConfig{
		AllowOrigins: s.config.CORSOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowHeaders: []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept},
	}))
	s.echo.Use(echoMiddleware.RequestID())
	s.echo.Use(echoMiddleware.Gzip())
}

func (s *Server) setupRoutes(store *storage.TieredStore) {
	statusHandler := handlers.NewStatusHandler(s.orchestrator)
	positionHandler := handlers.NewPositionHandler(s.orchestrator)
	candleHandler := handlers.NewCandleHandler(store, s.orchestrator, s.config.Symbol, s.config.Timeframe)

	s.echo.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"status": "healthy"})
	})

	v1 := s.echo.Group("/api/v1")

	v1.GET("/state", statusHandler.GetState)

	v1.GET("/position", positionHandler.GetPosition)
	v1.POST("/position/close", positionHandler.ClosePosition)

	v1.GET("/candles", candleHandler.GetCandles)
	v1.GET("/ticker", candleHandler.GetTicker)

	s.echo.GET("/ws", s.handleWebSocket)
}

func (s *Server) handleWebSocket(c echo.Context) error {
	return websocket.HandleConnection(c, s.wsHub, s.orchestrator)
}

// Start starts the server.
func (s *Server) Start() error {
	go s.wsHub.Run()
	go s.forwardBroadcasts()

	log.Info().Str("port", s.config.Port).Msg("starting status API server")
	return s.echo.Start(s.config.Port)
}

func (s *Server) forwardBroadcasts() {
	if s.orchestrator == nil {
		return
	}

	ch := s.orchestrator.Subscribe("api-server")
	if ch == nil {
		return
	}

	for msg := range ch {
		s.wsHub.Broadcast(msg)
	}
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), s.config.ShutdownTimeout)
	defer cancel()

	s.wsHub.Close()

	if s.orchestrator != nil {
		s.orchestrator.Unsubscribe("api-server")
	}

	log.Info().Msg("shutting down status API server")
	return s.echo.Shutdown(ctx)
}

// GetEcho returns the Echo instance.
func (s *Server) GetEcho() *echo.Echo {
	return s.echo
}
