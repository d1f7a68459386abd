// Package server exposes workspaces and sessions over a local HTTP API
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"vortex/internal/constants"
	"vortex/internal/logger"
	"vortex/internal/operations"
)

// Config holds the server configuration
type Config struct {
	Host            string        `toml:"host"`
	Port            int           `toml:"port"`
	ShutdownTimeout time.Duration `toml:"shutdown_timeout"`
}

// DefaultConfig returns the default server configuration
func DefaultConfig() *Config {
	return &Config{
		Host:            "localhost",
		Port:            constants.DefaultServerPort,
		ShutdownTimeout: constants.DefaultServerShutdownTimeout,
	}
}

// Server represents the daemon HTTP server
type Server struct {
	config  *Config
	echo    *echo.Echo
	wsOps   *operations.WorkspaceOperations
	sessOps *operations.SessionOperations
}

// New creates a new server instance
func New(cfg *Config, wsOps *operations.WorkspaceOperations, sessOps *operations.SessionOperations) *Server {
	if cfg == nil {
		cfg = DefaultConfig()
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = errorHandler

	return &Server{
		config:  cfg,
		echo:    e,
		wsOps:   wsOps,
		sessOps: sessOps,
	}
}

// Handler returns the HTTP handler, with middleware and routes set up
func (s *Server) Handler() http.Handler {
	s.setupMiddleware()
	s.setupRoutes()
	return s.echo
}

// Start starts the server and blocks until ctx is cancelled
func (s *Server) Start(ctx context.Context) error {
	s.setupMiddleware()
	s.setupRoutes()

	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
	logger.WithField("addr", addr).Info("Starting daemon API")

	errCh := make(chan error, 1)
	go func() {
		if err := s.echo.Start(addr); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.config.ShutdownTimeout)
	defer cancel()
	return s.echo.Shutdown(shutdownCtx)
}

func (s *Server) setupMiddleware() {
	s.echo.Use(middleware.Recover())
	s.echo.Use(logger.RequestLogger())
	s.echo.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: []string{"http://localhost", "http://127.0.0.1"},
		AllowHeaders: []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept},
	}))
}

func (s *Server) setupRoutes() {
	api := s.echo.Group("/api")

	api.GET("/health", s.handleHealth)

	api.GET("/workspaces", s.handleListWorkspaces)
	api.POST("/workspaces/:name/start", s.handleStartWorkspace)
	api.POST("/workspaces/:name/stop", s.handleStopWorkspace)
	api.DELETE("/workspaces/:name", s.handleDeleteWorkspace)

	api.GET("/sessions", s.handleListSessions)
	api.GET("/sessions/orphans", s.handleOrphans)
	api.GET("/sessions/:vm/attach", s.handleAttachWebSocket)
}
