// Package server exposes the interpreter over HTTP and WebSockets.
package server

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/antibyte/minipl/pkg/auth"
	"github.com/antibyte/minipl/pkg/logger"
	"github.com/antibyte/minipl/pkg/shared"
	"github.com/antibyte/minipl/pkg/store"
	"github.com/antibyte/minipl/pkg/terminal"
	tlsmanager "github.com/antibyte/minipl/pkg/tls"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
)

const (
	GracefulShutdownTimeout = 10 * time.Second
)

// Server is the playground: JSON API, run history and terminal sessions.
type Server struct {
	Echo *echo.Echo

	cfg      *Config
	store    *store.Store
	settings shared.RunSettings
	terminal *terminal.TerminalHandler
	tls      *tlsmanager.TLSManager
}

// NewServer wires routes and middlewares. tlsMgr may be nil for plain HTTP.
func NewServer(cfg *Config, st *store.Store, settings shared.RunSettings, tlsMgr *tlsmanager.TLSManager) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.DisableHTTP2 = !cfg.UseHttp2
	e.HTTPErrorHandler = errorHandler

	var recorder terminal.RunRecorder
	if cfg.RecordRuns {
		recorder = st
	}

	s := &Server{
		Echo:     e,
		cfg:      cfg,
		store:    st,
		settings: settings,
		terminal: terminal.NewTerminalHandler(settings, recorder, cfg.MaxClients, cfg.CorsOrigins),
		tls:      tlsMgr,
	}

	s.setupMiddlewares()
	s.setupRoutes()
	return s
}

func (s *Server) setupMiddlewares() {
	s.Echo.Use(requestLogger())
	s.Echo.Use(middleware.Recover())
	s.Echo.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: s.cfg.CorsOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPut, http.MethodPost, http.MethodDelete},
	}))
}

func (s *Server) setupRoutes() {
	s.Echo.GET("/health", s.healthHandler)
	s.Echo.POST("/api/auth/login", auth.LoginHandler(s.store))

	requireAuth := auth.Middleware(s.cfg.EnableAuth)
	s.Echo.GET("/ws", s.terminal.HandleWebSocket, requireAuth)

	api := s.Echo.Group("/api", requireAuth)
	api.POST("/run", s.runHandler)
	api.GET("/runs", s.listRunsHandler)
	api.GET("/runs/:id", s.getRunHandler)
	api.GET("/programs", s.listProgramsHandler)
	api.GET("/programs/:name", s.getProgramHandler)
	api.PUT("/programs/:name", s.saveProgramHandler)
}

// Start serves until SIGINT or SIGTERM and then shuts down gracefully.
func (s *Server) Start() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return s.Run(ctx)
}

// Run serves until ctx is done.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 2)

	var redirect *http.Server
	if s.tls != nil && s.tls.IsEnabled() {
		httpsServer := s.Echo.TLSServer
		httpsServer.Addr = ":" + s.tls.GetHTTPSPort()
		httpsServer.TLSConfig = s.tls.GetTLSConfig()
		go s.serve(errCh, func() error { return s.Echo.StartServer(httpsServer) })
		logger.ServerInfo("HTTPS server listening on port %s", s.tls.GetHTTPSPort())

		if s.tls.NeedsHTTPServer() {
			redirect = &http.Server{
				Addr:              ":" + s.cfg.Port,
				Handler:           s.tls.GetHTTPHandler(),
				ReadHeaderTimeout: 10 * time.Second,
			}
			go s.serve(errCh, redirect.ListenAndServe)
			logger.ServerInfo("HTTP redirect server listening on port %s", s.cfg.Port)
		}
	} else {
		go s.serve(errCh, func() error { return s.Echo.Start(":" + s.cfg.Port) })
		logger.ServerInfo("HTTP server listening on port %s", s.cfg.Port)
	}

	var runErr error
	select {
	case <-ctx.Done():
		logger.ServerInfo("shutting down")
	case runErr = <-errCh:
		logger.ServerError("server stopped: %v", runErr)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), GracefulShutdownTimeout)
	defer cancel()

	s.terminal.Shutdown()
	if redirect != nil {
		redirect.Shutdown(shutdownCtx)
	}
	if err := s.Echo.Shutdown(shutdownCtx); err != nil && runErr == nil {
		runErr = err
	}
	return runErr
}

func (s *Server) serve(errCh chan<- error, start func() error) {
	if err := start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		errCh <- err
	}
}
