// Package server provides the HTTP server implementation.
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/vyrodovalexey/employees-api/internal/config"
	"github.com/vyrodovalexey/employees-api/internal/handler"
	"github.com/vyrodovalexey/employees-api/internal/middleware"
	"github.com/vyrodovalexey/employees-api/internal/store"
)

// Server represents the HTTP server.
type Server struct {
	httpServer    *http.Server
	probeServer   *http.Server // nil when ProbePort == 0
	router        *mux.Router
	handler       http.Handler // router wrapped in CORS
	probeRouter   *mux.Router
	config        *config.Config
	logger        *zap.Logger
	probes        *handler.ProbeHandler
	eventsHandler *handler.EventsHandler // nil when events are disabled
}

// New creates a new Server instance.
func New(cfg *config.Config, logger *zap.Logger, employeeStore store.Store) *Server {
	s := &Server{
		router:      mux.NewRouter(),
		probeRouter: mux.NewRouter(),
		config:      cfg,
		logger:      logger,
		probes:      handler.NewProbeHandler(logger, employeeStore),
	}

	s.setupMiddleware()
	s.setupRoutes(employeeStore)
	s.setupProbeRoutes()
	s.setupHTTPServers()

	return s
}

// setupMiddleware configures the middleware chain.
func (s *Server) setupMiddleware() {
	allowedMethods := []string{
		http.MethodGet,
		http.MethodPost,
		http.MethodPut,
		http.MethodDelete,
		http.MethodOptions,
	}
	allowedHeaders := []string{
		"Content-Type",
		middleware.RequestIDHeader,
	}

	// Apply middleware in order (first applied = outermost)
	s.router.Use(mux.MiddlewareFunc(middleware.Recovery(s.logger)))
	s.router.Use(mux.MiddlewareFunc(middleware.RequestID()))

	if s.config.MetricsEnabled {
		s.router.Use(mux.MiddlewareFunc(middleware.Metrics()))
	}

	s.router.Use(mux.MiddlewareFunc(middleware.Logging(s.logger)))

	// mux runs Use middleware only for matched routes, so CORS wraps the
	// router to answer preflight requests for any path.
	s.handler = middleware.CORS(s.config.AllowedOrigins, allowedMethods, allowedHeaders)(s.router)
}

// setupRoutes configures the API routes.
func (s *Server) setupRoutes(employeeStore store.Store) {
	s.probes.RegisterRoutes(s.router)

	// A nil *EventsHandler must not reach the handler as a non-nil interface.
	var events handler.EventPublisher
	if s.config.EventsEnabled {
		s.eventsHandler = handler.NewEventsHandler(s.logger, s.config.AllowedOrigins)
		s.eventsHandler.RegisterRoutes(s.router)
		events = s.eventsHandler
	}

	opts := handler.Options{
		PageLimit:    s.config.PageLimit,
		MaxPageLimit: s.config.MaxPageLimit,
		MaxBulkItems: s.config.MaxBulkItems,
		MaxBodyBytes: s.config.MaxBodyBytes,
	}
	for _, version := range []handler.APIVersion{handler.V1, handler.V2} {
		handler.NewEmployeeHandler(version, employeeStore, s.logger, opts, events).RegisterRoutes(s.router)
	}

	if s.config.MetricsEnabled {
		s.router.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)
	}
}

// setupProbeRoutes configures the probe router. It is built even when the
// probe listener is disabled so that it can be exercised directly.
func (s *Server) setupProbeRoutes() {
	s.probeRouter.Use(mux.MiddlewareFunc(middleware.Recovery(s.logger)))
	s.probeRouter.Use(mux.MiddlewareFunc(middleware.Logging(s.logger)))

	s.probes.RegisterRoutes(s.probeRouter)

	if s.config.MetricsEnabled {
		s.probeRouter.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)
	}
}

// setupHTTPServers configures the API server and, when enabled, the probe server.
func (s *Server) setupHTTPServers() {
	s.httpServer = newHTTPServer(s.config.Address(), s.handler)

	if s.config.ProbePort != 0 {
		s.probeServer = newHTTPServer(s.config.ProbeAddress(), s.probeRouter)
	}
}

func newHTTPServer(addr string, h http.Handler) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           h,
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
		MaxHeaderBytes:    1 << 20, // 1 MB
	}
}

// Start binds the API listener and the probe listener, if configured, then
// serves until both have stopped. Readiness is reported only once every
// listener is bound. If either server fails the other is closed so that
// Start returns.
func (s *Server) Start() error {
	s.logger.Info("starting server",
		zap.String("address", s.config.Address()),
		zap.Bool("metrics_enabled", s.config.MetricsEnabled),
		zap.Bool("events_enabled", s.config.EventsEnabled),
	)

	apiListener, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		return fmt.Errorf("server listen: %w", err)
	}

	var probeListener net.Listener
	if s.probeServer != nil {
		s.logger.Info("starting probe server", zap.String("address", s.config.ProbeAddress()))
		probeListener, err = net.Listen("tcp", s.probeServer.Addr)
		if err != nil {
			_ = apiListener.Close()
			return fmt.Errorf("probe server listen: %w", err)
		}
	}

	var g errgroup.Group

	g.Go(func() error {
		return s.serve(s.httpServer, apiListener, "server")
	})
	if probeListener != nil {
		g.Go(func() error {
			return s.serve(s.probeServer, probeListener, "probe server")
		})
	}

	s.probes.SetReady(true)
	s.logger.Info("server ready", zap.String("address", apiListener.Addr().String()))

	if err := g.Wait(); err != nil {
		s.probes.SetReady(false)
		return err
	}
	return nil
}

// closeListeners closes both servers immediately.
func (s *Server) closeListeners() {
	if err := s.httpServer.Close(); err != nil {
		s.logger.Debug("closing server", zap.Error(err))
	}
	if s.probeServer != nil {
		if err := s.probeServer.Close(); err != nil {
			s.logger.Debug("closing probe server", zap.Error(err))
		}
	}
}

// serve runs one server on a bound listener. A failed server closes its peer.
func (s *Server) serve(srv *http.Server, ln net.Listener, name string) error {
	if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		s.closeListeners()
		return fmt.Errorf("%s serve: %w", name, err)
	}
	return nil
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down server")

	s.probes.SetReady(false)

	// Close all WebSocket connections first
	if s.eventsHandler != nil {
		s.eventsHandler.CloseAllConnections()
	}

	var errs []error
	if err := s.httpServer.Shutdown(ctx); err != nil {
		errs = append(errs, fmt.Errorf("server shutdown: %w", err))
	}
	if s.probeServer != nil {
		if err := s.probeServer.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("probe server shutdown: %w", err))
		}
	}
	if err := errors.Join(errs...); err != nil {
		return err
	}

	s.logger.Info("server shutdown complete")
	return nil
}

// Router returns the server's router for testing purposes.
func (s *Server) Router() *mux.Router {
	return s.router
}

// ProbeRouter returns the probe router for testing purposes.
func (s *Server) ProbeRouter() *mux.Router {
	return s.probeRouter
}
