// Package server is the HTTP gateway over the uniai client: REST chat,
// SSE streaming, provider switching and history management, one
// conversation per session id.
package server

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"

	"github.com/kbukum/uniai/logger"
	"github.com/kbukum/uniai/server/endpoint"
	"github.com/kbukum/uniai/server/middleware"
)

// Server is the gateway HTTP server: a Gin engine mounted on a ServeMux,
// wrapped with h2c so SSE streams can multiplex over cleartext HTTP/2.
// With a certificate configured it serves HTTPS instead.
type Server struct {
	httpServer *http.Server
	engine     *gin.Engine
	mux        *http.ServeMux
	listener   net.Listener
	config     Config
	log        *logger.Logger
}

// New creates a Server for the given config. Routes and middleware are not
// registered yet; call ApplyMiddleware and RegisterRoutes on the API next.
func New(cfg Config, log *logger.Logger) *Server {
	if zerolog.GlobalLevel() <= zerolog.DebugLevel {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	engine := gin.New()
	mux := http.NewServeMux()
	mux.Handle("/", engine)

	h2s := &http2.Server{
		MaxConcurrentStreams: 250,
		IdleTimeout:          120 * time.Second,
	}

	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)
	httpServer := &http.Server{
		Addr:         addr,
		Handler:      h2c.NewHandler(mux, h2s),
		ReadTimeout:  time.Duration(cfg.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.WriteTimeout) * time.Second,
		IdleTimeout:  time.Duration(cfg.IdleTimeout) * time.Second,
	}

	return &Server{
		httpServer: httpServer,
		engine:     engine,
		mux:        mux,
		config:     cfg,
		log:        log.WithComponent("server"),
	}
}

// GinEngine returns the underlying Gin engine for route registration.
func (s *Server) GinEngine() *gin.Engine {
	return s.engine
}

// Handle mounts an extra http.Handler on the root mux alongside Gin.
func (s *Server) Handle(pattern string, handler http.Handler) {
	s.mux.Handle(pattern, handler)
	s.log.Debug("handler mounted", logger.Fields("pattern", pattern))
}

// ApplyMiddleware installs the standard middleware stack: recovery,
// request ids, CORS, body-size limit, rate limiting, optional JWT auth,
// tracing and request logging.
func (s *Server) ApplyMiddleware(serviceName string) {
	s.engine.Use(middleware.Recovery())
	s.engine.Use(middleware.RequestID())
	s.engine.Use(middleware.CORS(s.config.CORS))
	if s.config.MaxBodySize != "" {
		s.engine.Use(middleware.BodySizeLimit(s.config.MaxBodySize))
	}
	if s.config.RateLimit > 0 {
		s.engine.Use(middleware.RateLimit(middleware.RateLimitConfig{
			RequestsPerMinute: s.config.RateLimit,
			KeyFunc:           middleware.SessionKey,
		}))
	}
	if s.config.Auth.Enabled() {
		s.engine.Use(middleware.Auth(s.config.Auth))
	}
	s.engine.Use(middleware.Tracing(serviceName))
	s.engine.Use(middleware.RequestLogger(s.log))
}

// RegisterDefaultEndpoints mounts /health and /info.
func (s *Server) RegisterDefaultEndpoints(serviceName string, checker endpoint.HealthChecker) {
	s.engine.GET("/health", endpoint.Health(serviceName, checker))
	s.engine.GET("/info", endpoint.Info(serviceName))
}

// Start binds the port and begins serving. It returns once the listener is
// bound; serving continues in a goroutine.
func (s *Server) Start(ctx context.Context) error {
	listener, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		return fmt.Errorf("server: binding %s: %w", s.httpServer.Addr, err)
	}
	s.listener = listener

	serveTLS := s.config.TLS.CertFile != ""
	go func() {
		var err error
		if serveTLS {
			err = s.httpServer.ServeTLS(listener, s.config.TLS.CertFile, s.config.TLS.KeyFile)
		} else {
			err = s.httpServer.Serve(listener)
		}
		if err != nil && err != http.ErrServerClosed {
			s.log.Error("server error", logger.Fields("error", err.Error()))
		}
	}()

	s.log.Info("HTTP server started", logger.Fields(
		"addr", listener.Addr().String(),
		"tls", serveTLS,
	))
	return nil
}

// Stop gracefully shuts the server down with a 5-second deadline.
func (s *Server) Stop(ctx context.Context) error {
	s.log.Info("shutting down HTTP server")

	shutdownCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server: shutdown: %w", err)
	}
	return nil
}

// Addr returns the bound listen address once Start has run, or the
// configured one before that.
func (s *Server) Addr() string {
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return s.httpServer.Addr
}
