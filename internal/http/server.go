package http

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/ochronus/goneocities/internal/app"
	"github.com/ochronus/goneocities/internal/config"
	"github.com/sirupsen/logrus"
)

const shutdownTimeout = 5 * time.Second

// Server is a local stand-in for the Neocities API.
type Server struct {
	config  *config.Config
	handler *Handler
	logger  *logrus.Logger
	router  *gin.Engine
	srv     *http.Server
}

// NewServer creates a new mock API server
func NewServer(container *app.Container) *Server {
	cfg, logger := container.Config, container.Logger

	if cfg.Loglevel != "debug" && gin.Mode() != gin.TestMode {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery(), requestLogger(logger))

	handler := NewHandler(cfg, logger)

	api := router.Group("/api")
	api.GET("/info", handler.Info)
	api.GET("/list", handler.List)
	api.POST("/upload", handler.Upload)
	api.POST("/delete", handler.Delete)
	api.GET("/key", handler.Key)

	router.GET("/site/*filepath", handler.ServeFile)

	return &Server{
		config:  cfg,
		handler: handler,
		logger:  logger,
		router:  router,
	}
}

// StartWithContext listens on the configured mock_server address and serves
// until ctx is canceled.
func (s *Server) StartWithContext(ctx context.Context) error {
	addr := net.JoinHostPort(s.config.MockServer.BindAddress, strconv.Itoa(s.config.MockServer.Port))
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve accepts connections on ln. Canceling ctx shuts the server down
// gracefully, giving in-flight requests up to shutdownTimeout to finish.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	s.logger.Infof("Mock Neocities API for site %q at http://%s/api", s.config.MockServer.Sitename, ln.Addr())

	s.srv = &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- s.srv.Serve(ln)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := s.srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}
	if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// requestLogger logs every request at debug level.
func requestLogger(logger *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.WithFields(logrus.Fields{
			"method":   c.Request.Method,
			"path":     c.Request.URL.Path,
			"status":   c.Writer.Status(),
			"duration": time.Since(start),
		}).Debug("mock api request")
	}
}

// GetRouter returns the underlying gin router for use with httptest
func (s *Server) GetRouter() *gin.Engine {
	return s.router
}
