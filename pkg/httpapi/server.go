// Package httpapi exposes the reference pickers and form validation over
// HTTP for the admin panel's autocomplete widgets.
package httpapi

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/otherjamesbrown/backoffice/pkg/db"
	"github.com/otherjamesbrown/backoffice/pkg/forms"
	"github.com/otherjamesbrown/backoffice/pkg/logging"
	"github.com/otherjamesbrown/backoffice/pkg/picker"
)

// Config holds the dependencies of the HTTP surface.
type Config struct {
	Registry *picker.Registry
	Forms    *forms.Validator
	// Health is pinged by /healthz. Nil reports healthy.
	Health db.Pinger
	Logger logging.Logger
	// Registerer receives HTTP metrics; Gatherer backs /metrics. Both default
	// to the Prometheus default registry.
	Registerer  prometheus.Registerer
	Gatherer    prometheus.Gatherer
	ServiceName string

	Addr            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
}

// Server serves the picker API.
type Server struct {
	registry    *picker.Registry
	forms       *forms.Validator
	health      db.Pinger
	logger      logging.Logger
	serviceName string
	engine      *gin.Engine
	cfg         Config
}

// New builds the router.
func New(cfg Config) *Server {
	if cfg.Logger == nil {
		cfg.Logger = logging.NewNopLogger()
	}
	if cfg.Registerer == nil {
		cfg.Registerer = prometheus.DefaultRegisterer
	}
	if cfg.Gatherer == nil {
		cfg.Gatherer = prometheus.DefaultGatherer
	}
	if cfg.ServiceName == "" {
		cfg.ServiceName = "backoffice"
	}
	if cfg.Forms == nil {
		var exists forms.ExistenceChecker
		if cfg.Registry != nil {
			exists = cfg.Registry
		}
		cfg.Forms = forms.New(exists)
	}

	s := &Server{
		registry:    cfg.Registry,
		forms:       cfg.Forms,
		health:      cfg.Health,
		logger:      cfg.Logger,
		serviceName: cfg.ServiceName,
		cfg:         cfg,
	}
	s.engine = s.routes(NewHTTPMetrics(cfg.Registerer))
	return s
}

func (s *Server) routes(metrics *HTTPMetrics) *gin.Engine {
	r := gin.New()
	r.Use(RequestID(), Recovery(s.logger), AccessLog(s.logger), metrics.Middleware())

	r.GET("/healthz", s.healthz)
	r.GET("/version", s.version)
	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(s.cfg.Gatherer, promhttp.HandlerOpts{})))

	v1 := r.Group("/api/v1")
	{
		pickers := v1.Group("/pickers/:type/options")
		pickers.GET("", s.searchOptions)
		pickers.GET("/:key", s.resolveLabel)

		f := v1.Group("/forms")
		f.POST("/private-messages/validate", validateForm(func(c *gin.Context, in forms.PrivateMessageInput) error {
			return s.forms.PrivateMessage(c.Request.Context(), in)
		}))
		f.POST("/comments/validate", validateForm(func(c *gin.Context, in forms.CommentInput) error {
			return s.forms.Comment(c.Request.Context(), in)
		}))
		f.POST("/posts/validate", validateForm(func(c *gin.Context, in forms.PostInput) error {
			return s.forms.Post(c.Request.Context(), in)
		}))
	}

	return r
}

// Handler returns the router, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:         s.cfg.Addr,
		Handler:      s.engine,
		ReadTimeout:  s.cfg.ReadTimeout,
		WriteTimeout: s.cfg.WriteTimeout,
		ErrorLog:     logging.StdLogger(s.cfg.Logger, logging.LevelWarn),
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("HTTP server listening", logging.F("addr", s.cfg.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	timeout := s.cfg.ShutdownTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	s.logger.Info("HTTP server shutting down")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http shutdown: %w", err)
	}
	return <-errCh
}
