package cmd

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/otherjamesbrown/backoffice/config"
	"github.com/otherjamesbrown/backoffice/pkg/db"
	"github.com/otherjamesbrown/backoffice/pkg/forms"
	"github.com/otherjamesbrown/backoffice/pkg/httpapi"
	"github.com/otherjamesbrown/backoffice/pkg/logging"
	"github.com/otherjamesbrown/backoffice/pkg/observability"
)

const serviceName = "backoffice"

// serveConnectAttempts lets serve wait out a database that starts alongside it.
const serveConnectAttempts = 5

var serveAddr string

// ServeCommandDeps holds the dependencies for the serve command.
type ServeCommandDeps struct {
	Config     *config.Config
	LoadConfig func() (*config.Config, error)
	// Registry receives all metrics. Defaults to a fresh registry.
	Registry *prometheus.Registry
}

// DefaultServeDeps returns the default dependencies for production use.
func DefaultServeDeps() *ServeCommandDeps {
	return &ServeCommandDeps{
		LoadConfig: config.LoadConfig,
	}
}

// NewServeCommand creates the serve command.
func NewServeCommand(deps *ServeCommandDeps) *cobra.Command {
	if deps == nil {
		deps = DefaultServeDeps()
	}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the picker HTTP API",
		Long: `Serve the picker HTTP API used by the admin panel's autocomplete widgets.

Endpoints:
  GET  /api/v1/pickers/:type/options?search=q   options for a query
  GET  /api/v1/pickers/:type/options/:key        label for a chosen key
  POST /api/v1/forms/private-messages/validate   validate a private message
  POST /api/v1/forms/comments/validate           validate a comment
  POST /api/v1/forms/posts/validate              validate a post
  GET  /healthz                                  store health
  GET  /metrics                                  Prometheus metrics
  GET  /version                                  build information

The server shuts down gracefully on SIGINT or SIGTERM.`,
		Example: `  backoffice serve
  backoffice serve --addr :9090
  BACKOFFICE_DATABASE_DRIVER=postgres backoffice serve`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), deps)
		},
	}

	cmd.Flags().StringVar(&serveAddr, "addr", "", "Listen address (default from config)")

	return cmd
}

// runServe executes the serve command.
func runServe(ctx context.Context, deps *ServeCommandDeps) error {
	cfg := deps.Config
	if cfg == nil {
		var err error
		cfg, err = deps.LoadConfig()
		if err != nil {
			return fmt.Errorf("loading configuration: %w", err)
		}
		deps.Config = cfg
	}
	addr := cfg.HTTP.Addr
	if serveAddr != "" {
		addr = serveAddr
	}

	reg := deps.Registry
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	logger := newLogger(cfg, nil).With(logging.F("service", serviceName))
	metrics := observability.NewPickerMetrics(reg)
	tracer := observability.NewTracer()

	backend, err := OpenBackend(ctx, cfg, BackendOptions{
		Logger:          logger,
		Metrics:         metrics,
		Tracer:          tracer,
		ConnectAttempts: serveConnectAttempts,
	})
	if err != nil {
		return err
	}
	defer backend.Close()

	if backend.Pool != nil {
		if _, err := db.RegisterPoolStatsCollector(backend.Pool, observability.Namespace, serviceName, reg); err != nil {
			logger.Warn("Pool metrics disabled", logging.Err(err))
		}
	}

	validator := forms.New(backend.Registry,
		forms.WithLogger(logger),
		forms.WithMetrics(metrics),
		forms.WithTracer(tracer),
	)

	srv := httpapi.New(httpapi.Config{
		Registry:        backend.Registry,
		Forms:           validator,
		Health:          backend.Health,
		Logger:          logger,
		Registerer:      reg,
		Gatherer:        reg,
		ServiceName:     serviceName,
		Addr:            addr,
		ReadTimeout:     cfg.HTTP.ReadTimeout,
		WriteTimeout:    cfg.HTTP.WriteTimeout,
		ShutdownTimeout: cfg.HTTP.ShutdownTimeout,
	})

	logger.Info("Starting backoffice",
		logging.F("driver", cfg.Database.Driver),
		logging.F("addr", addr),
		logging.F("cache", cfg.Redis.Enabled),
	)
	return srv.Run(ctx)
}
