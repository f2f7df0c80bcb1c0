// Package cmd provides CLI commands for the backoffice tool.
package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"gopkg.in/yaml.v3"

	"github.com/otherjamesbrown/backoffice/config"
	"github.com/otherjamesbrown/backoffice/pkg/cache"
	"github.com/otherjamesbrown/backoffice/pkg/db"
	"github.com/otherjamesbrown/backoffice/pkg/logging"
	"github.com/otherjamesbrown/backoffice/pkg/observability"
	"github.com/otherjamesbrown/backoffice/pkg/picker"
	"github.com/otherjamesbrown/backoffice/pkg/store/memory"
	"github.com/otherjamesbrown/backoffice/pkg/store/postgres"
	"github.com/otherjamesbrown/backoffice/pkg/store/sqlite"
)

// Backend is an opened store with the picker registry on top of it.
type Backend struct {
	Registry *picker.Registry
	// Health pings the underlying store.
	Health db.Pinger
	// Pool is set when the driver is postgres.
	Pool *pgxpool.Pool

	closers []func()
}

// Close releases the store and cache connections.
func (b *Backend) Close() {
	for i := len(b.closers) - 1; i >= 0; i-- {
		b.closers[i]()
	}
	b.closers = nil
}

// BackendOptions carries the observability hooks a backend is wired with.
type BackendOptions struct {
	Logger  logging.Logger
	Metrics *observability.PickerMetrics
	Tracer  *observability.Tracer

	// ConnectAttempts overrides database.connect_attempts when set.
	ConnectAttempts int
}

// OpenBackend opens the configured store and builds the picker registry.
func OpenBackend(ctx context.Context, cfg *config.Config, opts BackendOptions) (*Backend, error) {
	if opts.Logger == nil {
		opts.Logger = logging.NewNopLogger()
	}
	b := &Backend{}

	var engine picker.QueryEngine
	switch cfg.Database.Driver {
	case config.DriverPostgres:
		pgCfg := cfg.Database.Postgres()
		pgCfg.ReadOnly = true
		if opts.ConnectAttempts > 0 {
			pgCfg.ConnectAttempts = opts.ConnectAttempts
		}
		pool, err := db.Connect(ctx, pgCfg)
		if err != nil {
			return nil, fmt.Errorf("connecting to database: %w", err)
		}
		b.Pool = pool
		b.Health = pool
		b.closers = append(b.closers, pool.Close)
		engine = postgres.New(pool)
	case config.DriverSQLite:
		path, err := config.ExpandPath(cfg.Database.Path)
		if err != nil {
			return nil, fmt.Errorf("expanding sqlite path: %w", err)
		}
		store, err := sqlite.Open(ctx, path)
		if err != nil {
			return nil, err
		}
		b.Health = store
		b.closers = append(b.closers, func() { _ = store.Close() })
		engine = store
	case config.DriverMemory:
		store := memory.New()
		if cfg.Database.Fixtures != "" {
			path, err := config.ExpandPath(cfg.Database.Fixtures)
			if err != nil {
				return nil, fmt.Errorf("expanding fixtures path: %w", err)
			}
			if err := store.LoadFixturesFile(path); err != nil {
				return nil, err
			}
		}
		engine = store
	default:
		return nil, fmt.Errorf("unsupported database driver: %q", cfg.Database.Driver)
	}

	pickerOpts := []picker.PickerOption{
		picker.WithLimit(cfg.Picker.Limit),
		picker.WithLogger(opts.Logger),
		picker.WithMetrics(opts.Metrics),
		picker.WithTracer(opts.Tracer),
	}

	if cfg.Redis.Enabled {
		rdb, err := cache.Connect(ctx, &redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err != nil {
			opts.Logger.Warn("Label cache disabled", logging.Err(err), logging.F("addr", cfg.Redis.Addr))
		} else {
			b.closers = append(b.closers, func() { _ = rdb.Close() })
			labels := cache.NewLabels(rdb, cfg.Redis.TTL, cfg.Redis.Prefix)
			pickerOpts = append(pickerOpts, picker.WithLabelCache(labels))
		}
	}

	b.Registry = picker.NewRegistry(engine, nil, pickerOpts...)
	return b, nil
}

// newLogger builds the process logger from configuration.
func newLogger(cfg *config.Config, w io.Writer) logging.Logger {
	lc := logging.DefaultConfig()
	lc.Level = logging.ParseLevel(cfg.Log.Level)
	if cfg.Debug {
		lc.Level = logging.LevelDebug
	}
	lc.JSONFormat = cfg.Log.JSON
	if w != nil {
		lc.Output = w
	}
	return logging.NewLogger(lc)
}

// outputJSON writes v as indented JSON.
func outputJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// outputYAML writes v as YAML.
func outputYAML(w io.Writer, v interface{}) error {
	enc := yaml.NewEncoder(w)
	defer enc.Close()
	return enc.Encode(v)
}

// resolveFormat picks the flag value over the configured default.
func resolveFormat(cfg *config.Config, flag string) (config.OutputFormat, error) {
	format := cfg.OutputFormat
	if flag != "" {
		format = config.OutputFormat(flag)
	}
	if !format.IsValid() {
		return "", fmt.Errorf("invalid output format: %s (must be text, json, or yaml)", format)
	}
	return format, nil
}
