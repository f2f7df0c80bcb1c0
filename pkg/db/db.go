// Package db provides PostgreSQL pool, health, metrics and schema migration
// helpers for the back office.
package db

import (
	"context"
	"fmt"
	"net"
	"net/url"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// DefaultApplicationName is reported to the server in pg_stat_activity.
const DefaultApplicationName = "backoffice"

// Config holds PostgreSQL connection configuration.
type Config struct {
	// URL, when set, is used as the connection string and the discrete
	// fields below are ignored.
	URL      string
	Host     string
	Port     int
	Database string
	User     string
	Password string
	SSLMode  string

	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
	MaxConnIdleTime time.Duration
	ConnectTimeout  time.Duration

	// ApplicationName is sent as the application_name runtime parameter.
	ApplicationName string

	// StatementTimeout bounds every statement on the server side. Zero
	// leaves the server default in place.
	StatementTimeout time.Duration

	// ReadOnly opens every session with default_transaction_read_only, so
	// picker lookups cannot write even through a bug in a query builder.
	ReadOnly bool

	// ConnectAttempts is how many times Connect tries before giving up.
	// RetryDelay is the wait before the second attempt and doubles after
	// each failure.
	ConnectAttempts int
	RetryDelay      time.Duration
}

// DefaultConfig returns a Config for a local development database.
func DefaultConfig() *Config {
	return &Config{
		Host:            "localhost",
		Port:            5432,
		Database:        "backoffice",
		User:            "backoffice",
		SSLMode:         "disable",
		MaxConns:        10,
		MinConns:        1,
		MaxConnLifetime: time.Hour,
		MaxConnIdleTime: 30 * time.Minute,
		ConnectTimeout:  10 * time.Second,
		ApplicationName: DefaultApplicationName,
		ConnectAttempts: 1,
		RetryDelay:      500 * time.Millisecond,
	}
}

// ConnectionString builds a PostgreSQL URL from the config.
func (c *Config) ConnectionString() string {
	if c.URL != "" {
		return c.URL
	}
	q := url.Values{}
	if c.SSLMode != "" {
		q.Set("sslmode", c.SSLMode)
	}
	if c.ConnectTimeout > 0 {
		q.Set("connect_timeout", strconv.Itoa(int(c.ConnectTimeout.Seconds())))
	}
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(c.User, c.Password),
		Host:     net.JoinHostPort(c.Host, strconv.Itoa(c.Port)),
		Path:     "/" + c.Database,
		RawQuery: q.Encode(),
	}
	if c.Password == "" {
		u.User = url.User(c.User)
	}
	return u.String()
}

// Validate checks if the config has required fields set.
func (c *Config) Validate() error {
	if c.MaxConns < c.MinConns {
		return fmt.Errorf("max connections (%d) must be >= min connections (%d)", c.MaxConns, c.MinConns)
	}
	if c.StatementTimeout < 0 {
		return fmt.Errorf("statement timeout must not be negative: %s", c.StatementTimeout)
	}
	if c.URL != "" {
		return nil
	}
	switch {
	case c.Host == "":
		return fmt.Errorf("database host is required")
	case c.Port <= 0 || c.Port > 65535:
		return fmt.Errorf("invalid database port: %d", c.Port)
	case c.Database == "":
		return fmt.Errorf("database name is required")
	case c.User == "":
		return fmt.Errorf("database user is required")
	}
	return nil
}

// PoolConfig parses the connection string, then applies pool sizing and
// session runtime parameters.
func (c *Config) PoolConfig() (*pgxpool.Config, error) {
	pc, err := pgxpool.ParseConfig(c.ConnectionString())
	if err != nil {
		return nil, fmt.Errorf("failed to parse connection string: %w", err)
	}
	if c.MaxConns > 0 {
		pc.MaxConns = c.MaxConns
	}
	pc.MinConns = c.MinConns
	if c.MaxConnLifetime > 0 {
		pc.MaxConnLifetime = c.MaxConnLifetime
	}
	if c.MaxConnIdleTime > 0 {
		pc.MaxConnIdleTime = c.MaxConnIdleTime
	}
	if c.ConnectTimeout > 0 {
		pc.ConnConfig.ConnectTimeout = c.ConnectTimeout
	}

	params := pc.ConnConfig.RuntimeParams
	if c.ApplicationName != "" {
		params["application_name"] = c.ApplicationName
	}
	if c.StatementTimeout > 0 {
		params["statement_timeout"] = strconv.FormatInt(c.StatementTimeout.Milliseconds(), 10)
	}
	if c.ReadOnly {
		params["default_transaction_read_only"] = "on"
	}
	return pc, nil
}

// Connect opens a pool and pings it. A failed attempt is retried up to
// ConnectAttempts times with doubling delay, which lets the service start
// alongside a database container that is still booting.
// The caller is responsible for calling pool.Close() when done.
func Connect(ctx context.Context, cfg *Config) (*pgxpool.Pool, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	pc, err := cfg.PoolConfig()
	if err != nil {
		return nil, err
	}

	attempts := max(cfg.ConnectAttempts, 1)
	delay := cfg.RetryDelay
	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		pool, err := open(ctx, pc)
		if err == nil {
			return pool, nil
		}
		lastErr = err
		if attempt == attempts {
			break
		}
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("connect cancelled after %d attempts: %w", attempt, ctx.Err())
		case <-time.After(delay):
		}
		delay *= 2
	}
	if attempts == 1 {
		return nil, lastErr
	}
	return nil, fmt.Errorf("failed to connect after %d attempts: %w", attempts, lastErr)
}

func open(ctx context.Context, pc *pgxpool.Config) (*pgxpool.Pool, error) {
	pool, err := pgxpool.NewWithConfig(ctx, pc.Copy())
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return pool, nil
}
