package db

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Pinger is anything that can prove a store is reachable. *pgxpool.Pool
// satisfies it directly; database/sql handles can be adapted with PingerFunc.
type Pinger interface {
	Ping(ctx context.Context) error
}

// PingerFunc adapts a function to Pinger.
type PingerFunc func(ctx context.Context) error

// Ping calls f.
func (f PingerFunc) Ping(ctx context.Context) error {
	return f(ctx)
}

// HealthStatus represents the health state of a store.
type HealthStatus struct {
	Healthy       bool          `json:"healthy"`
	Latency       time.Duration `json:"latency_ns"`
	TotalConns    int32         `json:"total_conns,omitempty"`
	IdleConns     int32         `json:"idle_conns,omitempty"`
	AcquiredConns int32         `json:"acquired_conns,omitempty"`
	Error         error         `json:"-"`
}

// Check pings p and reports latency. When p is a pgx pool the pool
// statistics are included.
func Check(ctx context.Context, p Pinger) *HealthStatus {
	status := &HealthStatus{}

	if p == nil {
		status.Error = fmt.Errorf("store is nil")
		return status
	}
	if pool, ok := p.(*pgxpool.Pool); ok && pool == nil {
		status.Error = fmt.Errorf("pool is nil")
		return status
	}

	start := time.Now()
	err := p.Ping(ctx)
	status.Latency = time.Since(start)

	if err != nil {
		status.Error = fmt.Errorf("ping failed: %w", err)
		return status
	}

	status.Healthy = true
	if pool, ok := p.(*pgxpool.Pool); ok {
		stats := pool.Stat()
		status.TotalConns = stats.TotalConns()
		status.IdleConns = stats.IdleConns()
		status.AcquiredConns = stats.AcquiredConns()
	}

	return status
}

// WaitForReady polls until the store answers a ping or ctx is cancelled.
func WaitForReady(ctx context.Context, p Pinger, pollInterval time.Duration) error {
	if p == nil {
		return fmt.Errorf("store is nil")
	}
	if pool, ok := p.(*pgxpool.Pool); ok && pool == nil {
		return fmt.Errorf("pool is nil")
	}

	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	if err := p.Ping(ctx); err == nil {
		return nil
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := p.Ping(ctx); err == nil {
				return nil
			}
		}
	}
}
