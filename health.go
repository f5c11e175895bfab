package ormkit

import (
	"context"
	"database/sql"
	"time"
)

// HealthStatus represents the database health status
type HealthStatus struct {
	Healthy   bool          `json:"healthy"`
	Latency   time.Duration `json:"latency"`
	Error     string        `json:"error,omitempty"`
	PoolStats PoolStats     `json:"pool_stats"`
}

// PoolStats contains statistics of the underlying sql.DB
type PoolStats struct {
	OpenConnections int           `json:"open_connections"`
	InUse           int           `json:"in_use"`
	Idle            int           `json:"idle"`
	WaitCount       int64         `json:"wait_count"`
	WaitDuration    time.Duration `json:"wait_duration"`
	MaxIdleClosed   int64         `json:"max_idle_closed"`
}

// Health runs SELECT 1 on a connection of its own and reports the result
func (e *Engine) Health(ctx context.Context) HealthStatus {
	start := time.Now()
	_, err := e.SelectScalar(e.WithScope(ctx), "SELECT 1")
	latency := time.Since(start)

	status := HealthStatus{
		Healthy:   err == nil,
		Latency:   latency,
		PoolStats: PoolStatsFromSQL(e.Stats()),
	}
	if err != nil {
		status.Error = err.Error()
	}
	return status
}

// IsHealthy returns true if the database is reachable
func (e *Engine) IsHealthy(ctx context.Context) bool {
	return e.Health(ctx).Healthy
}

// PoolStatsFromSQL converts sql.DBStats to PoolStats
func PoolStatsFromSQL(stats sql.DBStats) PoolStats {
	return PoolStats{
		OpenConnections: stats.OpenConnections,
		InUse:           stats.InUse,
		Idle:            stats.Idle,
		WaitCount:       stats.WaitCount,
		WaitDuration:    stats.WaitDuration,
		MaxIdleClosed:   stats.MaxIdleClosed,
	}
}
