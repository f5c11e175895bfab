package ormkit

import (
	"context"
	"database/sql"
	"testing"
	"time"
)

func TestHealth_Health(t *testing.T) {
	e, cc := newCountingEngine(t)

	status := e.Health(context.Background())
	if !status.Healthy {
		t.Fatalf("engine should be healthy: %s", status.Error)
	}
	if status.Latency <= 0 {
		t.Error("Latency should be positive")
	}
	if status.PoolStats.InUse != 0 {
		t.Errorf("expected the health connection to be released, got %d in use", status.PoolStats.InUse)
	}

	connects, closes, _, _ := cc.stats()
	if connects != 1 || closes != 1 {
		t.Errorf("expected a dedicated connection, got connects=%d closes=%d", connects, closes)
	}
}

func TestHealth_InsideTransaction(t *testing.T) {
	e, cc := newCountingEngine(t)

	err := e.Transaction(context.Background(), func(ctx context.Context) error {
		if _, err := e.Update(ctx, "UPDATE t SET a = 1"); err != nil {
			return err
		}
		if !e.IsHealthy(ctx) {
			t.Error("engine should be healthy")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Transaction failed: %v", err)
	}

	if connects, _, commits, _ := cc.stats(); connects != 2 || commits != 2 {
		t.Errorf("expected the health check to stay out of the transaction, got connects=%d commits=%d", connects, commits)
	}
}

func TestHealth_Uninitialized(t *testing.T) {
	e := NewEngine()

	status := e.Health(context.Background())
	if status.Healthy {
		t.Error("uninitialized engine should not be healthy")
	}
	if status.Error == "" {
		t.Error("expected an error message")
	}
}

func TestPoolStatsFromSQL(t *testing.T) {
	stats := PoolStatsFromSQL(sql.DBStats{
		OpenConnections: 3,
		InUse:           1,
		Idle:            2,
		WaitCount:       4,
		WaitDuration:    time.Second,
		MaxIdleClosed:   5,
	})

	want := PoolStats{OpenConnections: 3, InUse: 1, Idle: 2, WaitCount: 4, WaitDuration: time.Second, MaxIdleClosed: 5}
	if stats != want {
		t.Errorf("expected %+v, got %+v", want, stats)
	}
}
