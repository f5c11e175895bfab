package ormkit

import (
	"context"
	"errors"
	"testing"
)

func TestScope_Init(t *testing.T) {
	e, _ := newCountingEngine(t)
	ctx := e.WithScope(context.Background())

	s, ok := e.ScopeFrom(ctx)
	if !ok {
		t.Fatal("expected scope in context")
	}
	if !s.Init() {
		t.Error("first Init should create the connection")
	}
	if s.Init() {
		t.Error("second Init should join the existing connection")
	}
	if s.Connection() == nil {
		t.Error("expected a connection after Init")
	}
	if err := s.Cleanup(context.Background()); err != nil {
		t.Fatalf("Cleanup failed: %v", err)
	}
	if s.Connection() != nil {
		t.Error("expected no connection after Cleanup")
	}
}

func TestScope_CursorWithoutConnection(t *testing.T) {
	e, _ := newCountingEngine(t)
	ctx := e.WithScope(context.Background())
	s, _ := e.ScopeFrom(ctx)

	if _, err := s.Cursor(ctx); !errors.Is(err, ErrNoActiveConnection) {
		t.Errorf("expected ErrNoActiveConnection, got %v", err)
	}
}

func TestScope_CleanupInsideTransaction(t *testing.T) {
	e, _ := newCountingEngine(t)

	ctx, tx := e.Begin(context.Background())
	s, _ := e.ScopeFrom(ctx)

	if err := s.Cleanup(context.Background()); !errors.Is(err, ErrTransactionActive) {
		t.Errorf("expected ErrTransactionActive, got %v", err)
	}

	var err error
	tx.Exit(&err)
	if err != nil {
		t.Errorf("Exit failed: %v", err)
	}
	if s.Depth() != 0 {
		t.Errorf("expected depth 0, got %d", s.Depth())
	}
}

func TestScope_SeparateEngines(t *testing.T) {
	e1, _ := newCountingEngine(t)
	e2, _ := newCountingEngine(t)

	ctx := e1.WithScope(context.Background())
	if _, ok := e2.ScopeFrom(ctx); ok {
		t.Error("scope of one engine must not be visible to another")
	}
}

func TestScope_PerUnitOfWork(t *testing.T) {
	e, cc := newCountingEngine(t)
	base := context.Background()

	done := make(chan error, 2)
	for i := 0; i < 2; i++ {
		go func() {
			done <- e.WithConnection(base, func(ctx context.Context) error {
				if _, err := e.Update(ctx, "UPDATE t SET a = 1"); err != nil {
					return err
				}
				_, err := e.Update(ctx, "UPDATE t SET b = 2")
				return err
			})
		}()
	}
	for i := 0; i < 2; i++ {
		if err := <-done; err != nil {
			t.Fatalf("WithConnection failed: %v", err)
		}
	}

	connects, closes, commits, _ := cc.stats()
	if connects != 2 || closes != 2 {
		t.Errorf("expected one connection per unit of work, got connects=%d closes=%d", connects, closes)
	}
	if commits != 4 {
		t.Errorf("expected 4 auto commits, got %d", commits)
	}
}
