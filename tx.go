package ormkit

import (
	"context"
	"errors"
)

// TransactionContext is the guard returned by Begin. Guards nest: every
// guard of a scope joins one physical transaction, which is resolved when
// the outermost guard exits.
type TransactionContext struct {
	ctx   context.Context
	scope *Scope
	owns  bool
	done  bool
}

// Begin enters a transaction guard. Exit must be deferred directly so it
// can observe a panic in flight:
//
//	ctx, t := engine.Begin(ctx)
//	defer t.Exit(&err)
func (e *Engine) Begin(ctx context.Context) (context.Context, *TransactionContext) {
	ctx, s := e.scope(ctx)
	t := &TransactionContext{ctx: ctx, scope: s, owns: s.Init()}
	s.depth++
	if s.depth == 1 {
		e.Logger().InfoContext(ctx, "begin transaction")
	} else {
		e.Logger().InfoContext(ctx, "join current transaction", "depth", s.depth)
	}
	return ctx, t
}

// Depth returns the scope transaction depth
func (t *TransactionContext) Depth() int {
	return t.scope.Depth()
}

// Exit leaves the guard. When the depth returns to zero the transaction is
// committed, or rolled back if *errp holds an error or a panic is in flight.
// The outcome is stored in *errp; the original error is kept when rollback
// also fails. A recovered panic is re-raised after the rollback.
func (t *TransactionContext) Exit(errp *error) {
	r := recover()
	if t.done {
		if r != nil {
			panic(r)
		}
		return
	}
	t.done = true

	var failure error
	if errp != nil {
		failure = *errp
	}
	if r != nil && failure == nil {
		failure = errPanic
	}

	s := t.scope
	s.depth--
	result := failure
	if s.depth == 0 {
		if failure == nil {
			result = t.commit()
		} else if err := t.rollback(); err != nil {
			result = errors.Join(failure, err)
		}
	}

	if t.owns {
		if err := s.Cleanup(t.ctx); err != nil {
			result = errors.Join(result, err)
		}
	}

	if r != nil {
		panic(r)
	}
	if errp != nil {
		*errp = result
	}
}

var errPanic = errors.New("ormkit: panic in transaction")

func (t *TransactionContext) commit() error {
	conn := t.scope.Connection()
	if conn == nil || !conn.IsOpen() {
		return nil
	}
	logger := t.scope.engine.Logger()
	logger.InfoContext(t.ctx, "commit transaction")
	if err := conn.Commit(t.ctx); err != nil {
		logger.WarnContext(t.ctx, "commit failed, try rollback", "error", err)
		if rbErr := conn.Rollback(t.ctx); rbErr != nil {
			return errors.Join(err, rbErr)
		}
		logger.WarnContext(t.ctx, "rollback ok")
		return err
	}
	logger.InfoContext(t.ctx, "commit ok")
	return nil
}

func (t *TransactionContext) rollback() error {
	conn := t.scope.Connection()
	if conn == nil || !conn.IsOpen() {
		return nil
	}
	logger := t.scope.engine.Logger()
	logger.WarnContext(t.ctx, "rollback transaction")
	if err := conn.Rollback(t.ctx); err != nil {
		return err
	}
	logger.InfoContext(t.ctx, "rollback ok")
	return nil
}

// Transaction runs fn inside a transaction guard. Calls nested in fn join the
// same transaction.
func (e *Engine) Transaction(ctx context.Context, fn func(ctx context.Context) error) (err error) {
	ctx, t := e.Begin(ctx)
	defer t.Exit(&err)
	return fn(ctx)
}
