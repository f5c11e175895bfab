package ormkit

import (
	"context"
	"errors"
)

// ConnectionContext is the guard returned by OpenConnection.
// Only the guard that created the scope connection closes it.
type ConnectionContext struct {
	ctx   context.Context
	scope *Scope
	owns  bool
	done  bool
}

// OpenConnection makes sure the scope carried by the returned context has a
// connection. Exit must be deferred:
//
//	ctx, c := engine.OpenConnection(ctx)
//	defer c.Exit(&err)
func (e *Engine) OpenConnection(ctx context.Context) (context.Context, *ConnectionContext) {
	ctx, s := e.scope(ctx)
	return ctx, &ConnectionContext{ctx: ctx, scope: s, owns: s.Init()}
}

// Owns reports whether this guard created the connection
func (c *ConnectionContext) Owns() bool {
	return c.owns
}

// Exit closes the connection if this guard opened it. A cleanup failure is
// joined into *errp. Calling Exit again is a no-op.
func (c *ConnectionContext) Exit(errp *error) {
	if c.done {
		return
	}
	c.done = true
	if !c.owns {
		return
	}
	if err := c.scope.Cleanup(c.ctx); err != nil && errp != nil {
		*errp = errors.Join(*errp, err)
	}
}

// WithConnection runs fn with a connection shared by every statement fn issues
func (e *Engine) WithConnection(ctx context.Context, fn func(ctx context.Context) error) (err error) {
	ctx, c := e.OpenConnection(ctx)
	defer c.Exit(&err)
	return fn(ctx)
}
