package ormkit

import "context"

// Scope is the state of one unit of work: at most one lazy connection and
// the current transaction depth. A Scope travels in a context.Context and
// must not be used by two goroutines at once.
type Scope struct {
	engine *Engine
	conn   *LazyConnection
	depth  int
}

type scopeKey struct {
	e *Engine
}

// WithScope returns a context carrying a fresh scope for e.
// Guards and executors create one on demand when ctx carries none.
func (e *Engine) WithScope(ctx context.Context) context.Context {
	return context.WithValue(ctx, scopeKey{e}, &Scope{engine: e})
}

// ScopeFrom returns the scope of e carried by ctx
func (e *Engine) ScopeFrom(ctx context.Context) (*Scope, bool) {
	s, ok := ctx.Value(scopeKey{e}).(*Scope)
	return s, ok
}

// scope returns the scope carried by ctx, attaching a new one if needed
func (e *Engine) scope(ctx context.Context) (context.Context, *Scope) {
	if s, ok := e.ScopeFrom(ctx); ok {
		return ctx, s
	}
	s := &Scope{engine: e}
	return context.WithValue(ctx, scopeKey{e}, s), s
}

// Init creates the scope connection if there is none and reports whether it did.
// A true result makes the caller the outermost guard.
func (s *Scope) Init() bool {
	if s.conn != nil {
		return false
	}
	s.engine.Logger().Debug("open lazy connection")
	s.conn = NewLazyConnection(s.engine)
	s.depth = 0
	return true
}

// Cleanup closes and forgets the scope connection
func (s *Scope) Cleanup(ctx context.Context) error {
	if s.depth > 0 {
		return newError(CodeTransactionActive, "Cleanup", "transaction still active")
	}
	if s.conn == nil {
		return nil
	}
	conn := s.conn
	s.conn = nil
	return conn.Cleanup(ctx)
}

// Cursor returns a statement handle on the scope connection
func (s *Scope) Cursor(ctx context.Context) (*Cursor, error) {
	if s.conn == nil {
		return nil, newError(CodeNoActiveConnection, "Cursor", "no active connection in scope")
	}
	return s.conn.Cursor(ctx)
}

// Depth returns the number of open transaction guards
func (s *Scope) Depth() int {
	return s.depth
}

// Connection returns the scope connection, nil outside any guard
func (s *Scope) Connection() *LazyConnection {
	return s.conn
}
