/*
Package ormkit is a small relational mapping layer built around a lazy,
scope-bound connection and a reentrant transaction manager.

An Engine holds the connector. Each unit of work (a request, a task, a
goroutine) carries a Scope in its context.Context. A scope owns at most one
physical connection, opened by the first statement and closed by the guard
that created it.

# Basic Usage

	cfg := ormkit.DefaultConfig("root", "secret", "test")
	cfg.Logger = slog.Default()

	if err := ormkit.InitEngine(cfg); err != nil {
	    log.Fatal(err)
	}
	defer ormkit.CloseEngine()

	n, err := ormkit.Update(ctx, "UPDATE users SET name = ? WHERE id = ?", "Chao", 123)

Statements use ? as the placeholder for every backend. Outside a transaction
each statement is committed as soon as it succeeds.

# Transactions

Guard form. Exit must be deferred directly:

	func rename(ctx context.Context, id int64, name string) (err error) {
	    ctx, t := ormkit.Begin(ctx)
	    defer t.Exit(&err)

	    _, err = ormkit.Update(ctx, "UPDATE users SET name = ? WHERE id = ?", name, id)
	    return err
	}

Callback form:

	err := ormkit.Transaction(ctx, func(ctx context.Context) error {
	    if _, err := ormkit.Insert(ctx, "users", ormkit.NewRecord("id", 123, "name", "Chao")); err != nil {
	        return err // rollback
	    }
	    return rename(ctx, 123, "Michael") // joins the same transaction
	})

Nested guards share one transaction. Only the outermost guard commits or
rolls back; an error or panic that reaches it rolls the whole transaction
back.

# Reading rows

	users, err := ormkit.Select(ctx, "SELECT id, name FROM users WHERE id > ?", 100)
	for _, u := range users {
	    fmt.Println(u.Value("id"), u.String("name"))
	}

	count, err := ormkit.SelectInt(ctx, "SELECT count(*) FROM users")

# Error Handling

	if _, err := ormkit.Insert(ctx, "users", rec); err != nil {
	    if ormkit.IsDuplicate(err) {
	        // Handle duplicate key
	    }

	    var dbErr *ormkit.Error
	    if errors.As(err, &dbErr) {
	        fmt.Println(dbErr.Code)  // DUPLICATE
	        fmt.Println(dbErr.Query) // INSERT INTO `users` ...
	    }
	}
*/
package ormkit
