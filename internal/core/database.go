package core

import "context"

// Database defines the interface a backend implements.
// Implementations wrap a database/sql pool for one driver.
type Database interface {
	// Query executes a statement and returns all decoded rows.
	Query(ctx context.Context, query string, args ...any) ([]Row, error)

	// Exec executes a statement that returns no rows.
	Exec(ctx context.Context, query string, args ...any) (Result, error)

	// Ping checks that the backend is reachable.
	Ping(ctx context.Context) error

	// Close releases the pool. Further calls fail.
	Close() error
}

// Result is the outcome of Exec.
type Result struct {
	// RowsAffected is the number of rows changed by the statement.
	RowsAffected int64

	// LastInsertID is the generated key of the last inserted row,
	// when HasLastInsertID is set.
	LastInsertID    int64
	HasLastInsertID bool
}
