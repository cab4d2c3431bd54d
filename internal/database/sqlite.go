package database

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/glebarez/go-sqlite"
	"github.com/rzpsarthak13/thinorm/internal/core"
)

func init() {
	RegisterFactory(&SQLiteFactory{})
}

// SQLiteFactory opens SQLite databases through the cgo-free glebarez driver.
type SQLiteFactory struct{}

// Type returns "sqlite".
func (f *SQLiteFactory) Type() string { return "sqlite" }

// Open opens the database file, or a private in-memory database for ":memory:".
// The pool is pinned to a single connection: SQLite has one writer, and an
// in-memory database only lives as long as its connection.
func (f *SQLiteFactory) Open(ctx context.Context, target Target, pool PoolConfig) (core.Database, error) {
	db, err := sql.Open("sqlite", target.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	pool.MaxOpenConns = 1
	pool.MaxIdleConns = 1
	pool.ConnMaxLifetime = 0
	pool.ConnMaxIdleTime = 0

	s := newSQLDatabase(db, "sqlite", nil)
	if err := s.configure(ctx, pool); err != nil {
		return nil, err
	}
	if _, err := db.ExecContext(ctx, "PRAGMA foreign_keys = ON"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}
	return s, nil
}
