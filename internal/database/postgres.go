package database

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/rzpsarthak13/thinorm/internal/core"
)

func init() {
	RegisterFactory(&PostgresFactory{})
}

// PostgresFactory opens PostgreSQL databases through pgx's database/sql adapter.
type PostgresFactory struct{}

// Type returns "postgres".
func (f *PostgresFactory) Type() string { return "postgres" }

// Open parses a postgres:// URL and opens a pool.
func (f *PostgresFactory) Open(ctx context.Context, target Target, pool PoolConfig) (core.Database, error) {
	cfg, err := pgx.ParseConfig(strings.TrimSpace(target.Raw))
	if err != nil {
		return nil, fmt.Errorf("invalid postgres target: %w", err)
	}
	if pool.ConnectTimeout > 0 {
		cfg.ConnectTimeout = pool.ConnectTimeout
	}

	s := newSQLDatabase(stdlib.OpenDB(*cfg), "postgres", classifyPostgres)
	if err := s.configure(ctx, pool); err != nil {
		return nil, err
	}
	return s, nil
}

// classifyPostgres maps SQLSTATE classes 08 (connection exception),
// 28 (invalid authorization) and 57P (operator intervention) to connection errors.
func classifyPostgres(err error) core.ErrorKind {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		if strings.HasPrefix(pgErr.Code, "08") || strings.HasPrefix(pgErr.Code, "28") ||
			strings.HasPrefix(pgErr.Code, "57P") {
			return core.ConnectionError
		}
		return core.SQLError
	}
	var connErr *pgconn.ConnectError
	if errors.As(err, &connErr) {
		return core.ConnectionError
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return core.ConnectionError
	}
	return 0
}
