package database

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rzpsarthak13/thinorm/internal/core"
	"github.com/rzpsarthak13/thinorm/internal/logging"
	"github.com/rzpsarthak13/thinorm/internal/schema"
)

// Factory is the Strategy interface for opening a backend.
// Each driver (SQLite, MySQL, PostgreSQL) registers one from init().
type Factory interface {
	// Type returns the dialect name served by this factory.
	Type() string

	// Open creates the pool and verifies the backend is reachable.
	Open(ctx context.Context, target Target, pool PoolConfig) (core.Database, error)
}

// PoolConfig holds database/sql pool settings.
type PoolConfig struct {
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
	ConnectTimeout  time.Duration
}

// DefaultPoolConfig returns the pool settings used when none are given.
func DefaultPoolConfig() PoolConfig {
	return PoolConfig{
		MaxOpenConns:    10,
		MaxIdleConns:    5,
		ConnMaxLifetime: 30 * time.Minute,
		ConnMaxIdleTime: 5 * time.Minute,
		ConnectTimeout:  10 * time.Second,
	}
}

var (
	factoryRegistry = make(map[string]Factory)
	registryMutex   sync.RWMutex
)

// RegisterFactory registers a backend factory.
// This is called automatically by each implementation's init() function.
func RegisterFactory(factory Factory) {
	if factory == nil {
		panic("factory cannot be nil")
	}
	if factory.Type() == "" {
		panic("factory type cannot be empty")
	}

	registryMutex.Lock()
	defer registryMutex.Unlock()

	if _, exists := factoryRegistry[factory.Type()]; exists {
		panic(fmt.Sprintf("factory for type %q is already registered", factory.Type()))
	}
	factoryRegistry[factory.Type()] = factory
}

// Open parses target and opens it with the registered factory.
// Every failure is a core.ConnectionError.
func Open(ctx context.Context, target string, pool PoolConfig) (core.Database, Target, error) {
	t, err := ParseTarget(target)
	if err != nil {
		return nil, Target{}, core.NewError(core.ConnectionError, "connect", err)
	}

	registryMutex.RLock()
	factory, exists := factoryRegistry[t.Dialect.Name()]
	registryMutex.RUnlock()
	if !exists {
		return nil, t, core.NewError(core.ConnectionError, "connect",
			fmt.Errorf("no backend registered for %s", t.Dialect.Name()))
	}

	db, err := factory.Open(ctx, t, pool)
	if err != nil {
		return nil, t, core.Classify(core.ConnectionError, "connect", "", err)
	}
	logging.For("database").Info("database opened", "backend", t.Dialect.Name(), "target", t.Redacted())
	return db, t, nil
}

// sqlDatabase implements core.Database over a database/sql pool.
// The backends differ only in how they open the pool and classify errors.
type sqlDatabase struct {
	db       *sql.DB
	backend  string
	closed   atomic.Bool
	mapper   *schema.TypeMapper
	classify func(error) core.ErrorKind
}

func newSQLDatabase(db *sql.DB, backend string, classify func(error) core.ErrorKind) *sqlDatabase {
	return &sqlDatabase{
		db:       db,
		backend:  backend,
		mapper:   schema.NewTypeMapper(),
		classify: classify,
	}
}

// configure applies pool settings and pings the backend.
func (s *sqlDatabase) configure(ctx context.Context, pool PoolConfig) error {
	s.db.SetMaxOpenConns(pool.MaxOpenConns)
	s.db.SetMaxIdleConns(pool.MaxIdleConns)
	s.db.SetConnMaxLifetime(pool.ConnMaxLifetime)
	s.db.SetConnMaxIdleTime(pool.ConnMaxIdleTime)

	if pool.ConnectTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, pool.ConnectTimeout)
		defer cancel()
	}
	if err := s.db.PingContext(ctx); err != nil {
		_ = s.db.Close()
		return fmt.Errorf("failed to ping database: %w", err)
	}
	return nil
}

// Query executes a statement and decodes every row.
func (s *sqlDatabase) Query(ctx context.Context, query string, args ...any) ([]core.Row, error) {
	if s.closed.Load() {
		return nil, core.NewError(core.ConnectionError, "", core.ErrClosed)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, s.wrap("failed to execute query", err)
	}
	defer rows.Close()

	types, err := rows.ColumnTypes()
	if err != nil {
		return nil, s.wrap("failed to read column types", err)
	}
	dbTypes := make([]string, len(types))
	for i, ct := range types {
		dbTypes[i] = ct.DatabaseTypeName()
	}

	var out []core.Row
	raw := make([]any, len(types))
	dest := make([]any, len(types))
	for i := range raw {
		dest[i] = &raw[i]
	}
	for rows.Next() {
		if err := rows.Scan(dest...); err != nil {
			return nil, s.wrap("failed to scan row", err)
		}
		values := make([]core.Value, len(raw))
		for i, r := range raw {
			v, err := s.mapper.Decode(r, dbTypes[i])
			if err != nil {
				return nil, &core.Error{Kind: core.MappingError, Column: types[i].Name(), Err: err}
			}
			values[i] = v
		}
		out = append(out, core.NewRow(values...))
	}
	if err := rows.Err(); err != nil {
		return nil, s.wrap("error iterating rows", err)
	}
	return out, nil
}

// Exec executes a statement that returns no rows.
func (s *sqlDatabase) Exec(ctx context.Context, query string, args ...any) (core.Result, error) {
	if s.closed.Load() {
		return core.Result{}, core.NewError(core.ConnectionError, "", core.ErrClosed)
	}
	result, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return core.Result{}, s.wrap("failed to execute statement", err)
	}

	var res core.Result
	if n, err := result.RowsAffected(); err == nil {
		res.RowsAffected = n
	}
	if id, err := result.LastInsertId(); err == nil {
		res.LastInsertID = id
		res.HasLastInsertID = true
	}
	return res, nil
}

// Ping checks that the backend is reachable.
func (s *sqlDatabase) Ping(ctx context.Context) error {
	if s.closed.Load() {
		return core.NewError(core.ConnectionError, "", core.ErrClosed)
	}
	if err := s.db.PingContext(ctx); err != nil {
		return core.NewError(core.ConnectionError, "ping", err)
	}
	return nil
}

// Close closes the pool. Closing twice returns core.ErrClosed.
func (s *sqlDatabase) Close() error {
	if !s.closed.CompareAndSwap(false, true) {
		return core.NewError(core.ConnectionError, "close", core.ErrClosed)
	}
	logging.For("database").Info("database closed", "backend", s.backend)
	return s.db.Close()
}

func (s *sqlDatabase) wrap(msg string, err error) error {
	kind := core.SQLError
	if errors.Is(err, driver.ErrBadConn) || errors.Is(err, sql.ErrConnDone) {
		kind = core.ConnectionError
	} else if s.classify != nil {
		if k := s.classify(err); k != 0 {
			kind = k
		}
	}
	return &core.Error{Kind: kind, Err: fmt.Errorf("%s: %w", msg, err)}
}
