// Package thinorm is a thin relational mapper: typed records are turned into
// SQL for SQLite, MySQL or PostgreSQL, and result rows back into records.
//
// Typical usage:
//
//	conn, _ := thinorm.Connect(ctx, "sqlite://people.db")
//	defer conn.Close()
//
//	people, _ := thinorm.Use[Person](conn)
//	john, _ := people.Add(Person{Name: "John", Age: 30}).Apply(ctx)
//	found, _ := people.FindOne(john.ID).Run(ctx)
//	adults, _ := people.FindMany("age >= 18").Limit(10).Run(ctx)
//
// Builders are plain values: nothing touches the database until Run, Apply
// or Exec is called.
package thinorm

import (
	"context"
	"fmt"

	"github.com/rzpsarthak13/thinorm/internal/client"
	"github.com/rzpsarthak13/thinorm/internal/core"
	"github.com/rzpsarthak13/thinorm/internal/query"
	"gopkg.in/yaml.v3"
)

// Connection is an open database connection. It is safe for concurrent use.
type Connection struct {
	impl *client.Connection
}

// configProvider implements client.ConfigProvider to provide config as YAML without import cycles.
type configProvider struct {
	config *Config
}

func (cp *configProvider) GetYAML() ([]byte, error) {
	return yaml.Marshal(cp.config)
}

// Connect opens target. A malformed target, an unreachable backend or an
// authentication failure is a ConnectionError.
func Connect(ctx context.Context, target string, opts ...Option) (*Connection, error) {
	impl, err := client.Open(ctx, target, opts...)
	if err != nil {
		return nil, err
	}
	return &Connection{impl: impl}, nil
}

// ConnectWithConfig opens the connection described by cfg, including its
// change feed sink. Options are applied after the configuration.
func ConnectWithConfig(ctx context.Context, cfg *Config, opts ...Option) (*Connection, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	impl, err := client.NewFromProvider(ctx, &configProvider{config: cfg}, opts...)
	if err != nil {
		return nil, err
	}
	return &Connection{impl: impl}, nil
}

// Dialect returns the name of the connection's SQL dialect.
func (c *Connection) Dialect() string { return c.impl.Dialect().Name() }

// Tables returns the names of the tables mapped with Use or UseMapping.
func (c *Connection) Tables() []string { return c.impl.Tables() }

// Init executes the semicolon-separated statements of the script at path.
func (c *Connection) Init(ctx context.Context, path string) error {
	return c.impl.Init(ctx, path)
}

// Protect quotes s as a string literal for this connection's dialect, so it
// can be spliced into a predicate or raw query without changing its clauses.
func (c *Connection) Protect(s string) string {
	return c.impl.Protect(s)
}

// Ping checks that the backend is reachable.
func (c *Connection) Ping(ctx context.Context) error {
	return c.impl.Ping(ctx)
}

// Close releases the connection. Every later operation fails with ErrClosed.
func (c *Connection) Close() error {
	return c.impl.Close()
}

// Query builds a raw statement that returns rows. Arguments bind to the
// dialect's placeholders ("?" or "$n").
func (c *Connection) Query(sql string, args ...any) QueryBuilder {
	values, err := bindArgs(args)
	return QueryBuilder{conn: c, b: query.Raw(sql, values...), err: err}
}

// QueryUpdate builds a raw statement that returns no rows.
func (c *Connection) QueryUpdate(sql string, args ...any) UpdateBuilder {
	values, err := bindArgs(args)
	return UpdateBuilder{conn: c, b: query.RawExec(sql, values...), err: err}
}

func bindArgs(args []any) ([]core.Value, error) {
	values := make([]core.Value, len(args))
	for i, a := range args {
		v, err := core.ValueOf(a)
		if err != nil {
			return nil, fmt.Errorf("argument %d: %w", i+1, err)
		}
		values[i] = v
	}
	return values, nil
}

// render renders b for c's dialect and returns the literal SQL.
func (c *Connection) render(b query.Builder, err error) (string, error) {
	if err != nil {
		return "", renderError(b, err)
	}
	stmt, err := b.Render(c.impl.Dialect())
	if err != nil {
		return "", err
	}
	return stmt.Inline(c.impl.Dialect()), nil
}

func renderError(b query.Builder, err error) error {
	if core.KindOf(err) != 0 {
		return err
	}
	e := &core.Error{Kind: core.RenderError, Op: b.Kind().String(), Err: err}
	if meta := b.Metadata(); meta != nil {
		e.Table = meta.Name
	}
	return e
}

// QueryBuilder is a pending raw query.
type QueryBuilder struct {
	conn *Connection
	b    query.Builder
	err  error
}

// Limit restricts the result to at most n rows.
func (q QueryBuilder) Limit(n int) QueryBuilder {
	q.b = q.b.WithLimit(n)
	return q
}

// SQL returns the statement with literals inlined, without executing it.
func (q QueryBuilder) SQL() (string, error) {
	return q.conn.render(q.b, q.err)
}

// Exec runs the query and returns its rows.
func (q QueryBuilder) Exec(ctx context.Context) ([]Row, error) {
	if q.err != nil {
		return nil, renderError(q.b, q.err)
	}
	return q.conn.impl.Query(ctx, q.b)
}

// UpdateBuilder is a pending raw write.
type UpdateBuilder struct {
	conn *Connection
	b    query.Builder
	err  error
}

// SQL returns the statement with literals inlined, without executing it.
func (u UpdateBuilder) SQL() (string, error) {
	return u.conn.render(u.b, u.err)
}

// Exec runs the statement and returns the number of affected rows.
func (u UpdateBuilder) Exec(ctx context.Context) (int64, error) {
	if u.err != nil {
		return 0, renderError(u.b, u.err)
	}
	return u.conn.impl.Exec(ctx, u.b)
}
