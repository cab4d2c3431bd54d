package thinorm

import (
	"context"

	"github.com/rzpsarthak13/thinorm/internal/core"
	"github.com/rzpsarthak13/thinorm/internal/query"
	"github.com/rzpsarthak13/thinorm/internal/schema"
)

// Table provides the typed operations on the table mapped to T.
// Every method returns a builder; nothing touches the database until the
// builder is executed.
type Table[T any] struct {
	conn   *Connection
	mapper *schema.Mapper[T]
}

// Use maps T through its struct tags and registers the table with conn.
//
//	type Person struct {
//		ID   int64  `db:"id,pk"`
//		Name string `db:"name"`
//	}
func Use[T any](conn *Connection) (*Table[T], error) {
	mapping, err := schema.Reflect[T]()
	if err != nil {
		return nil, err
	}
	return UseMapping(conn, mapping)
}

// UseMapping registers a hand-written mapping for T with conn.
func UseMapping[T any](conn *Connection, mapping Mapping[T]) (*Table[T], error) {
	mapper, err := schema.NewMapper(mapping)
	if err != nil {
		return nil, err
	}
	if err := conn.impl.Register(mapper.Metadata()); err != nil {
		return nil, err
	}
	return &Table[T]{conn: conn, mapper: mapper}, nil
}

// Metadata returns the table description.
func (t *Table[T]) Metadata() *TableMetadata { return t.mapper.Metadata() }

// Add builds the insert of record. A zero or nil key asks the backend to
// generate one.
func (t *Table[T]) Add(record T) AddBuilder[T] {
	row, err := t.mapper.ToRow(record)
	return AddBuilder[T]{t: t, b: query.Insert(t.mapper.Metadata(), row), err: err}
}

// FindOne builds the select of the record whose primary key is key.
func (t *Table[T]) FindOne(key any) FindOneBuilder[T] {
	v, err := core.ValueOf(key)
	return FindOneBuilder[T]{t: t, b: query.SelectByKey(t.mapper.Metadata(), v), err: err}
}

// FindAll builds the select of every record.
func (t *Table[T]) FindAll() FindBuilder[T] {
	return FindBuilder[T]{t: t, b: query.SelectAll(t.mapper.Metadata())}
}

// FindMany builds the select of the records matching predicate, which is
// spliced verbatim after WHERE. Use Connection.Protect for literal text.
func (t *Table[T]) FindMany(predicate string) FindBuilder[T] {
	return FindBuilder[T]{t: t, b: query.SelectWhere(t.mapper.Metadata(), predicate)}
}

// Modify builds the update of every non-key column of record, by key.
func (t *Table[T]) Modify(record T) WriteBuilder[T] {
	row, err := t.mapper.ToRow(record)
	return WriteBuilder[T]{t: t, b: query.Update(t.mapper.Metadata(), row), err: err}
}

// Remove builds the delete of record, by key.
func (t *Table[T]) Remove(record T) WriteBuilder[T] {
	key, err := t.mapper.Key(record)
	return WriteBuilder[T]{t: t, b: query.Delete(t.mapper.Metadata(), key), err: err}
}

// AddBuilder is a pending insert.
type AddBuilder[T any] struct {
	t   *Table[T]
	b   query.Builder
	err error
}

// SQL returns the statement with literals inlined, without executing it.
func (a AddBuilder[T]) SQL() (string, error) { return a.t.conn.render(a.b, a.err) }

// Apply inserts the record and returns it as stored, generated key included.
func (a AddBuilder[T]) Apply(ctx context.Context) (T, error) {
	var zero T
	if a.err != nil {
		return zero, renderError(a.b, a.err)
	}
	row, err := a.t.conn.impl.Insert(ctx, a.b)
	if err != nil {
		return zero, err
	}
	return a.t.mapper.FromRow(row)
}

// FindOneBuilder is a pending select by key.
type FindOneBuilder[T any] struct {
	t   *Table[T]
	b   query.Builder
	err error
}

// SQL returns the statement with literals inlined, without executing it.
func (f FindOneBuilder[T]) SQL() (string, error) { return f.t.conn.render(f.b, f.err) }

// Run returns the record, or nil when no row has the key.
func (f FindOneBuilder[T]) Run(ctx context.Context) (*T, error) {
	if f.err != nil {
		return nil, renderError(f.b, f.err)
	}
	rows, err := f.t.conn.impl.Query(ctx, f.b)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	record, err := f.t.mapper.FromRow(rows[0])
	if err != nil {
		return nil, err
	}
	return &record, nil
}

// FindBuilder is a pending multi-row select.
type FindBuilder[T any] struct {
	t *Table[T]
	b query.Builder
}

// Limit restricts the result to at most n records.
func (f FindBuilder[T]) Limit(n int) FindBuilder[T] {
	f.b = f.b.WithLimit(n)
	return f
}

// SQL returns the statement with literals inlined, without executing it.
func (f FindBuilder[T]) SQL() (string, error) { return f.t.conn.render(f.b, nil) }

// Run returns the matching records in backend order. No match is an empty slice.
func (f FindBuilder[T]) Run(ctx context.Context) ([]T, error) {
	rows, err := f.t.conn.impl.Query(ctx, f.b)
	if err != nil {
		return nil, err
	}
	out := make([]T, 0, len(rows))
	for _, row := range rows {
		record, err := f.t.mapper.FromRow(row)
		if err != nil {
			return nil, err
		}
		out = append(out, record)
	}
	return out, nil
}

// WriteBuilder is a pending update or delete.
type WriteBuilder[T any] struct {
	t   *Table[T]
	b   query.Builder
	err error
}

// SQL returns the statement with literals inlined, without executing it.
func (w WriteBuilder[T]) SQL() (string, error) { return w.t.conn.render(w.b, w.err) }

// Run executes the statement and returns the number of affected rows:
// 1 when the key exists, 0 when it does not.
func (w WriteBuilder[T]) Run(ctx context.Context) (int64, error) {
	if w.err != nil {
		return 0, renderError(w.b, w.err)
	}
	return w.t.conn.impl.Exec(ctx, w.b)
}
