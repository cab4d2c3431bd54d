package client

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rzpsarthak13/thinorm/internal/changefeed"
	"github.com/rzpsarthak13/thinorm/internal/core"
	"github.com/rzpsarthak13/thinorm/internal/metrics"
	"github.com/rzpsarthak13/thinorm/internal/query"
)

// Query renders b and returns every row it selects. b must be a select or a
// raw query. No rows is an empty slice, not an error.
func (c *Connection) Query(ctx context.Context, b query.Builder) ([]core.Row, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return nil, closedError(b.Kind().String())
	}
	return c.query(ctx, b)
}

// Exec renders b, runs it and returns the number of affected rows. b must be
// an update, a delete or a raw write.
func (c *Connection) Exec(ctx context.Context, b query.Builder) (int64, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return 0, closedError(b.Kind().String())
	}
	return c.exec(ctx, b, b.Kind().String())
}

// Insert runs an insert builder and returns the stored row, read back by its
// key so backend defaults and generated keys are included.
func (c *Connection) Insert(ctx context.Context, b query.Builder) (core.Row, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return core.Row{}, closedError(b.Kind().String())
	}
	return c.insert(ctx, b)
}

func (c *Connection) query(ctx context.Context, b query.Builder) ([]core.Row, error) {
	if !b.Kind().ReturnsRows() {
		return nil, renderError(b, fmt.Errorf("%s does not return rows", b.Kind()))
	}
	stmt, info, err := c.prepare(ctx, b, b.Kind().String())
	if err != nil {
		return nil, err
	}

	var rows []core.Row
	_, err = c.run(ctx, info, func(ctx context.Context) (StatementResult, error) {
		var qerr error
		rows, qerr = c.db.Query(ctx, stmt.SQL, stmt.NativeArgs(c.dialect)...)
		return StatementResult{Rows: len(rows)}, qerr
	})
	if err != nil {
		return nil, err
	}
	if rows == nil {
		rows = []core.Row{}
	}
	return rows, nil
}

func (c *Connection) exec(ctx context.Context, b query.Builder, op string) (int64, error) {
	switch b.Kind() {
	case query.KindUpdate, query.KindDelete, query.KindRawExec:
	default:
		return 0, renderError(b, fmt.Errorf("%s cannot be executed as a write", b.Kind()))
	}
	stmt, info, err := c.prepare(ctx, b, op)
	if err != nil {
		return 0, err
	}

	if c.dialect.SingleWriter() {
		c.writeMu.Lock()
		defer c.writeMu.Unlock()
	}

	res, err := c.run(ctx, info, func(ctx context.Context) (StatementResult, error) {
		r, err := c.db.Exec(ctx, stmt.SQL, stmt.NativeArgs(c.dialect)...)
		return StatementResult{RowsAffected: r.RowsAffected}, err
	})
	if err != nil {
		return 0, err
	}

	// Updates and deletes that matched nothing changed nothing.
	if b.Kind() == query.KindRawExec || res.RowsAffected > 0 {
		var key any
		if b.Metadata() != nil {
			key = b.Key().Native()
		}
		c.publish(ctx, info.Table, b.Kind().Operation(), key, res.RowsAffected, info.SQL)
	}
	return res.RowsAffected, nil
}

func (c *Connection) insert(ctx context.Context, b query.Builder) (core.Row, error) {
	if b.Kind() != query.KindInsert {
		return core.Row{}, renderError(b, fmt.Errorf("%s is not an insert", b.Kind()))
	}
	stmt, info, err := c.prepare(ctx, b, b.Kind().String())
	if err != nil {
		return core.Row{}, err
	}

	if c.dialect.SingleWriter() {
		c.writeMu.Lock()
		defer c.writeMu.Unlock()
	}

	key := b.Key()
	res, err := c.run(ctx, info, func(ctx context.Context) (StatementResult, error) {
		if stmt.Returning {
			rows, err := c.db.Query(ctx, stmt.SQL, stmt.NativeArgs(c.dialect)...)
			if err != nil {
				return StatementResult{}, err
			}
			if len(rows) == 0 || rows[0].Len() == 0 {
				return StatementResult{}, &core.Error{Kind: core.InsertError, Err: fmt.Errorf("insert returned no key")}
			}
			key = rows[0].At(0)
			return StatementResult{Rows: len(rows), RowsAffected: int64(len(rows))}, nil
		}

		r, err := c.db.Exec(ctx, stmt.SQL, stmt.NativeArgs(c.dialect)...)
		if err != nil {
			return StatementResult{}, err
		}
		if core.IsUnsetKey(key) {
			if !r.HasLastInsertID {
				return StatementResult{RowsAffected: r.RowsAffected},
					&core.Error{Kind: core.InsertError, Err: fmt.Errorf("backend did not report a generated key")}
			}
			key = core.Int(r.LastInsertID)
		}
		return StatementResult{RowsAffected: r.RowsAffected}, nil
	})
	if err != nil {
		return core.Row{}, err
	}
	c.publish(ctx, info.Table, core.OperationInsert, key.Native(), res.RowsAffected, info.SQL)

	rows, err := c.query(ctx, query.SelectByKey(b.Metadata(), key))
	if err != nil {
		return core.Row{}, &core.Error{Kind: core.InsertError, Op: info.Op, Table: info.Table, SQL: info.SQL, Err: err}
	}
	if len(rows) == 0 {
		return core.Row{}, &core.Error{
			Kind:  core.InsertError,
			Op:    info.Op,
			Table: info.Table,
			SQL:   info.SQL,
			Err:   fmt.Errorf("inserted row with key %s not found", key),
		}
	}
	return rows[0], nil
}

// prepare renders b and runs the before hooks. Nothing has touched the
// backend when it fails.
func (c *Connection) prepare(ctx context.Context, b query.Builder, op string) (query.Statement, *StatementInfo, error) {
	stmt, err := b.Render(c.dialect)
	if err != nil {
		return query.Statement{}, nil, err
	}

	info := &StatementInfo{
		Op:   op,
		SQL:  stmt.Inline(c.dialect),
		Args: stmt.Args,
	}
	if meta := b.Metadata(); meta != nil {
		info.Table = meta.Name
	}

	if err := c.hooks.executeBefore(ctx, info); err != nil {
		return query.Statement{}, nil, classify(core.RenderError, info, fmt.Errorf("statement rejected by hook: %w", err))
	}
	return stmt, info, nil
}

// run throttles, traces, times and logs one backend call.
func (c *Connection) run(ctx context.Context, info *StatementInfo, call func(context.Context) (StatementResult, error)) (StatementResult, error) {
	if err := c.throttle(ctx, info); err != nil {
		return StatementResult{}, err
	}

	ctx, span := metrics.StartClientSpan(ctx, "thinorm."+info.Op,
		metrics.AttrDBSystem.String(c.dialect.Name()),
		metrics.AttrDBOperation.String(info.Op),
		metrics.AttrDBTable.String(info.Table),
		metrics.AttrDBStatement.String(info.SQL),
	)

	start := time.Now()
	res, err := call(ctx)
	res.Duration = time.Since(start)
	if err != nil {
		err = classify(core.SQLError, info, err)
	}
	res.Err = err

	c.metrics.ObserveStatement(c.dialect.Name(), info.Op, res.Duration, err)
	if err != nil {
		c.logger.Error("statement failed",
			"op", info.Op, "table", info.Table, "sql", info.SQL, "error", err)
	} else {
		c.logger.Debug("statement executed",
			"op", info.Op, "table", info.Table, "sql", info.SQL,
			"rows", res.Rows, "rows_affected", res.RowsAffected, "duration", res.Duration)
	}

	c.hooks.executeAfter(ctx, info, res)

	span.SetAttributes(metrics.AttrRows.Int64(int64(res.Rows) + res.RowsAffected))
	metrics.EndSpan(span, err)
	return res, err
}

func (c *Connection) throttle(ctx context.Context, info *StatementInfo) error {
	if c.limiter == nil {
		return nil
	}
	start := time.Now()
	if err := c.limiter.Wait(ctx); err != nil {
		return classify(core.ConnectionError, info, fmt.Errorf("rate limit wait: %w", err))
	}
	c.metrics.ObserveThrottle(c.dialect.Name(), time.Since(start))
	return nil
}

// publish sends a change event for a committed write. Failures are logged
// and counted, never returned.
func (c *Connection) publish(ctx context.Context, table string, op core.OperationType, key any, rowsAffected int64, statement string) {
	if c.publisher == nil {
		return
	}
	event := changefeed.NewEvent(table, op, key, rowsAffected, statement)
	if err := c.publisher.Publish(context.WithoutCancel(ctx), event); err != nil {
		c.metrics.PublishFailed(table, op)
		c.logger.Warn("failed to publish change event",
			"table", table, "operation", op, "event_id", event.ID, "error", err)
		return
	}
	c.metrics.EventPublished(table, op)
}

// classify converts err to a *core.Error located at the statement.
func classify(kind core.ErrorKind, info *StatementInfo, err error) error {
	err = core.Classify(kind, info.Op, info.SQL, err)
	var e *core.Error
	if errors.As(err, &e) && e.Table == "" {
		e.Table = info.Table
	}
	return err
}

func renderError(b query.Builder, err error) error {
	e := &core.Error{Kind: core.RenderError, Op: b.Kind().String(), Err: err}
	if meta := b.Metadata(); meta != nil {
		e.Table = meta.Name
	}
	return e
}
