package query

import (
	"errors"
	"fmt"

	"github.com/rzpsarthak13/thinorm/internal/core"
)

// Kind identifies the statement a Builder renders.
type Kind int

const (
	KindInsert Kind = iota + 1
	KindSelectByKey
	KindSelectAll
	KindSelectWhere
	KindUpdate
	KindDelete
	KindRawQuery
	KindRawExec
)

// String returns the public operation name for the kind.
func (k Kind) String() string {
	switch k {
	case KindInsert:
		return "add"
	case KindSelectByKey:
		return "find_one"
	case KindSelectAll:
		return "find_all"
	case KindSelectWhere:
		return "find_many"
	case KindUpdate:
		return "modify"
	case KindDelete:
		return "remove"
	case KindRawQuery:
		return "query"
	case KindRawExec:
		return "query_update"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// ReturnsRows reports whether the statement is executed as a query.
func (k Kind) ReturnsRows() bool {
	switch k {
	case KindSelectByKey, KindSelectAll, KindSelectWhere, KindRawQuery:
		return true
	}
	return false
}

// Limitable reports whether a row limit may be attached.
func (k Kind) Limitable() bool {
	switch k {
	case KindSelectAll, KindSelectWhere, KindRawQuery:
		return true
	}
	return false
}

// Operation returns the change-feed operation for write kinds.
func (k Kind) Operation() core.OperationType {
	switch k {
	case KindInsert:
		return core.OperationInsert
	case KindUpdate:
		return core.OperationUpdate
	case KindDelete:
		return core.OperationDelete
	default:
		return core.OperationExec
	}
}

var (
	// ErrLimitNotAllowed is returned when a limit is attached to a statement
	// that is not a multi-row select.
	ErrLimitNotAllowed = errors.New("limit is only allowed on multi-row selects")

	// ErrNegativeLimit is returned for a limit below zero.
	ErrNegativeLimit = errors.New("limit cannot be negative")

	// ErrEmptyPredicate is returned by find_many with a blank predicate.
	ErrEmptyPredicate = errors.New("predicate cannot be empty")

	// ErrEmptyStatement is returned for blank raw SQL.
	ErrEmptyStatement = errors.New("statement cannot be empty")
)

// Builder describes one statement. It is an immutable value: every method
// returns a modified copy, and nothing touches the database until the
// statement is rendered and executed by a connection.
type Builder struct {
	kind      Kind
	meta      *core.TableMetadata
	row       core.Row
	key       core.Value
	predicate string
	raw       string
	args      []core.Value
	limit     int
	hasLimit  bool
}

// Insert builds an INSERT of row into the table.
func Insert(meta *core.TableMetadata, row core.Row) Builder {
	return Builder{kind: KindInsert, meta: meta, row: row}
}

// SelectByKey builds a SELECT of the row whose primary key equals key.
func SelectByKey(meta *core.TableMetadata, key core.Value) Builder {
	return Builder{kind: KindSelectByKey, meta: meta, key: key}
}

// SelectAll builds a SELECT of every row.
func SelectAll(meta *core.TableMetadata) Builder {
	return Builder{kind: KindSelectAll, meta: meta}
}

// SelectWhere builds a SELECT filtered by a raw predicate, appended verbatim.
// Untrusted input inside the predicate must go through Dialect.Quote.
func SelectWhere(meta *core.TableMetadata, predicate string) Builder {
	return Builder{kind: KindSelectWhere, meta: meta, predicate: predicate}
}

// Update builds an UPDATE setting every non-key column of row, matched by key.
func Update(meta *core.TableMetadata, row core.Row) Builder {
	return Builder{kind: KindUpdate, meta: meta, row: row}
}

// Delete builds a DELETE of the row whose primary key equals key.
func Delete(meta *core.TableMetadata, key core.Value) Builder {
	return Builder{kind: KindDelete, meta: meta, key: key}
}

// Raw builds a caller-written statement that returns rows.
func Raw(sql string, args ...core.Value) Builder {
	return Builder{kind: KindRawQuery, raw: sql, args: append([]core.Value(nil), args...)}
}

// RawExec builds a caller-written statement that returns an affected count.
func RawExec(sql string, args ...core.Value) Builder {
	return Builder{kind: KindRawExec, raw: sql, args: append([]core.Value(nil), args...)}
}

// WithLimit returns a copy of b restricted to n rows. Limits on kinds that
// do not return multiple rows are reported when the builder is rendered.
func (b Builder) WithLimit(n int) Builder {
	b.limit = n
	b.hasLimit = true
	return b
}

// Kind returns the statement kind.
func (b Builder) Kind() Kind { return b.kind }

// Metadata returns the target table, or nil for raw statements.
func (b Builder) Metadata() *core.TableMetadata { return b.meta }

// Key returns the key targeted by the statement, when it has one.
func (b Builder) Key() core.Value {
	switch b.kind {
	case KindSelectByKey, KindDelete:
		return b.key
	case KindInsert, KindUpdate:
		if b.meta != nil && b.row.Len() == len(b.meta.Columns) {
			if i := b.meta.PrimaryKeyIndex(); i >= 0 {
				return b.row.At(i)
			}
		}
	}
	return core.Null()
}

// Limit returns the attached limit and whether one is set.
func (b Builder) Limit() (int, bool) { return b.limit, b.hasLimit }
