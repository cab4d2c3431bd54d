package core

import (
	"errors"
	"fmt"
	"strings"
)

// ErrorKind classifies failures surfaced by a connection.
type ErrorKind int

const (
	// ConnectionError covers malformed targets, unreachable backends,
	// authentication failures and use after close.
	ConnectionError ErrorKind = iota + 1

	// SQLError is a statement rejected by the backend.
	SQLError

	// MappingError is a row that cannot be converted into a record or value.
	MappingError

	// InsertError is an insert whose generated row could not be read back.
	InsertError

	// RenderError is a builder that cannot be turned into a statement.
	RenderError

	// ConfigError is an invalid configuration.
	ConfigError
)

// String returns the name of the kind.
func (k ErrorKind) String() string {
	switch k {
	case ConnectionError:
		return "connection error"
	case SQLError:
		return "sql error"
	case MappingError:
		return "mapping error"
	case InsertError:
		return "insert error"
	case RenderError:
		return "render error"
	case ConfigError:
		return "config error"
	default:
		return "unknown error"
	}
}

// Sentinels matched by errors.Is against any *Error of the same kind.
var (
	ErrConnection = errors.New("connection error")
	ErrSQL        = errors.New("sql error")
	ErrMapping    = errors.New("mapping error")
	ErrInsert     = errors.New("insert error")
	ErrRender     = errors.New("render error")
	ErrConfig     = errors.New("config error")

	// ErrClosed is returned by every operation on a closed connection.
	ErrClosed = errors.New("connection is closed")
)

// Error is the error type returned across the public surface.
type Error struct {
	// Kind classifies the failure.
	Kind ErrorKind

	// Op is the operation that failed (for example "find_one").
	Op string

	// Table and Column locate mapping failures, when known.
	Table  string
	Column string

	// SQL is the statement that failed, when one was rendered.
	SQL string

	// Err is the underlying cause.
	Err error
}

// NewError wraps err with a kind and operation.
func NewError(kind ErrorKind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(e.Kind.String())
	if e.Op != "" {
		b.WriteString(" in ")
		b.WriteString(e.Op)
	}
	if e.Table != "" {
		b.WriteString(" on ")
		b.WriteString(e.Table)
		if e.Column != "" {
			b.WriteString(".")
			b.WriteString(e.Column)
		}
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	if e.SQL != "" {
		fmt.Fprintf(&b, " [sql: %s]", e.SQL)
	}
	return b.String()
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches the kind sentinels.
func (e *Error) Is(target error) bool {
	switch target {
	case ErrConnection:
		return e.Kind == ConnectionError
	case ErrSQL:
		return e.Kind == SQLError
	case ErrMapping:
		return e.Kind == MappingError
	case ErrInsert:
		return e.Kind == InsertError
	case ErrRender:
		return e.Kind == RenderError
	case ErrConfig:
		return e.Kind == ConfigError
	}
	return false
}

// KindOf returns the kind of the first *Error in err's chain, or 0.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return 0
}

// Classify returns err as an *Error. Errors that already carry a kind keep it
// and gain op and sql when missing; anything else becomes kind.
func Classify(kind ErrorKind, op, sql string, err error) error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		out := *e
		if out.Op == "" {
			out.Op = op
		}
		if out.SQL == "" {
			out.SQL = sql
		}
		return &out
	}
	return &Error{Kind: kind, Op: op, SQL: sql, Err: err}
}
