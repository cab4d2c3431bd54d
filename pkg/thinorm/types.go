package thinorm

import (
	"github.com/rzpsarthak13/thinorm/internal/client"
	"github.com/rzpsarthak13/thinorm/internal/core"
	"github.com/rzpsarthak13/thinorm/internal/database"
	"github.com/rzpsarthak13/thinorm/internal/schema"
)

// Values and rows.
type (
	// Value is a single column value: Null, Integer, Real, Text or Blob.
	Value = core.Value

	// Row is an ordered, read-only sequence of values.
	Row = core.Row

	// Kind identifies the variant held by a Value.
	Kind = core.Kind
)

// Value kinds.
const (
	KindNull    = core.KindNull
	KindInteger = core.KindInteger
	KindReal    = core.KindReal
	KindText    = core.KindText
	KindBlob    = core.KindBlob
)

// Value constructors.
var (
	Null    = core.Null
	Int     = core.Int
	Real    = core.Real
	Text    = core.Text
	Blob    = core.Blob
	ValueOf = core.ValueOf
)

// Table descriptions.
type (
	// TableMetadata describes the structure of a mapped table.
	TableMetadata = core.TableMetadata

	// Column represents a single column in a mapped table.
	Column = core.Column

	// Mapping ties a record type to its table.
	Mapping[T any] = core.Mapping[T]

	// Funcs is a manually registered mapping.
	Funcs[T any] = schema.Funcs[T]

	// Tabler lets a record type choose its table name.
	Tabler = schema.Tabler
)

// Errors.
type (
	// Error is the error type returned by every operation.
	Error = core.Error

	// ErrorKind classifies an Error.
	ErrorKind = core.ErrorKind
)

// Error kinds.
const (
	ConnectionError = core.ConnectionError
	SQLError        = core.SQLError
	MappingError    = core.MappingError
	InsertError     = core.InsertError
	RenderError     = core.RenderError
	ConfigError     = core.ConfigError
)

// Sentinels for errors.Is.
var (
	ErrConnection = core.ErrConnection
	ErrSQL        = core.ErrSQL
	ErrMapping    = core.ErrMapping
	ErrInsert     = core.ErrInsert
	ErrRender     = core.ErrRender
	ErrConfig     = core.ErrConfig
	ErrClosed     = core.ErrClosed
)

// Connection options, hooks and change events.
type (
	// Option configures a connection.
	Option = client.Option

	// PoolConfig holds the database/sql pool settings.
	PoolConfig = database.PoolConfig

	// Hook observes statements executed by a connection.
	Hook = client.Hook

	// HookFuncs is a function-based Hook.
	HookFuncs = client.HookFuncs

	// StatementInfo describes a statement about to be executed.
	StatementInfo = client.StatementInfo

	// StatementResult describes how a statement finished.
	StatementResult = client.StatementResult

	// ChangeEvent describes one committed write.
	ChangeEvent = core.ChangeEvent

	// ChangePublisher delivers change events to an external sink.
	ChangePublisher = core.ChangePublisher

	// OperationType is the kind of write in a ChangeEvent.
	OperationType = core.OperationType
)

// Change event operations.
const (
	OperationInsert = core.OperationInsert
	OperationUpdate = core.OperationUpdate
	OperationDelete = core.OperationDelete
	OperationExec   = core.OperationExec
)

// Options.
var (
	WithPool      = client.WithPool
	WithRateLimit = client.WithRateLimit
	WithPublisher = client.WithPublisher
	WithHook      = client.WithHook
	WithMetrics   = client.WithMetrics
	WithLogger    = client.WithLogger
)

// DefaultPoolConfig returns the default pool settings.
func DefaultPoolConfig() PoolConfig { return database.DefaultPoolConfig() }

// Get decodes column i of row into T, using the same rules as record fields.
// NULL is a mapping error unless T is a pointer, slice or sql.Null* type.
func Get[T any](row Row, i int) (T, error) {
	var out T
	v, err := row.Get(i)
	if err != nil {
		return out, err
	}
	if err := schema.Assign(&out, v); err != nil {
		return out, err
	}
	return out, nil
}

// GetOpt is like Get but returns nil for NULL.
func GetOpt[T any](row Row, i int) (*T, error) {
	v, err := row.Get(i)
	if err != nil {
		return nil, err
	}
	if v.IsNull() {
		return nil, nil
	}
	out := new(T)
	if err := schema.Assign(out, v); err != nil {
		return nil, err
	}
	return out, nil
}
