package core

import (
	"context"
	"time"
)

// OperationType represents the type of write that produced a change event.
type OperationType string

const (
	// OperationInsert represents an INSERT issued by add.
	OperationInsert OperationType = "INSERT"

	// OperationUpdate represents an UPDATE issued by modify.
	OperationUpdate OperationType = "UPDATE"

	// OperationDelete represents a DELETE issued by remove.
	OperationDelete OperationType = "DELETE"

	// OperationExec represents a raw statement issued by query_update or init.
	OperationExec OperationType = "EXEC"
)

// ChangeEvent describes one committed write.
type ChangeEvent struct {
	// ID uniquely identifies the event.
	ID string `json:"id"`

	// Table is the table written to. Empty for raw statements.
	Table string `json:"table,omitempty"`

	// Operation is the kind of write.
	Operation OperationType `json:"operation"`

	// Key is the primary key of the affected record, when known.
	Key any `json:"key,omitempty"`

	// RowsAffected is the count reported by the backend.
	RowsAffected int64 `json:"rows_affected"`

	// Statement is the executed SQL with literals inlined.
	Statement string `json:"statement"`

	// Timestamp is when the write completed.
	Timestamp time.Time `json:"timestamp"`
}

// ChangePublisher delivers change events to an external sink.
// Publishing happens after the write has committed; a failure does not
// undo the write.
type ChangePublisher interface {
	// Publish delivers a single event.
	Publish(ctx context.Context, event *ChangeEvent) error

	// Close flushes pending events and releases resources.
	Close() error
}
