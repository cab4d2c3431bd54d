package core

// Mapping ties a record type to its table. Implementations are provided by
// reflection over struct tags or registered manually.
type Mapping[T any] interface {
	// Metadata returns the table description. The same pointer is returned
	// on every call.
	Metadata() *TableMetadata

	// Values returns the record's column values in metadata order.
	// It fails only when a field's own driver.Valuer fails.
	Values(record T) ([]Value, error)

	// Record builds a record from column values in metadata order.
	Record(values []Value) (T, error)
}
