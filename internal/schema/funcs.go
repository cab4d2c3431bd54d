package schema

import (
	"fmt"

	"github.com/rzpsarthak13/thinorm/internal/core"
)

// Funcs is a manually registered mapping for record types that cannot or
// should not be described with struct tags.
type Funcs[T any] struct {
	// Table describes the mapped table.
	Table *core.TableMetadata

	// ToValues returns the record's values in Table.Columns order.
	ToValues func(T) []core.Value

	// FromValues builds a record from values in Table.Columns order.
	FromValues func([]core.Value) (T, error)
}

// Metadata returns the table description.
func (f Funcs[T]) Metadata() *core.TableMetadata { return f.Table }

// Values returns the record's column values.
func (f Funcs[T]) Values(record T) ([]core.Value, error) {
	if f.ToValues == nil {
		return nil, fmt.Errorf("mapping for %s has no ToValues func", f.Table.Name)
	}
	return f.ToValues(record), nil
}

// Record builds a record from column values.
func (f Funcs[T]) Record(values []core.Value) (T, error) {
	if f.FromValues == nil {
		var zero T
		return zero, fmt.Errorf("mapping for %s has no FromValues func", f.Table.Name)
	}
	return f.FromValues(values)
}
