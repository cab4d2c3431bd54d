package schema

import (
	"errors"
	"fmt"

	"github.com/rzpsarthak13/thinorm/internal/core"
)

// Mapper converts between a record type and rows of its table.
type Mapper[T any] struct {
	mapping   core.Mapping[T]
	meta      *core.TableMetadata
	validator *SchemaValidator
}

// NewMapper wraps a mapping after validating its metadata.
func NewMapper[T any](mapping core.Mapping[T]) (*Mapper[T], error) {
	if mapping == nil {
		return nil, &core.Error{Kind: core.MappingError, Err: fmt.Errorf("mapping cannot be nil")}
	}
	meta := mapping.Metadata()
	if err := meta.Validate(); err != nil {
		return nil, &core.Error{Kind: core.MappingError, Err: err}
	}
	return &Mapper[T]{
		mapping:   mapping,
		meta:      meta,
		validator: NewSchemaValidator(meta),
	}, nil
}

// Metadata returns the table description.
func (m *Mapper[T]) Metadata() *core.TableMetadata { return m.meta }

// Validator returns the validator bound to the table.
func (m *Mapper[T]) Validator() *SchemaValidator { return m.validator }

// ToRow returns the record's values as a row in column order.
func (m *Mapper[T]) ToRow(record T) (core.Row, error) {
	values, err := m.mapping.Values(record)
	if err != nil {
		return core.Row{}, m.wrap(err)
	}
	if len(values) != len(m.meta.Columns) {
		return core.Row{}, m.wrap(fmt.Errorf("mapping produced %d values for %d columns", len(values), len(m.meta.Columns)))
	}
	return core.NewRow(values...), nil
}

// FromRow builds a record from a row in column order.
func (m *Mapper[T]) FromRow(row core.Row) (T, error) {
	if row.Len() != len(m.meta.Columns) {
		var zero T
		return zero, m.wrap(fmt.Errorf("row has %d columns, table has %d", row.Len(), len(m.meta.Columns)))
	}
	record, err := m.mapping.Record(row.Values())
	if err != nil {
		return record, m.wrap(err)
	}
	return record, nil
}

// Key returns the record's primary key value.
func (m *Mapper[T]) Key(record T) (core.Value, error) {
	row, err := m.ToRow(record)
	if err != nil {
		return core.Null(), err
	}
	return row.At(m.meta.PrimaryKeyIndex()), nil
}

// wrap tags err with the table name, keeping the kind of a *core.Error.
func (m *Mapper[T]) wrap(err error) error {
	var e *core.Error
	if errors.As(err, &e) {
		out := *e
		if out.Table == "" {
			out.Table = m.meta.Name
		}
		return &out
	}
	return &core.Error{Kind: core.MappingError, Table: m.meta.Name, Err: err}
}
