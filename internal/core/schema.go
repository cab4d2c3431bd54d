package core

import (
	"errors"
	"fmt"
)

// TableMetadata describes the structure of a mapped table.
// It is immutable once built and shared by every builder for the record type.
type TableMetadata struct {
	// Name is the table name.
	Name string

	// Columns are the mapped columns in record order.
	Columns []Column
}

// Column represents a single column in a mapped table.
type Column struct {
	// Name is the column name.
	Name string

	// PrimaryKey marks the identity column. Exactly one column has it set.
	PrimaryKey bool

	// Nullable indicates whether the column can hold NULL.
	Nullable bool

	// Kind is the value kind stored in the column.
	Kind Kind

	// Boolean marks an integer column holding truth values (0 or 1).
	// Backends with a native boolean type bind it as bool.
	Boolean bool
}

var (
	// ErrNoPrimaryKey is returned for metadata without a primary key column.
	ErrNoPrimaryKey = errors.New("table has no primary key")

	// ErrMultiplePrimaryKeys is returned for metadata with composite keys.
	ErrMultiplePrimaryKeys = errors.New("table has more than one primary key")
)

// Validate checks that the metadata names a table, has unique non-empty
// column names and exactly one primary key.
func (m *TableMetadata) Validate() error {
	if m == nil {
		return fmt.Errorf("table metadata is nil")
	}
	if m.Name == "" {
		return fmt.Errorf("table name is required")
	}
	if len(m.Columns) == 0 {
		return fmt.Errorf("table %s has no columns", m.Name)
	}
	seen := make(map[string]bool, len(m.Columns))
	keys := 0
	for _, col := range m.Columns {
		if col.Name == "" {
			return fmt.Errorf("table %s has a column without a name", m.Name)
		}
		if seen[col.Name] {
			return fmt.Errorf("table %s has duplicate column %s", m.Name, col.Name)
		}
		seen[col.Name] = true
		if col.PrimaryKey {
			keys++
		}
	}
	switch {
	case keys == 0:
		return fmt.Errorf("%w: %s", ErrNoPrimaryKey, m.Name)
	case keys > 1:
		return fmt.Errorf("%w: %s", ErrMultiplePrimaryKeys, m.Name)
	}
	return nil
}

// PrimaryKeyIndex returns the position of the primary key column, or -1.
func (m *TableMetadata) PrimaryKeyIndex() int {
	for i, col := range m.Columns {
		if col.PrimaryKey {
			return i
		}
	}
	return -1
}

// PrimaryKey returns the primary key column.
func (m *TableMetadata) PrimaryKey() Column {
	if i := m.PrimaryKeyIndex(); i >= 0 {
		return m.Columns[i]
	}
	return Column{}
}

// ColumnNames returns the column names in record order.
func (m *TableMetadata) ColumnNames() []string {
	names := make([]string, len(m.Columns))
	for i, col := range m.Columns {
		names[i] = col.Name
	}
	return names
}

// IsUnsetKey reports whether v is the sentinel for "no key assigned yet":
// NULL or the integer 0.
func IsUnsetKey(v Value) bool {
	if v.IsNull() {
		return true
	}
	i, err := v.Int64()
	return err == nil && i == 0
}
