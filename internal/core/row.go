package core

import "fmt"

// Row is an ordered, read-only sequence of values returned by a query.
type Row struct {
	values []Value
}

// NewRow creates a row holding the given values.
func NewRow(values ...Value) Row {
	return Row{values: append([]Value(nil), values...)}
}

// Len returns the number of columns in the row.
func (r Row) Len() int { return len(r.values) }

// At returns the value at column i. It panics when i is out of range.
func (r Row) At(i int) Value { return r.values[i] }

// Values returns a copy of the row's values.
func (r Row) Values() []Value { return append([]Value(nil), r.values...) }

// Get returns the value at column i or a mapping error when i is out of range.
func (r Row) Get(i int) (Value, error) {
	if i < 0 || i >= len(r.values) {
		return Null(), &Error{
			Kind: MappingError,
			Err:  fmt.Errorf("column index %d out of range for row of %d", i, len(r.values)),
		}
	}
	return r.values[i], nil
}

// IsNull reports whether column i is NULL. Out of range columns report false.
func (r Row) IsNull(i int) bool {
	v, err := r.Get(i)
	return err == nil && v.IsNull()
}

// Int64 reads column i as an integer.
func (r Row) Int64(i int) (int64, error) {
	v, err := r.Get(i)
	if err != nil {
		return 0, err
	}
	return v.Int64()
}

// Float64 reads column i as a float.
func (r Row) Float64(i int) (float64, error) {
	v, err := r.Get(i)
	if err != nil {
		return 0, err
	}
	return v.Float64()
}

// String reads column i as text.
func (r Row) String(i int) (string, error) {
	v, err := r.Get(i)
	if err != nil {
		return "", err
	}
	return v.Str()
}

// Bytes reads column i as a blob.
func (r Row) Bytes(i int) ([]byte, error) {
	v, err := r.Get(i)
	if err != nil {
		return nil, err
	}
	return v.Bytes()
}
