package schema

import (
	"fmt"

	"github.com/rzpsarthak13/thinorm/internal/core"
)

// SchemaValidator validates values against table metadata.
type SchemaValidator struct {
	meta *core.TableMetadata
}

// NewSchemaValidator creates a new schema validator.
func NewSchemaValidator(meta *core.TableMetadata) *SchemaValidator {
	return &SchemaValidator{meta: meta}
}

// ValidateRow validates a full row about to be written.
// When allowUnsetKey is set the primary key may hold the unset sentinel,
// which is how inserts ask the backend to generate it.
func (sv *SchemaValidator) ValidateRow(row core.Row, allowUnsetKey bool) error {
	if sv.meta == nil {
		return fmt.Errorf("schema cannot be nil")
	}
	if row.Len() != len(sv.meta.Columns) {
		return fmt.Errorf("row has %d values, table %s has %d columns", row.Len(), sv.meta.Name, len(sv.meta.Columns))
	}

	for i, column := range sv.meta.Columns {
		value := row.At(i)
		if column.PrimaryKey {
			if allowUnsetKey && core.IsUnsetKey(value) {
				continue
			}
			if err := sv.ValidateKey(value); err != nil {
				return err
			}
			continue
		}

		// Check NULL constraint
		if value.IsNull() {
			if !column.Nullable {
				return fmt.Errorf("column '%s' cannot be NULL", column.Name)
			}
			continue
		}

		if err := validateKind(column, value); err != nil {
			return err
		}
	}
	return nil
}

// ValidateKey validates that a primary key value is usable in a WHERE clause.
func (sv *SchemaValidator) ValidateKey(key core.Value) error {
	if sv.meta == nil {
		return fmt.Errorf("schema cannot be nil")
	}
	pk := sv.meta.PrimaryKey()
	if pk.Name == "" {
		return fmt.Errorf("table %s has no primary key defined", sv.meta.Name)
	}
	if key.IsNull() {
		return fmt.Errorf("primary key '%s' cannot be NULL", pk.Name)
	}
	return validateKind(pk, key)
}

// validateKind checks that a value can be stored in the column without narrowing.
func validateKind(column core.Column, value core.Value) error {
	ok := true
	switch column.Kind {
	case core.KindInteger:
		ok = value.Kind() == core.KindInteger
	case core.KindReal:
		ok = value.Kind() == core.KindReal || value.Kind() == core.KindInteger
	case core.KindText:
		ok = value.Kind() == core.KindText
	case core.KindBlob:
		ok = value.Kind() == core.KindBlob || value.Kind() == core.KindText
	}
	if !ok {
		return fmt.Errorf("type mismatch: column '%s' expects %s, got %s", column.Name, column.Kind, value.Kind())
	}
	return nil
}
