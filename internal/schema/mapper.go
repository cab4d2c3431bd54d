package schema

import (
	"database/sql/driver"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/rzpsarthak13/thinorm/internal/core"
)

// TypeMapper handles mapping between database column types and value kinds.
type TypeMapper struct{}

// NewTypeMapper creates a new type mapper.
func NewTypeMapper() *TypeMapper {
	return &TypeMapper{}
}

// BaseType normalises a database type name: upper-cased, size/precision
// removed and the UNSIGNED qualifier dropped (e.g., "varchar(255)" -> "VARCHAR").
func BaseType(dbType string) string {
	base := strings.ToUpper(strings.TrimSpace(dbType))
	if idx := strings.Index(base, "("); idx > 0 {
		base = base[:idx]
	}
	base = strings.TrimPrefix(base, "UNSIGNED ")
	base = strings.TrimSuffix(base, " UNSIGNED")
	return strings.TrimSpace(base)
}

// KindForDBType returns the value kind a column of dbType decodes to.
// Unknown or empty types return core.KindNull, meaning "take the driver's word".
func (tm *TypeMapper) KindForDBType(dbType string) core.Kind {
	switch BaseType(dbType) {
	case "INT", "INTEGER", "MEDIUMINT", "BIGINT", "SMALLINT", "TINYINT",
		"INT2", "INT4", "INT8", "SERIAL", "BIGSERIAL", "SMALLSERIAL",
		"BOOLEAN", "BOOL", "YEAR", "BIT":
		return core.KindInteger
	case "FLOAT", "DOUBLE", "DOUBLE PRECISION", "REAL", "FLOAT4", "FLOAT8":
		return core.KindReal
	case "DECIMAL", "NUMERIC",
		"VARCHAR", "CHAR", "TEXT", "LONGTEXT", "MEDIUMTEXT", "TINYTEXT", "BPCHAR", "NAME",
		"DATE", "DATETIME", "TIMESTAMP", "TIMESTAMPTZ", "TIME", "TIMETZ", "INTERVAL",
		"JSON", "JSONB", "UUID", "ENUM", "SET":
		return core.KindText
	case "BINARY", "VARBINARY", "BLOB", "LONGBLOB", "MEDIUMBLOB", "TINYBLOB", "BYTEA", "GEOMETRY":
		return core.KindBlob
	default:
		return core.KindNull
	}
}

// Decode converts a value scanned from a driver into a core.Value.
// Drivers that return every column as text bytes (MySQL's text protocol)
// are decoded using the column's declared type.
func (tm *TypeMapper) Decode(raw any, dbType string) (core.Value, error) {
	if raw == nil {
		return core.Null(), nil
	}
	kind := tm.KindForDBType(dbType)

	switch v := raw.(type) {
	case int64:
		return core.Int(v), nil
	case int32:
		return core.Int(int64(v)), nil
	case int16:
		return core.Int(int64(v)), nil
	case int8:
		return core.Int(int64(v)), nil
	case int:
		return core.Int(int64(v)), nil
	case float64:
		return core.Real(v), nil
	case float32:
		return core.Real(float64(v)), nil
	case bool:
		return core.Bool(v), nil
	case time.Time:
		return core.Text(v.UTC().Format(core.TimeLayout)), nil
	case string:
		return tm.fromText(v, kind), nil
	case []byte:
		// Without a declared type, bytes are binary data: drivers report
		// text as string there (SQLite expressions).
		if kind == core.KindBlob || kind == core.KindNull {
			return core.Blob(v), nil
		}
		return tm.fromText(string(v), kind), nil
	case driver.Valuer:
		val, err := v.Value()
		if err != nil {
			return core.Null(), fmt.Errorf("failed to read driver value: %w", err)
		}
		return tm.Decode(val, dbType)
	case fmt.Stringer:
		return tm.fromText(v.String(), kind), nil
	default:
		return core.Null(), fmt.Errorf("cannot decode %T from column type %q", raw, dbType)
	}
}

// fromText parses textual column data into the kind the column declares.
// Integers that do not fit in int64 (large UNSIGNED BIGINT) stay text.
func (tm *TypeMapper) fromText(s string, kind core.Kind) core.Value {
	switch kind {
	case core.KindInteger:
		if i, err := strconv.ParseInt(s, 10, 64); err == nil {
			return core.Int(i)
		}
		if b, err := strconv.ParseBool(s); err == nil {
			return core.Bool(b)
		}
	case core.KindReal:
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			return core.Real(f)
		}
	case core.KindBlob:
		return core.Blob([]byte(s))
	}
	return core.Text(s)
}
