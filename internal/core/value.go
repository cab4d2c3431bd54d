package core

import (
	"database/sql/driver"
	"fmt"
	"math"
	"reflect"
	"time"
	"unicode/utf8"
)

// Kind identifies which variant a Value holds.
type Kind uint8

const (
	// KindNull is the SQL NULL.
	KindNull Kind = iota

	// KindInteger is a signed 64-bit integer.
	KindInteger

	// KindReal is a 64-bit float.
	KindReal

	// KindText is a UTF-8 string.
	KindText

	// KindBlob is raw bytes.
	KindBlob
)

// String returns the lower-case name of the kind.
func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindInteger:
		return "integer"
	case KindReal:
		return "real"
	case KindText:
		return "text"
	case KindBlob:
		return "blob"
	default:
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
}

// TimeLayout is the layout used when a time.Time is stored as text.
const TimeLayout = "2006-01-02 15:04:05.999999999Z07:00"

// Value is a single database cell. The zero Value is Null.
// Values are immutable; Blob accessors return copies.
type Value struct {
	kind Kind
	i    int64
	f    float64
	s    string
	b    []byte
}

// Null returns the SQL NULL value.
func Null() Value { return Value{} }

// Int returns an integer value.
func Int(v int64) Value { return Value{kind: KindInteger, i: v} }

// Real returns a floating point value.
func Real(v float64) Value { return Value{kind: KindReal, f: v} }

// Text returns a text value.
func Text(v string) Value { return Value{kind: KindText, s: v} }

// Blob returns a blob value. The slice is copied.
func Blob(v []byte) Value {
	if v == nil {
		return Value{kind: KindBlob, b: []byte{}}
	}
	return Value{kind: KindBlob, b: append([]byte(nil), v...)}
}

// Bool returns 1 or 0 as an integer value.
func Bool(v bool) Value {
	if v {
		return Int(1)
	}
	return Int(0)
}

// ValueOf converts a native Go value into a Value.
// Supported: nil, Value, all integer and float kinds, bool, string, []byte,
// time.Time, pointers to those (nil pointer is Null) and driver.Valuer.
// Unsigned integers above math.MaxInt64 are rejected.
func ValueOf(v any) (Value, error) {
	switch x := v.(type) {
	case nil:
		return Null(), nil
	case Value:
		return x, nil
	case int64:
		return Int(x), nil
	case int:
		return Int(int64(x)), nil
	case int32:
		return Int(int64(x)), nil
	case float64:
		return Real(x), nil
	case string:
		return Text(x), nil
	case []byte:
		if x == nil {
			return Null(), nil
		}
		return Blob(x), nil
	case bool:
		return Bool(x), nil
	case time.Time:
		return Text(x.UTC().Format(TimeLayout)), nil
	case driver.Valuer:
		rv := reflect.ValueOf(v)
		if rv.Kind() == reflect.Pointer && rv.IsNil() {
			return Null(), nil
		}
		dv, err := x.Value()
		if err != nil {
			return Null(), fmt.Errorf("failed to read driver value: %w", err)
		}
		return ValueOf(dv)
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Pointer:
		if rv.IsNil() {
			return Null(), nil
		}
		return ValueOf(rv.Elem().Interface())
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return Int(rv.Int()), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		u := rv.Uint()
		if u > math.MaxInt64 {
			return Null(), fmt.Errorf("unsigned value %d overflows int64", u)
		}
		return Int(int64(u)), nil
	case reflect.Float32, reflect.Float64:
		return Real(rv.Float()), nil
	case reflect.Bool:
		return Bool(rv.Bool()), nil
	case reflect.String:
		return Text(rv.String()), nil
	case reflect.Slice:
		if rv.Type().Elem().Kind() == reflect.Uint8 {
			if rv.IsNil() {
				return Null(), nil
			}
			return Blob(rv.Bytes()), nil
		}
	}
	return Null(), fmt.Errorf("unsupported value type %T", v)
}

// MustValue is like ValueOf but panics on unsupported input.
// It is intended for literals in tests and examples.
func MustValue(v any) Value {
	val, err := ValueOf(v)
	if err != nil {
		panic(err)
	}
	return val
}

// Kind returns the variant held by v.
func (v Value) Kind() Kind { return v.kind }

// IsNull reports whether v is the SQL NULL.
func (v Value) IsNull() bool { return v.kind == KindNull }

// Int64 returns the integer held by v. Only integer values convert.
func (v Value) Int64() (int64, error) {
	if v.kind == KindInteger {
		return v.i, nil
	}
	return 0, v.mismatch("integer")
}

// Float64 returns v as a float. Integer values are widened.
func (v Value) Float64() (float64, error) {
	switch v.kind {
	case KindReal:
		return v.f, nil
	case KindInteger:
		return float64(v.i), nil
	}
	return 0, v.mismatch("real")
}

// Str returns v as a string. Blobs convert only when they are valid UTF-8.
func (v Value) Str() (string, error) {
	switch v.kind {
	case KindText:
		return v.s, nil
	case KindBlob:
		if utf8.Valid(v.b) {
			return string(v.b), nil
		}
	}
	return "", v.mismatch("text")
}

// Bytes returns v as raw bytes. Text converts to its UTF-8 encoding.
func (v Value) Bytes() ([]byte, error) {
	switch v.kind {
	case KindBlob:
		return append([]byte(nil), v.b...), nil
	case KindText:
		return []byte(v.s), nil
	}
	return nil, v.mismatch("blob")
}

// Boolean returns v as a bool. Only the integers 0 and 1 convert.
func (v Value) Boolean() (bool, error) {
	if v.kind == KindInteger && (v.i == 0 || v.i == 1) {
		return v.i == 1, nil
	}
	return false, v.mismatch("boolean")
}

// Time returns v as a time. Text is parsed with the supported layouts
// and integers are read as unix seconds.
func (v Value) Time() (time.Time, error) {
	switch v.kind {
	case KindText:
		if t, ok := ParseTime(v.s); ok {
			return t, nil
		}
	case KindInteger:
		return time.Unix(v.i, 0).UTC(), nil
	}
	return time.Time{}, v.mismatch("time")
}

// Native returns the value in the form database/sql drivers accept.
func (v Value) Native() any {
	switch v.kind {
	case KindInteger:
		return v.i
	case KindReal:
		return v.f
	case KindText:
		return v.s
	case KindBlob:
		return append([]byte(nil), v.b...)
	default:
		return nil
	}
}

// Equal reports whether v and o hold the same variant and content.
func (v Value) Equal(o Value) bool {
	if v.kind != o.kind {
		return false
	}
	switch v.kind {
	case KindInteger:
		return v.i == o.i
	case KindReal:
		return v.f == o.f
	case KindText:
		return v.s == o.s
	case KindBlob:
		return string(v.b) == string(o.b)
	}
	return true
}

// String renders v for logs. It is not SQL; use a dialect for literals.
func (v Value) String() string {
	switch v.kind {
	case KindInteger:
		return fmt.Sprintf("%d", v.i)
	case KindReal:
		return fmt.Sprintf("%g", v.f)
	case KindText:
		return v.s
	case KindBlob:
		return fmt.Sprintf("%x", v.b)
	default:
		return "NULL"
	}
}

func (v Value) mismatch(want string) error {
	return &Error{
		Kind: MappingError,
		Err:  fmt.Errorf("cannot read %s value as %s", v.kind, want),
	}
}

var timeLayouts = []string{
	TimeLayout,
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02 15:04:05.999999999",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02",
}

// ParseTime parses the date and datetime layouts databases commonly return as text.
func ParseTime(s string) (time.Time, bool) {
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}
