package schema

import (
	"database/sql"
	"database/sql/driver"
	"fmt"
	"reflect"
	"strings"
	"sync"
	"time"
	"unicode"

	"github.com/rzpsarthak13/thinorm/internal/core"
)

// Tabler lets a record type choose its table name.
type Tabler interface {
	TableName() string
}

// structPlan is the per-type mapping computed once from struct tags.
type structPlan struct {
	meta   *core.TableMetadata
	fields []fieldPlan
}

type fieldPlan struct {
	index []int
}

// planCache maps reflect.Type -> *structPlan.
var planCache sync.Map

var (
	timeType     = reflect.TypeOf(time.Time{})
	nullTimeType = reflect.TypeOf(sql.NullTime{})
	scannerType  = reflect.TypeOf((*sql.Scanner)(nil)).Elem()
	valuerType   = reflect.TypeOf((*driver.Valuer)(nil)).Elem()
)

// reflectMapping implements core.Mapping over a struct type using `db` tags:
//
//	ID   int64  `db:"id,pk"`
//	Name string `db:"name"`
//	Note string `db:"-"`
//
// Untagged exported fields map to their snake_case name. When no field is
// tagged pk, the column named "id" is the primary key. Embedded structs are
// flattened.
type reflectMapping[T any] struct {
	plan *structPlan
}

// Reflect builds the mapping for struct type T. The result is cached per type.
func Reflect[T any]() (core.Mapping[T], error) {
	rt := reflect.TypeOf((*T)(nil)).Elem()
	if cached, ok := planCache.Load(rt); ok {
		return &reflectMapping[T]{plan: cached.(*structPlan)}, nil
	}
	plan, err := buildPlan(rt)
	if err != nil {
		return nil, &core.Error{Kind: core.MappingError, Op: "reflect", Table: rt.Name(), Err: err}
	}
	actual, _ := planCache.LoadOrStore(rt, plan)
	return &reflectMapping[T]{plan: actual.(*structPlan)}, nil
}

// MustReflect is like Reflect but panics on error. Intended for package-level vars.
func MustReflect[T any]() core.Mapping[T] {
	m, err := Reflect[T]()
	if err != nil {
		panic(err)
	}
	return m
}

func (m *reflectMapping[T]) Metadata() *core.TableMetadata { return m.plan.meta }

func (m *reflectMapping[T]) Values(record T) ([]core.Value, error) {
	rv := reflect.ValueOf(&record).Elem()
	values := make([]core.Value, len(m.plan.fields))
	for i, f := range m.plan.fields {
		v, err := core.ValueOf(rv.FieldByIndex(f.index).Interface())
		if err != nil {
			return nil, &core.Error{
				Kind:   core.MappingError,
				Table:  m.plan.meta.Name,
				Column: m.plan.meta.Columns[i].Name,
				Err:    err,
			}
		}
		values[i] = v
	}
	return values, nil
}

func (m *reflectMapping[T]) Record(values []core.Value) (T, error) {
	var record T
	if len(values) != len(m.plan.fields) {
		return record, &core.Error{
			Kind:  core.MappingError,
			Table: m.plan.meta.Name,
			Err:   fmt.Errorf("row has %d columns, record has %d", len(values), len(m.plan.fields)),
		}
	}
	rv := reflect.ValueOf(&record).Elem()
	for i, f := range m.plan.fields {
		if err := assign(rv.FieldByIndex(f.index), values[i]); err != nil {
			return record, &core.Error{
				Kind:   core.MappingError,
				Table:  m.plan.meta.Name,
				Column: m.plan.meta.Columns[i].Name,
				Err:    err,
			}
		}
	}
	return record, nil
}

func buildPlan(rt reflect.Type) (*structPlan, error) {
	if rt.Kind() != reflect.Struct {
		return nil, fmt.Errorf("record type %s must be a struct", rt)
	}

	plan := &structPlan{meta: &core.TableMetadata{Name: tableName(rt)}}
	seen := make(map[string]bool)
	hasPK := false

	var walk func(t reflect.Type, base []int) error
	walk = func(t reflect.Type, base []int) error {
		for i := 0; i < t.NumField(); i++ {
			sf := t.Field(i)
			if sf.PkgPath != "" && !sf.Anonymous {
				continue
			}
			name, pk, omit := parseTag(sf.Tag.Get("db"))
			if omit {
				continue
			}
			path := append(append([]int(nil), base...), i)
			if sf.Anonymous && name == "" && sf.Type.Kind() == reflect.Struct && sf.Type != timeType {
				if err := walk(sf.Type, path); err != nil {
					return err
				}
				continue
			}
			if sf.PkgPath != "" {
				continue
			}
			if name == "" {
				name = SnakeCase(sf.Name)
			}
			if seen[name] {
				return fmt.Errorf("column %s is mapped twice", name)
			}
			seen[name] = true

			kind, nullable, err := columnKind(sf.Type)
			if err != nil {
				return fmt.Errorf("field %s: %w", sf.Name, err)
			}
			if pk {
				if hasPK {
					return core.ErrMultiplePrimaryKeys
				}
				hasPK = true
			}
			plan.meta.Columns = append(plan.meta.Columns, core.Column{
				Name:       name,
				PrimaryKey: pk,
				Nullable:   nullable,
				Kind:       kind,
				Boolean:    isBoolType(sf.Type),
			})
			plan.fields = append(plan.fields, fieldPlan{index: path})
		}
		return nil
	}
	if err := walk(rt, nil); err != nil {
		return nil, err
	}

	if !hasPK {
		for i := range plan.meta.Columns {
			if plan.meta.Columns[i].Name == "id" {
				plan.meta.Columns[i].PrimaryKey = true
				break
			}
		}
	}
	if err := plan.meta.Validate(); err != nil {
		return nil, err
	}
	return plan, nil
}

// parseTag supports: "-", "col", "col,pk", ",pk".
func parseTag(tag string) (name string, pk bool, omit bool) {
	if tag == "-" {
		return "", false, true
	}
	parts := strings.Split(tag, ",")
	name = strings.TrimSpace(parts[0])
	for _, opt := range parts[1:] {
		if strings.TrimSpace(opt) == "pk" {
			pk = true
		}
	}
	return name, pk, false
}

func tableName(rt reflect.Type) string {
	if t, ok := reflect.Zero(rt).Interface().(Tabler); ok {
		return t.TableName()
	}
	if t, ok := reflect.New(rt).Interface().(Tabler); ok {
		return t.TableName()
	}
	return SnakeCase(rt.Name())
}

// columnKind returns the stored kind of a field type and whether it admits NULL.
func columnKind(t reflect.Type) (core.Kind, bool, error) {
	switch t {
	case reflect.TypeOf(sql.NullString{}), reflect.TypeOf(sql.NullTime{}):
		return core.KindText, true, nil
	case reflect.TypeOf(sql.NullInt64{}), reflect.TypeOf(sql.NullInt32{}),
		reflect.TypeOf(sql.NullInt16{}), reflect.TypeOf(sql.NullByte{}), reflect.TypeOf(sql.NullBool{}):
		return core.KindInteger, true, nil
	case reflect.TypeOf(sql.NullFloat64{}):
		return core.KindReal, true, nil
	case timeType:
		return core.KindText, false, nil
	}
	if reflect.PointerTo(t).Implements(scannerType) && t.Implements(valuerType) {
		return core.KindNull, true, nil
	}

	switch t.Kind() {
	case reflect.Pointer:
		kind, _, err := columnKind(t.Elem())
		return kind, true, err
	case reflect.Bool, reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint8, reflect.Uint16, reflect.Uint32:
		return core.KindInteger, false, nil
	case reflect.Float32, reflect.Float64:
		return core.KindReal, false, nil
	case reflect.String:
		return core.KindText, false, nil
	case reflect.Slice:
		if t.Elem().Kind() == reflect.Uint8 {
			return core.KindBlob, true, nil
		}
	case reflect.Uint, reflect.Uint64, reflect.Uintptr:
		return 0, false, fmt.Errorf("type %s can overflow int64, use int64", t)
	}
	return 0, false, fmt.Errorf("unsupported field type %s", t)
}

func isBoolType(t reflect.Type) bool {
	if t == reflect.TypeOf(sql.NullBool{}) {
		return true
	}
	if t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	return t.Kind() == reflect.Bool
}

// Assign decodes v into *dst with the same rules used for record fields.
// Failures are mapping errors.
func Assign[T any](dst *T, v core.Value) error {
	if err := assign(reflect.ValueOf(dst).Elem(), v); err != nil {
		return &core.Error{Kind: core.MappingError, Err: err}
	}
	return nil
}

// assign stores v into the settable field fv.
func assign(fv reflect.Value, v core.Value) error {
	if fv.Type() == nullTimeType {
		nt := sql.NullTime{}
		if !v.IsNull() {
			t, err := v.Time()
			if err != nil {
				return err
			}
			nt = sql.NullTime{Time: t, Valid: true}
		}
		fv.Set(reflect.ValueOf(nt))
		return nil
	}
	if fv.CanAddr() && fv.Addr().Type().Implements(scannerType) {
		return fv.Addr().Interface().(sql.Scanner).Scan(v.Native())
	}
	if fv.Type() == timeType {
		if v.IsNull() {
			return fmt.Errorf("NULL in non-nullable field")
		}
		t, err := v.Time()
		if err != nil {
			return err
		}
		fv.Set(reflect.ValueOf(t))
		return nil
	}

	switch fv.Kind() {
	case reflect.Pointer:
		if v.IsNull() {
			fv.Set(reflect.Zero(fv.Type()))
			return nil
		}
		elem := reflect.New(fv.Type().Elem())
		if err := assign(elem.Elem(), v); err != nil {
			return err
		}
		fv.Set(elem)
		return nil
	case reflect.Slice:
		if v.IsNull() {
			fv.Set(reflect.Zero(fv.Type()))
			return nil
		}
		b, err := v.Bytes()
		if err != nil {
			return err
		}
		fv.SetBytes(b)
		return nil
	}

	if v.IsNull() {
		return fmt.Errorf("NULL in non-nullable field")
	}
	switch fv.Kind() {
	case reflect.Bool:
		b, err := v.Boolean()
		if err != nil {
			return err
		}
		fv.SetBool(b)
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		i, err := v.Int64()
		if err != nil {
			return err
		}
		if fv.OverflowInt(i) {
			return fmt.Errorf("value %d overflows %s", i, fv.Type())
		}
		fv.SetInt(i)
	case reflect.Uint8, reflect.Uint16, reflect.Uint32:
		i, err := v.Int64()
		if err != nil {
			return err
		}
		if i < 0 || fv.OverflowUint(uint64(i)) {
			return fmt.Errorf("value %d overflows %s", i, fv.Type())
		}
		fv.SetUint(uint64(i))
	case reflect.Float32, reflect.Float64:
		f, err := v.Float64()
		if err != nil {
			return err
		}
		if fv.OverflowFloat(f) {
			return fmt.Errorf("value %g overflows %s", f, fv.Type())
		}
		fv.SetFloat(f)
	case reflect.String:
		s, err := v.Str()
		if err != nil {
			return err
		}
		fv.SetString(s)
	default:
		return fmt.Errorf("unsupported field type %s", fv.Type())
	}
	return nil
}

// SnakeCase converts a Go identifier to snake_case ("UserID" -> "user_id").
func SnakeCase(s string) string {
	runes := []rune(s)
	var b strings.Builder
	for i, r := range runes {
		if unicode.IsUpper(r) {
			if i > 0 && (unicode.IsLower(runes[i-1]) ||
				(i+1 < len(runes) && unicode.IsLower(runes[i+1]) && unicode.IsUpper(runes[i-1]))) {
				b.WriteByte('_')
			}
			b.WriteRune(unicode.ToLower(r))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}
