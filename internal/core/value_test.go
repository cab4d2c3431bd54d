package core

import (
	"database/sql"
	"errors"
	"math"
	"testing"
	"time"
)

func TestValueOf(t *testing.T) {
	type age int16
	name := "ada"
	var nilName *string

	tests := []struct {
		name string
		in   any
		want Value
	}{
		{"nil", nil, Null()},
		{"int", 42, Int(42)},
		{"int8 named", age(7), Int(7)},
		{"uint32", uint32(9), Int(9)},
		{"float32", float32(1.5), Real(1.5)},
		{"bool true", true, Int(1)},
		{"bool false", false, Int(0)},
		{"string", "x", Text("x")},
		{"bytes", []byte{1, 2}, Blob([]byte{1, 2})},
		{"nil bytes", []byte(nil), Null()},
		{"pointer", &name, Text("ada")},
		{"nil pointer", nilName, Null()},
		{"null string valid", sql.NullString{String: "s", Valid: true}, Text("s")},
		{"null string invalid", sql.NullString{}, Null()},
		{"null int", sql.NullInt64{Int64: 3, Valid: true}, Int(3)},
		{"value", Real(2), Real(2)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ValueOf(tt.in)
			if err != nil {
				t.Fatalf("ValueOf(%v): %v", tt.in, err)
			}
			if !got.Equal(tt.want) {
				t.Fatalf("ValueOf(%v)=%v (%s) want %v (%s)", tt.in, got, got.Kind(), tt.want, tt.want.Kind())
			}
		})
	}
}

func TestValueOf_Rejects(t *testing.T) {
	if _, err := ValueOf(uint64(math.MaxUint64)); err == nil {
		t.Fatalf("expected overflow error")
	}
	if _, err := ValueOf(struct{}{}); err == nil {
		t.Fatalf("expected unsupported type error")
	}
}

func TestValueOf_Time(t *testing.T) {
	ts := time.Date(2024, 3, 1, 12, 30, 0, 0, time.UTC)
	v, err := ValueOf(ts)
	if err != nil {
		t.Fatalf("ValueOf: %v", err)
	}
	if v.Kind() != KindText {
		t.Fatalf("kind=%s want text", v.Kind())
	}
	back, err := v.Time()
	if err != nil {
		t.Fatalf("Time: %v", err)
	}
	if !back.Equal(ts) {
		t.Fatalf("Time=%v want %v", back, ts)
	}
}

func TestValue_AccessorsNeverNarrow(t *testing.T) {
	if _, err := Real(3.7).Int64(); !errors.Is(err, ErrMapping) {
		t.Fatalf("Real.Int64 err=%v want mapping error", err)
	}
	if f, err := Int(3).Float64(); err != nil || f != 3 {
		t.Fatalf("Int.Float64=%v,%v want 3,nil", f, err)
	}
	if _, err := Text("12").Int64(); !errors.Is(err, ErrMapping) {
		t.Fatalf("Text.Int64 err=%v want mapping error", err)
	}
	if _, err := Null().Str(); !errors.Is(err, ErrMapping) {
		t.Fatalf("Null.Str err=%v want mapping error", err)
	}
	if _, err := Blob([]byte{0xff, 0xfe}).Str(); err == nil {
		t.Fatalf("invalid utf-8 blob should not read as text")
	}
	if s, err := Blob([]byte("hi")).Str(); err != nil || s != "hi" {
		t.Fatalf("Blob.Str=%q,%v", s, err)
	}
	if _, err := Int(2).Boolean(); err == nil {
		t.Fatalf("2 should not read as bool")
	}
}

func TestValue_NativeRoundTrip(t *testing.T) {
	for _, v := range []Value{Null(), Int(-5), Real(0.25), Text("a'b"), Blob([]byte("z"))} {
		back, err := ValueOf(v.Native())
		if err != nil {
			t.Fatalf("ValueOf(%v): %v", v, err)
		}
		if !back.Equal(v) {
			t.Fatalf("round trip %v -> %v", v, back)
		}
	}
}

func TestBlob_Copies(t *testing.T) {
	src := []byte("abc")
	v := Blob(src)
	src[0] = 'x'
	b, _ := v.Bytes()
	if string(b) != "abc" {
		t.Fatalf("blob aliased its input: %q", b)
	}
	b[1] = 'y'
	again, _ := v.Bytes()
	if string(again) != "abc" {
		t.Fatalf("blob aliased its output: %q", again)
	}
}

func TestRow_Getters(t *testing.T) {
	r := NewRow(Int(1), Text("John"), Null())
	if r.Len() != 3 {
		t.Fatalf("Len=%d want 3", r.Len())
	}
	if id, err := r.Int64(0); err != nil || id != 1 {
		t.Fatalf("Int64(0)=%d,%v", id, err)
	}
	if s, err := r.String(1); err != nil || s != "John" {
		t.Fatalf("String(1)=%q,%v", s, err)
	}
	if !r.IsNull(2) {
		t.Fatalf("IsNull(2)=false")
	}
	if _, err := r.Get(3); !errors.Is(err, ErrMapping) {
		t.Fatalf("Get(3) err=%v want mapping error", err)
	}
	vals := r.Values()
	vals[0] = Int(99)
	if id, _ := r.Int64(0); id != 1 {
		t.Fatalf("Values leaked internal slice")
	}
}
