package types

import (
	"errors"
	"testing"
	"time"

	"github.com/paulmach/orb"
)

func TestPropertyDescriptor_Validate(t *testing.T) {
	tests := []struct {
		name    string
		desc    PropertyDescriptor
		wantErr bool
	}{
		{"string", NewPropertyDescriptor("name", TypeString), false},
		{"geometry", NewPropertyDescriptor("shape", TypeGeometry), false},
		{"empty name", NewPropertyDescriptor("", TypeString), true},
		{"unknown type", NewPropertyDescriptor("x", "decimal"), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.desc.Validate()
			if (err != nil) != tt.wantErr {
				t.Fatalf("Validate() = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, ErrInvalidDescriptor) {
				t.Fatalf("expected ErrInvalidDescriptor, got %v", err)
			}
		})
	}
}

func TestPropertyDescriptor_Key(t *testing.T) {
	a := NewPropertyDescriptor("rank", TypeInteger)
	b := NewPropertyDescriptor("rank", TypeFloat)
	if a.Key() == b.Key() {
		t.Fatal("descriptors with different types share a key")
	}
	if a != NewPropertyDescriptor("rank", TypeInteger) {
		t.Fatal("descriptors with equal name and type are not equal")
	}
}

func TestNewPropertyArrayDescriptor(t *testing.T) {
	floats := []ValueType{TypeFloat, TypeFloat, TypeFloat}
	tests := []struct {
		name    string
		types   []ValueType
		active  []int
		orderBy int
		wantErr bool
	}{
		{"all columns", floats, nil, NoOrderColumn, false},
		{"projection", floats, []int{2, 0}, 2, false},
		{"no columns", nil, nil, NoOrderColumn, true},
		{"non-scalar column", []ValueType{TypeGeometry}, nil, NoOrderColumn, true},
		{"active out of range", floats, []int{3}, NoOrderColumn, true},
		{"active repeated", floats, []int{1, 1}, NoOrderColumn, true},
		{"empty active", floats, []int{}, NoOrderColumn, true},
		{"order column inactive", floats, []int{0, 1}, 2, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewPropertyArrayDescriptor("readings", tt.types, tt.active, tt.orderBy)
			if (err != nil) != tt.wantErr {
				t.Fatalf("NewPropertyArrayDescriptor() = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}

	if _, err := NewPropertyArrayDescriptor("", floats, nil, NoOrderColumn); !errors.Is(err, ErrInvalidDescriptor) {
		t.Fatalf("empty name: expected ErrInvalidDescriptor, got %v", err)
	}
}

func TestPropertyArrayDescriptor_Projection(t *testing.T) {
	d := MustPropertyArrayDescriptor("readings", []ValueType{TypeFloat, TypeInteger, TypeString}, []int{2, 0}, 0)
	if got := d.ActiveColumns(); len(got) != 2 || got[0] != 2 || got[1] != 0 {
		t.Fatalf("ActiveColumns = %v", got)
	}
	d.ActiveColumns()[0] = 1
	if d.ActiveColumns()[0] != 2 {
		t.Fatal("ActiveColumns exposes internal state")
	}
	other := MustPropertyArrayDescriptor("readings", []ValueType{TypeFloat, TypeInteger, TypeString}, []int{0, 2}, 0)
	if d.Equal(other) {
		t.Fatal("different projections compare equal")
	}

	defer func() {
		if recover() == nil {
			t.Fatal("MustPropertyArrayDescriptor did not panic")
		}
	}()
	MustPropertyArrayDescriptor("bad", nil, nil, NoOrderColumn)
}

func TestNormalizeValue(t *testing.T) {
	local := time.Date(2026, 3, 1, 12, 0, 0, 0, time.FixedZone("x", 3600))
	tests := []struct {
		name    string
		typ     ValueType
		in      any
		want    any
		wantErr error
	}{
		{"nil is accepted", TypeInteger, nil, nil, nil},
		{"int widens", TypeInteger, 7, int64(7), nil},
		{"uint8 widens", TypeInteger, uint8(7), int64(7), nil},
		{"float32 widens", TypeFloat, float32(1.5), 1.5, nil},
		{"string", TypeString, "a", "a", nil},
		{"bool", TypeBoolean, true, true, nil},
		{"time to UTC", TypeTime, local, local.UTC(), nil},
		{"string for integer", TypeInteger, "7", nil, ErrTypeMismatch},
		{"int for float", TypeFloat, 1, nil, ErrTypeMismatch},
		{"float for string", TypeString, 1.0, nil, ErrTypeMismatch},
		{"point for time", TypeTime, orb.Point{1, 2}, nil, ErrTypeMismatch},
		{"unknown type", "decimal", 1, nil, ErrInvalidDescriptor},
		{"nil span pointer", TypeTimeSpan, (*TimeSpan)(nil), nil, nil},
		{"reversed span", TypeTimeSpan, NewTimeSpan(local, local.Add(-time.Hour)), nil, ErrTypeMismatch},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NormalizeValue(tt.typ, tt.in)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("expected %v, got %v", tt.wantErr, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error %v", err)
			}
			if got != tt.want {
				t.Fatalf("NormalizeValue = %#v, want %#v", got, tt.want)
			}
		})
	}
}

func TestNormalizeValue_GeometryAndObject(t *testing.T) {
	g, err := NormalizeValue(TypeGeometry, orb.Point{1, 2})
	if err != nil || g.(orb.Point) != (orb.Point{1, 2}) {
		t.Fatalf("geometry: %v, %v", g, err)
	}
	obj := map[string]any{"k": 1}
	o, err := NormalizeValue(TypeObject, obj)
	if err != nil || o.(map[string]any)["k"] != 1 {
		t.Fatalf("object: %v, %v", o, err)
	}
}

func TestNormalizeValue_TimeSpanCanonical(t *testing.T) {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.FixedZone("x", -7200))
	span := NewTimeSpan(start, time.Time{})
	got, err := NormalizeValue(TypeTimeSpan, &span)
	if err != nil {
		t.Fatal(err)
	}
	s := got.(TimeSpan)
	if !s.Start.Equal(start) || s.Start.Location() != time.UTC || !s.UnboundedEnd() {
		t.Fatalf("canonical span = %v", s)
	}
}
