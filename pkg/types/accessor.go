package types

import (
	"context"
	"fmt"
)

// PropertyAccessor extracts the value of one descriptor from an object of
// type T. Accessors are declared per deposit or update and never persisted.
type PropertyAccessor[T any] interface {
	// Descriptor returns the column(s) the accessor writes.
	Descriptor() Descriptor
	// Extract applies the accessor to obj and returns the value checked and
	// normalized against the descriptor: a scalar for a PropertyDescriptor,
	// a []any sized to the active column count for a PropertyArrayDescriptor.
	Extract(obj T) (any, error)
}

type scalarAccessor[T, V any] struct {
	desc PropertyDescriptor
	fn   func(T) V
}

// NewAccessor returns an accessor for a single-column property.
func NewAccessor[T, V any](desc PropertyDescriptor, fn func(T) V) PropertyAccessor[T] {
	return scalarAccessor[T, V]{desc: desc, fn: fn}
}

func (a scalarAccessor[T, V]) Descriptor() Descriptor { return a.desc }

func (a scalarAccessor[T, V]) Extract(obj T) (any, error) {
	v, err := NormalizeValue(a.desc.Type, any(a.fn(obj)))
	if err != nil {
		return nil, fmt.Errorf("property %q: %w", a.desc.Name, err)
	}
	return v, nil
}

type arrayAccessor[T any] struct {
	desc PropertyArrayDescriptor
	fn   func(T) []any
}

// NewArrayAccessor returns an accessor for a property array. fn must return
// one value per active column, in projection order, or nil for an all-null row.
func NewArrayAccessor[T any](desc PropertyArrayDescriptor, fn func(T) []any) PropertyAccessor[T] {
	return arrayAccessor[T]{desc: desc, fn: fn}
}

func (a arrayAccessor[T]) Descriptor() Descriptor { return a.desc }

func (a arrayAccessor[T]) Extract(obj T) (any, error) {
	raw := a.fn(obj)
	if raw == nil {
		return nil, nil
	}
	if len(raw) != len(a.desc.active) {
		return nil, fmt.Errorf("%w: array %q produced %d values for %d active columns",
			ErrTypeMismatch, a.desc.name, len(raw), len(a.desc.active))
	}
	out := make([]any, len(raw))
	for i, v := range raw {
		nv, err := NormalizeValue(a.desc.columnTypes[a.desc.active[i]], v)
		if err != nil {
			return nil, fmt.Errorf("array %q column %d: %w", a.desc.name, a.desc.active[i], err)
		}
		out[i] = nv
	}
	return out, nil
}

// RowSet is the type-erased result of running accessors over objects: one
// row per object, one value per descriptor.
type RowSet struct {
	Descriptors []Descriptor
	Rows        [][]any
}

// ExtractRows applies every accessor to every object exactly once, in
// iteration order. ctx is checked between objects.
func ExtractRows[T any](ctx context.Context, objects []T, accessors []PropertyAccessor[T]) (RowSet, error) {
	descs := make([]Descriptor, len(accessors))
	names := make(map[string]bool, len(accessors))
	for i, a := range accessors {
		d := a.Descriptor()
		if pd, ok := d.(PropertyDescriptor); ok {
			if err := pd.Validate(); err != nil {
				return RowSet{}, err
			}
		}
		if names[d.PropertyName()] {
			return RowSet{}, fmt.Errorf("%w: property %q has more than one accessor",
				ErrInvalidDescriptor, d.PropertyName())
		}
		names[d.PropertyName()] = true
		descs[i] = d
	}

	rows := make([][]any, 0, len(objects))
	for i, obj := range objects {
		if err := ctx.Err(); err != nil {
			return RowSet{}, err
		}
		row := make([]any, len(accessors))
		for j, a := range accessors {
			v, err := a.Extract(obj)
			if err != nil {
				return RowSet{}, fmt.Errorf("object %d: %w", i, err)
			}
			row[j] = v
		}
		rows = append(rows, row)
	}
	return RowSet{Descriptors: descs, Rows: rows}, nil
}
