package types

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/paulmach/orb"
)

// ValueType is the declared type of a property column.
type ValueType string

// Property value types.
const (
	TypeString   ValueType = "string"
	TypeInteger  ValueType = "integer"
	TypeFloat    ValueType = "float"
	TypeBoolean  ValueType = "boolean"
	TypeTime     ValueType = "time"
	TypeTimeSpan ValueType = "timespan"
	TypeGeometry ValueType = "geometry" // orb.Geometry; Bound and Ring read back as Polygon
	TypeObject   ValueType = "object"   // any JSON-serializable value; reads back decoded
)

// validValueTypes is the set of recognized value types.
var validValueTypes = map[ValueType]bool{
	TypeString:   true,
	TypeInteger:  true,
	TypeFloat:    true,
	TypeBoolean:  true,
	TypeTime:     true,
	TypeTimeSpan: true,
	TypeGeometry: true,
	TypeObject:   true,
}

// IsValid reports whether t is a recognized value type.
func (t ValueType) IsValid() bool {
	return validValueTypes[t]
}

// IsScalar reports whether t maps to a single column and can be compared,
// ordered, and used as an array element or deposit key.
func (t ValueType) IsScalar() bool {
	switch t {
	case TypeString, TypeInteger, TypeFloat, TypeBoolean, TypeTime:
		return true
	}
	return false
}

// Descriptor identifies one or more logical columns. It is implemented by
// PropertyDescriptor and PropertyArrayDescriptor.
type Descriptor interface {
	// PropertyName returns the logical property name.
	PropertyName() string
	// Key returns a structural key: two descriptors with equal keys describe
	// the same columns with the same projection.
	Key() string
}

// PropertyDescriptor is a (name, type) pair identifying a single logical
// column. Equality is by name and type.
type PropertyDescriptor struct {
	Name string
	Type ValueType
}

var _ Descriptor = PropertyDescriptor{}

// NewPropertyDescriptor returns a descriptor for the named property.
func NewPropertyDescriptor(name string, t ValueType) PropertyDescriptor {
	return PropertyDescriptor{Name: name, Type: t}
}

// PropertyName returns the property name.
func (p PropertyDescriptor) PropertyName() string { return p.Name }

// Key returns "name:type".
func (p PropertyDescriptor) Key() string { return p.Name + ":" + string(p.Type) }

// Validate checks that the descriptor has a name and a recognized type.
func (p PropertyDescriptor) Validate() error {
	if p.Name == "" {
		return fmt.Errorf("%w: empty property name", ErrInvalidDescriptor)
	}
	if !p.Type.IsValid() {
		return fmt.Errorf("%w: property %q has unknown type %q", ErrInvalidDescriptor, p.Name, p.Type)
	}
	return nil
}

func (p PropertyDescriptor) String() string { return p.Key() }

// PropertyArrayDescriptor describes several scalar columns materialized
// together under one name. The active columns are the projection read and
// written through this descriptor, in projection order; OrderBy is the column
// index used when the descriptor appears in an OrderSpecifier, or -1.
type PropertyArrayDescriptor struct {
	name        string
	columnTypes []ValueType
	active      []int
	orderBy     int
}

var _ Descriptor = PropertyArrayDescriptor{}

// NoOrderColumn marks an array descriptor without an order-by column.
const NoOrderColumn = -1

// NewPropertyArrayDescriptor validates and returns an array descriptor. A nil
// active slice selects every column in index order. orderBy must be
// NoOrderColumn or one of the active columns.
func NewPropertyArrayDescriptor(name string, columnTypes []ValueType, active []int, orderBy int) (PropertyArrayDescriptor, error) {
	if name == "" {
		return PropertyArrayDescriptor{}, fmt.Errorf("%w: empty array name", ErrInvalidDescriptor)
	}
	if len(columnTypes) == 0 {
		return PropertyArrayDescriptor{}, fmt.Errorf("%w: array %q has no columns", ErrInvalidDescriptor, name)
	}
	for i, t := range columnTypes {
		if !t.IsScalar() {
			return PropertyArrayDescriptor{}, fmt.Errorf("%w: array %q column %d has non-scalar type %q",
				ErrInvalidDescriptor, name, i, t)
		}
	}
	if active == nil {
		active = make([]int, len(columnTypes))
		for i := range active {
			active[i] = i
		}
	}
	if len(active) == 0 {
		return PropertyArrayDescriptor{}, fmt.Errorf("%w: array %q has no active columns", ErrInvalidDescriptor, name)
	}
	seen := make(map[int]bool, len(active))
	for _, idx := range active {
		if idx < 0 || idx >= len(columnTypes) {
			return PropertyArrayDescriptor{}, fmt.Errorf("%w: array %q active column %d out of range",
				ErrInvalidDescriptor, name, idx)
		}
		if seen[idx] {
			return PropertyArrayDescriptor{}, fmt.Errorf("%w: array %q repeats active column %d",
				ErrInvalidDescriptor, name, idx)
		}
		seen[idx] = true
	}
	if orderBy != NoOrderColumn && !seen[orderBy] {
		return PropertyArrayDescriptor{}, fmt.Errorf("%w: array %q order-by column %d is not active",
			ErrInvalidDescriptor, name, orderBy)
	}
	return PropertyArrayDescriptor{
		name:        name,
		columnTypes: append([]ValueType(nil), columnTypes...),
		active:      append([]int(nil), active...),
		orderBy:     orderBy,
	}, nil
}

// MustPropertyArrayDescriptor is like NewPropertyArrayDescriptor but panics
// on an invalid descriptor. Intended for package-level declarations.
func MustPropertyArrayDescriptor(name string, columnTypes []ValueType, active []int, orderBy int) PropertyArrayDescriptor {
	d, err := NewPropertyArrayDescriptor(name, columnTypes, active, orderBy)
	if err != nil {
		panic(err)
	}
	return d
}

// PropertyName returns the array name.
func (a PropertyArrayDescriptor) PropertyName() string { return a.name }

// ColumnTypes returns a copy of the column types, indexed by column.
func (a PropertyArrayDescriptor) ColumnTypes() []ValueType {
	return append([]ValueType(nil), a.columnTypes...)
}

// ActiveColumns returns a copy of the active column indices in projection order.
func (a PropertyArrayDescriptor) ActiveColumns() []int {
	return append([]int(nil), a.active...)
}

// OrderBy returns the order-by column index or NoOrderColumn.
func (a PropertyArrayDescriptor) OrderBy() int { return a.orderBy }

// Key encodes name, column types, active columns, and order-by column.
func (a PropertyArrayDescriptor) Key() string {
	var b strings.Builder
	b.WriteString(a.name)
	b.WriteString("[")
	for i, t := range a.columnTypes {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(string(t))
	}
	b.WriteString("]{")
	for i, idx := range a.active {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(strconv.Itoa(idx))
	}
	b.WriteString("}@")
	b.WriteString(strconv.Itoa(a.orderBy))
	return b.String()
}

// Equal reports structural equality.
func (a PropertyArrayDescriptor) Equal(other PropertyArrayDescriptor) bool {
	return a.Key() == other.Key()
}

func (a PropertyArrayDescriptor) String() string { return a.Key() }

// NormalizeValue checks v against t and returns it in canonical form: int64
// for integers, float64 for floats, UTC time.Time for times. A nil value is
// always accepted. Object values are returned unchanged; their
// serializability is checked by the store.
//
// Stored values do not always read back as written. An orb.Bound or orb.Ring
// reads back as an orb.Polygon. An object reads back as its decoded JSON:
// map[string]any, []any, string, float64, bool or nil.
func NormalizeValue(t ValueType, v any) (any, error) {
	if v == nil {
		return nil, nil
	}
	switch t {
	case TypeString:
		if s, ok := v.(string); ok {
			return s, nil
		}
	case TypeInteger:
		switch n := v.(type) {
		case int64:
			return n, nil
		case int:
			return int64(n), nil
		case int32:
			return int64(n), nil
		case int16:
			return int64(n), nil
		case int8:
			return int64(n), nil
		case uint32:
			return int64(n), nil
		case uint16:
			return int64(n), nil
		case uint8:
			return int64(n), nil
		}
	case TypeFloat:
		switch f := v.(type) {
		case float64:
			return f, nil
		case float32:
			return float64(f), nil
		}
	case TypeBoolean:
		if b, ok := v.(bool); ok {
			return b, nil
		}
	case TypeTime:
		if tm, ok := v.(time.Time); ok {
			return tm.UTC(), nil
		}
	case TypeTimeSpan:
		var span TimeSpan
		switch s := v.(type) {
		case TimeSpan:
			span = s
		case *TimeSpan:
			if s == nil {
				return nil, nil
			}
			span = *s
		default:
			return nil, fmt.Errorf("%w: %T is not a %s value", ErrTypeMismatch, v, t)
		}
		if err := span.Validate(); err != nil {
			return nil, err
		}
		return TimeSpanFromNanos(span.StartNanos(), span.EndNanos()), nil
	case TypeGeometry:
		if g, ok := v.(orb.Geometry); ok {
			return g, nil
		}
	case TypeObject:
		return v, nil
	default:
		return nil, fmt.Errorf("%w: unknown type %q", ErrInvalidDescriptor, t)
	}
	return nil, fmt.Errorf("%w: %T is not a %s value", ErrTypeMismatch, v, t)
}
