package sqlite

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/paulmach/orb"

	"github.com/mesh-intelligence/registry/internal/geom"
	"github.com/mesh-intelligence/registry/pkg/types"
)

// typeArray is the value_type recorded for property arrays.
const typeArray = "array"

// column is the physical layout of one property in a category table.
// Columns are immutable; widening an array replaces the column value.
//
//	scalar    base
//	timespan  base_start, base_end
//	geometry  base (WKB), base_minx, base_miny, base_maxx, base_maxy
//	array     base_0 ... base_n
type column struct {
	name      string
	valueType types.ValueType // empty for arrays
	elemTypes []types.ValueType
	base      string
	ordinal   int
}

func (c *column) isArray() bool { return c.elemTypes != nil }

// physical returns every SQL column of c, in layout order.
func (c *column) physical() []string {
	switch {
	case c.isArray():
		out := make([]string, len(c.elemTypes))
		for i := range c.elemTypes {
			out[i] = c.element(i)
		}
		return out
	case c.valueType == types.TypeTimeSpan:
		return []string{c.base + "_start", c.base + "_end"}
	case c.valueType == types.TypeGeometry:
		return []string{c.base, c.base + "_minx", c.base + "_miny", c.base + "_maxx", c.base + "_maxy"}
	}
	return []string{c.base}
}

// element returns the SQL column of array element i.
func (c *column) element(i int) string {
	return fmt.Sprintf("%s_%d", c.base, i)
}

// ddl returns the column definitions for physical columns from index from on.
func (c *column) ddl(from int) []string {
	var out []string
	if c.isArray() {
		for i := from; i < len(c.elemTypes); i++ {
			out = append(out, c.element(i)+" "+sqlType(c.elemTypes[i]))
		}
		return out
	}
	cols := c.physical()
	sqlTypes := make([]string, len(cols))
	switch c.valueType {
	case types.TypeTimeSpan:
		sqlTypes[0], sqlTypes[1] = "INTEGER", "INTEGER"
	case types.TypeGeometry:
		sqlTypes[0] = "BLOB"
		for i := 1; i < len(cols); i++ {
			sqlTypes[i] = "REAL"
		}
	default:
		sqlTypes[0] = sqlType(c.valueType)
	}
	for i, col := range cols[from:] {
		out = append(out, col+" "+sqlTypes[from+i])
	}
	return out
}

func sqlType(t types.ValueType) string {
	switch t {
	case types.TypeInteger, types.TypeBoolean, types.TypeTime:
		return "INTEGER"
	case types.TypeFloat:
		return "REAL"
	}
	return "TEXT"
}

// elemTypesJSON encodes the array element types for the columns table.
func (c *column) elemTypesJSON() any {
	if !c.isArray() {
		return nil
	}
	b, _ := json.Marshal(c.elemTypes)
	return string(b)
}

// matches reports whether d reads or writes this column.
func (c *column) matches(d types.Descriptor) bool {
	switch d := d.(type) {
	case types.PropertyDescriptor:
		return !c.isArray() && c.valueType == d.Type
	case types.PropertyArrayDescriptor:
		return c.isArray()
	}
	return false
}

// selectFor returns the SQL expressions that read d from this column. Array
// elements beyond the stored width read as NULL.
func (c *column) selectFor(d types.Descriptor) []string {
	ad, ok := d.(types.PropertyArrayDescriptor)
	if !ok {
		if c.valueType == types.TypeGeometry {
			return []string{c.base}
		}
		return c.physical()
	}
	active := ad.ActiveColumns()
	out := make([]string, len(active))
	for i, idx := range active {
		if idx < len(c.elemTypes) {
			out[i] = c.element(idx)
		} else {
			out[i] = "NULL"
		}
	}
	return out
}

// assign returns the SQL columns and arguments that write v through d.
func (c *column) assign(d types.Descriptor, v any) ([]string, []any, error) {
	if ad, ok := d.(types.PropertyArrayDescriptor); ok {
		active := ad.ActiveColumns()
		elemTypes := ad.ColumnTypes()
		cols := make([]string, len(active))
		args := make([]any, len(active))
		vals, _ := v.([]any)
		for i, idx := range active {
			cols[i] = c.element(idx)
			if vals == nil {
				continue
			}
			arg, err := encodeScalar(elemTypes[idx], vals[i])
			if err != nil {
				return nil, nil, err
			}
			args[i] = arg
		}
		return cols, args, nil
	}

	cols := c.physical()
	args := make([]any, len(cols))
	if v == nil {
		return cols, args, nil
	}
	switch c.valueType {
	case types.TypeTimeSpan:
		span := v.(types.TimeSpan)
		args[0], args[1] = span.StartNanos(), span.EndNanos()
	case types.TypeGeometry:
		g := v.(orb.Geometry)
		wkb, err := geom.Encode(g)
		if err != nil {
			return nil, nil, fmt.Errorf("%w: %v", types.ErrSerialization, err)
		}
		env := geom.Envelope(g)
		args[0], args[1], args[2], args[3], args[4] = wkb, env.Min[0], env.Min[1], env.Max[0], env.Max[1]
	default:
		arg, err := encodeScalar(c.valueType, v)
		if err != nil {
			return nil, nil, err
		}
		args[0] = arg
	}
	return cols, args, nil
}

// encodeScalar converts a normalized single-column value to its SQL form.
func encodeScalar(t types.ValueType, v any) (any, error) {
	if v == nil {
		return nil, nil
	}
	switch t {
	case types.TypeBoolean:
		if v.(bool) {
			return int64(1), nil
		}
		return int64(0), nil
	case types.TypeTime:
		return v.(time.Time).UnixNano(), nil
	case types.TypeObject:
		b, err := json.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", types.ErrSerialization, err)
		}
		return string(b), nil
	}
	return v, nil
}

// decode converts the raw values read by selectFor(d) back into a value.
func (c *column) decode(d types.Descriptor, raw []any) (any, error) {
	if ad, ok := d.(types.PropertyArrayDescriptor); ok {
		elemTypes := ad.ColumnTypes()
		out := make([]any, len(raw))
		for i, idx := range ad.ActiveColumns() {
			v, err := decodeScalar(elemTypes[idx], raw[i])
			if err != nil {
				return nil, err
			}
			out[i] = v
		}
		return out, nil
	}
	switch c.valueType {
	case types.TypeTimeSpan:
		if raw[0] == nil || raw[1] == nil {
			return nil, nil
		}
		start, ok1 := raw[0].(int64)
		end, ok2 := raw[1].(int64)
		if !ok1 || !ok2 {
			return nil, fmt.Errorf("%w: stored time span is %T, %T", types.ErrTypeMismatch, raw[0], raw[1])
		}
		return types.TimeSpanFromNanos(start, end), nil
	case types.TypeGeometry:
		if raw[0] == nil {
			return nil, nil
		}
		b, ok := raw[0].([]byte)
		if !ok {
			return nil, fmt.Errorf("%w: stored geometry is %T", types.ErrTypeMismatch, raw[0])
		}
		return geom.Decode(b)
	}
	return decodeScalar(c.valueType, raw[0])
}

// emptyValue is what GetValues reports for a descriptor the category lacks.
func emptyValue(d types.Descriptor) any {
	if ad, ok := d.(types.PropertyArrayDescriptor); ok {
		return make([]any, len(ad.ActiveColumns()))
	}
	return nil
}

func decodeScalar(t types.ValueType, raw any) (any, error) {
	if raw == nil {
		return nil, nil
	}
	switch t {
	case types.TypeString:
		switch s := raw.(type) {
		case string:
			return s, nil
		case []byte:
			return string(s), nil
		}
	case types.TypeInteger:
		if n, ok := raw.(int64); ok {
			return n, nil
		}
	case types.TypeFloat:
		switch f := raw.(type) {
		case float64:
			return f, nil
		case int64:
			return float64(f), nil
		}
	case types.TypeBoolean:
		if n, ok := raw.(int64); ok {
			return n != 0, nil
		}
	case types.TypeTime:
		if n, ok := raw.(int64); ok {
			return time.Unix(0, n).UTC(), nil
		}
	case types.TypeObject:
		var s string
		switch r := raw.(type) {
		case string:
			s = r
		case []byte:
			s = string(r)
		default:
			return nil, fmt.Errorf("%w: stored object is %T", types.ErrTypeMismatch, raw)
		}
		var v any
		if err := json.Unmarshal([]byte(s), &v); err != nil {
			return nil, fmt.Errorf("%w: %v", types.ErrSerialization, err)
		}
		return v, nil
	}
	return nil, fmt.Errorf("%w: stored %s value is %T", types.ErrTypeMismatch, t, raw)
}

// orderExpr returns the SQL expression used to sort by d.
func (c *column) orderExpr(d types.Descriptor) string {
	if ad, ok := d.(types.PropertyArrayDescriptor); ok {
		if ad.OrderBy() < len(c.elemTypes) {
			return c.element(ad.OrderBy())
		}
		return "NULL"
	}
	return c.physical()[0]
}

// placeholders returns n comma-separated question marks.
func placeholders(n int) string {
	if n <= 0 {
		return ""
	}
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}
