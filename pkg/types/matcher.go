package types

import (
	"fmt"

	"github.com/paulmach/orb"
)

// MatchOp is the predicate a PropertyMatcher applies.
type MatchOp string

// Matcher operators.
const (
	OpEquals         MatchOp = "="
	OpNotEquals      MatchOp = "!="
	OpLess           MatchOp = "<"
	OpLessEqual      MatchOp = "<="
	OpGreater        MatchOp = ">"
	OpGreaterEqual   MatchOp = ">="
	OpIn             MatchOp = "in"
	OpLike           MatchOp = "like"
	OpIntersects     MatchOp = "intersects"
	OpGeometryEquals MatchOp = "geometry-equals"
	OpOverlaps       MatchOp = "overlaps"
)

// PropertyMatcher is a predicate over one property, used to filter GetIDs.
// Build matchers with the Match* functions.
type PropertyMatcher struct {
	Property PropertyDescriptor
	Op       MatchOp
	Operand  any
	Operands []any
}

// MatchEquals matches rows whose value equals v. A nil v matches null values.
func MatchEquals(p PropertyDescriptor, v any) PropertyMatcher {
	return PropertyMatcher{Property: p, Op: OpEquals, Operand: v}
}

// MatchCompare matches rows whose value compares to v with op, one of
// OpNotEquals, OpLess, OpLessEqual, OpGreater, OpGreaterEqual.
func MatchCompare(p PropertyDescriptor, op MatchOp, v any) PropertyMatcher {
	return PropertyMatcher{Property: p, Op: op, Operand: v}
}

// MatchIn matches rows whose value is one of vs.
func MatchIn(p PropertyDescriptor, vs ...any) PropertyMatcher {
	return PropertyMatcher{Property: p, Op: OpIn, Operands: vs}
}

// MatchLike matches string values against a LIKE pattern, where % matches
// any run of characters and _ matches one character.
func MatchLike(p PropertyDescriptor, pattern string) PropertyMatcher {
	return PropertyMatcher{Property: p, Op: OpLike, Operand: pattern}
}

// MatchIntersects matches rows whose geometry intersects g, boundary inclusive.
func MatchIntersects(p PropertyDescriptor, g orb.Geometry) PropertyMatcher {
	return PropertyMatcher{Property: p, Op: OpIntersects, Operand: g}
}

// MatchGeometryEquals matches rows whose geometry is geometrically equal to g.
func MatchGeometryEquals(p PropertyDescriptor, g orb.Geometry) PropertyMatcher {
	return PropertyMatcher{Property: p, Op: OpGeometryEquals, Operand: g}
}

// MatchOverlaps matches rows whose time span overlaps s.
func MatchOverlaps(p PropertyDescriptor, s TimeSpan) PropertyMatcher {
	return PropertyMatcher{Property: p, Op: OpOverlaps, Operand: s}
}

// IsSpatial reports whether the matcher needs an exact geometry test.
func (m PropertyMatcher) IsSpatial() bool {
	return m.Op == OpIntersects || m.Op == OpGeometryEquals
}

// Normalize validates the matcher and returns a copy whose operands are in
// canonical form for the property type.
func (m PropertyMatcher) Normalize() (PropertyMatcher, error) {
	if err := m.Property.Validate(); err != nil {
		return m, err
	}
	t := m.Property.Type
	out := m
	switch m.Op {
	case OpEquals, OpNotEquals, OpLess, OpLessEqual, OpGreater, OpGreaterEqual:
		if !t.IsScalar() {
			return m, fmt.Errorf("%w: %s cannot apply to %s property %q", ErrInvalidMatcher, m.Op, t, m.Property.Name)
		}
		if m.Operand == nil && m.Op != OpEquals && m.Op != OpNotEquals {
			return m, fmt.Errorf("%w: %s needs an operand", ErrInvalidMatcher, m.Op)
		}
		v, err := NormalizeValue(t, m.Operand)
		if err != nil {
			return m, fmt.Errorf("%w: %v", ErrInvalidMatcher, err)
		}
		out.Operand = v
	case OpIn:
		if !t.IsScalar() {
			return m, fmt.Errorf("%w: in cannot apply to %s property %q", ErrInvalidMatcher, t, m.Property.Name)
		}
		out.Operands = make([]any, 0, len(m.Operands))
		for _, o := range m.Operands {
			if o == nil {
				return m, fmt.Errorf("%w: in operands must not be nil", ErrInvalidMatcher)
			}
			v, err := NormalizeValue(t, o)
			if err != nil {
				return m, fmt.Errorf("%w: %v", ErrInvalidMatcher, err)
			}
			out.Operands = append(out.Operands, v)
		}
	case OpLike:
		if t != TypeString {
			return m, fmt.Errorf("%w: like needs a string property, %q is %s", ErrInvalidMatcher, m.Property.Name, t)
		}
		if _, ok := m.Operand.(string); !ok {
			return m, fmt.Errorf("%w: like pattern must be a string", ErrInvalidMatcher)
		}
	case OpIntersects, OpGeometryEquals:
		if t != TypeGeometry {
			return m, fmt.Errorf("%w: %s needs a geometry property, %q is %s", ErrInvalidMatcher, m.Op, m.Property.Name, t)
		}
		if g, ok := m.Operand.(orb.Geometry); !ok || g == nil {
			return m, fmt.Errorf("%w: %s needs a geometry operand", ErrInvalidMatcher, m.Op)
		}
	case OpOverlaps:
		if t != TypeTimeSpan {
			return m, fmt.Errorf("%w: overlaps needs a time span property, %q is %s", ErrInvalidMatcher, m.Property.Name, t)
		}
		v, err := NormalizeValue(t, m.Operand)
		if err != nil || v == nil {
			return m, fmt.Errorf("%w: overlaps needs a time span operand", ErrInvalidMatcher)
		}
		out.Operand = v
	default:
		return m, fmt.Errorf("%w: unknown operator %q", ErrInvalidMatcher, m.Op)
	}
	return out, nil
}
