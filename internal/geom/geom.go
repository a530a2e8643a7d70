// Package geom implements the geometry operations the store needs for
// spatial matchers: boundary-inclusive intersection, topological equality,
// envelopes and a WKB codec. Values are github.com/paulmach/orb geometries;
// the predicates run on github.com/peterstace/simplefeatures.
package geom

import (
	"fmt"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/encoding/wkb"
	sf "github.com/peterstace/simplefeatures/geom"
)

// Normalize converts the orb shapes WKB cannot carry into their polygon
// form: a Bound or a Ring becomes a Polygon. Other geometries are returned as is.
func Normalize(g orb.Geometry) orb.Geometry {
	switch v := g.(type) {
	case orb.Bound:
		return v.ToPolygon()
	case orb.Ring:
		return orb.Polygon{v}
	case orb.Collection:
		out := make(orb.Collection, len(v))
		for i, c := range v {
			out[i] = Normalize(c)
		}
		return out
	}
	return g
}

// Encode returns the WKB encoding of g after normalization.
func Encode(g orb.Geometry) ([]byte, error) {
	b, err := wkb.Marshal(Normalize(g))
	if err != nil {
		return nil, fmt.Errorf("encoding geometry: %w", err)
	}
	return b, nil
}

// Decode parses WKB.
func Decode(b []byte) (orb.Geometry, error) {
	g, err := wkb.Unmarshal(b)
	if err != nil {
		return nil, fmt.Errorf("decoding geometry: %w", err)
	}
	return g, nil
}

// Envelope returns the bounding box of g.
func Envelope(g orb.Geometry) orb.Bound {
	return g.Bound()
}

// Identical reports whether a and b have the same type and the same
// coordinates in the same order.
func Identical(a, b orb.Geometry) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return orb.Equal(Normalize(a), Normalize(b))
}

// Equal reports whether a and b cover the same point set. Vertex order,
// ring start and direction do not matter.
func Equal(a, b orb.Geometry) (bool, error) {
	if a == nil || b == nil {
		return a == nil && b == nil, nil
	}
	if Identical(a, b) {
		return true, nil
	}
	if a.Bound() != b.Bound() {
		return false, nil
	}
	fa, fb, err := convertPair(a, b)
	if err != nil {
		return false, err
	}
	eq, err := sf.Equals(fa, fb)
	if err != nil {
		return false, fmt.Errorf("comparing geometries: %w", err)
	}
	return eq, nil
}

// Intersects reports whether a and b share at least one point. Boundaries
// count: touching shapes intersect.
func Intersects(a, b orb.Geometry) (bool, error) {
	if a == nil || b == nil {
		return false, nil
	}
	if !a.Bound().Intersects(b.Bound()) {
		return false, nil
	}
	fa, fb, err := convertPair(a, b)
	if err != nil {
		return false, err
	}
	return sf.Intersects(fa, fb), nil
}

func convertPair(a, b orb.Geometry) (sf.Geometry, sf.Geometry, error) {
	fa, err := convert(a)
	if err != nil {
		return sf.Geometry{}, sf.Geometry{}, err
	}
	fb, err := convert(b)
	if err != nil {
		return sf.Geometry{}, sf.Geometry{}, err
	}
	return fa, fb, nil
}

// convert moves an orb geometry into simplefeatures through WKB.
func convert(g orb.Geometry) (sf.Geometry, error) {
	b, err := Encode(g)
	if err != nil {
		return sf.Geometry{}, err
	}
	out, err := sf.UnmarshalWKB(b)
	if err != nil {
		return sf.Geometry{}, fmt.Errorf("converting geometry: %w", err)
	}
	return out, nil
}
