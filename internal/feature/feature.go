// Package feature defines the core data model: features, collections,
// attribute schemas, and attribute-geometry relationship (AGR) metadata.
package feature

import (
	"encoding/json"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
)

// Feature pairs one geometry with an attribute map. Geometry and attributes
// are independent; replacing one does not touch the other.
type Feature struct {
	Geometry geom.T
	Attrs    map[string]any
}

// Clone returns a deep copy of the attribute map alongside the same geometry.
// Geometries are treated as immutable throughout the codebase.
func (f Feature) Clone() Feature {
	attrs := make(map[string]any, len(f.Attrs))
	for k, v := range f.Attrs {
		attrs[k] = v
	}
	return Feature{Geometry: f.Geometry, Attrs: attrs}
}

// Collection is an ordered sequence of features sharing one schema and one
// spatial reference (SRID).
type Collection struct {
	SRID     int
	Schema   Schema
	Features []Feature
}

// NewCollection creates an empty collection with the given schema and SRID.
func NewCollection(schema Schema, srid int) *Collection {
	return &Collection{SRID: srid, Schema: schema}
}

// Len returns the number of features.
func (c *Collection) Len() int { return len(c.Features) }

// Clone deep-copies the collection. Used by operations that must not mutate
// their input.
func (c *Collection) Clone() *Collection {
	out := &Collection{SRID: c.SRID, Schema: c.Schema.Clone()}
	out.Features = make([]Feature, len(c.Features))
	for i, f := range c.Features {
		out.Features[i] = f.Clone()
	}
	return out
}

// Float extracts a numeric attribute value. It accepts the numeric types
// that survive JSON and DBF decoding. The second return is false when the
// value is absent or non-numeric.
func Float(v any) (float64, bool) {
	switch x := v.(type) {
	case float64:
		return x, true
	case float32:
		return float64(x), true
	case int:
		return float64(x), true
	case int32:
		return float64(x), true
	case int64:
		return float64(x), true
	case json.Number:
		f, err := x.Float64()
		return f, err == nil
	default:
		return 0, false
	}
}

// RequireAttrs verifies that every requested attribute exists in the schema.
// A missing attribute is a configuration error and fails the whole call.
func (c *Collection) RequireAttrs(attrs []string) error {
	for _, a := range attrs {
		if c.Schema.Field(a) == nil {
			return eris.Wrapf(ErrMissingAttribute, "feature: attribute %q not in schema", a)
		}
	}
	return nil
}

// ErrMissingAttribute reports a requested attribute absent from the source
// schema. Callers fail fast on it before any computation starts.
var ErrMissingAttribute = eris.New("missing attribute")
