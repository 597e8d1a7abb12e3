package feature

import (
	"sort"

	"github.com/rotisserie/eris"
)

// FieldType is the declared value type of an attribute column.
type FieldType string

// Supported field types. DBF and JSON sources map onto these.
const (
	TypeNumber FieldType = "number"
	TypeString FieldType = "string"
	TypeBool   FieldType = "bool"
)

// Field describes one attribute column: name, value type, and AGR tag.
type Field struct {
	Name string       `json:"name"`
	Type FieldType    `json:"type"`
	AGR  Relationship `json:"agr,omitempty"`
}

// Schema is the ordered attribute layout of a collection.
type Schema []Field

// Clone returns a copy of the schema.
func (s Schema) Clone() Schema {
	out := make(Schema, len(s))
	copy(out, s)
	return out
}

// Field returns the field with the given name, or nil.
func (s Schema) Field(name string) *Field {
	for i := range s {
		if s[i].Name == name {
			return &s[i]
		}
	}
	return nil
}

// Names returns the attribute names in schema order.
func (s Schema) Names() []string {
	names := make([]string, len(s))
	for i, f := range s {
		names[i] = f.Name
	}
	return names
}

// Select returns the sub-schema for the given attribute names, preserving
// this schema's order. Unknown names are an error.
func (s Schema) Select(names []string) (Schema, error) {
	want := make(map[string]bool, len(names))
	for _, n := range names {
		if s.Field(n) == nil {
			return nil, eris.Wrapf(ErrMissingAttribute, "feature: attribute %q not in schema", n)
		}
		want[n] = true
	}
	var out Schema
	for _, f := range s {
		if want[f.Name] {
			out = append(out, f)
		}
	}
	return out, nil
}

// SetAGR tags the named attribute. Unknown names are an error so that a
// typo in an AGR manifest does not pass silently.
func (s Schema) SetAGR(name string, rel Relationship) error {
	f := s.Field(name)
	if f == nil {
		return eris.Errorf("feature: cannot tag unknown attribute %q", name)
	}
	f.AGR = rel
	return nil
}

// InferSchema derives a schema from raw attribute maps, typing each column
// from the first non-nil value seen. Columns are sorted by name so the
// result is deterministic regardless of map iteration order.
func InferSchema(features []Feature) Schema {
	types := map[string]FieldType{}
	for _, f := range features {
		for name, v := range f.Attrs {
			if _, seen := types[name]; seen {
				continue
			}
			if v == nil {
				continue
			}
			if _, ok := Float(v); ok {
				types[name] = TypeNumber
			} else if _, ok := v.(bool); ok {
				types[name] = TypeBool
			} else {
				types[name] = TypeString
			}
		}
	}
	names := make([]string, 0, len(types))
	for n := range types {
		names = append(names, n)
	}
	sort.Strings(names)

	schema := make(Schema, 0, len(names))
	for _, n := range names {
		schema = append(schema, Field{Name: n, Type: types[n]})
	}
	return schema
}
