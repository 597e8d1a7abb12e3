package feature

import (
	"fmt"

	"github.com/rotisserie/eris"
)

// Relationship classifies how an attribute's value relates to its feature's
// geometry. The zero value means the relationship was never declared.
type Relationship string

// AGR tags.
//
// Constant values hold uniformly over every point of the geometry, so
// sub-setting the geometry preserves them. Aggregate values summarize the
// whole geometry and are not valid for sub-geometries. Identity values
// uniquely name the geometry as a whole; reducing the geometry downgrades
// them to constant.
const (
	AGRUnspecified Relationship = ""
	AGRConstant    Relationship = "constant"
	AGRAggregate   Relationship = "aggregate"
	AGRIdentity    Relationship = "identity"
)

// ParseRelationship validates an AGR tag from user input (manifest files,
// API payloads).
func ParseRelationship(s string) (Relationship, error) {
	switch Relationship(s) {
	case AGRConstant, AGRAggregate, AGRIdentity:
		return Relationship(s), nil
	case AGRUnspecified:
		return AGRUnspecified, nil
	default:
		return AGRUnspecified, eris.Errorf("feature: unknown AGR tag %q", s)
	}
}

// CheckGeometryChange inspects a schema ahead of a geometry-changing
// operation (interpolation, join, centroid, dissolve) and returns one
// advisory diagnostic per attribute whose AGR was never declared. A silent
// "constant" assumption would otherwise be made, so the caller is told.
// Nothing here ever aborts the operation.
func CheckGeometryChange(op string, s Schema) []Diagnostic {
	var diags []Diagnostic
	for _, f := range s {
		if f.AGR == AGRUnspecified {
			diags = append(diags, Diagnostic{
				Severity: SeverityWarn,
				Code:     CodeUnresolvedAGR,
				Feature:  -1,
				Attr:     f.Name,
				Message:  fmt.Sprintf("attribute %q has no AGR tag; %s assumes it is constant over the geometry", f.Name, op),
			})
		}
	}
	return diags
}

// DowngradeForSubGeometry rewrites the schema for an operation that reduced
// each geometry to a sub-geometry (centroid, intersection). Identity tags
// become constant: the value still describes the containing original
// geometry, but no longer uniquely identifies the reduced one.
func DowngradeForSubGeometry(s Schema) Schema {
	out := s.Clone()
	for i := range out {
		if out[i].AGR == AGRIdentity {
			out[i].AGR = AGRConstant
		}
	}
	return out
}
