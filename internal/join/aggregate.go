package join

import (
	"fmt"
	"math"

	ctgeom "github.com/ctessum/geom"
	"github.com/rotisserie/eris"

	"github.com/areal-labs/overlay-cli/internal/feature"
	"github.com/areal-labs/overlay-cli/internal/overlay"
)

// Reducer names an attribute reduction applied per group.
type Reducer string

// Supported reducers. Count counts non-missing values; first takes the
// first member's value in collection order.
const (
	ReduceSum   Reducer = "sum"
	ReduceMean  Reducer = "mean"
	ReduceCount Reducer = "count"
	ReduceMin   Reducer = "min"
	ReduceMax   Reducer = "max"
	ReduceFirst Reducer = "first"
)

// ParseReducer validates a reducer name from user input.
func ParseReducer(s string) (Reducer, error) {
	switch Reducer(s) {
	case ReduceSum, ReduceMean, ReduceCount, ReduceMin, ReduceMax, ReduceFirst:
		return Reducer(s), nil
	default:
		return "", eris.Errorf("join: unknown reducer %q", s)
	}
}

// Aggregate groups the collection by the given attribute, reduces the named
// attributes per group, and dissolves each group's geometries into one via
// union. Groups appear in order of first appearance. Reduced attributes are
// tagged aggregate in the output schema; the group key keeps its tag, since
// it still identifies the dissolved geometry as a whole.
func Aggregate(prov overlay.Provider, coll *feature.Collection, groupAttr string, reducers map[string]Reducer) (*feature.Collection, *overlay.Report, error) {
	if coll.Schema.Field(groupAttr) == nil {
		return nil, nil, eris.Wrapf(feature.ErrMissingAttribute, "join: group attribute %q not in schema", groupAttr)
	}
	for name := range reducers {
		if coll.Schema.Field(name) == nil {
			return nil, nil, eris.Wrapf(feature.ErrMissingAttribute, "join: reduced attribute %q not in schema", name)
		}
	}

	rep := &overlay.Report{}
	rep.Diagnostics = append(rep.Diagnostics, feature.CheckGeometryChange("aggregate", coll.Schema)...)

	type group struct {
		key     any
		polys   []ctgeom.Polygonal
		members []int
	}
	var groups []*group
	byKey := map[string]*group{}

	for i := range coll.Features {
		f := coll.Features[i]
		key := fmt.Sprint(f.Attrs[groupAttr])
		g, ok := byKey[key]
		if !ok {
			g = &group{key: f.Attrs[groupAttr]}
			byKey[key] = g
			groups = append(groups, g)
		}
		poly, err := overlay.ToPolygonal(f.Geometry)
		if err != nil {
			rep.Diagnostics = append(rep.Diagnostics, feature.Diagnostic{
				Severity: feature.SeverityError,
				Code:     feature.CodeInvalidGeometry,
				Feature:  i,
				Message:  fmt.Sprintf("feature %d: %s", i, eris.Cause(err)),
			})
			continue
		}
		g.polys = append(g.polys, poly)
		g.members = append(g.members, i)
	}

	outSchema := aggregateSchema(coll.Schema, groupAttr, reducers)
	out := feature.NewCollection(outSchema, coll.SRID)

	for _, g := range groups {
		attrs := map[string]any{groupAttr: g.key}
		for name, r := range reducers {
			if v, ok := reduce(coll, g.members, name, r); ok {
				attrs[name] = v
			}
		}
		out.Features = append(out.Features, feature.Feature{
			Geometry: overlay.FromPolygonal(prov.Union(g.polys), coll.SRID),
			Attrs:    attrs,
		})
	}

	return out, rep, nil
}

func aggregateSchema(s feature.Schema, groupAttr string, reducers map[string]Reducer) feature.Schema {
	var out feature.Schema
	for _, f := range s {
		if f.Name == groupAttr {
			out = append(out, f)
			continue
		}
		if _, ok := reducers[f.Name]; ok {
			f.AGR = feature.AGRAggregate
			f.Type = feature.TypeNumber
			out = append(out, f)
		}
	}
	return out
}

func reduce(coll *feature.Collection, members []int, attr string, r Reducer) (any, bool) {
	if r == ReduceFirst {
		for _, i := range members {
			if v, ok := coll.Features[i].Attrs[attr]; ok && v != nil {
				return v, true
			}
		}
		return nil, false
	}

	var sum float64
	count := 0
	min, max := math.Inf(1), math.Inf(-1)
	for _, i := range members {
		v, ok := feature.Float(coll.Features[i].Attrs[attr])
		if !ok {
			continue
		}
		sum += v
		count++
		min = math.Min(min, v)
		max = math.Max(max, v)
	}

	switch r {
	case ReduceCount:
		return float64(count), true
	case ReduceSum:
		if count == 0 {
			return nil, false
		}
		return sum, true
	case ReduceMean:
		if count == 0 {
			return nil, false
		}
		return sum / float64(count), true
	case ReduceMin:
		if count == 0 {
			return nil, false
		}
		return min, true
	case ReduceMax:
		if count == 0 {
			return nil, false
		}
		return max, true
	}
	return nil, false
}
