// Package join implements the combinatorial overlay passes: spatial join
// between two collections, dissolve/aggregate over one collection, and
// centroid reduction. All geometry work goes through the overlay provider.
package join

import (
	"fmt"
	"math"

	ctgeom "github.com/ctessum/geom"
	"github.com/ctessum/geom/index/rtree"
	"github.com/rotisserie/eris"

	"github.com/areal-labs/overlay-cli/internal/feature"
	"github.com/areal-labs/overlay-cli/internal/overlay"
)

// Predicate is a binary spatial relation between a left and a right
// feature.
type Predicate string

// Supported predicates. Distances are planar, in the collection's
// coordinate units.
const (
	PredIntersects     Predicate = "intersects"
	PredContains       Predicate = "contains"
	PredWithin         Predicate = "within"
	PredWithinDistance Predicate = "withindistance"
)

// ParsePredicate validates a predicate name from user input.
func ParsePredicate(s string) (Predicate, error) {
	switch Predicate(s) {
	case PredIntersects, PredContains, PredWithin, PredWithinDistance:
		return Predicate(s), nil
	default:
		return "", eris.Errorf("join: unknown predicate %q", s)
	}
}

// Options configures a spatial join.
type Options struct {
	// Largest keeps only the right match with the largest overlap area per
	// left feature.
	Largest bool
	// Inner drops left features with no match; the default keeps them with
	// only their own attributes.
	Inner bool
	// Distance is the threshold for PredWithinDistance.
	Distance float64
}

// areaTol is the relative tolerance for containment comparisons, absorbing
// clipping noise at shared boundaries.
const areaTol = 1e-9

type rightItem struct {
	idx int
	ctgeom.Polygonal
	area float64
}

func (r *rightItem) Bounds() *ctgeom.Bounds { return r.Polygonal.Bounds() }

// Join produces every (left, right) pair satisfying the predicate, in left
// order then right order. Right attribute names that collide with left
// names get a "_right" suffix.
func Join(prov overlay.Provider, left, right *feature.Collection, pred Predicate, opts Options) (*feature.Collection, *overlay.Report, error) {
	if left.SRID != right.SRID {
		return nil, nil, eris.Wrapf(overlay.ErrSRIDMismatch, "join: left SRID %d, right SRID %d", left.SRID, right.SRID)
	}
	if pred == PredWithinDistance && opts.Distance < 0 {
		return nil, nil, eris.Errorf("join: negative distance %v", opts.Distance)
	}

	rep := &overlay.Report{}
	rep.Diagnostics = append(rep.Diagnostics, feature.CheckGeometryChange("join", right.Schema)...)

	rename := rightNames(left.Schema, right.Schema)
	outSchema := joinSchema(left.Schema, right.Schema, rename)

	// index the right side
	tree := rtree.NewTree(25, 50)
	for i := range right.Features {
		poly, err := overlay.ToPolygonal(right.Features[i].Geometry)
		if err != nil {
			rep.Diagnostics = append(rep.Diagnostics, feature.Diagnostic{
				Severity: feature.SeverityError,
				Code:     feature.CodeInvalidGeometry,
				Feature:  i,
				Message:  fmt.Sprintf("right %d: %s", i, eris.Cause(err)),
			})
			continue
		}
		tree.Insert(&rightItem{idx: i, Polygonal: poly, area: poly.Area()})
	}

	out := feature.NewCollection(outSchema, left.SRID)

	for li := range left.Features {
		lf := left.Features[li]
		lp, err := overlay.ToPolygonal(lf.Geometry)
		if err != nil {
			rep.Diagnostics = append(rep.Diagnostics, feature.Diagnostic{
				Severity: feature.SeverityError,
				Code:     feature.CodeInvalidGeometry,
				Feature:  li,
				Message:  fmt.Sprintf("left %d: %s", li, eris.Cause(err)),
			})
			if !opts.Inner {
				out.Features = append(out.Features, lf.Clone())
			}
			continue
		}
		lArea := lp.Area()

		matches := matchRight(prov, tree, lp, lArea, pred, opts.Distance)

		if len(matches) == 0 {
			if !opts.Inner {
				out.Features = append(out.Features, lf.Clone())
			}
			continue
		}
		if opts.Largest {
			matches = matches[:1]
		}
		for _, m := range matches {
			merged := lf.Clone()
			for name, v := range right.Features[m.idx].Attrs {
				merged.Attrs[rename[name]] = v
			}
			out.Features = append(out.Features, merged)
		}
	}

	return out, rep, nil
}

type match struct {
	idx     int
	overlap float64
}

// matchRight evaluates the predicate against every candidate, returning
// matches sorted by overlap (descending) then right index.
func matchRight(prov overlay.Provider, tree *rtree.Rtree, lp ctgeom.Polygonal, lArea float64, pred Predicate, dist float64) []match {
	bounds := lp.Bounds()
	if pred == PredWithinDistance {
		bounds = &ctgeom.Bounds{
			Min: ctgeom.Point{X: bounds.Min.X - dist, Y: bounds.Min.Y - dist},
			Max: ctgeom.Point{X: bounds.Max.X + dist, Y: bounds.Max.Y + dist},
		}
	}

	var matches []match
	for _, hit := range tree.SearchIntersect(bounds) {
		r := hit.(*rightItem)
		isect := prov.Intersect(lp, r.Polygonal)
		overlap := prov.Area(isect)

		ok := false
		switch pred {
		case PredIntersects:
			ok = overlap > 0
		case PredContains:
			ok = r.area > 0 && overlap >= r.area*(1-areaTol)
		case PredWithin:
			ok = lArea > 0 && overlap >= lArea*(1-areaTol)
		case PredWithinDistance:
			ok = overlap > 0 || polygonDistance(lp, r.Polygonal) <= dist
		}
		if ok {
			matches = append(matches, match{idx: r.idx, overlap: overlap})
		}
	}

	// stable: larger overlap first, then right order
	for i := 1; i < len(matches); i++ {
		for j := i; j > 0; j-- {
			a, b := matches[j-1], matches[j]
			if b.overlap > a.overlap || (b.overlap == a.overlap && b.idx < a.idx) {
				matches[j-1], matches[j] = b, a
			} else {
				break
			}
		}
	}
	return matches
}

// rightNames maps each right attribute name to its output name, suffixing
// collisions with the left schema.
func rightNames(left, right feature.Schema) map[string]string {
	rename := make(map[string]string, len(right))
	for _, f := range right {
		name := f.Name
		if left.Field(name) != nil {
			name += "_right"
		}
		rename[f.Name] = name
	}
	return rename
}

// joinSchema is the left schema followed by the (renamed) right schema.
// Right identity tags downgrade to constant: the value still describes the
// matched right geometry, but no longer identifies the output feature's
// geometry.
func joinSchema(left, right feature.Schema, rename map[string]string) feature.Schema {
	out := left.Clone()
	for _, f := range feature.DowngradeForSubGeometry(right) {
		f.Name = rename[f.Name]
		out = append(out, f)
	}
	return out
}

// polygonDistance is the minimum planar distance between the boundaries of
// two disjoint polygons. The overlay provider exposes no distance
// operation, so this walks ring segments directly.
func polygonDistance(a, b ctgeom.Polygonal) float64 {
	min := math.Inf(1)
	for _, pa := range a.Polygons() {
		for _, ra := range pa {
			for _, pb := range b.Polygons() {
				for _, rb := range pb {
					if d := ringDistance(ra, rb); d < min {
						min = d
					}
				}
			}
		}
	}
	return min
}

func ringDistance(a, b []ctgeom.Point) float64 {
	min := math.Inf(1)
	for i := range a {
		s1, e1 := a[i], a[(i+1)%len(a)]
		for j := range b {
			s2, e2 := b[j], b[(j+1)%len(b)]
			if d := segmentDistance(s1, e1, s2, e2); d < min {
				min = d
			}
		}
	}
	return min
}

// segmentDistance is the minimum distance between two line segments,
// computed from the four point-to-segment distances. Sufficient for
// non-crossing segments, which holds for disjoint polygon boundaries.
func segmentDistance(a1, a2, b1, b2 ctgeom.Point) float64 {
	return math.Min(
		math.Min(pointSegmentDistance(a1, b1, b2), pointSegmentDistance(a2, b1, b2)),
		math.Min(pointSegmentDistance(b1, a1, a2), pointSegmentDistance(b2, a1, a2)),
	)
}

func pointSegmentDistance(p, s, e ctgeom.Point) float64 {
	dx, dy := e.X-s.X, e.Y-s.Y
	l2 := dx*dx + dy*dy
	t := 0.0
	if l2 > 0 {
		t = ((p.X-s.X)*dx + (p.Y-s.Y)*dy) / l2
		t = math.Max(0, math.Min(1, t))
	}
	cx, cy := s.X+t*dx, s.Y+t*dy
	return math.Hypot(p.X-cx, p.Y-cy)
}
