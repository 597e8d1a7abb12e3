// Package overlay implements polygon overlay analysis: the geometry overlay
// provider, an r-tree candidate index, and the area-weighted attribute
// transfer engine.
package overlay

import (
	"math"

	ctgeom "github.com/ctessum/geom"
	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
)

// Provider is the geometry overlay capability the engine computes with:
// pairwise intersection, area, and n-ary union. Implementations must
// guarantee area(nil) == 0 and that area is additive over a valid
// partition.
type Provider interface {
	// Intersect returns the intersection of a and b, or nil when it is
	// empty.
	Intersect(a, b ctgeom.Polygonal) ctgeom.Polygonal
	// Area returns the area of p, 0 for nil.
	Area(p ctgeom.Polygonal) float64
	// Union dissolves the given polygons into one, dropping internal
	// shared boundaries. Returns nil for an empty input.
	Union(ps []ctgeom.Polygonal) ctgeom.Polygonal
}

// Planar is the in-memory Provider, computing in the plane of the
// collection's coordinate system.
type Planar struct{}

// Intersect implements Provider.
func (Planar) Intersect(a, b ctgeom.Polygonal) ctgeom.Polygonal {
	if a == nil || b == nil {
		return nil
	}
	return a.Intersection(b)
}

// Area implements Provider.
func (Planar) Area(p ctgeom.Polygonal) float64 {
	if p == nil {
		return 0
	}
	return p.Area()
}

// Union implements Provider.
func (Planar) Union(ps []ctgeom.Polygonal) ctgeom.Polygonal {
	var acc ctgeom.Polygonal
	for _, p := range ps {
		if p == nil {
			continue
		}
		if acc == nil {
			acc = p
			continue
		}
		acc = acc.Union(p)
	}
	return acc
}

// ToPolygonal converts a go-geom polygon or multi-polygon into the overlay
// provider's representation. Any other geometry type, an empty geometry, or
// a ring with fewer than three distinct vertices is reported as invalid.
func ToPolygonal(g geom.T) (ctgeom.Polygonal, error) {
	switch t := g.(type) {
	case *geom.Polygon:
		p, err := polygonRings(t)
		if err != nil {
			return nil, err
		}
		return p, nil
	case *geom.MultiPolygon:
		mp := make(ctgeom.MultiPolygon, 0, t.NumPolygons())
		for i := 0; i < t.NumPolygons(); i++ {
			p, err := polygonRings(t.Polygon(i))
			if err != nil {
				return nil, err
			}
			mp = append(mp, p)
		}
		if len(mp) == 0 {
			return nil, eris.Wrap(ErrInvalidGeometry, "overlay: empty multipolygon")
		}
		return mp, nil
	case nil:
		return nil, eris.Wrap(ErrInvalidGeometry, "overlay: nil geometry")
	default:
		return nil, eris.Wrapf(ErrInvalidGeometry, "overlay: geometry type %T is not polygonal", g)
	}
}

func polygonRings(p *geom.Polygon) (ctgeom.Polygon, error) {
	if p.NumLinearRings() == 0 {
		return nil, eris.Wrap(ErrInvalidGeometry, "overlay: polygon without rings")
	}
	out := make(ctgeom.Polygon, 0, p.NumLinearRings())
	for i := 0; i < p.NumLinearRings(); i++ {
		coords := p.LinearRing(i).Coords()
		// drop the closing vertex; the provider treats rings as implicitly
		// closed
		if len(coords) > 1 && coords[0].Equal(geom.XY, coords[len(coords)-1]) {
			coords = coords[:len(coords)-1]
		}
		if len(coords) < 3 {
			return nil, eris.Wrap(ErrInvalidGeometry, "overlay: ring with fewer than 3 vertices")
		}
		ring := make([]ctgeom.Point, len(coords))
		for j, c := range coords {
			if math.IsNaN(c[0]) || math.IsNaN(c[1]) || math.IsInf(c[0], 0) || math.IsInf(c[1], 0) {
				return nil, eris.Wrap(ErrInvalidGeometry, "overlay: non-finite coordinate")
			}
			ring[j] = ctgeom.Point{X: c[0], Y: c[1]}
		}
		out = append(out, ring)
	}
	return out, nil
}

// FromPolygonal converts an overlay result back to a go-geom geometry with
// the given SRID. A single-polygon result becomes a Polygon, anything else
// a MultiPolygon. Returns nil for a nil input.
func FromPolygonal(p ctgeom.Polygonal, srid int) geom.T {
	if p == nil {
		return nil
	}
	polys := p.Polygons()
	if len(polys) == 1 {
		return buildPolygon(polys[0], srid)
	}
	mp := geom.NewMultiPolygon(geom.XY).SetSRID(srid)
	for _, cp := range polys {
		if gp := buildPolygon(cp, srid); gp != nil {
			_ = mp.Push(gp)
		}
	}
	return mp
}

func buildPolygon(p ctgeom.Polygon, srid int) *geom.Polygon {
	out := geom.NewPolygon(geom.XY).SetSRID(srid)
	for _, ring := range p {
		if len(ring) < 3 {
			continue
		}
		flat := make([]float64, 0, (len(ring)+1)*2)
		for _, pt := range ring {
			flat = append(flat, pt.X, pt.Y)
		}
		// close rings explicitly for GeoJSON round-trips
		if ring[0] != ring[len(ring)-1] {
			flat = append(flat, ring[0].X, ring[0].Y)
		}
		if err := out.Push(geom.NewLinearRingFlat(geom.XY, flat)); err != nil {
			continue
		}
	}
	if out.NumLinearRings() == 0 {
		return nil
	}
	return out
}
