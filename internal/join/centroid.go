package join

import (
	"fmt"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"

	"github.com/areal-labs/overlay-cli/internal/feature"
	"github.com/areal-labs/overlay-cli/internal/overlay"
)

// Centroid replaces each polygonal geometry with its centroid point.
// Attributes are untouched, but the schema is downgraded: identity tags
// become constant, since the name of a polygon no longer identifies the
// point that replaced it. Point geometries pass through unchanged; other
// geometry types are diagnosed and passed through.
func Centroid(coll *feature.Collection) (*feature.Collection, []feature.Diagnostic, error) {
	diags := feature.CheckGeometryChange("centroid", coll.Schema)

	out := feature.NewCollection(feature.DowngradeForSubGeometry(coll.Schema), coll.SRID)
	out.Features = make([]feature.Feature, len(coll.Features))

	for i := range coll.Features {
		f := coll.Features[i].Clone()
		switch f.Geometry.(type) {
		case *geom.Point:
			// already a point
		default:
			poly, err := overlay.ToPolygonal(f.Geometry)
			if err != nil {
				diags = append(diags, feature.Diagnostic{
					Severity: feature.SeverityError,
					Code:     feature.CodeInvalidGeometry,
					Feature:  i,
					Message:  fmt.Sprintf("feature %d: %s", i, eris.Cause(err)),
				})
				break
			}
			c := poly.Centroid()
			f.Geometry = geom.NewPointFlat(geom.XY, []float64{c.X, c.Y}).SetSRID(coll.SRID)
		}
		out.Features[i] = f
	}

	return out, diags, nil
}
