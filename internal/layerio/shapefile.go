package layerio

import (
	"strconv"
	"strings"

	"github.com/jonas-p/go-shp"
	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"go.uber.org/zap"

	"github.com/areal-labs/overlay-cli/internal/feature"
)

// ReadShapefile loads polygonal features from a shapefile, converting shape
// records to geometries and DBF fields to typed attributes. Records whose
// shape cannot be converted are skipped and counted.
func ReadShapefile(path string, srid int) (*feature.Collection, error) {
	reader, err := shp.Open(path)
	if err != nil {
		return nil, eris.Wrapf(err, "layerio: open shapefile %s", path)
	}
	defer func() { _ = reader.Close() }()

	fields := reader.Fields()
	schema := make(feature.Schema, 0, len(fields))
	for _, f := range fields {
		name := strings.TrimRight(f.String(), "\x00")
		schema = append(schema, feature.Field{Name: name, Type: dbfType(f.Fieldtype)})
	}

	var features []feature.Feature
	var skipped int
	for reader.Next() {
		_, shape := reader.Shape()
		g := shapeToGeometry(shape, srid)
		if g == nil {
			skipped++
			continue
		}

		attrs := make(map[string]any, len(fields))
		for i := range fields {
			raw := strings.TrimSpace(strings.TrimRight(reader.Attribute(i), "\x00"))
			if raw == "" {
				continue
			}
			attrs[schema[i].Name] = dbfValue(raw, schema[i].Type)
		}
		features = append(features, feature.Feature{Geometry: g, Attrs: attrs})
	}

	if skipped > 0 {
		zap.L().Debug("layerio: skipped shapefile records",
			zap.String("path", path),
			zap.Int("skipped", skipped),
		)
	}

	return &feature.Collection{SRID: srid, Schema: schema, Features: features}, nil
}

// dbfType maps a DBF field type byte to a schema type.
func dbfType(t byte) feature.FieldType {
	switch t {
	case 'N', 'F':
		return feature.TypeNumber
	case 'L':
		return feature.TypeBool
	default:
		return feature.TypeString
	}
}

func dbfValue(raw string, t feature.FieldType) any {
	switch t {
	case feature.TypeNumber:
		if v, err := strconv.ParseFloat(raw, 64); err == nil {
			return v
		}
		return raw
	case feature.TypeBool:
		switch raw {
		case "T", "t", "Y", "y":
			return true
		case "F", "f", "N", "n":
			return false
		}
		return raw
	default:
		return raw
	}
}

// shapeToGeometry converts a shapefile polygon record to a go-geom
// MultiPolygon. Non-polygonal and malformed shapes return nil.
func shapeToGeometry(shape shp.Shape, srid int) geom.T {
	p, ok := shape.(*shp.Polygon)
	if !ok || p == nil || p.NumParts == 0 || len(p.Points) == 0 {
		return nil
	}

	mp := geom.NewMultiPolygon(geom.XY).SetSRID(srid)

	for i := int32(0); i < p.NumParts; i++ {
		start := p.Parts[i]
		var end int32
		if i+1 < p.NumParts {
			end = p.Parts[i+1]
		} else {
			end = int32(len(p.Points))
		}

		flat := make([]float64, 0, (end-start)*2)
		for j := start; j < end; j++ {
			flat = append(flat, p.Points[j].X, p.Points[j].Y)
		}

		ring := geom.NewLinearRingFlat(geom.XY, flat)
		poly := geom.NewPolygon(geom.XY)
		if err := poly.Push(ring); err != nil {
			zap.L().Debug("layerio: skipping malformed polygon ring", zap.Int32("part", i), zap.Error(err))
			continue
		}
		if err := mp.Push(poly); err != nil {
			zap.L().Debug("layerio: skipping malformed polygon part", zap.Int32("part", i), zap.Error(err))
			continue
		}
	}

	if mp.NumPolygons() == 0 {
		return nil
	}
	return mp
}
