// Package layerio reads and writes feature collections: GeoJSON and
// shapefile sources, AGR manifest sidecars, and XLSX attribute-table
// export.
package layerio

import (
	"encoding/json"
	"io"
	"os"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom/encoding/geojson"

	"github.com/areal-labs/overlay-cli/internal/feature"
)

// DefaultSRID is assumed for GeoJSON per RFC 7946 (WGS 84).
const DefaultSRID = 4326

// ReadGeoJSON loads a feature collection from a GeoJSON file. The schema is
// inferred from the properties; AGR tags start unspecified and can be
// applied from a manifest afterwards.
func ReadGeoJSON(path string) (*feature.Collection, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, eris.Wrapf(err, "layerio: open %s", path)
	}
	defer f.Close()
	c, err := DecodeGeoJSON(f)
	if err != nil {
		return nil, eris.Wrapf(err, "layerio: decode %s", path)
	}
	return c, nil
}

// DecodeGeoJSON decodes a GeoJSON feature collection from a reader.
func DecodeGeoJSON(r io.Reader) (*feature.Collection, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, eris.Wrap(err, "layerio: read")
	}
	var fc geojson.FeatureCollection
	if err := json.Unmarshal(data, &fc); err != nil {
		return nil, eris.Wrap(err, "layerio: unmarshal feature collection")
	}

	features := make([]feature.Feature, 0, len(fc.Features))
	for _, gf := range fc.Features {
		attrs := gf.Properties
		if attrs == nil {
			attrs = map[string]any{}
		}
		features = append(features, feature.Feature{Geometry: gf.Geometry, Attrs: attrs})
	}

	return &feature.Collection{
		SRID:     DefaultSRID,
		Schema:   feature.InferSchema(features),
		Features: features,
	}, nil
}

// WriteGeoJSON writes a collection to a GeoJSON file.
func WriteGeoJSON(path string, c *feature.Collection) error {
	f, err := os.Create(path)
	if err != nil {
		return eris.Wrapf(err, "layerio: create %s", path)
	}
	defer f.Close()
	if err := EncodeGeoJSON(f, c); err != nil {
		return eris.Wrapf(err, "layerio: encode %s", path)
	}
	return nil
}

// EncodeGeoJSON encodes a collection as GeoJSON. Properties follow the
// collection's schema; attributes outside the schema are not emitted.
func EncodeGeoJSON(w io.Writer, c *feature.Collection) error {
	fc := geojson.FeatureCollection{Features: make([]*geojson.Feature, 0, len(c.Features))}
	for i := range c.Features {
		f := c.Features[i]
		props := make(map[string]any, len(c.Schema))
		for _, field := range c.Schema {
			if v, ok := f.Attrs[field.Name]; ok {
				props[field.Name] = v
			}
		}
		fc.Features = append(fc.Features, &geojson.Feature{
			Geometry:   f.Geometry,
			Properties: props,
		})
	}
	enc := json.NewEncoder(w)
	if err := enc.Encode(&fc); err != nil {
		return eris.Wrap(err, "layerio: marshal feature collection")
	}
	return nil
}
