// Package pgfeature loads and saves feature collections from PostGIS tables.
package pgfeature

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/ewkb"
	"github.com/twpayne/go-geom/encoding/wkb"

	"github.com/areal-labs/overlay-cli/internal/feature"
)

// Pool is the subset of pgxpool.Pool used by this package. pgxmock
// satisfies it in tests.
type Pool interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	CopyFrom(ctx context.Context, tableName pgx.Identifier, columnNames []string, rowSrc pgx.CopyFromSource) (int64, error)
}

// identPattern matches identifiers that are safe to interpolate into SQL.
// Table and column names from user input must pass this before use.
var identPattern = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

func validateIdent(name string) error {
	if !identPattern.MatchString(name) {
		return eris.Errorf("pgfeature: invalid identifier %q", name)
	}
	return nil
}

func validateIdents(names ...string) error {
	for _, n := range names {
		if err := validateIdent(n); err != nil {
			return err
		}
	}
	return nil
}

// EnsureTable creates the target table if it does not exist, with a geometry
// column and one column per schema field.
func EnsureTable(ctx context.Context, pool Pool, table, geomCol string, schema feature.Schema, srid int) error {
	if err := validateIdents(table, geomCol); err != nil {
		return err
	}
	cols := []string{
		"fid INTEGER PRIMARY KEY",
		fmt.Sprintf("%s geometry(Geometry, %d)", geomCol, srid),
	}
	for _, f := range schema {
		if err := validateIdent(f.Name); err != nil {
			return err
		}
		cols = append(cols, fmt.Sprintf("%s %s", f.Name, sqlType(f.Type)))
	}
	sql := fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (%s)", table, strings.Join(cols, ", "))
	if _, err := pool.Exec(ctx, sql); err != nil {
		return eris.Wrapf(err, "pgfeature: create table %s", table)
	}
	return nil
}

func sqlType(t feature.FieldType) string {
	switch t {
	case feature.TypeNumber:
		return "DOUBLE PRECISION"
	case feature.TypeBool:
		return "BOOLEAN"
	default:
		return "TEXT"
	}
}

// Save bulk-inserts a collection into a PostGIS table using the COPY
// protocol. Geometries are sent as EWKB, which the geometry type accepts
// natively over binary COPY.
func Save(ctx context.Context, pool Pool, table, geomCol string, coll *feature.Collection) (int64, error) {
	if err := validateIdents(table, geomCol); err != nil {
		return 0, err
	}
	columns := []string{"fid", geomCol}
	for _, f := range coll.Schema {
		if err := validateIdent(f.Name); err != nil {
			return 0, err
		}
		columns = append(columns, f.Name)
	}

	rows := make([][]any, 0, len(coll.Features))
	for i, f := range coll.Features {
		row := make([]any, 0, len(columns))
		row = append(row, i)

		if f.Geometry == nil {
			row = append(row, nil)
		} else {
			g := setSRID(f.Geometry, coll.SRID)
			data, err := ewkb.Marshal(g, ewkb.NDR)
			if err != nil {
				return 0, eris.Wrapf(err, "pgfeature: encode geometry %d", i)
			}
			row = append(row, data)
		}

		for _, fld := range coll.Schema {
			v, ok := f.Attrs[fld.Name]
			if !ok {
				row = append(row, nil)
				continue
			}
			row = append(row, v)
		}
		rows = append(rows, row)
	}

	n, err := pool.CopyFrom(ctx, pgx.Identifier{table}, columns, pgx.CopyFromRows(rows))
	if err != nil {
		return 0, eris.Wrapf(err, "pgfeature: COPY INTO %s", table)
	}
	return n, nil
}

// Load reads a feature collection from a PostGIS table. Geometry comes back
// through ST_AsBinary; attribute types are inferred from the scanned values.
func Load(ctx context.Context, pool Pool, table, geomCol string, attrCols []string, srid int) (*feature.Collection, error) {
	if err := validateIdents(table, geomCol); err != nil {
		return nil, err
	}
	sel := []string{fmt.Sprintf("ST_AsBinary(%s)", geomCol)}
	for _, c := range attrCols {
		if err := validateIdent(c); err != nil {
			return nil, err
		}
		sel = append(sel, c)
	}
	sql := fmt.Sprintf("SELECT %s FROM %s ORDER BY fid", strings.Join(sel, ", "), table)

	rows, err := pool.Query(ctx, sql)
	if err != nil {
		return nil, eris.Wrapf(err, "pgfeature: query %s", table)
	}
	defer rows.Close()

	var features []feature.Feature
	for rows.Next() {
		var data []byte
		dest := make([]any, 0, len(attrCols)+1)
		dest = append(dest, &data)
		vals := make([]any, len(attrCols))
		for i := range vals {
			dest = append(dest, &vals[i])
		}
		if err := rows.Scan(dest...); err != nil {
			return nil, eris.Wrapf(err, "pgfeature: scan row from %s", table)
		}

		var g geom.T
		if len(data) > 0 {
			g, err = wkb.Unmarshal(data)
			if err != nil {
				return nil, eris.Wrapf(err, "pgfeature: decode geometry from %s", table)
			}
		}

		attrs := make(map[string]any, len(attrCols))
		for i, c := range attrCols {
			if vals[i] != nil {
				attrs[c] = vals[i]
			}
		}
		features = append(features, feature.Feature{Geometry: g, Attrs: attrs})
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrapf(err, "pgfeature: iterate %s", table)
	}

	coll := feature.NewCollection(feature.InferSchema(features), srid)
	coll.Features = features
	return coll, nil
}

func setSRID(g geom.T, srid int) geom.T {
	switch t := g.(type) {
	case *geom.Point:
		return t.SetSRID(srid)
	case *geom.MultiPoint:
		return t.SetSRID(srid)
	case *geom.LineString:
		return t.SetSRID(srid)
	case *geom.MultiLineString:
		return t.SetSRID(srid)
	case *geom.Polygon:
		return t.SetSRID(srid)
	case *geom.MultiPolygon:
		return t.SetSRID(srid)
	default:
		return g
	}
}
