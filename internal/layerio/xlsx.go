package layerio

import (
	"fmt"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"

	"github.com/areal-labs/overlay-cli/internal/feature"
	"github.com/areal-labs/overlay-cli/internal/overlay"
)

// WriteXLSX exports the collection's attribute table to an XLSX workbook:
// one row per feature, columns in schema order, followed by bounding box
// and area columns summarizing the geometry.
func WriteXLSX(path string, c *feature.Collection) error {
	file := xlsx.NewFile()
	sheet, err := file.AddSheet("features")
	if err != nil {
		return eris.Wrap(err, "layerio: add xlsx sheet")
	}

	header := sheet.AddRow()
	for _, f := range c.Schema {
		header.AddCell().Value = f.Name
	}
	for _, name := range []string{"min_x", "min_y", "max_x", "max_y", "area"} {
		header.AddCell().Value = name
	}

	for i := range c.Features {
		f := c.Features[i]
		row := sheet.AddRow()
		for _, field := range c.Schema {
			cell := row.AddCell()
			v, ok := f.Attrs[field.Name]
			if !ok || v == nil {
				continue
			}
			if n, isNum := feature.Float(v); isNum {
				cell.SetFloat(n)
			} else {
				cell.Value = fmt.Sprint(v)
			}
		}

		if f.Geometry == nil {
			for k := 0; k < 5; k++ {
				row.AddCell()
			}
			continue
		}
		b := f.Geometry.Bounds()
		row.AddCell().SetFloat(b.Min(0))
		row.AddCell().SetFloat(b.Min(1))
		row.AddCell().SetFloat(b.Max(0))
		row.AddCell().SetFloat(b.Max(1))

		areaCell := row.AddCell()
		if poly, err := overlay.ToPolygonal(f.Geometry); err == nil {
			areaCell.SetFloat(poly.Area())
		}
	}

	if err := file.Save(path); err != nil {
		return eris.Wrapf(err, "layerio: save xlsx %s", path)
	}
	return nil
}
