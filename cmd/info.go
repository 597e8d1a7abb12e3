package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"github.com/twpayne/go-geom"

	"github.com/areal-labs/overlay-cli/internal/feature"
)

var infoIn string

var infoCmd = &cobra.Command{
	Use:   "info",
	Short: "Inspect a layer: feature count, SRID, bounds and schema",
	RunE: func(cmd *cobra.Command, _ []string) error {
		layer, err := loadLayer(infoIn)
		if err != nil {
			return err
		}

		fmt.Printf("layer:    %s\n", infoIn)
		fmt.Printf("features: %d\n", layer.Len())
		fmt.Printf("srid:     %d\n", layer.SRID)

		bounds := geom.NewBounds(geom.XY)
		for _, f := range layer.Features {
			if f.Geometry != nil {
				bounds.Extend(f.Geometry)
			}
		}
		if !bounds.IsEmpty() {
			fmt.Printf("bounds:   [%g %g, %g %g]\n",
				bounds.Min(0), bounds.Min(1), bounds.Max(0), bounds.Max(1))
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "\nATTRIBUTE\tTYPE\tAGR")
		for _, f := range layer.Schema {
			agr := string(f.AGR)
			if agr == "" {
				agr = "unspecified"
			}
			fmt.Fprintf(w, "%s\t%s\t%s\n", f.Name, f.Type, agr)
		}
		w.Flush()

		if diags := feature.CheckGeometryChange("info", layer.Schema); len(diags) > 0 {
			fmt.Fprintf(os.Stderr, "\n%d attribute(s) without an AGR tag; geometry-changing operations will warn\n", len(diags))
		}
		return nil
	},
}

func init() {
	infoCmd.Flags().StringVar(&infoIn, "in", "", "layer to inspect (.geojson or .shp)")
	infoCmd.MarkFlagRequired("in")
	rootCmd.AddCommand(infoCmd)
}
