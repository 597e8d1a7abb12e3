package main

import (
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/areal-labs/overlay-cli/internal/feature"
	"github.com/areal-labs/overlay-cli/internal/join"
)

var (
	centroidIn  string
	centroidOut string
)

var centroidCmd = &cobra.Command{
	Use:   "centroid",
	Short: "Reduce polygon features to their centroids",
	RunE: func(cmd *cobra.Command, _ []string) error {
		layer, err := loadLayer(centroidIn)
		if err != nil {
			return err
		}

		out, diags, err := join.Centroid(layer)
		feature.LogDiagnostics("centroid", diags)
		if err != nil {
			return eris.Wrap(err, "centroid")
		}

		if err := saveLayer(centroidOut, out); err != nil {
			return err
		}
		zap.L().Info("centroid complete", zap.Int("features", out.Len()), zap.String("out", centroidOut))
		return nil
	},
}

func init() {
	centroidCmd.Flags().StringVar(&centroidIn, "in", "", "input layer (.geojson or .shp)")
	centroidCmd.Flags().StringVar(&centroidOut, "out", "", "output layer path (.geojson)")
	centroidCmd.MarkFlagRequired("in")
	centroidCmd.MarkFlagRequired("out")
	rootCmd.AddCommand(centroidCmd)
}
