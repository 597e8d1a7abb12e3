package main

import (
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/areal-labs/overlay-cli/internal/feature"
	"github.com/areal-labs/overlay-cli/internal/join"
	"github.com/areal-labs/overlay-cli/internal/overlay"
)

var (
	joinLeft      string
	joinRight     string
	joinPredicate string
	joinDistance  float64
	joinLargest   bool
	joinInner     bool
	joinOut       string
)

var joinCmd = &cobra.Command{
	Use:   "join",
	Short: "Attach attributes from one polygon layer to another by spatial predicate",
	RunE: func(cmd *cobra.Command, _ []string) error {
		left, err := loadLayer(joinLeft)
		if err != nil {
			return err
		}
		right, err := loadLayer(joinRight)
		if err != nil {
			return err
		}

		pred, err := join.ParsePredicate(joinPredicate)
		if err != nil {
			return err
		}

		out, report, err := join.Join(overlay.Planar{}, left, right, pred, join.Options{
			Largest:  joinLargest,
			Inner:    joinInner,
			Distance: joinDistance,
		})
		if report != nil {
			feature.LogDiagnostics("join", report.Diagnostics)
		}
		if err != nil {
			return eris.Wrap(err, "join")
		}

		if err := saveLayer(joinOut, out); err != nil {
			return err
		}
		zap.L().Info("join complete",
			zap.Int("features", out.Len()),
			zap.String("predicate", joinPredicate),
			zap.String("out", joinOut),
		)
		return nil
	},
}

func init() {
	joinCmd.Flags().StringVar(&joinLeft, "left", "", "left layer, kept in full (.geojson or .shp)")
	joinCmd.Flags().StringVar(&joinRight, "right", "", "right layer whose attributes are attached")
	joinCmd.Flags().StringVar(&joinPredicate, "predicate", "intersects", "spatial predicate: intersects, contains, within, withindistance")
	joinCmd.Flags().Float64Var(&joinDistance, "distance", 0, "distance for the withindistance predicate, in layer units")
	joinCmd.Flags().BoolVar(&joinLargest, "largest", false, "keep only the right match with the largest overlap")
	joinCmd.Flags().BoolVar(&joinInner, "inner", false, "drop left features with no match")
	joinCmd.Flags().StringVar(&joinOut, "out", "", "output layer path (.geojson)")
	joinCmd.MarkFlagRequired("left")
	joinCmd.MarkFlagRequired("right")
	joinCmd.MarkFlagRequired("out")
	rootCmd.AddCommand(joinCmd)
}
