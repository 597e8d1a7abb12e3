package main

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/areal-labs/overlay-cli/internal/feature"
	"github.com/areal-labs/overlay-cli/internal/join"
	"github.com/areal-labs/overlay-cli/internal/overlay"
)

var (
	aggIn      string
	aggBy      string
	aggReduce  []string
	aggOut     string
	aggARGFile string
)

var aggregateCmd = &cobra.Command{
	Use:   "aggregate",
	Short: "Dissolve features by a key attribute and reduce their attributes",
	Long:  "Groups features sharing a key attribute, unions their geometries, and reduces the remaining attributes with the requested reducers (sum, mean, count, min, max, first).",
	RunE: func(cmd *cobra.Command, _ []string) error {
		layer, err := loadLayer(aggIn)
		if err != nil {
			return err
		}
		if err := applyManifest(layer, aggARGFile); err != nil {
			return err
		}

		reducers := make(map[string]join.Reducer, len(aggReduce))
		for _, spec := range aggReduce {
			attr, name, ok := strings.Cut(spec, "=")
			if !ok {
				return eris.Errorf("cmd: --reduce wants attr=op, got %q", spec)
			}
			red, err := join.ParseReducer(name)
			if err != nil {
				return err
			}
			reducers[attr] = red
		}

		out, report, err := join.Aggregate(overlay.Planar{}, layer, aggBy, reducers)
		if report != nil {
			feature.LogDiagnostics("aggregate", report.Diagnostics)
		}
		if err != nil {
			return eris.Wrap(err, "aggregate")
		}

		if err := saveLayer(aggOut, out); err != nil {
			return err
		}
		zap.L().Info("aggregate complete",
			zap.Int("groups", out.Len()),
			zap.String("by", aggBy),
			zap.String("out", aggOut),
		)
		return nil
	},
}

func init() {
	aggregateCmd.Flags().StringVar(&aggIn, "in", "", "input layer (.geojson or .shp)")
	aggregateCmd.Flags().StringVar(&aggBy, "by", "", "attribute to group by")
	aggregateCmd.Flags().StringArrayVar(&aggReduce, "reduce", nil, "reduction as attr=op; repeatable")
	aggregateCmd.Flags().StringVar(&aggARGFile, "agr", "", "AGR manifest for the input layer (yaml)")
	aggregateCmd.Flags().StringVar(&aggOut, "out", "", "output layer path (.geojson)")
	aggregateCmd.MarkFlagRequired("in")
	aggregateCmd.MarkFlagRequired("by")
	aggregateCmd.MarkFlagRequired("out")
	rootCmd.AddCommand(aggregateCmd)
}
