package main

import (
	"fmt"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"github.com/twpayne/go-geom"
	"go.uber.org/zap"

	"github.com/areal-labs/overlay-cli/internal/feature"
	"github.com/areal-labs/overlay-cli/internal/layerio"
	"github.com/areal-labs/overlay-cli/internal/overlay"
	"github.com/areal-labs/overlay-cli/internal/store"
)

var (
	interpSource    string
	interpTarget    string
	interpAttrs     []string
	interpExtensive []string
	interpAGR       string
	interpOut       string
	interpXLSX      string
	interpStrict    bool
	interpWorkers   int
	interpRecord    bool
)

var interpolateCmd = &cobra.Command{
	Use:   "interpolate",
	Short: "Transfer attributes between polygon layers by overlap area",
	Long:  "Reads a source and a target polygon layer and transfers the requested attributes onto the target features, weighting by intersection area. Extensive attributes are apportioned; everything else is averaged.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		src, err := loadLayer(interpSource)
		if err != nil {
			return err
		}
		if err := applyManifest(src, interpAGR); err != nil {
			return err
		}
		tgt, err := loadLayer(interpTarget)
		if err != nil {
			return err
		}

		extensive := make(map[string]bool, len(interpExtensive))
		for _, a := range interpExtensive {
			extensive[a] = true
		}
		targets := make([]geom.T, len(tgt.Features))
		for i, f := range tgt.Features {
			targets[i] = f.Geometry
		}

		var st store.Store
		var runID string
		if interpRecord {
			s, err := initStore(ctx)
			if err != nil {
				return err
			}
			defer s.Close() //nolint:errcheck
			st = s
			run, err := s.CreateRun(ctx, "interpolate", map[string]any{
				"source": interpSource, "target": interpTarget,
				"attrs": interpAttrs, "extensive": interpExtensive,
			})
			if err != nil {
				return err
			}
			runID = run.ID
		}

		opts := overlay.Options{
			Extensive:  extensive,
			Strict:     interpStrict || cfg.Overlay.Strict,
			Workers:    interpWorkers,
			TargetSRID: tgt.SRID,
		}
		if opts.Workers == 0 {
			opts.Workers = cfg.Overlay.Workers
		}

		out, report, err := overlay.Interpolate(ctx, overlay.Planar{}, src, targets, interpAttrs, opts)
		if report != nil {
			feature.LogDiagnostics("interpolate", report.Diagnostics)
		}
		recordResult(ctx, st, runID, out, reportDiags(report), err)
		if err != nil {
			return eris.Wrap(err, "interpolate")
		}

		if err := saveLayer(interpOut, out); err != nil {
			return err
		}
		if interpXLSX != "" {
			if err := layerio.WriteXLSX(interpXLSX, out); err != nil {
				return err
			}
		}

		zap.L().Info("interpolation complete",
			zap.Int("targets", out.Len()),
			zap.Int("failed", len(report.Failed)),
			zap.String("out", interpOut),
		)
		if len(report.Failed) > 0 {
			fmt.Fprintf(os.Stderr, "%d target(s) failed; see diagnostics\n", len(report.Failed))
		}
		return nil
	},
}

func reportDiags(r *overlay.Report) []feature.Diagnostic {
	if r == nil {
		return nil
	}
	return r.Diagnostics
}

func init() {
	interpolateCmd.Flags().StringVar(&interpSource, "source", "", "source layer (.geojson or .shp)")
	interpolateCmd.Flags().StringVar(&interpTarget, "target", "", "target layer (.geojson or .shp)")
	interpolateCmd.Flags().StringSliceVar(&interpAttrs, "attrs", nil, "attributes to transfer")
	interpolateCmd.Flags().StringSliceVar(&interpExtensive, "extensive", nil, "attributes to treat as amounts rather than densities")
	interpolateCmd.Flags().StringVar(&interpAGR, "agr", "", "AGR manifest for the source layer (yaml)")
	interpolateCmd.Flags().StringVar(&interpOut, "out", "", "output layer path (.geojson)")
	interpolateCmd.Flags().StringVar(&interpXLSX, "xlsx", "", "also export the attribute table to this .xlsx file")
	interpolateCmd.Flags().BoolVar(&interpStrict, "strict", false, "abort on the first invalid geometry")
	interpolateCmd.Flags().IntVar(&interpWorkers, "workers", 0, "parallel workers (default GOMAXPROCS)")
	interpolateCmd.Flags().BoolVar(&interpRecord, "store", false, "record this run in the local run store")
	interpolateCmd.MarkFlagRequired("source")
	interpolateCmd.MarkFlagRequired("target")
	interpolateCmd.MarkFlagRequired("attrs")
	interpolateCmd.MarkFlagRequired("out")
	rootCmd.AddCommand(interpolateCmd)
}
