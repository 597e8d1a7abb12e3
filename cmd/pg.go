package main

import (
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/areal-labs/overlay-cli/internal/pgfeature"
)

var (
	pgTable string
	pgIn    string
	pgOut   string
	pgAttrs []string
	pgSRID  int
)

var pgCmd = &cobra.Command{
	Use:   "pg",
	Short: "Move layers between files and PostGIS",
}

var pgPushCmd = &cobra.Command{
	Use:   "push",
	Short: "Load a layer into a PostGIS table",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		layer, err := loadLayer(pgIn)
		if err != nil {
			return err
		}

		pool, err := pgxpool.New(ctx, cfg.Postgis.DatabaseURL)
		if err != nil {
			return eris.Wrap(err, "pg: connect")
		}
		defer pool.Close()

		if err := pgfeature.EnsureTable(ctx, pool, pgTable, cfg.Postgis.GeomColumn, layer.Schema, layer.SRID); err != nil {
			return err
		}
		n, err := pgfeature.Save(ctx, pool, pgTable, cfg.Postgis.GeomColumn, layer)
		if err != nil {
			return err
		}

		zap.L().Info("layer pushed", zap.String("table", pgTable), zap.Int64("rows", n))
		return nil
	},
}

var pgPullCmd = &cobra.Command{
	Use:   "pull",
	Short: "Read a PostGIS table into a layer file",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		pool, err := pgxpool.New(ctx, cfg.Postgis.DatabaseURL)
		if err != nil {
			return eris.Wrap(err, "pg: connect")
		}
		defer pool.Close()

		srid := pgSRID
		if srid == 0 {
			srid = cfg.Overlay.DefaultSRID
		}

		layer, err := pgfeature.Load(ctx, pool, pgTable, cfg.Postgis.GeomColumn, pgAttrs, srid)
		if err != nil {
			return err
		}
		if err := saveLayer(pgOut, layer); err != nil {
			return err
		}

		zap.L().Info("layer pulled", zap.String("table", pgTable), zap.Int("features", layer.Len()))
		return nil
	},
}

func init() {
	pgPushCmd.Flags().StringVar(&pgIn, "in", "", "layer to push (.geojson or .shp)")
	pgPushCmd.Flags().StringVar(&pgTable, "table", "", "target table name")
	pgPushCmd.MarkFlagRequired("in")
	pgPushCmd.MarkFlagRequired("table")

	pgPullCmd.Flags().StringVar(&pgTable, "table", "", "source table name")
	pgPullCmd.Flags().StringSliceVar(&pgAttrs, "attrs", nil, "attribute columns to read")
	pgPullCmd.Flags().StringVar(&pgOut, "out", "", "output layer path (.geojson)")
	pgPullCmd.Flags().IntVar(&pgSRID, "srid", 0, "SRID to stamp on the pulled layer (default from config)")
	pgPullCmd.MarkFlagRequired("table")
	pgPullCmd.MarkFlagRequired("out")

	pgCmd.AddCommand(pgPushCmd)
	pgCmd.AddCommand(pgPullCmd)
	rootCmd.AddCommand(pgCmd)
}
