package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/areal-labs/overlay-cli/internal/config"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "overlay-cli",
	Short: "Area-weighted overlay toolkit for polygon layers",
	Long:  "Transfers attributes between polygon layers by overlap area, runs spatial joins, dissolves, and centroid reductions over GeoJSON, shapefile and PostGIS layers.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		cfg = c

		if err := config.InitLogger(cfg.Log); err != nil {
			return fmt.Errorf("init logger: %w", err)
		}

		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = zap.L().Sync()
	},
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
