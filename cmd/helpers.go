package main

import (
	"bytes"
	"context"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/areal-labs/overlay-cli/internal/feature"
	"github.com/areal-labs/overlay-cli/internal/layerio"
	"github.com/areal-labs/overlay-cli/internal/store"
)

// loadLayer reads a polygon layer, dispatching on file extension.
func loadLayer(path string) (*feature.Collection, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".geojson", ".json":
		return layerio.ReadGeoJSON(path)
	case ".shp":
		return layerio.ReadShapefile(path, cfg.Overlay.DefaultSRID)
	default:
		return nil, eris.Errorf("cmd: unsupported layer format %q", filepath.Ext(path))
	}
}

// saveLayer writes a layer as GeoJSON.
func saveLayer(path string, c *feature.Collection) error {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".geojson", ".json":
		return layerio.WriteGeoJSON(path, c)
	default:
		return eris.Errorf("cmd: unsupported output format %q", filepath.Ext(path))
	}
}

// applyManifest tags a layer's schema from an AGR manifest file, when given.
func applyManifest(c *feature.Collection, path string) error {
	if path == "" {
		return nil
	}
	m, err := layerio.ReadAGRManifest(path)
	if err != nil {
		return err
	}
	return m.Apply(c)
}

func initStore(ctx context.Context) (*store.SQLiteStore, error) {
	st, err := store.NewSQLite(cfg.Store.Path)
	if err != nil {
		return nil, err
	}
	if err := st.Migrate(ctx); err != nil {
		st.Close()
		return nil, err
	}
	return st, nil
}

// recordResult persists a finished or failed run when recording is enabled.
func recordResult(ctx context.Context, st store.Store, id string, out *feature.Collection, diags []feature.Diagnostic, opErr error) {
	if st == nil || id == "" {
		return
	}
	if opErr != nil {
		if err := st.FailRun(ctx, id, opErr.Error()); err != nil {
			zap.L().Warn("fail run", zap.String("run", id), zap.Error(err))
		}
		return
	}
	var buf bytes.Buffer
	if err := layerio.EncodeGeoJSON(&buf, out); err != nil {
		zap.L().Warn("encode run result", zap.String("run", id), zap.Error(err))
		return
	}
	if err := st.FinishRun(ctx, id, out.Len(), buf.Bytes(), diags); err != nil {
		zap.L().Warn("finish run", zap.String("run", id), zap.Error(err))
	}
}
