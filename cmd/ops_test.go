//go:build !integration

package main

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/twpayne/go-geom"

	"github.com/areal-labs/overlay-cli/internal/feature"
	"github.com/areal-labs/overlay-cli/internal/layerio"
)

func writeLayerFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestJoinCommand(t *testing.T) {
	dir, source, _ := testEnv(t)

	right := writeLayerFile(t, dir, "zones.geojson", `{"type":"FeatureCollection","features":[
		{"type":"Feature","geometry":{"type":"Polygon","coordinates":[[[0,0],[5,0],[5,5],[0,5],[0,0]]]},"properties":{"zone":"A"}}
	]}`)

	joinLeft = source
	joinRight = right
	joinPredicate = "intersects"
	joinLargest = false
	joinInner = false
	joinDistance = 0
	joinOut = filepath.Join(dir, "joined.geojson")

	joinCmd.SetContext(context.Background())
	require.NoError(t, joinCmd.RunE(joinCmd, nil))

	out, err := layerio.ReadGeoJSON(joinOut)
	require.NoError(t, err)
	require.Equal(t, 1, out.Len())
	assert.Equal(t, "A", out.Features[0].Attrs["zone"])
}

func TestJoinCommandBadPredicate(t *testing.T) {
	dir, source, _ := testEnv(t)

	joinLeft = source
	joinRight = source
	joinPredicate = "touches"
	joinOut = filepath.Join(dir, "joined.geojson")

	joinCmd.SetContext(context.Background())
	assert.Error(t, joinCmd.RunE(joinCmd, nil))
}

func TestAggregateCommand(t *testing.T) {
	dir, _, _ := testEnv(t)

	layer := writeLayerFile(t, dir, "tracts.geojson", `{"type":"FeatureCollection","features":[
		{"type":"Feature","geometry":{"type":"Polygon","coordinates":[[[0,0],[1,0],[1,1],[0,1],[0,0]]]},"properties":{"county":"X","pop":1}},
		{"type":"Feature","geometry":{"type":"Polygon","coordinates":[[[1,0],[2,0],[2,1],[1,1],[1,0]]]},"properties":{"county":"X","pop":2}}
	]}`)

	aggIn = layer
	aggBy = "county"
	aggReduce = []string{"pop=sum"}
	aggOut = filepath.Join(dir, "counties.geojson")
	aggARGFile = ""

	aggregateCmd.SetContext(context.Background())
	require.NoError(t, aggregateCmd.RunE(aggregateCmd, nil))

	out, err := layerio.ReadGeoJSON(aggOut)
	require.NoError(t, err)
	require.Equal(t, 1, out.Len())
	v, ok := feature.Float(out.Features[0].Attrs["pop"])
	require.True(t, ok)
	assert.InDelta(t, 3.0, v, 1e-9)
}

func TestAggregateCommandBadReduceSpec(t *testing.T) {
	dir, source, _ := testEnv(t)

	aggIn = source
	aggBy = "pop"
	aggReduce = []string{"pop-sum"}
	aggOut = filepath.Join(dir, "out.geojson")

	aggregateCmd.SetContext(context.Background())
	err := aggregateCmd.RunE(aggregateCmd, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "attr=op")
}

func TestCentroidCommand(t *testing.T) {
	dir, source, _ := testEnv(t)

	centroidIn = source
	centroidOut = filepath.Join(dir, "points.geojson")

	centroidCmd.SetContext(context.Background())
	require.NoError(t, centroidCmd.RunE(centroidCmd, nil))

	out, err := layerio.ReadGeoJSON(centroidOut)
	require.NoError(t, err)
	require.Equal(t, 1, out.Len())
	pt, ok := out.Features[0].Geometry.(*geom.Point)
	require.True(t, ok)
	assert.InDelta(t, 1.0, pt.X(), 1e-9)
	assert.InDelta(t, 0.5, pt.Y(), 1e-9)
}

func TestLoadLayerUnsupported(t *testing.T) {
	testEnv(t)

	_, err := loadLayer("layer.csv")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported layer format")
}

func TestSaveLayerUnsupported(t *testing.T) {
	testEnv(t)

	err := saveLayer("out.csv", feature.NewCollection(nil, 4326))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported output format")
}
