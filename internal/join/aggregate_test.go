package join

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/twpayne/go-geom"

	"github.com/areal-labs/overlay-cli/internal/feature"
	"github.com/areal-labs/overlay-cli/internal/overlay"
)

func tractCollection() *feature.Collection {
	c := feature.NewCollection(feature.Schema{
		{Name: "county", Type: feature.TypeString, AGR: feature.AGRConstant},
		{Name: "pop", Type: feature.TypeNumber, AGR: feature.AGRAggregate},
		{Name: "density", Type: feature.TypeNumber, AGR: feature.AGRConstant},
	}, 4326)
	c.Features = []feature.Feature{
		{Geometry: square(0, 0, 1, 1), Attrs: map[string]any{"county": "X", "pop": 100.0, "density": 100.0}},
		{Geometry: square(1, 0, 2, 1), Attrs: map[string]any{"county": "X", "pop": 50.0, "density": 50.0}},
		{Geometry: square(5, 0, 6, 1), Attrs: map[string]any{"county": "Y", "pop": 30.0}},
	}
	return c
}

func TestAggregate(t *testing.T) {
	t.Parallel()

	out, rep, err := Aggregate(overlay.Planar{}, tractCollection(), "county", map[string]Reducer{
		"pop":     ReduceSum,
		"density": ReduceMean,
	})
	require.NoError(t, err)
	require.Len(t, out.Features, 2)
	assert.Empty(t, rep.Failed)

	// groups in first-appearance order
	x := out.Features[0]
	assert.Equal(t, "X", x.Attrs["county"])
	assert.InDelta(t, 150.0, x.Attrs["pop"], 1e-9)
	assert.InDelta(t, 75.0, x.Attrs["density"], 1e-9)

	y := out.Features[1]
	assert.Equal(t, "Y", y.Attrs["county"])
	assert.InDelta(t, 30.0, y.Attrs["pop"], 1e-9)
	// no density value in group Y: missing, not zero
	_, present := y.Attrs["density"]
	assert.False(t, present)
}

func TestAggregateDissolvesGeometry(t *testing.T) {
	t.Parallel()

	out, _, err := Aggregate(overlay.Planar{}, tractCollection(), "county", map[string]Reducer{
		"pop": ReduceSum,
	})
	require.NoError(t, err)

	// the two X tracts share an edge; the dissolved geometry covers both
	poly, err := overlay.ToPolygonal(out.Features[0].Geometry)
	require.NoError(t, err)
	assert.InDelta(t, 2.0, poly.Area(), 1e-9)
}

func TestAggregateSchema(t *testing.T) {
	t.Parallel()

	out, _, err := Aggregate(overlay.Planar{}, tractCollection(), "county", map[string]Reducer{
		"density": ReduceMean,
	})
	require.NoError(t, err)

	// group key keeps its tag, reduced attrs become aggregate, everything
	// else is dropped
	require.Len(t, out.Schema, 2)
	assert.Equal(t, feature.AGRConstant, out.Schema.Field("county").AGR)
	assert.Equal(t, feature.AGRAggregate, out.Schema.Field("density").AGR)
	assert.Nil(t, out.Schema.Field("pop"))
}

func TestAggregateReducers(t *testing.T) {
	t.Parallel()

	c := feature.NewCollection(feature.Schema{
		{Name: "g", Type: feature.TypeString},
		{Name: "v", Type: feature.TypeNumber},
	}, 4326)
	c.Features = []feature.Feature{
		{Geometry: square(0, 0, 1, 1), Attrs: map[string]any{"g": "a", "v": 3.0}},
		{Geometry: square(1, 0, 2, 1), Attrs: map[string]any{"g": "a", "v": 1.0}},
		{Geometry: square(2, 0, 3, 1), Attrs: map[string]any{"g": "a"}},
	}

	cases := map[Reducer]float64{
		ReduceSum:   4,
		ReduceMean:  2,
		ReduceCount: 2,
		ReduceMin:   1,
		ReduceMax:   3,
		ReduceFirst: 3,
	}
	for r, want := range cases {
		t.Run(string(r), func(t *testing.T) {
			t.Parallel()
			out, _, err := Aggregate(overlay.Planar{}, c, "g", map[string]Reducer{"v": r})
			require.NoError(t, err)
			assert.InDelta(t, want, out.Features[0].Attrs["v"], 1e-9)
		})
	}
}

func TestAggregateMissingAttr(t *testing.T) {
	t.Parallel()

	_, _, err := Aggregate(overlay.Planar{}, tractCollection(), "nope", nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, feature.ErrMissingAttribute)

	_, _, err = Aggregate(overlay.Planar{}, tractCollection(), "county", map[string]Reducer{"nope": ReduceSum})
	assert.ErrorIs(t, err, feature.ErrMissingAttribute)
}

func TestParseReducer(t *testing.T) {
	t.Parallel()

	for _, s := range []string{"sum", "mean", "count", "min", "max", "first"} {
		r, err := ParseReducer(s)
		require.NoError(t, err)
		assert.Equal(t, Reducer(s), r)
	}
	_, err := ParseReducer("median")
	assert.Error(t, err)
}

func TestCentroid(t *testing.T) {
	t.Parallel()

	c := feature.NewCollection(feature.Schema{
		{Name: "name", Type: feature.TypeString, AGR: feature.AGRIdentity},
	}, 4326)
	c.Features = []feature.Feature{
		{Geometry: square(0, 0, 2, 2), Attrs: map[string]any{"name": "A"}},
		{Geometry: geom.NewPointFlat(geom.XY, []float64{5, 5}), Attrs: map[string]any{"name": "P"}},
	}

	out, diags, err := Centroid(c)
	require.NoError(t, err)
	require.Len(t, out.Features, 2)

	pt, ok := out.Features[0].Geometry.(*geom.Point)
	require.True(t, ok)
	assert.InDelta(t, 1.0, pt.X(), 1e-9)
	assert.InDelta(t, 1.0, pt.Y(), 1e-9)

	// identity downgrades to constant after geometry reduction
	assert.Equal(t, feature.AGRConstant, out.Schema.Field("name").AGR)
	// original schema untouched
	assert.Equal(t, feature.AGRIdentity, c.Schema.Field("name").AGR)

	// the point passes through unchanged, no diagnostics for it
	for _, d := range diags {
		assert.NotEqual(t, 1, d.Feature)
	}
}

func TestCentroidInvalidGeometry(t *testing.T) {
	t.Parallel()

	c := feature.NewCollection(feature.Schema{{Name: "id", Type: feature.TypeNumber, AGR: feature.AGRConstant}}, 4326)
	c.Features = []feature.Feature{
		{Geometry: geom.NewLineStringFlat(geom.XY, []float64{0, 0, 1, 1}), Attrs: map[string]any{"id": 1.0}},
	}

	out, diags, err := Centroid(c)
	require.NoError(t, err)
	require.Len(t, out.Features, 1)

	found := false
	for _, d := range diags {
		if d.Code == feature.CodeInvalidGeometry && d.Feature == 0 {
			found = true
		}
	}
	assert.True(t, found)
}
