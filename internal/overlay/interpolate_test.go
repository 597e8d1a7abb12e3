package overlay

import (
	"context"
	"testing"

	ctgeom "github.com/ctessum/geom"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/twpayne/go-geom"

	"github.com/areal-labs/overlay-cli/internal/feature"
)

// square returns an axis-aligned rectangle as a go-geom polygon.
func square(x0, y0, x1, y1 float64) *geom.Polygon {
	return geom.NewPolygonFlat(geom.XY, []float64{
		x0, y0, x1, y0, x1, y1, x0, y1, x0, y0,
	}, []int{10})
}

func sourceCollection(vals ...struct {
	g *geom.Polygon
	v float64
}) *feature.Collection {
	c := feature.NewCollection(feature.Schema{
		{Name: "val", Type: feature.TypeNumber, AGR: feature.AGRAggregate},
	}, 4326)
	for _, sv := range vals {
		c.Features = append(c.Features, feature.Feature{
			Geometry: sv.g,
			Attrs:    map[string]any{"val": sv.v},
		})
	}
	return c
}

type sv = struct {
	g *geom.Polygon
	v float64
}

func TestInterpolateFullCoverageIdentity(t *testing.T) {
	t.Parallel()

	src := sourceCollection(sv{square(0, 0, 1, 1), 10})
	targets := []geom.T{square(0, 0, 1, 1)}

	for name, ext := range map[string]bool{"extensive": true, "intensive": false} {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			out, rep, err := Interpolate(context.Background(), Planar{}, src, targets, []string{"val"},
				Options{Extensive: map[string]bool{"val": ext}})
			require.NoError(t, err)
			require.Len(t, out.Features, 1)
			assert.Empty(t, rep.Failed)
			assert.InDelta(t, 10.0, out.Features[0].Attrs["val"], 1e-9)
		})
	}
}

func TestInterpolateWorkedExample(t *testing.T) {
	t.Parallel()

	// two unit squares, values 10 and 20; target covers half of each
	src := sourceCollection(
		sv{square(0, 0, 1, 1), 10},
		sv{square(1, 0, 2, 1), 20},
	)
	targets := []geom.T{square(0.5, 0, 1.5, 1)}

	out, _, err := Interpolate(context.Background(), Planar{}, src, targets, []string{"val"},
		Options{Extensive: map[string]bool{"val": true}})
	require.NoError(t, err)
	assert.InDelta(t, 15.0, out.Features[0].Attrs["val"], 1e-9)

	out, _, err = Interpolate(context.Background(), Planar{}, src, targets, []string{"val"},
		Options{Extensive: map[string]bool{"val": false}})
	require.NoError(t, err)
	assert.InDelta(t, 15.0, out.Features[0].Attrs["val"], 1e-9)
}

func TestInterpolateModesDiverge(t *testing.T) {
	t.Parallel()

	// unequal source areas: the second source is twice as large, so the
	// extensive apportioning halves its per-overlap contribution while the
	// intensive average does not care about source size.
	src := sourceCollection(
		sv{square(0, 0, 1, 1), 10}, // area 1
		sv{square(1, 0, 3, 1), 20}, // area 2
	)
	targets := []geom.T{square(0.75, 0, 1.75, 1)} // overlaps 0.25 and 0.75

	out, _, err := Interpolate(context.Background(), Planar{}, src, targets, []string{"val"},
		Options{Extensive: map[string]bool{"val": true}})
	require.NoError(t, err)
	// 10*0.25/1 + 20*0.75/2 = 2.5 + 7.5
	assert.InDelta(t, 10.0, out.Features[0].Attrs["val"], 1e-9)

	out, _, err = Interpolate(context.Background(), Planar{}, src, targets, []string{"val"},
		Options{Extensive: map[string]bool{"val": false}})
	require.NoError(t, err)
	// (10*0.25 + 20*0.75) / (0.25 + 0.75)
	assert.InDelta(t, 17.5, out.Features[0].Attrs["val"], 1e-9)
}

func TestInterpolateExtensiveAdditivity(t *testing.T) {
	t.Parallel()

	src := sourceCollection(sv{square(0, 0, 2, 1), 100})

	whole, _, err := Interpolate(context.Background(), Planar{}, src,
		[]geom.T{square(0, 0, 2, 1)}, []string{"val"},
		Options{Extensive: map[string]bool{"val": true}})
	require.NoError(t, err)

	halves, _, err := Interpolate(context.Background(), Planar{}, src,
		[]geom.T{square(0, 0, 1, 1), square(1, 0, 2, 1)}, []string{"val"},
		Options{Extensive: map[string]bool{"val": true}})
	require.NoError(t, err)

	wv, _ := feature.Float(whole.Features[0].Attrs["val"])
	a, _ := feature.Float(halves.Features[0].Attrs["val"])
	b, _ := feature.Float(halves.Features[1].Attrs["val"])
	assert.InDelta(t, wv, a+b, 1e-9)
	assert.InDelta(t, 50.0, a, 1e-9)
}

func TestInterpolateIntensiveConstantField(t *testing.T) {
	t.Parallel()

	// a constant density over a patchwork of sources must come back
	// unchanged for every target, regardless of overlap fractions
	src := sourceCollection(
		sv{square(0, 0, 1, 2), 7},
		sv{square(1, 0, 2, 2), 7},
		sv{square(2, 0, 4, 2), 7},
	)
	targets := []geom.T{
		square(0.3, 0, 1.1, 1),
		square(0.9, 0.5, 3.5, 1.5),
		square(2, 1, 4, 2),
	}

	out, _, err := Interpolate(context.Background(), Planar{}, src, targets, []string{"val"},
		Options{Extensive: map[string]bool{"val": false}})
	require.NoError(t, err)
	for i := range targets {
		assert.InDelta(t, 7.0, out.Features[i].Attrs["val"], 1e-9, "target %d", i)
	}
}

func TestInterpolateOrderPreservation(t *testing.T) {
	t.Parallel()

	src := sourceCollection(
		sv{square(0, 0, 1, 1), 1},
		sv{square(1, 0, 2, 1), 2},
		sv{square(2, 0, 3, 1), 3},
	)
	targets := []geom.T{square(2, 0, 3, 1), square(0, 0, 1, 1), square(1, 0, 2, 1)}

	out, _, err := Interpolate(context.Background(), Planar{}, src, targets, []string{"val"},
		Options{Extensive: map[string]bool{"val": false}, Workers: 4})
	require.NoError(t, err)

	require.Len(t, out.Features, 3)
	assert.InDelta(t, 3.0, out.Features[0].Attrs["val"], 1e-9)
	assert.InDelta(t, 1.0, out.Features[1].Attrs["val"], 1e-9)
	assert.InDelta(t, 2.0, out.Features[2].Attrs["val"], 1e-9)
	assert.Same(t, targets[0], out.Features[0].Geometry)
}

func TestInterpolateZeroOverlapMissingNotZero(t *testing.T) {
	t.Parallel()

	src := sourceCollection(sv{square(0, 0, 1, 1), 10})
	targets := []geom.T{square(100, 100, 101, 101)}

	for name, ext := range map[string]bool{"extensive": true, "intensive": false} {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			out, rep, err := Interpolate(context.Background(), Planar{}, src, targets, []string{"val"},
				Options{Extensive: map[string]bool{"val": ext}})
			require.NoError(t, err)

			_, present := out.Features[0].Attrs["val"]
			assert.False(t, present, "zero-overlap value must be missing, not zero")

			found := false
			for _, d := range rep.Diagnostics {
				if d.Code == feature.CodeZeroOverlap && d.Feature == 0 {
					found = true
				}
			}
			assert.True(t, found, "expected zero_overlap diagnostic")
		})
	}
}

func TestInterpolateMissingAttributeFailsFast(t *testing.T) {
	t.Parallel()

	src := sourceCollection(sv{square(0, 0, 1, 1), 10})
	_, _, err := Interpolate(context.Background(), Planar{}, src,
		[]geom.T{square(0, 0, 1, 1)}, []string{"income"}, Options{})
	require.Error(t, err)
	assert.ErrorIs(t, err, feature.ErrMissingAttribute)
}

func TestInterpolateNonNumericAttributeRejected(t *testing.T) {
	t.Parallel()

	c := feature.NewCollection(feature.Schema{
		{Name: "name", Type: feature.TypeString, AGR: feature.AGRIdentity},
	}, 4326)
	c.Features = append(c.Features, feature.Feature{
		Geometry: square(0, 0, 1, 1),
		Attrs:    map[string]any{"name": "a"},
	})

	_, _, err := Interpolate(context.Background(), Planar{}, c,
		[]geom.T{square(0, 0, 1, 1)}, []string{"name"}, Options{})
	assert.ErrorIs(t, err, ErrNotNumeric)
}

func TestInterpolateSRIDMismatch(t *testing.T) {
	t.Parallel()

	src := sourceCollection(sv{square(0, 0, 1, 1), 10})
	_, _, err := Interpolate(context.Background(), Planar{}, src,
		[]geom.T{square(0, 0, 1, 1)}, []string{"val"},
		Options{TargetSRID: 3857})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrSRIDMismatch)
}

func TestInterpolateInvalidSourceGeometry(t *testing.T) {
	t.Parallel()

	src := sourceCollection(sv{square(0, 0, 1, 1), 10})
	// a point is not polygonal
	src.Features = append(src.Features, feature.Feature{
		Geometry: geom.NewPointFlat(geom.XY, []float64{0.5, 0.5}),
		Attrs:    map[string]any{"val": 99.0},
	})

	t.Run("lenient skips and diagnoses", func(t *testing.T) {
		t.Parallel()
		out, rep, err := Interpolate(context.Background(), Planar{}, src,
			[]geom.T{square(0, 0, 1, 1)}, []string{"val"}, Options{})
		require.NoError(t, err)
		assert.InDelta(t, 10.0, out.Features[0].Attrs["val"], 1e-9)

		found := false
		for _, d := range rep.Diagnostics {
			if d.Code == feature.CodeInvalidGeometry && d.Feature == 1 {
				found = true
			}
		}
		assert.True(t, found)
	})

	t.Run("strict aborts", func(t *testing.T) {
		t.Parallel()
		_, _, err := Interpolate(context.Background(), Planar{}, src,
			[]geom.T{square(0, 0, 1, 1)}, []string{"val"}, Options{Strict: true})
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrInvalidGeometry)
	})
}

func TestInterpolateInvalidTargetGeometry(t *testing.T) {
	t.Parallel()

	src := sourceCollection(sv{square(0, 0, 1, 1), 10})
	targets := []geom.T{
		geom.NewPointFlat(geom.XY, []float64{0, 0}),
		square(0, 0, 1, 1),
	}

	out, rep, err := Interpolate(context.Background(), Planar{}, src, targets, []string{"val"}, Options{})
	require.NoError(t, err)
	require.Len(t, out.Features, 2)
	assert.Equal(t, []int{0}, rep.Failed)
	assert.Empty(t, out.Features[0].Attrs)
	assert.InDelta(t, 10.0, out.Features[1].Attrs["val"], 1e-9)
}

func TestInterpolateAGRSchema(t *testing.T) {
	t.Parallel()

	c := feature.NewCollection(feature.Schema{
		{Name: "pop", Type: feature.TypeNumber},                             // untagged
		{Name: "code", Type: feature.TypeNumber, AGR: feature.AGRIdentity}, // downgrades
	}, 4326)
	c.Features = append(c.Features, feature.Feature{
		Geometry: square(0, 0, 1, 1),
		Attrs:    map[string]any{"pop": 5.0, "code": 1.0},
	})

	out, rep, err := Interpolate(context.Background(), Planar{}, c,
		[]geom.T{square(0, 0, 1, 1)}, []string{"pop", "code"}, Options{})
	require.NoError(t, err)

	assert.Equal(t, feature.AGRConstant, out.Schema.Field("code").AGR)
	assert.Equal(t, feature.AGRUnspecified, out.Schema.Field("pop").AGR)

	warned := false
	for _, d := range rep.Diagnostics {
		if d.Code == feature.CodeUnresolvedAGR && d.Attr == "pop" {
			warned = true
		}
	}
	assert.True(t, warned, "expected unresolved AGR warning for pop")
}

func TestInterpolateDoesNotMutateSource(t *testing.T) {
	t.Parallel()

	src := sourceCollection(sv{square(0, 0, 1, 1), 10})
	before := src.Clone()

	_, _, err := Interpolate(context.Background(), Planar{}, src,
		[]geom.T{square(0, 0, 1, 1)}, []string{"val"}, Options{})
	require.NoError(t, err)

	assert.Equal(t, before.Schema, src.Schema)
	assert.Equal(t, before.Features[0].Attrs, src.Features[0].Attrs)
}

// degenerateProvider reports a positive overlap even for a zero-area source
// so the extensive divide-by-zero guard can be exercised.
type degenerateProvider struct{ Planar }

func (degenerateProvider) Intersect(a, b ctgeom.Polygonal) ctgeom.Polygonal { return b }
func (degenerateProvider) Area(p ctgeom.Polygonal) float64                  { return 1 }

func TestInterpolateDegenerateSourceArea(t *testing.T) {
	t.Parallel()

	// collinear ring: zero area but structurally a polygon
	degen := geom.NewPolygonFlat(geom.XY, []float64{0, 0, 1, 0, 2, 0, 0, 0}, []int{8})
	src := sourceCollection(sv{degen, 10})

	out, rep, err := Interpolate(context.Background(), degenerateProvider{}, src,
		[]geom.T{square(0, 0, 1, 1)}, []string{"val"},
		Options{Extensive: map[string]bool{"val": true}})
	require.NoError(t, err)

	// the contribution is skipped, not propagated as NaN
	_, present := out.Features[0].Attrs["val"]
	assert.False(t, present)

	found := false
	for _, d := range rep.Diagnostics {
		if d.Code == feature.CodeDegenerateArea && d.Feature == 0 {
			found = true
			assert.Equal(t, feature.SeverityError, d.Severity)
		}
	}
	assert.True(t, found, "expected degenerate_area diagnostic")
}
