package overlay

import (
	"context"
	"fmt"
	"runtime"
	"sync"

	ctgeom "github.com/ctessum/geom"
	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"golang.org/x/sync/errgroup"

	"github.com/areal-labs/overlay-cli/internal/feature"
)

// Options configures an interpolation call.
type Options struct {
	// Extensive flags each requested attribute as amount-like (true) or
	// density-like (false). Attributes absent from the map are intensive.
	Extensive map[string]bool
	// Strict aborts the whole call on the first invalid geometry instead
	// of skipping the feature.
	Strict bool
	// Workers bounds the per-target parallelism. Zero or negative means
	// GOMAXPROCS.
	Workers int
	// TargetSRID, when non-zero, is checked against the source SRID.
	TargetSRID int
}

// Report carries the diagnostics and per-target failures surfaced alongside
// partial results.
type Report struct {
	Diagnostics []feature.Diagnostic `json:"diagnostics,omitempty"`
	// Failed lists target indexes whose geometry could not be processed.
	Failed []int `json:"failed,omitempty"`
}

// Interpolate transfers the requested numeric attributes from the source
// collection onto the target geometries, weighting each source feature's
// contribution by its overlap area with the target.
//
// For an extensive attribute each source value is apportioned by the
// fraction of the source's own area that lies inside the target. For an
// intensive attribute the result is the overlap-area-weighted average of
// the overlapping source values. A target with no overlap gets no value for
// the attribute, never zero.
//
// The output has one feature per target, in target order, carrying exactly
// the requested attributes. The source collection is never mutated.
func Interpolate(ctx context.Context, prov Provider, src *feature.Collection, targets []geom.T, attrs []string, opts Options) (*feature.Collection, *Report, error) {
	if len(attrs) == 0 {
		return nil, nil, eris.New("overlay: no attributes requested")
	}
	subSchema, err := src.Schema.Select(attrs)
	if err != nil {
		return nil, nil, err
	}
	for _, f := range subSchema {
		if f.Type != feature.TypeNumber {
			return nil, nil, eris.Wrapf(ErrNotNumeric, "overlay: attribute %q is %s, interpolation requires numeric attributes", f.Name, f.Type)
		}
	}
	if opts.TargetSRID != 0 && opts.TargetSRID != src.SRID {
		return nil, nil, eris.Wrapf(ErrSRIDMismatch, "overlay: source SRID %d, target SRID %d", src.SRID, opts.TargetSRID)
	}

	rep := &Report{}
	rep.Diagnostics = append(rep.Diagnostics, feature.CheckGeometryChange("interpolate", subSchema)...)

	items, prepDiags, err := prepareSources(src, opts.Strict)
	if err != nil {
		return nil, nil, err
	}
	rep.Diagnostics = append(rep.Diagnostics, prepDiags...)
	index := NewIndex(items)

	workers := opts.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}

	results := make([]feature.Feature, len(targets))
	failed := make([]bool, len(targets))

	var mu sync.Mutex // guards rep.Diagnostics
	report := func(d feature.Diagnostic) {
		mu.Lock()
		rep.Diagnostics = append(rep.Diagnostics, d)
		mu.Unlock()
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)

	for i, tg := range targets {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			tp, convErr := ToPolygonal(tg)
			if convErr != nil {
				if opts.Strict {
					return eris.Wrapf(convErr, "overlay: target %d", i)
				}
				report(feature.Diagnostic{
					Severity: feature.SeverityError,
					Code:     feature.CodeInvalidGeometry,
					Feature:  i,
					Message:  fmt.Sprintf("target %d: %s", i, eris.Cause(convErr)),
				})
				failed[i] = true
				results[i] = feature.Feature{Geometry: tg, Attrs: map[string]any{}}
				return nil
			}
			results[i] = transferOne(prov, index, src, tp, tg, i, attrs, opts.Extensive, report)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}

	for i, f := range failed {
		if f {
			rep.Failed = append(rep.Failed, i)
		}
	}

	out := &feature.Collection{
		SRID:     src.SRID,
		Schema:   feature.DowngradeForSubGeometry(subSchema),
		Features: results,
	}
	return out, rep, nil
}

// prepareSources converts and validates every source geometry, computing
// areas once. Invalid features are diagnosed and skipped unless strict.
func prepareSources(src *feature.Collection, strict bool) ([]*sourceItem, []feature.Diagnostic, error) {
	var items []*sourceItem
	var diags []feature.Diagnostic
	for i := range src.Features {
		poly, err := ToPolygonal(src.Features[i].Geometry)
		if err != nil {
			if strict {
				return nil, nil, eris.Wrapf(err, "overlay: source %d", i)
			}
			diags = append(diags, feature.Diagnostic{
				Severity: feature.SeverityError,
				Code:     feature.CodeInvalidGeometry,
				Feature:  i,
				Message:  fmt.Sprintf("source %d: %s", i, eris.Cause(err)),
			})
			continue
		}
		items = append(items, &sourceItem{idx: i, Polygonal: poly, area: poly.Area()})
	}
	return items, diags, nil
}

// transferOne computes the attribute map for a single target polygon. The
// overlap records it produces are consumed immediately into the running
// sums and discarded.
func transferOne(prov Provider, index *Index, src *feature.Collection, tp ctgeom.Polygonal, tg geom.T, tgIdx int, attrs []string, extensive map[string]bool, report func(feature.Diagnostic)) feature.Feature {
	extSum := make(map[string]float64, len(attrs))
	num := make(map[string]float64, len(attrs))
	den := make(map[string]float64, len(attrs))
	defined := make(map[string]bool, len(attrs))
	anyOverlap := false

	for _, cand := range index.Candidates(tp.Bounds()) {
		isect := prov.Intersect(cand.Polygonal, tp)
		if isect == nil {
			continue
		}
		overlap := prov.Area(isect)
		if overlap == 0 {
			continue
		}
		anyOverlap = true

		for _, a := range attrs {
			v, ok := feature.Float(src.Features[cand.idx].Attrs[a])
			if !ok {
				report(feature.Diagnostic{
					Severity: feature.SeverityWarn,
					Code:     feature.CodeAttributeSkipped,
					Feature:  cand.idx,
					Attr:     a,
					Message:  fmt.Sprintf("source %d has no numeric %q value; pair with target %d skipped", cand.idx, a, tgIdx),
				})
				continue
			}
			if extensive[a] {
				if cand.area == 0 {
					report(feature.Diagnostic{
						Severity: feature.SeverityError,
						Code:     feature.CodeDegenerateArea,
						Feature:  cand.idx,
						Attr:     a,
						Message:  fmt.Sprintf("source %d has zero area; extensive contribution to target %d skipped", cand.idx, tgIdx),
					})
					continue
				}
				extSum[a] += v * overlap / cand.area
				defined[a] = true
			} else {
				num[a] += v * overlap
				den[a] += overlap
				defined[a] = true
			}
		}
	}

	out := make(map[string]any, len(attrs))
	for _, a := range attrs {
		if !defined[a] {
			continue
		}
		if extensive[a] {
			out[a] = extSum[a]
		} else {
			out[a] = num[a] / den[a]
		}
	}

	if !anyOverlap {
		report(feature.Diagnostic{
			Severity: feature.SeverityWarn,
			Code:     feature.CodeZeroOverlap,
			Feature:  tgIdx,
			Message:  fmt.Sprintf("target %d overlaps no source feature; attributes left missing", tgIdx),
		})
	}

	return feature.Feature{Geometry: tg, Attrs: out}
}
