package overlay

import (
	ctgeom "github.com/ctessum/geom"
	"github.com/ctessum/geom/index/rtree"
)

// sourceItem is one prepared source feature: its index in the source
// collection, its polygonal geometry, and its pre-computed area.
type sourceItem struct {
	idx int
	ctgeom.Polygonal
	area float64
}

// Bounds implements rtree.Spatial.
func (s *sourceItem) Bounds() *ctgeom.Bounds {
	return s.Polygonal.Bounds()
}

// Index is an r-tree over prepared source features. It is a performance
// pre-filter only: it may return false positives, never false negatives,
// so exactness of the overlay result does not depend on it.
type Index struct {
	tree *rtree.Rtree
}

// NewIndex builds an index over the given items.
func NewIndex(items []*sourceItem) *Index {
	tree := rtree.NewTree(25, 50)
	for _, it := range items {
		tree.Insert(it)
	}
	return &Index{tree: tree}
}

// Candidates returns every indexed source whose bounding box intersects b.
func (ix *Index) Candidates(b *ctgeom.Bounds) []*sourceItem {
	hits := ix.tree.SearchIntersect(b)
	out := make([]*sourceItem, len(hits))
	for i, h := range hits {
		out[i] = h.(*sourceItem)
	}
	return out
}
