package geometry

import (
	"sort"

	"github.com/tidwall/rtree"
	"github.com/twpayne/go-geom"
)

// Index is a bounding-box R-tree over polygons, used to prefilter overlay
// candidates.
type Index struct {
	tree rtree.RTree
	size int
}

// NewIndex indexes the given polygons by position. Nil and empty polygons
// are skipped.
func NewIndex(polys []*geom.MultiPolygon) *Index {
	idx := &Index{}
	for i, p := range polys {
		idx.Insert(i, p)
	}
	return idx
}

// Insert adds a polygon under the given id.
func (x *Index) Insert(id int, p *geom.MultiPolygon) {
	if p == nil || p.Empty() {
		return
	}
	lo, hi := bounds(p)
	x.tree.Insert(lo, hi, id)
	x.size++
}

// Len returns the number of indexed polygons.
func (x *Index) Len() int { return x.size }

// Search returns the ids whose bounding boxes overlap p's, in ascending order.
func (x *Index) Search(p *geom.MultiPolygon) []int {
	if p == nil || p.Empty() || x.size == 0 {
		return nil
	}
	lo, hi := bounds(p)
	var ids []int
	x.tree.Search(lo, hi, func(_, _ [2]float64, v interface{}) bool {
		ids = append(ids, v.(int))
		return true
	})
	sort.Ints(ids)
	return ids
}

func bounds(p geom.T) (lo, hi [2]float64) {
	b := p.Bounds()
	return [2]float64{b.Min(0), b.Min(1)}, [2]float64{b.Max(0), b.Max(1)}
}
