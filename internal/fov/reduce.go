// Package fov derives camera fields of view and intersects them with zones.
package fov

import (
	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"go.uber.org/zap"

	"github.com/sells-group/fovcover/internal/geometry"
	"github.com/sells-group/fovcover/internal/model"
)

// Reducer subtracts building footprints from camera buffers.
type Reducer struct {
	engine    geometry.Engine
	buildings []*geom.MultiPolygon
	index     *geometry.Index
}

// NewReducer indexes the obstruction polygons once for every trip of a
// neighborhood.
func NewReducer(engine geometry.Engine, buildings []model.Building) *Reducer {
	polys := make([]*geom.MultiPolygon, len(buildings))
	for i, b := range buildings {
		polys[i] = b.Geom
	}
	return &Reducer{
		engine:    engine,
		buildings: polys,
		index:     geometry.NewIndex(polys),
	}
}

// ReduceResult is a trip's FOV set plus the keys of fully obstructed cameras.
type ReduceResult struct {
	Set        model.FOVSet
	Obstructed []string
}

// Reduce computes buffer minus the union of intersecting buildings for every
// record. Fully obstructed cameras are dropped. Attribute columns without any
// value among the remaining FOVs are pruned from the set's columns.
func (r *Reducer) Reduce(trip string, table model.CoverageTable) (*ReduceResult, error) {
	res := &ReduceResult{}
	srid := 0

	for _, rec := range table.Records {
		if rec.Buffer == nil {
			res.Obstructed = append(res.Obstructed, rec.Key)
			continue
		}
		srid = rec.Buffer.SRID()

		view := geometry.Multi(rec.Buffer)
		for _, i := range r.index.Search(view) {
			var err error
			view, err = r.engine.Difference(view, r.buildings[i])
			if err != nil {
				return nil, eris.Wrapf(err, "fov: subtract building %d from camera %s/%s", i, trip, rec.Key)
			}
			if view.Empty() {
				break
			}
		}
		if view.Empty() {
			res.Obstructed = append(res.Obstructed, rec.Key)
			continue
		}

		res.Set.FOVs = append(res.Set.FOVs, model.FOV{
			Trip:  trip,
			Key:   rec.Key,
			Attrs: rec.Attrs,
			Geom:  view,
		})
	}

	res.Set.SRID = srid
	res.Set.Columns = presentColumns(table.Columns, res.Set.FOVs)

	if len(res.Obstructed) > 0 {
		zap.L().Debug("fov: fully obstructed cameras dropped",
			zap.String("trip", trip),
			zap.Int("obstructed", len(res.Obstructed)),
		)
	}
	return res, nil
}

// presentColumns keeps the columns that hold a value in at least one FOV.
func presentColumns(cols []string, fovs []model.FOV) []string {
	out := make([]string, 0, len(cols))
	for _, c := range cols {
		for i := range fovs {
			if _, ok := fovs[i].Attr(c); ok {
				out = append(out, c)
				break
			}
		}
	}
	return out
}

// Accumulator collects the FOV sets of a neighborhood's trips.
type Accumulator struct {
	set  model.FOVSet
	seen map[string]bool
}

// Add appends a trip's FOVs. All sets must share one reference system.
func (a *Accumulator) Add(set model.FOVSet) error {
	if len(set.FOVs) == 0 {
		return nil
	}
	if a.seen == nil {
		a.seen = make(map[string]bool)
		a.set.SRID = set.SRID
	}
	if set.SRID != a.set.SRID {
		return eris.Errorf("fov: srid mismatch: have %d, adding %d", a.set.SRID, set.SRID)
	}
	for _, c := range set.Columns {
		if !a.seen[c] {
			a.seen[c] = true
			a.set.Columns = append(a.set.Columns, c)
		}
	}
	a.set.FOVs = append(a.set.FOVs, set.FOVs...)
	return nil
}

// Set returns the accumulated FOVs in insertion order.
func (a *Accumulator) Set() *model.FOVSet {
	return &a.set
}
