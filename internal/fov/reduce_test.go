package fov

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/twpayne/go-geom"

	"github.com/sells-group/fovcover/internal/geometry"
	"github.com/sells-group/fovcover/internal/model"
)

const srid = geometry.SRIDNYLongIslandFtUS

func rect(x0, y0, x1, y1 float64) *geom.Polygon {
	return geom.NewPolygonFlat(geom.XY, []float64{x0, y0, x1, y0, x1, y1, x0, y1, x0, y0}, []int{10}).SetSRID(srid)
}

func mrect(x0, y0, x1, y1 float64) *geom.MultiPolygon {
	return geometry.Multi(rect(x0, y0, x1, y1))
}

func TestReduce_SubtractsBuildings(t *testing.T) {
	engine := geometry.NewOverlay(0)
	buildings := []model.Building{
		{Index: 0, Geom: mrect(5, 0, 10, 10)},
		{Index: 1, Geom: mrect(100, 100, 110, 110)},
	}
	r := NewReducer(engine, buildings)

	table := model.CoverageTable{
		Columns: []string{"led", "foliage"},
		Records: []model.CoverageRecord{
			{Key: "1", Attrs: map[string]string{"led": "none"}, Buffer: rect(0, 0, 10, 10)},
			{Key: "2", Attrs: map[string]string{"led": "white"}, Buffer: rect(20, 20, 30, 30)},
		},
	}

	res, err := r.Reduce("t1", table)
	require.NoError(t, err)
	require.Len(t, res.Set.FOVs, 2)
	assert.Empty(t, res.Obstructed)
	assert.Equal(t, srid, res.Set.SRID)

	first := res.Set.FOVs[0]
	assert.Equal(t, "t1", first.Trip)
	assert.Equal(t, "1", first.Key)
	assert.InDelta(t, 50.0, engine.Area(first.Geom), 1e-6)
	assert.InDelta(t, 100.0, engine.Area(res.Set.FOVs[1].Geom), 1e-6)

	// foliage holds no value anywhere and is pruned.
	assert.Equal(t, []string{"led"}, res.Set.Columns)
}

func TestReduce_FullyObstructedDropped(t *testing.T) {
	engine := geometry.NewOverlay(0)
	r := NewReducer(engine, []model.Building{{Geom: mrect(-1, -1, 11, 11)}})

	table := model.CoverageTable{
		Columns: []string{"led"},
		Records: []model.CoverageRecord{
			{Key: "1", Attrs: map[string]string{"led": "none"}, Buffer: rect(0, 0, 10, 10)},
			{Key: "2", Attrs: map[string]string{"led": "none"}, Buffer: rect(50, 50, 60, 60)},
			{Key: "3"},
		},
	}

	res, err := r.Reduce("t1", table)
	require.NoError(t, err)
	require.Len(t, res.Set.FOVs, 1)
	assert.Equal(t, "2", res.Set.FOVs[0].Key)
	assert.Equal(t, []string{"1", "3"}, res.Obstructed)
}

func TestReduce_NoBuildings(t *testing.T) {
	engine := geometry.NewOverlay(0)
	r := NewReducer(engine, nil)

	res, err := r.Reduce("t1", model.CoverageTable{
		Records: []model.CoverageRecord{{Key: "1", Buffer: rect(0, 0, 2, 2)}},
	})
	require.NoError(t, err)
	require.Len(t, res.Set.FOVs, 1)
	assert.InDelta(t, 4.0, engine.Area(res.Set.FOVs[0].Geom), 1e-9)
	assert.Empty(t, res.Set.Columns)
}

func TestAccumulator(t *testing.T) {
	var acc Accumulator

	require.NoError(t, acc.Add(model.FOVSet{}))
	require.NoError(t, acc.Add(model.FOVSet{
		SRID:    srid,
		Columns: []string{"led", "well_lit"},
		FOVs:    []model.FOV{{Trip: "t1", Key: "1"}},
	}))
	require.NoError(t, acc.Add(model.FOVSet{
		SRID:    srid,
		Columns: []string{"well_lit", "foliage"},
		FOVs:    []model.FOV{{Trip: "t2", Key: "1"}, {Trip: "t2", Key: "2"}},
	}))

	set := acc.Set()
	assert.Equal(t, srid, set.SRID)
	assert.Equal(t, []string{"led", "well_lit", "foliage"}, set.Columns)
	require.Len(t, set.FOVs, 3)
	assert.Equal(t, "t1", set.FOVs[0].Trip)
	assert.Equal(t, "2", set.FOVs[2].Key)

	err := acc.Add(model.FOVSet{SRID: geometry.SRIDWGS84, FOVs: []model.FOV{{Key: "x"}}})
	assert.Error(t, err)
	assert.Len(t, acc.Set().FOVs, 3)
}
