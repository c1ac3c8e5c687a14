package geometry

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/twpayne/go-geom"
)

func square(x0, y0, size float64) *geom.MultiPolygon {
	return rect(x0, y0, x0+size, y0+size)
}

func rect(x0, y0, x1, y1 float64) *geom.MultiPolygon {
	p := geom.NewPolygonFlat(geom.XY, []float64{
		x0, y0, x1, y0, x1, y1, x0, y1, x0, y0,
	}, []int{10})
	return Multi(p.SetSRID(SRIDNYLongIslandFtUS))
}

func TestBuffer_AreaApproximatesDisc(t *testing.T) {
	o := NewOverlay(DefaultQuadSegments)
	buf := o.Buffer(NewPoint(1000, 2000, SRIDNYLongIslandFtUS), 4)

	assert.Equal(t, SRIDNYLongIslandFtUS, buf.SRID())
	assert.Equal(t, 65, buf.NumCoords())

	area := o.Area(Multi(buf))
	want := math.Pi * 16
	assert.InEpsilon(t, want, area, 0.005)
	assert.Less(t, area, want)
}

func TestBuffer_RingClosedAroundCenter(t *testing.T) {
	o := NewOverlay(4)
	buf := o.Buffer(NewPoint(10, 20, 0), 2)

	coords := buf.LinearRing(0).Coords()
	require.Len(t, coords, 17)
	assert.Equal(t, coords[0], coords[len(coords)-1])
	for _, c := range coords {
		assert.InDelta(t, 2.0, math.Hypot(c.X()-10, c.Y()-20), 1e-9)
	}
}

func TestNewOverlay_DefaultSegments(t *testing.T) {
	o := NewOverlay(0)
	buf := o.Buffer(NewPoint(0, 0, 0), 1)
	assert.Equal(t, 4*DefaultQuadSegments+1, buf.NumCoords())
}

func TestDifference_CornerRemoved(t *testing.T) {
	o := NewOverlay(0)
	got, err := o.Difference(square(0, 0, 10), square(5, 5, 10))
	require.NoError(t, err)
	assert.InDelta(t, 75.0, o.Area(got), 1e-6)
	assert.Equal(t, SRIDNYLongIslandFtUS, got.SRID())
}

func TestDifference_FullyCovered(t *testing.T) {
	o := NewOverlay(0)
	got, err := o.Difference(square(2, 2, 2), square(0, 0, 10))
	require.NoError(t, err)
	assert.True(t, got.Empty())
	assert.Zero(t, o.Area(got))
}

func TestDifference_SplitsIntoParts(t *testing.T) {
	o := NewOverlay(0)
	got, err := o.Difference(rect(0, 0, 10, 2), rect(4, -1, 6, 3))
	require.NoError(t, err)
	assert.Equal(t, 2, got.NumPolygons())
	assert.InDelta(t, 16.0, o.Area(got), 1e-6)
}

func TestDifference_EmptyOperands(t *testing.T) {
	o := NewOverlay(0)
	empty := geom.NewMultiPolygon(geom.XY)

	got, err := o.Difference(square(0, 0, 3), empty)
	require.NoError(t, err)
	assert.InDelta(t, 9.0, o.Area(got), 1e-9)

	got, err = o.Difference(empty, square(0, 0, 3))
	require.NoError(t, err)
	assert.True(t, got.Empty())
}

func TestIntersection_Overlap(t *testing.T) {
	o := NewOverlay(0)
	got, err := o.Intersection(square(0, 0, 10), square(5, 5, 10))
	require.NoError(t, err)
	assert.InDelta(t, 25.0, o.Area(got), 1e-6)
}

func TestIntersection_Disjoint(t *testing.T) {
	o := NewOverlay(0)
	got, err := o.Intersection(square(0, 0, 1), square(5, 5, 1))
	require.NoError(t, err)
	assert.True(t, got.Empty())
}

func TestIntersection_TouchingEdgeHasNoArea(t *testing.T) {
	o := NewOverlay(0)
	got, err := o.Intersection(square(0, 0, 1), square(1, 0, 1))
	require.NoError(t, err)
	assert.Zero(t, o.Area(got))
}

func TestArea_Nil(t *testing.T) {
	assert.Zero(t, NewOverlay(0).Area(nil))
}

func TestIndex_Search(t *testing.T) {
	idx := NewIndex([]*geom.MultiPolygon{
		square(0, 0, 1),
		nil,
		square(10, 10, 1),
		square(0.5, 0.5, 1),
	})
	assert.Equal(t, 3, idx.Len())

	assert.Equal(t, []int{0, 3}, idx.Search(square(0.2, 0.2, 0.5)))
	assert.Equal(t, []int{2}, idx.Search(square(9, 9, 2)))
	assert.Empty(t, idx.Search(square(50, 50, 1)))
	assert.Empty(t, idx.Search(nil))
}

func TestIndex_Empty(t *testing.T) {
	idx := NewIndex(nil)
	assert.Zero(t, idx.Len())
	assert.Empty(t, idx.Search(square(0, 0, 1)))
}
