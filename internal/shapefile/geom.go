package shapefile

import (
	"github.com/jonas-p/go-shp"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/xy"
	"go.uber.org/zap"

	"github.com/sells-group/fovcover/internal/geometry"
)

// polygonToMultiPolygon converts a shapefile Polygon to a geom.MultiPolygon,
// projecting every vertex. Clockwise rings start a new polygon and
// counter-clockwise rings become holes of the polygon containing them, or
// polygons of their own when no shell contains them. Shells come out
// counter-clockwise and holes clockwise, so go-geom areas are positive.
func polygonToMultiPolygon(p *shp.Polygon, proj geometry.Projector) *geom.MultiPolygon {
	mp := geom.NewMultiPolygon(geom.XY).SetSRID(proj.SRID())
	if p == nil || p.NumParts == 0 || len(p.Points) == 0 {
		return mp
	}

	var polys []*geom.Polygon
	var holes []*geom.LinearRing
	for i := int32(0); i < p.NumParts; i++ {
		start := p.Parts[i]
		end := int32(len(p.Points))
		if i+1 < p.NumParts {
			end = p.Parts[i+1]
		}
		if start < 0 || end > int32(len(p.Points)) || end-start < 4 {
			zap.L().Debug("shapefile: skipping degenerate ring", zap.Int32("part", i))
			continue
		}

		flat := make([]float64, 0, 2*(end-start))
		for j := start; j < end; j++ {
			x, y := proj.Project(p.Points[j].X, p.Points[j].Y)
			flat = append(flat, x, y)
		}
		ring := geom.NewLinearRingFlat(geom.XY, flat)

		if xy.IsRingCounterClockwise(geom.XY, flat) && len(polys) > 0 {
			holes = append(holes, ring)
			continue
		}
		poly := geom.NewPolygon(geom.XY)
		if err := poly.Push(orient(ring, true)); err != nil {
			zap.L().Debug("shapefile: skipping malformed ring", zap.Int32("part", i), zap.Error(err))
			continue
		}
		polys = append(polys, poly)
	}

	shells := len(polys)
	for _, h := range holes {
		var owner *geom.Polygon
		first := geom.Coord(h.FlatCoords()[:2])
		for _, poly := range polys[:shells] {
			if xy.IsPointInRing(geom.XY, first, poly.LinearRing(0).FlatCoords()) {
				owner = poly
				break
			}
		}
		if owner == nil {
			// Counter-clockwise shell from a writer that ignores winding.
			owner = geom.NewPolygon(geom.XY)
			if err := owner.Push(orient(h, true)); err != nil {
				zap.L().Debug("shapefile: skipping malformed ring", zap.Error(err))
				continue
			}
			polys = append(polys, owner)
			continue
		}
		if err := owner.Push(orient(h, false)); err != nil {
			zap.L().Debug("shapefile: skipping malformed ring", zap.Error(err))
		}
	}

	for _, poly := range polys {
		if err := mp.Push(poly); err != nil {
			zap.L().Debug("shapefile: skipping malformed polygon", zap.Error(err))
		}
	}
	return mp
}

// orient reverses ring in place unless it already winds the requested way.
func orient(ring *geom.LinearRing, ccw bool) *geom.LinearRing {
	if xy.IsRingCounterClockwise(geom.XY, ring.FlatCoords()) != ccw {
		ring.Reverse()
	}
	return ring
}

// multiPolygonToShape converts a geom.MultiPolygon to a shapefile Polygon
// with clockwise shells and counter-clockwise holes.
func multiPolygonToShape(mp *geom.MultiPolygon) *shp.Polygon {
	var parts [][]shp.Point
	for i := 0; i < mp.NumPolygons(); i++ {
		poly := mp.Polygon(i)
		for j := 0; j < poly.NumLinearRings(); j++ {
			flat := poly.LinearRing(j).FlatCoords()
			if len(flat) < 8 {
				continue
			}
			ccw := xy.IsRingCounterClockwise(geom.XY, flat)
			// Shells must wind clockwise, holes counter-clockwise.
			reverse := (j == 0) == ccw
			parts = append(parts, toPoints(flat, reverse))
		}
	}
	p := shp.Polygon(*shp.NewPolyLine(parts))
	return &p
}

func toPoints(flat []float64, reverse bool) []shp.Point {
	n := len(flat) / 2
	pts := make([]shp.Point, n)
	for k := 0; k < n; k++ {
		src := k
		if reverse {
			src = n - 1 - k
		}
		pts[k] = shp.Point{X: flat[2*src], Y: flat[2*src+1]}
	}
	return pts
}
