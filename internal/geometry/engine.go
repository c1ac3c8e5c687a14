package geometry

import (
	"math"

	sf "github.com/peterstace/simplefeatures/geom"
	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/wkb"
)

// DefaultQuadSegments is the number of segments per quarter circle used to
// approximate buffers.
const DefaultQuadSegments = 16

// Engine is the geometry capability the coverage pipeline depends on.
type Engine interface {
	Buffer(p *geom.Point, radius float64) *geom.Polygon
	Difference(a, b *geom.MultiPolygon) (*geom.MultiPolygon, error)
	Intersection(a, b *geom.MultiPolygon) (*geom.MultiPolygon, error)
	Area(mp *geom.MultiPolygon) float64
}

// Overlay implements Engine on go-geom geometries, delegating polygon set
// operations to simplefeatures through WKB.
type Overlay struct {
	quadSegs int
}

// NewOverlay creates an overlay engine. quadSegs below 1 selects the default.
func NewOverlay(quadSegs int) *Overlay {
	if quadSegs < 1 {
		quadSegs = DefaultQuadSegments
	}
	return &Overlay{quadSegs: quadSegs}
}

// NewPoint builds a point tagged with the given reference system.
func NewPoint(x, y float64, srid int) *geom.Point {
	return geom.NewPointFlat(geom.XY, []float64{x, y}).SetSRID(srid)
}

// Multi wraps a polygon into a single-part multipolygon.
func Multi(p *geom.Polygon) *geom.MultiPolygon {
	mp := geom.NewMultiPolygon(geom.XY).SetSRID(p.SRID())
	if p.Empty() {
		return mp
	}
	_ = mp.Push(p)
	return mp
}

// Buffer returns a regular polygon with 4*quadSegs vertices approximating the
// disc of the given radius around p. The ring is counter-clockwise.
func (o *Overlay) Buffer(p *geom.Point, radius float64) *geom.Polygon {
	n := 4 * o.quadSegs
	cx, cy := p.X(), p.Y()

	flat := make([]float64, 0, 2*(n+1))
	for i := 0; i < n; i++ {
		a := 2 * math.Pi * float64(i) / float64(n)
		flat = append(flat, cx+radius*math.Cos(a), cy+radius*math.Sin(a))
	}
	flat = append(flat, flat[0], flat[1])

	return geom.NewPolygonFlat(geom.XY, flat, []int{len(flat)}).SetSRID(p.SRID())
}

// Difference returns a minus b.
func (o *Overlay) Difference(a, b *geom.MultiPolygon) (*geom.MultiPolygon, error) {
	if a.Empty() {
		return geom.NewMultiPolygon(geom.XY).SetSRID(a.SRID()), nil
	}
	if b.Empty() {
		return a.Clone(), nil
	}
	return o.binary(a, b, sf.Difference, "difference")
}

// Intersection returns the polygonal part of a ∩ b.
func (o *Overlay) Intersection(a, b *geom.MultiPolygon) (*geom.MultiPolygon, error) {
	if a.Empty() || b.Empty() {
		return geom.NewMultiPolygon(geom.XY).SetSRID(a.SRID()), nil
	}
	return o.binary(a, b, sf.Intersection, "intersection")
}

// Area returns the planar area in squared projected units.
func (o *Overlay) Area(mp *geom.MultiPolygon) float64 {
	if mp == nil || mp.Empty() {
		return 0
	}
	return mp.Area()
}

func (o *Overlay) binary(a, b *geom.MultiPolygon, op func(sf.Geometry, sf.Geometry) (sf.Geometry, error), name string) (*geom.MultiPolygon, error) {
	ga, err := toSF(a)
	if err != nil {
		return nil, err
	}
	gb, err := toSF(b)
	if err != nil {
		return nil, err
	}
	res, err := op(ga, gb)
	if err != nil {
		return nil, eris.Wrapf(err, "geometry: %s", name)
	}
	out, err := fromSF(res)
	if err != nil {
		return nil, err
	}
	return out.SetSRID(a.SRID()), nil
}

func toSF(mp *geom.MultiPolygon) (sf.Geometry, error) {
	data, err := wkb.Marshal(mp, wkb.NDR)
	if err != nil {
		return sf.Geometry{}, eris.Wrap(err, "geometry: encode wkb")
	}
	g, err := sf.UnmarshalWKB(data)
	if err != nil {
		return sf.Geometry{}, eris.Wrap(err, "geometry: decode overlay input")
	}
	return g, nil
}

// fromSF keeps only the polygonal parts of an overlay result, with
// counter-clockwise shells.
func fromSF(g sf.Geometry) (*geom.MultiPolygon, error) {
	out := geom.NewMultiPolygon(geom.XY)
	if g.IsEmpty() {
		return out, nil
	}
	t, err := wkb.Unmarshal(g.ForceCCW().AsBinary())
	if err != nil {
		return nil, eris.Wrap(err, "geometry: decode overlay result")
	}
	if err := appendPolygons(out, t); err != nil {
		return nil, err
	}
	return out, nil
}

func appendPolygons(dst *geom.MultiPolygon, t geom.T) error {
	switch g := t.(type) {
	case *geom.Polygon:
		if g.Empty() {
			return nil
		}
		return eris.Wrap(dst.Push(g), "geometry: push polygon")
	case *geom.MultiPolygon:
		for i := 0; i < g.NumPolygons(); i++ {
			p := g.Polygon(i)
			if p.Empty() {
				continue
			}
			if err := dst.Push(p); err != nil {
				return eris.Wrap(err, "geometry: push polygon")
			}
		}
	case *geom.GeometryCollection:
		for _, sub := range g.Geoms() {
			if err := appendPolygons(dst, sub); err != nil {
				return err
			}
		}
	}
	return nil
}
