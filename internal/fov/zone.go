package fov

import (
	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"gonum.org/v1/gonum/floats"

	"github.com/sells-group/fovcover/internal/geometry"
	"github.com/sells-group/fovcover/internal/model"
)

// Intersect intersects every zone polygon of the layer with every FOV. Each
// non-empty polygonal intersection is one fragment. The fragment count and
// total area cover the whole layer, not individual zone polygons.
func Intersect(engine geometry.Engine, layer *model.ZoneLayer, fovs *model.FOVSet) (*model.ZoneFOV, error) {
	polys := make([]*geom.MultiPolygon, len(fovs.FOVs))
	for i := range fovs.FOVs {
		polys[i] = fovs.FOVs[i].Geom
	}
	index := geometry.NewIndex(polys)

	out := &model.ZoneFOV{
		Category:    layer.Category,
		ZoneColumns: append([]string(nil), layer.Columns...),
		FOVColumns:  append([]string(nil), fovs.Columns...),
	}

	for _, z := range layer.Zones {
		for _, i := range index.Search(z.Geom) {
			f := &fovs.FOVs[i]
			piece, err := engine.Intersection(z.Geom, f.Geom)
			if err != nil {
				return nil, eris.Wrapf(err, "fov: intersect %s zone %d with camera %s/%s", layer.Category, z.Index, f.Trip, f.Key)
			}
			if piece.Empty() {
				continue
			}
			out.Fragments = append(out.Fragments, model.Fragment{
				ZoneIndex: z.Index,
				ZoneAttrs: z.Attrs,
				Trip:      f.Trip,
				Key:       f.Key,
				Attrs:     f.Attrs,
				Area:      engine.Area(piece),
				Geom:      piece,
			})
		}
	}

	areas := make([]float64, len(out.Fragments))
	for i := range out.Fragments {
		areas[i] = out.Fragments[i].Area
	}
	out.Count = len(out.Fragments)
	out.TotalArea = floats.Sum(areas)
	return out, nil
}
