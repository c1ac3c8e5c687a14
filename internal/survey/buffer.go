package survey

import (
	"github.com/sells-group/fovcover/internal/geometry"
	"github.com/sells-group/fovcover/internal/model"
)

// BufferBuilder projects camera positions and buffers them.
type BufferBuilder struct {
	proj   geometry.Projector
	engine geometry.Engine
	radius float64
}

// NewBufferBuilder creates a builder producing discs of the given radius in
// the projector's target system.
func NewBufferBuilder(proj geometry.Projector, engine geometry.Engine, radius float64) *BufferBuilder {
	return &BufferBuilder{proj: proj, engine: engine, radius: radius}
}

// Build returns one buffer per camera, keyed and ordered like the input.
func (b *BufferBuilder) Build(cameras []model.CameraRecord) []model.BufferPolygon {
	out := make([]model.BufferPolygon, 0, len(cameras))
	for _, c := range cameras {
		x, y := b.proj.Project(c.Lon, c.Lat)
		pt := geometry.NewPoint(x, y, b.proj.SRID())
		out = append(out, model.BufferPolygon{
			Key:  c.Key,
			Geom: b.engine.Buffer(pt, b.radius),
		})
	}
	return out
}
