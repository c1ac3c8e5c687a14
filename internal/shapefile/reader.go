// Package shapefile reads zone and building layers and writes coverage
// reports as polygon shapefiles.
package shapefile

import (
	"os"
	"strings"

	"github.com/jonas-p/go-shp"
	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"go.uber.org/zap"

	"github.com/sells-group/fovcover/internal/geometry"
	"github.com/sells-group/fovcover/internal/model"
)

// Feature is one polygon record of a layer.
type Feature struct {
	Index int
	Attrs map[string]string
	Geom  *geom.MultiPolygon
}

// Layer is every polygon record of a shapefile.
type Layer struct {
	Columns  []string
	Features []Feature
	// Skipped counts records without polygonal geometry.
	Skipped int
}

// Read loads the polygon records of a shapefile, projecting vertices with
// proj. Attributes are read when a .dbf sits next to the .shp. Empty cells
// become missing values.
func Read(path string, proj geometry.Projector) (*Layer, error) {
	if !strings.HasSuffix(strings.ToLower(path), ".shp") {
		return nil, eris.Errorf("shapefile: %s: expected .shp extension", path)
	}
	if _, err := os.Stat(path); err != nil {
		return nil, eris.Wrapf(err, "shapefile: stat %s", path)
	}

	reader, err := shp.Open(path)
	if err != nil {
		return nil, eris.Wrapf(err, "shapefile: open %s", path)
	}
	defer func() { _ = reader.Close() }()

	layer := &Layer{}
	var fields []shp.Field
	if _, err := os.Stat(path[:len(path)-3] + "dbf"); err == nil {
		fields = reader.Fields()
	}
	for _, f := range fields {
		layer.Columns = append(layer.Columns, strings.TrimRight(f.String(), "\x00"))
	}

	for reader.Next() {
		idx, shape := reader.Shape()

		poly, ok := shape.(*shp.Polygon)
		if !ok {
			layer.Skipped++
			continue
		}
		mp := polygonToMultiPolygon(poly, proj)
		if mp.Empty() {
			layer.Skipped++
			continue
		}

		attrs := make(map[string]string, len(fields))
		for i, col := range layer.Columns {
			val := strings.TrimSpace(strings.TrimRight(reader.Attribute(i), "\x00"))
			if val != "" {
				attrs[col] = val
			}
		}
		layer.Features = append(layer.Features, Feature{Index: idx, Attrs: attrs, Geom: mp})
	}
	if err := reader.Err(); err != nil {
		return nil, eris.Wrapf(err, "shapefile: read %s", path)
	}

	if layer.Skipped > 0 {
		zap.L().Debug("shapefile: skipped records",
			zap.String("path", path),
			zap.Int("skipped", layer.Skipped),
		)
	}
	return layer, nil
}

// ReadZones loads a zone layer of the given category.
func ReadZones(path string, category model.ZoneCategory, proj geometry.Projector) (*model.ZoneLayer, error) {
	layer, err := Read(path, proj)
	if err != nil {
		return nil, err
	}
	out := &model.ZoneLayer{
		Category: category,
		Columns:  layer.Columns,
		Zones:    make([]model.Zone, len(layer.Features)),
	}
	for i, f := range layer.Features {
		out.Zones[i] = model.Zone{Index: f.Index, Attrs: f.Attrs, Geom: f.Geom}
	}
	return out, nil
}

// ReadBuildings loads an obstruction layer. Attributes are ignored.
func ReadBuildings(path string, proj geometry.Projector) ([]model.Building, error) {
	layer, err := Read(path, proj)
	if err != nil {
		return nil, err
	}
	out := make([]model.Building, len(layer.Features))
	for i, f := range layer.Features {
		out[i] = model.Building{Index: f.Index, Geom: f.Geom}
	}
	return out, nil
}
