package model

import (
	"github.com/twpayne/go-geom"
)

// Condition columns read from the attribute file.
const (
	ColLED         = "led"
	ColWellLit     = "well_lit"
	ColScaffolding = "scaffoldin"
	ColFoliage     = "foliage"
)

// CameraRecord is one camera position parsed from a trip's coordinate file.
type CameraRecord struct {
	Key string  `json:"key"`
	Lon float64 `json:"lon"`
	Lat float64 `json:"lat"`
}

// BufferPolygon is the fixed-radius disc around a projected camera position.
type BufferPolygon struct {
	Key  string        `json:"key"`
	Geom *geom.Polygon `json:"-"`
}

// AttributeRecord holds the condition columns of one camera. A column absent
// from Values is missing (an empty cell in the source file).
type AttributeRecord struct {
	Key    string            `json:"key"`
	Values map[string]string `json:"values"`
}

// Value returns the column value and whether it is present.
func (a AttributeRecord) Value(col string) (string, bool) {
	v, ok := a.Values[col]
	return v, ok
}

// AttributeTable is an aligned attribute file.
type AttributeTable struct {
	Columns []string          `json:"columns"`
	Records []AttributeRecord `json:"records"`
}

// CoverageRecord joins a camera's attributes to its buffer.
type CoverageRecord struct {
	Key    string            `json:"key"`
	Attrs  map[string]string `json:"attrs"`
	Buffer *geom.Polygon     `json:"-"`
}

// CoverageTable is the merged per-trip camera table.
type CoverageTable struct {
	Columns []string         `json:"columns"`
	Records []CoverageRecord `json:"records"`
}

// FOV is the unobstructed viewing area of one camera.
type FOV struct {
	Trip  string             `json:"trip"`
	Key   string             `json:"key"`
	Attrs map[string]string  `json:"attrs"`
	Geom  *geom.MultiPolygon `json:"-"`
}

// Attr returns the attribute value and whether it is present.
func (f *FOV) Attr(col string) (string, bool) {
	v, ok := f.Attrs[col]
	return v, ok
}

// FOVSet is a collection of FOVs sharing a reference system and column schema.
type FOVSet struct {
	SRID    int      `json:"srid"`
	Columns []string `json:"columns"`
	FOVs    []FOV    `json:"fovs"`
}

// Zone is one polygon of a zone layer with its shapefile attributes.
type Zone struct {
	Index int                `json:"index"`
	Attrs map[string]string  `json:"attrs"`
	Geom  *geom.MultiPolygon `json:"-"`
}

// ZoneLayer is every polygon of one zone category.
type ZoneLayer struct {
	Category ZoneCategory `json:"category"`
	Columns  []string     `json:"columns"`
	Zones    []Zone       `json:"zones"`
}

// Building is one obstruction polygon.
type Building struct {
	Index int                `json:"index"`
	Geom  *geom.MultiPolygon `json:"-"`
}
