package model

import (
	"github.com/twpayne/go-geom"
)

// ZoneCategory identifies a zone layer within a neighborhood.
type ZoneCategory string

// Zone categories, in report order.
const (
	ZoneResidential ZoneCategory = "residential"
	ZoneCommercial  ZoneCategory = "commercial"
	ZoneMixed       ZoneCategory = "mixed"
)

// ZoneCategories lists every zone category in report order.
var ZoneCategories = []ZoneCategory{ZoneResidential, ZoneCommercial, ZoneMixed}

// Cause is the reason a fragment's view is degraded.
type Cause string

// Degradation causes, highest priority first.
const (
	CauseDark        Cause = "dark"
	CauseScaffolding Cause = "sign/scaffolding"
	CauseFoliage     Cause = "foliage"
)

// Causes lists every degradation cause in priority order.
var Causes = []Cause{CauseDark, CauseScaffolding, CauseFoliage}

// Fragment is the intersection of one zone polygon with one FOV.
type Fragment struct {
	ZoneIndex int                `json:"zone_index"`
	ZoneAttrs map[string]string  `json:"zone_attrs"`
	Trip      string             `json:"trip"`
	Key       string             `json:"key"`
	Attrs     map[string]string  `json:"attrs"`
	Area      float64            `json:"fov_area"`
	Geom      *geom.MultiPolygon `json:"-"`
}

// Attr returns the camera attribute value and whether it is present.
func (f *Fragment) Attr(col string) (string, bool) {
	v, ok := f.Attrs[col]
	return v, ok
}

// ZoneFOV is the intersection of one zone category with a neighborhood's FOVs.
// Count and TotalArea are zone-wide and apply to every fragment.
type ZoneFOV struct {
	Category    ZoneCategory `json:"category"`
	ZoneColumns []string     `json:"zone_columns"`
	FOVColumns  []string     `json:"fov_columns"`
	Fragments   []Fragment   `json:"fragments"`
	Count       int          `json:"fov_cnt"`
	TotalArea   float64      `json:"totfov_area"`
}

// QOV tags a fragment with its degradation cause. Count and Area cover every
// fragment meeting the cause's condition, before priority deduplication.
type QOV struct {
	Cause Cause   `json:"lo_qov"`
	Count int     `json:"loqov_cnt"`
	Area  float64 `json:"loqov_area"`
}

// CauseStats summarizes one cause within a zone.
type CauseStats struct {
	Matched     int     `json:"matched" yaml:"matched"`
	MatchedArea float64 `json:"matched_area" yaml:"matched_area"`
	// Attributed counts fragments assigned to this cause after deduplication.
	Attributed     int     `json:"attributed" yaml:"attributed"`
	AttributedArea float64 `json:"attributed_area" yaml:"attributed_area"`
}

// ZoneStats holds the zone-wide coverage scalars.
type ZoneStats struct {
	FOVCount     int                  `json:"fov_cnt" yaml:"fov_cnt"`
	FOVArea      float64              `json:"totfov_area" yaml:"totfov_area"`
	QOVCount     int                  `json:"totqov_cnt" yaml:"totqov_cnt"`
	QOVArea      float64              `json:"totqov_area" yaml:"totqov_area"`
	NoIRPct      float64              `json:"noir_pct" yaml:"noir_pct"`
	ActualFOVPct float64              `json:"actl_fov" yaml:"actl_fov"`
	ByCause      map[Cause]CauseStats `json:"by_cause" yaml:"by_cause"`
}

// ReportRow is a fragment with its optional degradation tag.
type ReportRow struct {
	Fragment
	QOV *QOV `json:"qov,omitempty"`
}

// ZoneReport is the coverage report of one zone category.
type ZoneReport struct {
	Category    ZoneCategory `json:"category"`
	ZoneColumns []string     `json:"zone_columns"`
	FOVColumns  []string     `json:"fov_columns"`
	Stats       ZoneStats    `json:"stats"`
	Rows        []ReportRow  `json:"rows"`
}

// NeighborhoodReport accumulates the zone reports of one neighborhood.
type NeighborhoodReport struct {
	Name  string       `json:"name"`
	Zones []ZoneReport `json:"zones"`
}

// CoverageRow is one flattened output record with zone scalars attached.
type CoverageRow struct {
	Category  ZoneCategory
	ZoneAttrs map[string]string
	Trip      string
	Key       string
	Attrs     map[string]string
	Geom      *geom.MultiPolygon
	FOVArea   float64
	QOV       *QOV
	Stats     ZoneStats
}

// Flatten returns one row per fragment across every zone, in zone order,
// each carrying its zone's scalars.
func (r *NeighborhoodReport) Flatten() []CoverageRow {
	var n int
	for _, z := range r.Zones {
		n += len(z.Rows)
	}
	rows := make([]CoverageRow, 0, n)
	for _, z := range r.Zones {
		for _, row := range z.Rows {
			rows = append(rows, CoverageRow{
				Category:  z.Category,
				ZoneAttrs: row.ZoneAttrs,
				Trip:      row.Trip,
				Key:       row.Key,
				Attrs:     row.Attrs,
				Geom:      row.Geom,
				FOVArea:   row.Area,
				QOV:       row.QOV,
				Stats:     z.Stats,
			})
		}
	}
	return rows
}

// Columns returns the union of zone and camera attribute columns across
// every zone report, zone columns first, each in first-seen order.
func (r *NeighborhoodReport) Columns() (zoneCols, fovCols []string) {
	seenZone := make(map[string]bool)
	seenFOV := make(map[string]bool)
	for _, z := range r.Zones {
		for _, c := range z.ZoneColumns {
			if !seenZone[c] {
				seenZone[c] = true
				zoneCols = append(zoneCols, c)
			}
		}
		for _, c := range z.FOVColumns {
			if !seenFOV[c] {
				seenFOV[c] = true
				fovCols = append(fovCols, c)
			}
		}
	}
	return zoneCols, fovCols
}
