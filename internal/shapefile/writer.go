package shapefile

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/jonas-p/go-shp"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/fovcover/internal/geometry"
	"github.com/sells-group/fovcover/internal/model"
)

// Output column names. DBF field names hold at most 10 characters.
const (
	FieldTrip      = "trip"
	FieldCamKey    = "cam_key"
	FieldFOVArea   = "fov_area"
	FieldFOVCount  = "fov_cnt"
	FieldTotalFOV  = "totfov_are"
	FieldLoQOV     = "lo_qov"
	FieldLoQOVCnt  = "loqov_cnt"
	FieldLoQOVArea = "loqov_area"
	FieldTotQOVCnt = "totqov_cnt"
	FieldTotQOV    = "totqov_are"
	FieldNoIRPct   = "NoIRpct"
	FieldActualFOV = "actlFOV"
	FieldZoneCat   = "zone_cat"

	maxFieldName = 10
	attrWidth    = 80
	floatWidth   = 19
	floatPrec    = 4
	intWidth     = 10
)

// ESRI WKT written to the .prj sidecar for known reference systems.
var projections = map[int]string{
	geometry.SRIDNYLongIslandFtUS: `PROJCS["NAD_1983_StatePlane_New_York_Long_Island_FIPS_3104_Feet",GEOGCS["GCS_North_American_1983",DATUM["D_North_American_1983",SPHEROID["GRS_1980",6378137.0,298.257222101]],PRIMEM["Greenwich",0.0],UNIT["Degree",0.0174532925199433]],PROJECTION["Lambert_Conformal_Conic"],PARAMETER["False_Easting",984250.0],PARAMETER["False_Northing",0.0],PARAMETER["Central_Meridian",-74.0],PARAMETER["Standard_Parallel_1",40.66666666666666],PARAMETER["Standard_Parallel_2",41.03333333333333],PARAMETER["Latitude_Of_Origin",40.16666666666666],UNIT["Foot_US",0.3048006096012192]]`,
	geometry.SRIDWGS84:            `GEOGCS["GCS_WGS_1984",DATUM["D_WGS_1984",SPHEROID["WGS_1984",6378137.0,298.257223563]],PRIMEM["Greenwich",0.0],UNIT["Degree",0.0174532925199433]]`,
}

type column struct {
	name  string
	field shp.Field
	value func(model.CoverageRow) (any, bool)
}

// WriteReport writes one polygon record per report row to path (.shp plus
// .shx, .dbf and, for known systems, .prj). Missing values are left blank.
// It returns the number of records written.
func WriteReport(path string, report *model.NeighborhoodReport, srid int) (int, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return 0, eris.Wrapf(err, "shapefile: create directory for %s", path)
	}

	cols := reportColumns(report)
	fields := make([]shp.Field, len(cols))
	for i, c := range cols {
		fields[i] = c.field
	}

	w, err := create(path, fields)
	if err != nil {
		return 0, err
	}
	written, err := writeRows(w, cols, report)
	if cerr := finish(w, path); err == nil {
		err = cerr
	}
	if err != nil {
		return written, err
	}

	if wkt, ok := projections[srid]; ok {
		prj := basename(path) + ".prj"
		if err := os.WriteFile(prj, []byte(wkt), 0o644); err != nil {
			return written, eris.Wrapf(err, "shapefile: write %s", prj)
		}
	}

	zap.L().Debug("shapefile: report written",
		zap.String("path", path),
		zap.Int("records", written),
	)
	return written, nil
}

func writeRows(w *shp.Writer, cols []column, report *model.NeighborhoodReport) (int, error) {
	var written int
	for _, row := range report.Flatten() {
		if row.Geom == nil || row.Geom.Empty() {
			continue
		}
		n := int(w.Write(multiPolygonToShape(row.Geom)))
		for i, c := range cols {
			v, ok := c.value(row)
			if !ok {
				continue
			}
			if s, isStr := v.(string); isStr && len(s) > int(c.field.Size) {
				v = s[:c.field.Size]
			}
			if err := w.WriteAttribute(n, i, v); err != nil {
				return written, eris.Wrapf(err, "shapefile: write %s of record %d", c.name, n)
			}
		}
		written++
	}
	return written, nil
}

// create opens a polygon shapefile writer with the given attribute fields.
// Callers must release it with finish.
func create(path string, fields []shp.Field) (*shp.Writer, error) {
	w, err := shp.Create(path, shp.POLYGON)
	if err != nil {
		return nil, eris.Wrapf(err, "shapefile: create %s", path)
	}
	if err := w.SetFields(fields); err != nil {
		w.Close()
		return nil, eris.Wrap(err, "shapefile: set fields")
	}
	return w, nil
}

// finish closes w and moves its attribute table to <base>.dbf. go-shp
// v0.1.1 writes the table to <base>dbf, which no reader looks for.
func finish(w *shp.Writer, path string) error {
	w.Close()
	base := basename(path)
	if err := os.Rename(base+"dbf", base+".dbf"); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return eris.Wrapf(err, "shapefile: move attribute table of %s", path)
	}
	return nil
}

// basename strips a .shp extension the way shp.Create does.
func basename(path string) string {
	if strings.HasSuffix(strings.ToLower(path), ".shp") {
		return path[:len(path)-len(".shp")]
	}
	return path
}

// reportColumns lays out zone attributes, trip and camera key, camera
// attributes, then the coverage columns.
func reportColumns(report *model.NeighborhoodReport) []column {
	zoneCols, fovCols := report.Columns()
	names := newNamer()
	var cols []column

	add := func(name string, fixed bool, field func(string) shp.Field, value func(model.CoverageRow) (any, bool)) {
		n := name
		if !fixed {
			n = names.take(name)
		}
		cols = append(cols, column{name: n, field: field(n), value: value})
	}
	attr := func(name string, value func(model.CoverageRow) (any, bool)) {
		add(name, false, func(n string) shp.Field { return shp.StringField(n, attrWidth) }, value)
	}
	str := func(name string, width uint8, value func(model.CoverageRow) (any, bool)) {
		add(name, true, func(n string) shp.Field { return shp.StringField(n, width) }, value)
	}
	num := func(name string, value func(model.CoverageRow) (any, bool)) {
		add(name, true, func(n string) shp.Field { return shp.NumberField(n, intWidth) }, value)
	}
	flt := func(name string, value func(model.CoverageRow) (any, bool)) {
		add(name, true, func(n string) shp.Field { return shp.FloatField(n, floatWidth, floatPrec) }, value)
	}

	// Fixed names are reserved first so attribute columns yield on collision.
	for _, n := range []string{
		FieldTrip, FieldCamKey, FieldFOVArea, FieldFOVCount, FieldTotalFOV, FieldLoQOV, FieldLoQOVCnt,
		FieldLoQOVArea, FieldTotQOVCnt, FieldTotQOV, FieldNoIRPct, FieldActualFOV, FieldZoneCat,
	} {
		names.reserve(n)
	}

	for _, zc := range zoneCols {
		attr(zc, func(r model.CoverageRow) (any, bool) {
			v, ok := r.ZoneAttrs[zc]
			return v, ok
		})
	}
	str(FieldTrip, 32, func(r model.CoverageRow) (any, bool) { return r.Trip, true })
	str(FieldCamKey, 16, func(r model.CoverageRow) (any, bool) { return r.Key, true })
	for _, fc := range fovCols {
		attr(fc, func(r model.CoverageRow) (any, bool) {
			v, ok := r.Attrs[fc]
			return v, ok
		})
	}
	flt(FieldFOVArea, func(r model.CoverageRow) (any, bool) { return r.FOVArea, true })
	num(FieldFOVCount, func(r model.CoverageRow) (any, bool) { return r.Stats.FOVCount, true })
	flt(FieldTotalFOV, func(r model.CoverageRow) (any, bool) { return r.Stats.FOVArea, true })
	str(FieldLoQOV, 16, func(r model.CoverageRow) (any, bool) {
		if r.QOV == nil {
			return nil, false
		}
		return string(r.QOV.Cause), true
	})
	num(FieldLoQOVCnt, func(r model.CoverageRow) (any, bool) {
		if r.QOV == nil {
			return nil, false
		}
		return r.QOV.Count, true
	})
	flt(FieldLoQOVArea, func(r model.CoverageRow) (any, bool) {
		if r.QOV == nil {
			return nil, false
		}
		return r.QOV.Area, true
	})
	num(FieldTotQOVCnt, func(r model.CoverageRow) (any, bool) { return r.Stats.QOVCount, true })
	flt(FieldTotQOV, func(r model.CoverageRow) (any, bool) { return r.Stats.QOVArea, true })
	flt(FieldNoIRPct, func(r model.CoverageRow) (any, bool) { return r.Stats.NoIRPct, true })
	flt(FieldActualFOV, func(r model.CoverageRow) (any, bool) { return r.Stats.ActualFOVPct, true })
	str(FieldZoneCat, 16, func(r model.CoverageRow) (any, bool) { return string(r.Category), true })

	return cols
}

// namer hands out unique DBF field names for attribute columns,
// case-insensitively, avoiding the reserved coverage column names.
type namer struct {
	used map[string]bool
}

func newNamer() *namer {
	return &namer{used: map[string]bool{}}
}

func (n *namer) reserve(name string) {
	n.used[strings.ToLower(name)] = true
}

// take returns name truncated to the DBF limit, suffixed with _1, _2, ... if
// already taken.
func (n *namer) take(name string) string {
	base := truncate(name, maxFieldName)
	if key := strings.ToLower(base); !n.used[key] {
		n.used[key] = true
		return base
	}
	for i := 1; ; i++ {
		suffix := "_" + strconv.Itoa(i)
		cand := truncate(name, maxFieldName-len(suffix)) + suffix
		k := strings.ToLower(cand)
		if !n.used[k] {
			n.used[k] = true
			return cand
		}
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
