package neighborhood

import (
	"context"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/jonas-p/go-shp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/fovcover/internal/config"
	"github.com/sells-group/fovcover/internal/geometry"
	"github.com/sells-group/fovcover/internal/model"
	"github.com/sells-group/fovcover/internal/report"
	"github.com/sells-group/fovcover/internal/store"
)

// discArea is the area of the 64-gon approximating a radius-4 disc.
var discArea = 0.5 * 64 * 16 * math.Sin(2*math.Pi/64)

type rect struct{ x0, y0, x1, y1 float64 }

func writeLayer(t *testing.T, path string, rects []rect, names []string) {
	t.Helper()
	w, err := shp.Create(path, shp.POLYGON)
	require.NoError(t, err)
	require.NoError(t, w.SetFields([]shp.Field{shp.StringField("name", 20)}))
	for i, r := range rects {
		ring := []shp.Point{{X: r.x0, Y: r.y0}, {X: r.x0, Y: r.y1}, {X: r.x1, Y: r.y1}, {X: r.x1, Y: r.y0}, {X: r.x0, Y: r.y0}}
		p := shp.Polygon(*shp.NewPolyLine([][]shp.Point{ring}))
		n := int(w.Write(&p))
		require.NoError(t, w.WriteAttribute(n, 0, names[i]))
	}
	w.Close()
	// go-shp v0.1.1 names the attribute table <base>dbf.
	base := strings.TrimSuffix(path, ".shp")
	require.NoError(t, os.Rename(base+"dbf", base+".dbf"))
}

// longIslandWKT is an OGC definition of EPSG:2263.
const longIslandWKT = `PROJCS["NAD83 / New York Long Island (ftUS)",GEOGCS["NAD83",AUTHORITY["EPSG","4269"]],UNIT["US survey foot",0.3048006096012192,AUTHORITY["EPSG","9003"]],AUTHORITY["EPSG","2263"]]`

func writePrj(t *testing.T, layer, wkt string) {
	t.Helper()
	require.NoError(t, os.WriteFile(strings.TrimSuffix(layer, ".shp")+".prj", []byte(wkt), 0o644))
}

// coordRecord writes a camera record; projected fixtures store y as lat and
// x as lon.
func coordRecord(key string, x, y float64) string {
	return fmt.Sprintf("%s.\ntime: 12:00:01\nalt: 10\nlat: %v\nlon: %v\nheading: 90\nspeed: 0\n\n", key, y, x)
}

// fixture lays out one neighborhood in projected feet:
//
//	trip 1: cam 1 (10,10) dark, cam 2 (30,10) clean, cam 3 (50,10) under a
//	building, cam 4 (70,10) scaffolded
//	trip 2: cam 1 (20,10) clean
//	residential zone 0..40, commercial 60..80, mixed far away
func fixture(t *testing.T, name string) config.NeighborhoodConfig {
	t.Helper()
	dir := t.TempDir()
	path := func(p string) string { return filepath.Join(dir, p) }

	writeLayer(t, path("bldgs.shp"), []rect{{44, 4, 56, 16}}, []string{"b1"})
	writeLayer(t, path("r.shp"), []rect{{0, 0, 40, 20}}, []string{"R6"})
	writeLayer(t, path("c.shp"), []rect{{60, 0, 80, 20}}, []string{"C4"})
	writeLayer(t, path("m.shp"), []rect{{100, 100, 110, 110}}, []string{"M1"})

	require.NoError(t, os.WriteFile(path("t1.txt"), []byte(
		coordRecord("1", 10, 10)+coordRecord("2", 30, 10)+coordRecord("3", 50, 10)+coordRecord("4", 70, 10),
	), 0o644))
	// Attribute rows list cameras 4, 3, 2, 1.
	require.NoError(t, os.WriteFile(path("t1_att.csv"), []byte(
		"led,well_lit,scaffoldin,foliage,note\n"+
			"white,yes,yes,no,\n"+
			"white,yes,no,no,\n"+
			"white,yes,no,no,\n"+
			"none,no,no,no,\n",
	), 0o644))
	require.NoError(t, os.WriteFile(path("t2.txt"), []byte(coordRecord("1", 20, 10)), 0o644))
	require.NoError(t, os.WriteFile(path("t2_att.csv"), []byte("led,well_lit,scaffoldin,foliage\nwhite,yes,no,no\n"), 0o644))

	return config.NeighborhoodConfig{
		Name:      name,
		Buildings: path("bldgs.shp"),
		Zones: map[string]string{
			"residential": path("r.shp"),
			"commercial":  path("c.shp"),
			"mixed":       path("m.shp"),
		},
		Trips: []config.TripConfig{
			{Name: name + "_1", Coords: path("t1.txt"), Attributes: path("t1_att.csv")},
			{Name: name + "_2", Coords: path("t2.txt"), Attributes: path("t2_att.csv")},
		},
		OutputDir: path(name + "_cvrg"),
		LayerCRS:  "EPSG:2263",
	}
}

func testOptions() Options {
	return Options{
		SourceSRID:         geometry.SRIDNYLongIslandFtUS,
		TargetSRID:         geometry.SRIDNYLongIslandFtUS,
		BufferRadius:       4,
		QuadSegments:       16,
		MaxConcurrentZones: 3,
		WriteSummary:       true,
	}
}

func newTestStore(t *testing.T) store.Store {
	t.Helper()
	st, err := store.Open(context.Background(), config.StoreConfig{
		Driver:      "sqlite",
		DatabaseURL: filepath.Join(t.TempDir(), "ledger.db"),
	})
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() }) //nolint:errcheck
	return st
}

func TestProcess(t *testing.T) {
	st := newTestStore(t)
	proc, err := NewProcessor(testOptions(), st)
	require.NoError(t, err)

	n := fixture(t, "qn1")
	res, err := proc.Process(context.Background(), n)
	require.NoError(t, err)

	require.Len(t, res.Report.Zones, 3)
	res0, com, mix := res.Report.Zones[0], res.Report.Zones[1], res.Report.Zones[2]

	assert.Equal(t, model.ZoneResidential, res0.Category)
	assert.Equal(t, 3, res0.Stats.FOVCount)
	assert.InDelta(t, 3*discArea, res0.Stats.FOVArea, 1e-6)
	assert.Equal(t, 1, res0.Stats.QOVCount)
	assert.InDelta(t, 100.0/3, res0.Stats.NoIRPct, 1e-9)
	assert.InDelta(t, 200.0/3, res0.Stats.ActualFOVPct, 1e-6)

	assert.Equal(t, model.ZoneCommercial, com.Category)
	assert.Equal(t, 1, com.Stats.FOVCount)
	require.Len(t, com.Rows, 1)
	require.NotNil(t, com.Rows[0].QOV)
	assert.Equal(t, model.CauseScaffolding, com.Rows[0].QOV.Cause)
	assert.InDelta(t, 100.0, com.Stats.NoIRPct, 1e-9)
	assert.InDelta(t, 0.0, com.Stats.ActualFOVPct, 1e-6)

	assert.Equal(t, model.ZoneMixed, mix.Category)
	assert.Zero(t, mix.Stats.FOVCount)
	assert.Zero(t, mix.Stats.ActualFOVPct)

	// The all-empty "note" column is pruned.
	assert.NotContains(t, res0.FOVColumns, "note")
	assert.Equal(t, []string{"name"}, res0.ZoneColumns)

	require.Len(t, res.Trips, 2)
	assert.Equal(t, 4, res.Trips[0].Cameras)
	assert.Equal(t, 3, res.Trips[0].FOVs)
	assert.Equal(t, []string{"3"}, res.Trips[0].Obstructed)
	assert.Equal(t, 1, res.Trips[1].FOVs)

	assert.Equal(t, 4, res.Records)
	assert.Equal(t, filepath.Join(n.OutputDir, "qn1.shp"), res.OutputPath)
	out, err := shp.Open(res.OutputPath)
	require.NoError(t, err)
	var fields []string
	for _, f := range out.Fields() {
		fields = append(fields, f.String())
	}
	require.NoError(t, out.Close())
	assert.Equal(t, "name", fields[0])
	assert.Contains(t, fields, "totqov_cnt")
	assert.Equal(t, "zone_cat", fields[len(fields)-1])

	summary, err := report.ReadSummary(res.SummaryPath)
	require.NoError(t, err)
	assert.Equal(t, res.RunID, summary.RunID)
	assert.Equal(t, 4, summary.Records)
	require.Len(t, summary.Zones, 3)
	assert.Equal(t, 1, summary.Zones[0].Stats.QOVCount)

	run, err := st.GetRun(context.Background(), res.RunID)
	require.NoError(t, err)
	assert.Equal(t, model.RunStatusComplete, run.Status)
	assert.Equal(t, 4, run.Records)

	stats, err := st.ZoneStats(context.Background(), res.RunID)
	require.NoError(t, err)
	require.Len(t, stats, 3)
	assert.Equal(t, 3, stats[0].Stats.FOVCount)
}

func TestProcess_BroadcastScalars(t *testing.T) {
	proc, err := NewProcessor(testOptions(), nil)
	require.NoError(t, err)

	res, err := proc.Process(context.Background(), fixture(t, "qn1"))
	require.NoError(t, err)

	for _, row := range res.Report.Flatten() {
		var want model.ZoneStats
		for _, z := range res.Report.Zones {
			if z.Category == row.Category {
				want = z.Stats
			}
		}
		assert.Equal(t, want.FOVCount, row.Stats.FOVCount)
		assert.Equal(t, want.FOVArea, row.Stats.FOVArea)
	}
}

func TestProcess_DryRun(t *testing.T) {
	st := newTestStore(t)
	opts := testOptions()
	opts.DryRun = true
	proc, err := NewProcessor(opts, st)
	require.NoError(t, err)

	n := fixture(t, "qn2")
	res, err := proc.Process(context.Background(), n)
	require.NoError(t, err)
	assert.Equal(t, 4, res.Records)
	assert.Empty(t, res.RunID)
	assert.Empty(t, res.OutputPath)

	_, err = os.Stat(n.OutputDir)
	assert.True(t, os.IsNotExist(err))

	runs, err := st.ListRuns(context.Background(), store.RunFilter{})
	require.NoError(t, err)
	assert.Empty(t, runs)
}

func TestProcess_FailureRecorded(t *testing.T) {
	st := newTestStore(t)
	proc, err := NewProcessor(testOptions(), st)
	require.NoError(t, err)

	n := fixture(t, "bk1")
	require.NoError(t, os.WriteFile(n.Trips[0].Coords, []byte("1.\nonly two lines\n"), 0o644))

	_, err = proc.Process(context.Background(), n)
	require.Error(t, err)

	runs, err := st.ListRuns(context.Background(), store.RunFilter{Neighborhood: "bk1"})
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, model.RunStatusFailed, runs[0].Status)
	assert.Contains(t, runs[0].Error, "malformed input")
}

func TestProcess_UnknownZoneCategory(t *testing.T) {
	proc, err := NewProcessor(testOptions(), nil)
	require.NoError(t, err)

	n := fixture(t, "qn1")
	n.Zones["industrial"] = n.Zones["mixed"]

	_, err = proc.Process(context.Background(), n)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "industrial")
}

func TestProcess_MissingCategorySkipped(t *testing.T) {
	proc, err := NewProcessor(testOptions(), nil)
	require.NoError(t, err)

	n := fixture(t, "qn1")
	delete(n.Zones, "mixed")

	res, err := proc.Process(context.Background(), n)
	require.NoError(t, err)
	require.Len(t, res.Report.Zones, 2)
	assert.Equal(t, model.ZoneCommercial, res.Report.Zones[1].Category)
}

func TestProcess_LayerPrj(t *testing.T) {
	proc, err := NewProcessor(testOptions(), nil)
	require.NoError(t, err)

	// Layers are in EPSG:2263 whatever layer_crs says.
	n := fixture(t, "qn1")
	n.LayerCRS = "EPSG:4326"
	writePrj(t, n.Buildings, longIslandWKT)
	for _, z := range n.Zones {
		writePrj(t, z, longIslandWKT)
	}

	res, err := proc.Process(context.Background(), n)
	require.NoError(t, err)
	assert.Equal(t, 3, res.Report.Zones[0].Stats.FOVCount)
	assert.Equal(t, []string{"3"}, res.Trips[0].Obstructed)
}

func TestProcess_UnrecognizedPrj(t *testing.T) {
	proc, err := NewProcessor(testOptions(), nil)
	require.NoError(t, err)

	n := fixture(t, "qn1")
	writePrj(t, n.Zones["residential"], `PROJCS["Local_Grid"]`)

	res, err := proc.Process(context.Background(), n)
	require.NoError(t, err)
	assert.Equal(t, 3, res.Report.Zones[0].Stats.FOVCount)
}

func TestRunner_IsolatesFailures(t *testing.T) {
	st := newTestStore(t)
	proc, err := NewProcessor(testOptions(), st)
	require.NoError(t, err)

	good := fixture(t, "qn1")
	bad := fixture(t, "qn2")
	bad.Buildings = filepath.Join(t.TempDir(), "missing.shp")

	results, err := NewRunner(proc, 2).Run(context.Background(), []config.NeighborhoodConfig{bad, good})
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "qn2"))

	require.Len(t, results, 2)
	assert.Nil(t, results[0])
	require.NotNil(t, results[1])
	assert.Equal(t, "qn1", results[1].Neighborhood)
}

func TestRunner_Cancelled(t *testing.T) {
	proc, err := NewProcessor(testOptions(), nil)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	results, err := NewRunner(proc, 1).Run(ctx, []config.NeighborhoodConfig{fixture(t, "qn1")})
	require.Error(t, err)
	assert.Nil(t, results[0])
}

func TestNewOptions(t *testing.T) {
	cfg := &config.Config{
		Geometry: config.GeometryConfig{
			SourceCRS: "EPSG:4326", TargetCRS: "EPSG:2263",
			BufferRadius: 4, QuadSegments: 16, AttrDelimiter: "tab",
		},
		Batch:  config.BatchConfig{MaxConcurrentZones: 2},
		Output: config.OutputConfig{WriteSummary: true},
	}
	opts, err := NewOptions(cfg)
	require.NoError(t, err)
	assert.Equal(t, geometry.SRIDWGS84, opts.SourceSRID)
	assert.Equal(t, geometry.SRIDNYLongIslandFtUS, opts.TargetSRID)
	assert.Equal(t, '\t', opts.Table.Delimiter)
	assert.Equal(t, 2, opts.MaxConcurrentZones)

	cfg.Geometry.TargetCRS = "not-a-crs"
	_, err = NewOptions(cfg)
	assert.Error(t, err)
}

func TestDelimiter(t *testing.T) {
	tests := []struct {
		in   string
		want rune
	}{
		{"", 0},
		{",", ','},
		{";", ';'},
		{"tab", '\t'},
		{`\t`, '\t'},
		{"|", '|'},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, delimiter(tt.in), tt.in)
	}
}
