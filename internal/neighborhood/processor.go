// Package neighborhood runs the coverage pipeline for configured
// neighborhoods and persists the resulting reports.
package neighborhood

import (
	"context"
	"path/filepath"
	"time"
	"unicode/utf8"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/fovcover/internal/config"
	"github.com/sells-group/fovcover/internal/fetcher"
	"github.com/sells-group/fovcover/internal/fov"
	"github.com/sells-group/fovcover/internal/geometry"
	"github.com/sells-group/fovcover/internal/model"
	"github.com/sells-group/fovcover/internal/qov"
	"github.com/sells-group/fovcover/internal/report"
	"github.com/sells-group/fovcover/internal/shapefile"
	"github.com/sells-group/fovcover/internal/store"
	"github.com/sells-group/fovcover/internal/survey"
)

// Options configures a Processor.
type Options struct {
	SourceSRID         int
	TargetSRID         int
	BufferRadius       float64
	QuadSegments       int
	Table              fetcher.TableOptions
	MaxConcurrentZones int
	WriteSummary       bool
	// DryRun computes reports without writing files or ledger entries.
	DryRun bool
}

// NewOptions derives processor options from the application config.
func NewOptions(cfg *config.Config) (Options, error) {
	src, err := geometry.ParseSRID(cfg.Geometry.SourceCRS)
	if err != nil {
		return Options{}, err
	}
	dst, err := geometry.ParseSRID(cfg.Geometry.TargetCRS)
	if err != nil {
		return Options{}, err
	}
	return Options{
		SourceSRID:         src,
		TargetSRID:         dst,
		BufferRadius:       cfg.Geometry.BufferRadius,
		QuadSegments:       cfg.Geometry.QuadSegments,
		Table:              fetcher.TableOptions{Delimiter: delimiter(cfg.Geometry.AttrDelimiter)},
		MaxConcurrentZones: cfg.Batch.MaxConcurrentZones,
		WriteSummary:       cfg.Output.WriteSummary,
	}, nil
}

// Processor computes and persists the coverage report of one neighborhood.
type Processor struct {
	opts   Options
	engine geometry.Engine
	loader *survey.Loader
	store  store.Store
}

// NewProcessor creates a processor. st may be nil, in which case no ledger
// entries are written.
func NewProcessor(opts Options, st store.Store) (*Processor, error) {
	proj, err := geometry.NewProjector(opts.SourceSRID, opts.TargetSRID)
	if err != nil {
		return nil, eris.Wrap(err, "neighborhood: camera projection")
	}
	if opts.MaxConcurrentZones < 1 {
		opts.MaxConcurrentZones = len(model.ZoneCategories)
	}
	engine := geometry.NewOverlay(opts.QuadSegments)
	return &Processor{
		opts:   opts,
		engine: engine,
		loader: survey.NewLoader(survey.NewBufferBuilder(proj, engine, opts.BufferRadius), opts.Table),
		store:  st,
	}, nil
}

// Result is the outcome of processing one neighborhood.
type Result struct {
	Neighborhood string
	RunID        string
	Report       *model.NeighborhoodReport
	Trips        []report.TripDiagnostics
	OutputPath   string
	SummaryPath  string
	Records      int
}

// Process runs every trip of the neighborhood through the FOV reducer,
// intersects the accumulated FOVs with each zone category and aggregates
// the zone reports. Unless in dry-run mode the report is written as a
// shapefile and recorded in the run ledger.
func (p *Processor) Process(ctx context.Context, n config.NeighborhoodConfig) (*Result, error) {
	log := zap.L().With(zap.String("component", "neighborhood"), zap.String("neighborhood", n.Name))
	start := time.Now()
	log.Info("neighborhood: starting")

	res := &Result{Neighborhood: n.Name}

	ledger := p.store != nil && !p.opts.DryRun
	if ledger {
		run, err := p.store.CreateRun(ctx, n.Name)
		if err != nil {
			return nil, eris.Wrap(err, "neighborhood: create run")
		}
		res.RunID = run.ID
		if err := p.store.UpdateRunStatus(ctx, run.ID, model.RunStatusRunning); err != nil {
			log.Warn("neighborhood: failed to update status", zap.Error(err))
		}
	}

	err := p.process(ctx, n, res, log)
	if err != nil {
		if ledger {
			// The run context may already be cancelled.
			if fErr := p.store.FailRun(context.WithoutCancel(ctx), res.RunID, err); fErr != nil {
				log.Warn("neighborhood: failed to record failure", zap.Error(fErr))
			}
		}
		log.Error("neighborhood: failed", zap.Error(err))
		return nil, err
	}

	if ledger {
		if err := p.store.CompleteRun(ctx, res.RunID, res.OutputPath, res.Records, res.Report.Summaries()); err != nil {
			return nil, eris.Wrap(err, "neighborhood: complete run")
		}
	}

	log.Info("neighborhood: complete",
		zap.Int("records", res.Records),
		zap.String("output", res.OutputPath),
		zap.Duration("elapsed", time.Since(start)),
	)
	return res, nil
}

func (p *Processor) process(ctx context.Context, n config.NeighborhoodConfig, res *Result, log *zap.Logger) error {
	layerSRID, err := geometry.ParseSRID(n.LayerCRS)
	if err != nil {
		return eris.Wrapf(err, "neighborhood: %s layer crs", n.Name)
	}
	categories, err := zoneCategories(n)
	if err != nil {
		return err
	}

	bldgProj, err := p.layerProjector(n.Buildings, layerSRID)
	if err != nil {
		return eris.Wrapf(err, "neighborhood: %s buildings projection", n.Name)
	}
	buildings, err := shapefile.ReadBuildings(n.Buildings, bldgProj)
	if err != nil {
		return eris.Wrap(err, "neighborhood: load buildings")
	}
	reducer := fov.NewReducer(p.engine, buildings)

	var acc fov.Accumulator
	for _, t := range n.Trips {
		if err := ctx.Err(); err != nil {
			return eris.Wrap(err, "neighborhood: cancelled")
		}
		cov, err := p.loader.Load(ctx, survey.Trip{Name: t.Name, Coords: t.Coords, Attributes: t.Attributes})
		if err != nil {
			return eris.Wrapf(err, "neighborhood: trip %s", t.Name)
		}
		reduced, err := reducer.Reduce(t.Name, cov.Table)
		if err != nil {
			return eris.Wrapf(err, "neighborhood: trip %s", t.Name)
		}
		if err := acc.Add(reduced.Set); err != nil {
			return eris.Wrapf(err, "neighborhood: trip %s", t.Name)
		}
		res.Trips = append(res.Trips, report.TripDiagnostics{
			Trip:                t.Name,
			Cameras:             cov.Cameras,
			Merged:              len(cov.Table.Records),
			FOVs:                len(reduced.Set.FOVs),
			Duplicates:          cov.Duplicates,
			UnmatchedAttributes: cov.UnmatchedAttributes,
			UnmatchedBuffers:    cov.UnmatchedBuffers,
			Obstructed:          reduced.Obstructed,
		})
	}
	fovs := acc.Set()
	if fovs.SRID == 0 {
		fovs.SRID = p.opts.TargetSRID
	}
	log.Info("neighborhood: fovs built",
		zap.Int("trips", len(n.Trips)),
		zap.Int("fovs", len(fovs.FOVs)),
		zap.Int("buildings", len(buildings)),
	)

	zones, err := p.zoneReports(ctx, n, categories, layerSRID, fovs)
	if err != nil {
		return err
	}
	res.Report = &model.NeighborhoodReport{Name: n.Name, Zones: zones}

	if p.opts.DryRun {
		for _, z := range zones {
			res.Records += len(z.Rows)
		}
		return nil
	}
	return p.persist(n, res)
}

// zoneReports processes the zone categories concurrently. Each category owns
// its fragment table; the FOV set is shared read-only.
func (p *Processor) zoneReports(ctx context.Context, n config.NeighborhoodConfig, categories []model.ZoneCategory, layerSRID int, fovs *model.FOVSet) ([]model.ZoneReport, error) {
	reports := make([]model.ZoneReport, len(categories))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.opts.MaxConcurrentZones)
	for i, cat := range categories {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			path := n.Zones[string(cat)]
			proj, err := p.layerProjector(path, layerSRID)
			if err != nil {
				return eris.Wrapf(err, "neighborhood: %s zones projection", cat)
			}
			layer, err := shapefile.ReadZones(path, cat, proj)
			if err != nil {
				return eris.Wrapf(err, "neighborhood: load %s zones", cat)
			}
			zf, err := fov.Intersect(p.engine, layer, fovs)
			if err != nil {
				return err
			}
			zr := qov.Aggregate(zf)
			reports[i] = *zr

			zap.L().Debug("neighborhood: zone aggregated",
				zap.String("neighborhood", n.Name),
				zap.String("zone", string(cat)),
				zap.Int("fov_cnt", zr.Stats.FOVCount),
				zap.Int("totqov_cnt", zr.Stats.QOVCount),
				zap.Float64("actl_fov", zr.Stats.ActualFOVPct),
			)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, eris.Wrap(err, "neighborhood: zone processing")
	}
	return reports, nil
}

// layerProjector projects a layer from the system named by its .prj, falling
// back to the configured layer system when the .prj is missing or unknown.
func (p *Processor) layerProjector(path string, configured int) (geometry.Projector, error) {
	srid, found, err := shapefile.ReadSRID(path)
	if err != nil {
		return nil, err
	}
	switch {
	case found && srid == 0:
		zap.L().Warn("neighborhood: unrecognized .prj, using layer_crs",
			zap.String("layer", path),
			zap.Int("layer_crs", configured),
		)
		srid = configured
	case !found:
		srid = configured
	case srid != configured:
		zap.L().Warn("neighborhood: .prj disagrees with layer_crs, using .prj",
			zap.String("layer", path),
			zap.Int("prj", srid),
			zap.Int("layer_crs", configured),
		)
	}
	return geometry.NewProjector(srid, p.opts.TargetSRID)
}

func (p *Processor) persist(n config.NeighborhoodConfig, res *Result) error {
	res.OutputPath = filepath.Join(n.OutputDir, n.Name+".shp")
	written, err := shapefile.WriteReport(res.OutputPath, res.Report, p.opts.TargetSRID)
	if err != nil {
		return eris.Wrap(err, "neighborhood: write report")
	}
	res.Records = written

	if !p.opts.WriteSummary {
		return nil
	}
	res.SummaryPath = report.SummaryPath(n.OutputDir, n.Name)
	return report.WriteSummary(res.SummaryPath, &report.Summary{
		Neighborhood: n.Name,
		RunID:        res.RunID,
		Output:       res.OutputPath,
		Records:      res.Records,
		GeneratedAt:  time.Now().UTC(),
		Zones:        res.Report.Summaries(),
		Trips:        res.Trips,
	})
}

// zoneCategories returns the configured categories in report order and
// rejects unknown category names.
func zoneCategories(n config.NeighborhoodConfig) ([]model.ZoneCategory, error) {
	known := make(map[string]bool, len(model.ZoneCategories))
	var out []model.ZoneCategory
	for _, c := range model.ZoneCategories {
		known[string(c)] = true
		if n.Zones[string(c)] != "" {
			out = append(out, c)
		}
	}
	for name := range n.Zones {
		if !known[name] {
			return nil, eris.Errorf("neighborhood: %s: unknown zone category %q", n.Name, name)
		}
	}
	return out, nil
}

// delimiter converts the configured attribute delimiter to a rune. "tab"
// and a literal backslash-t select a tab; empty selects the reader default.
func delimiter(s string) rune {
	switch s {
	case "":
		return 0
	case "tab", `\t`:
		return '\t'
	}
	r, _ := utf8.DecodeRuneInString(s)
	return r
}
