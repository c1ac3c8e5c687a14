package survey

import (
	"context"
	"os"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/fovcover/internal/fetcher"
	"github.com/sells-group/fovcover/internal/model"
)

// Trip names the input files of one survey trip.
type Trip struct {
	Name       string
	Coords     string
	Attributes string
}

// TripCoverage is a trip's merged camera table plus the input diagnostics
// collected while building it.
type TripCoverage struct {
	Trip                string
	Table               model.CoverageTable
	Cameras             int
	Duplicates          []Duplicate
	UnmatchedAttributes []string
	UnmatchedBuffers    []string
}

// Loader builds trip coverage tables.
type Loader struct {
	buffers *BufferBuilder
	table   fetcher.TableOptions
}

// NewLoader creates a trip loader.
func NewLoader(buffers *BufferBuilder, table fetcher.TableOptions) *Loader {
	return &Loader{buffers: buffers, table: table}
}

// Load parses, buffers, aligns and merges one trip.
func (l *Loader) Load(ctx context.Context, trip Trip) (*TripCoverage, error) {
	log := zap.L().With(zap.String("component", "survey.loader"), zap.String("trip", trip.Name))

	f, err := os.Open(trip.Coords)
	if err != nil {
		return nil, eris.Wrapf(err, "survey: open coordinates %s", trip.Coords)
	}
	parsed, err := ParsePoints(f)
	_ = f.Close()
	if err != nil {
		return nil, eris.Wrapf(err, "survey: parse %s", trip.Coords)
	}

	attrs, err := LoadAttributes(ctx, trip.Attributes, l.table)
	if err != nil {
		return nil, err
	}

	merged := Merge(attrs, l.buffers.Build(parsed.Cameras))

	log.Info("trip loaded",
		zap.Int("cameras", len(parsed.Cameras)),
		zap.Int("attribute_rows", len(attrs.Records)),
		zap.Int("merged", len(merged.Table.Records)),
	)

	return &TripCoverage{
		Trip:                trip.Name,
		Table:               merged.Table,
		Cameras:             len(parsed.Cameras),
		Duplicates:          parsed.Duplicates,
		UnmatchedAttributes: merged.UnmatchedAttributes,
		UnmatchedBuffers:    merged.UnmatchedBuffers,
	}, nil
}
