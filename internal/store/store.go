// Package store persists the run ledger.
package store

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/sells-group/fovcover/internal/config"
	"github.com/sells-group/fovcover/internal/model"
)

// RunFilter specifies criteria for listing runs.
type RunFilter struct {
	Neighborhood string          `json:"neighborhood,omitempty"`
	Status       model.RunStatus `json:"status,omitempty"`
	Limit        int             `json:"limit,omitempty"`
	Offset       int             `json:"offset,omitempty"`
}

// Store defines the persistence interface for neighborhood runs.
type Store interface {
	// Runs
	CreateRun(ctx context.Context, neighborhood string) (*model.Run, error)
	UpdateRunStatus(ctx context.Context, runID string, status model.RunStatus) error
	FailRun(ctx context.Context, runID string, cause error) error
	CompleteRun(ctx context.Context, runID, outputPath string, records int, zones []model.ZoneSummary) error
	GetRun(ctx context.Context, runID string) (*model.Run, error)
	ListRuns(ctx context.Context, filter RunFilter) ([]model.Run, error)

	// Zone statistics
	ZoneStats(ctx context.Context, runID string) ([]model.ZoneSummary, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}

// Open opens and migrates the configured store.
func Open(ctx context.Context, cfg config.StoreConfig) (Store, error) {
	switch cfg.Driver {
	case "sqlite", "":
		st, err := NewSQLite(cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		if err := st.Migrate(ctx); err != nil {
			_ = st.Close()
			return nil, err
		}
		return st, nil
	default:
		return nil, eris.Errorf("store: unsupported driver %q", cfg.Driver)
	}
}
