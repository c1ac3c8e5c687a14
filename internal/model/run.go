package model

import "time"

// RunStatus is the state of one neighborhood run.
type RunStatus string

const (
	RunStatusQueued   RunStatus = "queued"
	RunStatusRunning  RunStatus = "running"
	RunStatusComplete RunStatus = "complete"
	RunStatusFailed   RunStatus = "failed"
)

// Run is a ledger entry for one neighborhood run.
type Run struct {
	ID           string    `json:"id"`
	Neighborhood string    `json:"neighborhood"`
	Status       RunStatus `json:"status"`
	Error        string    `json:"error,omitempty"`
	OutputPath   string    `json:"output_path,omitempty"`
	Records      int       `json:"records"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// ZoneSummary is the persisted statistics of one zone category of a run.
type ZoneSummary struct {
	Category ZoneCategory `json:"category" yaml:"category"`
	Stats    ZoneStats    `json:"stats" yaml:"stats"`
}

// Summaries returns the zone statistics of every zone report in order.
func (r *NeighborhoodReport) Summaries() []ZoneSummary {
	out := make([]ZoneSummary, len(r.Zones))
	for i, z := range r.Zones {
		out[i] = ZoneSummary{Category: z.Category, Stats: z.Stats}
	}
	return out
}
