// Package report writes the per-neighborhood summary sidecar.
package report

import (
	"os"
	"path/filepath"
	"time"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/fovcover/internal/model"
	"github.com/sells-group/fovcover/internal/survey"
)

// Summary is the YAML sidecar written next to a coverage shapefile.
type Summary struct {
	Neighborhood string              `yaml:"neighborhood"`
	RunID        string              `yaml:"run_id,omitempty"`
	Output       string              `yaml:"output"`
	Records      int                 `yaml:"records"`
	GeneratedAt  time.Time           `yaml:"generated_at"`
	Zones        []model.ZoneSummary `yaml:"zones"`
	Trips        []TripDiagnostics   `yaml:"trips"`
}

// TripDiagnostics lists what a trip lost on the way to its FOVs.
type TripDiagnostics struct {
	Trip                string             `yaml:"trip"`
	Cameras             int                `yaml:"cameras"`
	Merged              int                `yaml:"merged"`
	FOVs                int                `yaml:"fovs"`
	Duplicates          []survey.Duplicate `yaml:"duplicates,omitempty"`
	UnmatchedAttributes []string           `yaml:"unmatched_attributes,omitempty"`
	UnmatchedBuffers    []string           `yaml:"unmatched_buffers,omitempty"`
	Obstructed          []string           `yaml:"obstructed,omitempty"`
}

// SummaryPath returns the sidecar path for a neighborhood output directory.
func SummaryPath(outputDir, name string) string {
	return filepath.Join(outputDir, name+"_summary.yaml")
}

// WriteSummary writes s as YAML to path, creating parent directories.
func WriteSummary(path string, s *Summary) error {
	data, err := yaml.Marshal(s)
	if err != nil {
		return eris.Wrap(err, "report: marshal summary")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return eris.Wrapf(err, "report: create directory for %s", path)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return eris.Wrapf(err, "report: write %s", path)
	}
	return nil
}

// ReadSummary reads a sidecar written by WriteSummary.
func ReadSummary(path string) (*Summary, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "report: read %s", path)
	}
	var s Summary
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, eris.Wrapf(err, "report: parse %s", path)
	}
	return &s, nil
}
