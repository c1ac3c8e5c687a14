package report

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/fovcover/internal/model"
	"github.com/sells-group/fovcover/internal/survey"
)

func TestSummaryPath(t *testing.T) {
	assert.Equal(t, filepath.Join("qn1", "qn1_cvrg", "qn1_summary.yaml"), SummaryPath(filepath.Join("qn1", "qn1_cvrg"), "qn1"))
}

func TestWriteAndReadSummary(t *testing.T) {
	path := SummaryPath(filepath.Join(t.TempDir(), "out"), "qn1")
	s := &Summary{
		Neighborhood: "qn1",
		RunID:        "run-1",
		Output:       "qn1/qn1_cvrg/qn1.shp",
		Records:      12,
		GeneratedAt:  time.Date(2026, 10, 1, 12, 0, 0, 0, time.UTC),
		Zones: []model.ZoneSummary{{
			Category: model.ZoneResidential,
			Stats: model.ZoneStats{
				FOVCount: 10, FOVArea: 40, QOVCount: 4, QOVArea: 10, NoIRPct: 40, ActualFOVPct: 75,
				ByCause: map[model.Cause]model.CauseStats{
					model.CauseScaffolding: {Matched: 2, MatchedArea: 7, Attributed: 1, AttributedArea: 4},
				},
			},
		}},
		Trips: []TripDiagnostics{{
			Trip:             "qn1_1",
			Cameras:          6,
			Merged:           5,
			FOVs:             4,
			Duplicates:       []survey.Duplicate{{Key: "7", Records: []int{2, 5}}},
			UnmatchedBuffers: []string{"9"},
			Obstructed:       []string{"3"},
		}},
	}

	require.NoError(t, WriteSummary(path, s))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, strings.Contains(string(raw), "sign/scaffolding"))
	assert.True(t, strings.Contains(string(raw), "noir_pct: 40"))
	assert.False(t, strings.Contains(string(raw), "unmatched_attributes"))

	got, err := ReadSummary(path)
	require.NoError(t, err)
	assert.True(t, s.GeneratedAt.Equal(got.GeneratedAt))
	got.GeneratedAt = s.GeneratedAt
	assert.Equal(t, s, got)
}

func TestReadSummary_Missing(t *testing.T) {
	_, err := ReadSummary(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}
