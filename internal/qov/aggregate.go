package qov

import (
	"math"

	"github.com/sells-group/fovcover/internal/model"
)

// Aggregate classifies a zone's fragments with the default rules and
// computes its zone-wide statistics.
func Aggregate(z *model.ZoneFOV) *model.ZoneReport {
	return AggregateWith(z, Rules)
}

// AggregateWith classifies a zone's fragments with the given prioritized
// rules.
//
// Per cause, Matched counts every fragment satisfying the rule and is what
// each tagged fragment reports as loqov_cnt/loqov_area. Attributed counts
// only fragments assigned to the cause after priority deduplication; the
// zone totals are the sums of the attributed values, so a fragment is
// counted once however many rules it matches.
func AggregateWith(z *model.ZoneFOV, rules []Rule) *model.ZoneReport {
	byCause := make(map[model.Cause]model.CauseStats, len(rules))
	causes := make([]model.Cause, len(z.Fragments))
	tagged := make([]bool, len(z.Fragments))

	for i := range z.Fragments {
		f := &z.Fragments[i]
		first := true
		for _, r := range rules {
			if !r.Match(f) {
				continue
			}
			s := byCause[r.Cause]
			s.Matched++
			s.MatchedArea += f.Area
			if first {
				s.Attributed++
				s.AttributedArea += f.Area
				causes[i] = r.Cause
				tagged[i] = true
				first = false
			}
			byCause[r.Cause] = s
		}
	}

	stats := model.ZoneStats{
		FOVCount: z.Count,
		FOVArea:  z.TotalArea,
		ByCause:  make(map[model.Cause]model.CauseStats, len(rules)),
	}
	for _, r := range rules {
		s := byCause[r.Cause]
		stats.ByCause[r.Cause] = s
		stats.QOVCount += s.Attributed
		stats.QOVArea += s.AttributedArea
	}
	stats.NoIRPct = percent(float64(stats.QOVCount), float64(stats.FOVCount))
	stats.ActualFOVPct = percent(stats.FOVArea-stats.QOVArea, stats.FOVArea)

	rows := make([]model.ReportRow, len(z.Fragments))
	for i := range z.Fragments {
		rows[i] = model.ReportRow{Fragment: z.Fragments[i]}
		if !tagged[i] {
			continue
		}
		s := byCause[causes[i]]
		rows[i].QOV = &model.QOV{
			Cause: causes[i],
			Count: s.Matched,
			Area:  s.MatchedArea,
		}
	}

	return &model.ZoneReport{
		Category:    z.Category,
		ZoneColumns: append([]string(nil), z.ZoneColumns...),
		FOVColumns:  append([]string(nil), z.FOVColumns...),
		Stats:       stats,
		Rows:        rows,
	}
}

// percent returns part/whole*100 clamped to [0, 100], or 0 when whole is 0.
func percent(part, whole float64) float64 {
	if whole == 0 {
		return 0
	}
	return math.Max(0, math.Min(100, part/whole*100))
}
