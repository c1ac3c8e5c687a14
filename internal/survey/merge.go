package survey

import (
	"go.uber.org/zap"

	"github.com/sells-group/fovcover/internal/model"
)

// MergeResult is the inner join of attributes and buffers.
type MergeResult struct {
	Table               model.CoverageTable
	UnmatchedAttributes []string
	UnmatchedBuffers    []string
}

// Merge inner-joins attribute records to buffers by key. Keys present on only
// one side are dropped and reported. Output follows attribute order.
func Merge(attrs *model.AttributeTable, buffers []model.BufferPolygon) *MergeResult {
	byKey := make(map[string]model.BufferPolygon, len(buffers))
	for _, b := range buffers {
		byKey[b.Key] = b
	}

	res := &MergeResult{}
	res.Table.Columns = append([]string(nil), attrs.Columns...)

	matched := make(map[string]bool, len(attrs.Records))
	for _, a := range attrs.Records {
		b, ok := byKey[a.Key]
		if !ok {
			res.UnmatchedAttributes = append(res.UnmatchedAttributes, a.Key)
			continue
		}
		matched[a.Key] = true
		res.Table.Records = append(res.Table.Records, model.CoverageRecord{
			Key:    a.Key,
			Attrs:  a.Values,
			Buffer: b.Geom,
		})
	}
	for _, b := range buffers {
		if !matched[b.Key] {
			res.UnmatchedBuffers = append(res.UnmatchedBuffers, b.Key)
		}
	}

	if len(res.UnmatchedAttributes) > 0 || len(res.UnmatchedBuffers) > 0 {
		zap.L().Warn("survey: dropped unmatched camera keys",
			zap.Int("matched", len(res.Table.Records)),
			zap.Int("unmatched_attributes", len(res.UnmatchedAttributes)),
			zap.Int("unmatched_buffers", len(res.UnmatchedBuffers)),
		)
	}
	return res
}
