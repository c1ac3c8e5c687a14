package survey

import (
	"context"
	"strconv"

	"github.com/rotisserie/eris"

	"github.com/sells-group/fovcover/internal/fetcher"
	"github.com/sells-group/fovcover/internal/model"
)

// LoadAttributes reads a trip's attribute file and aligns it to the camera
// keys of the matching coordinate file.
func LoadAttributes(ctx context.Context, path string, opts fetcher.TableOptions) (*model.AttributeTable, error) {
	tbl, err := fetcher.ReadTable(ctx, path, opts)
	if err != nil {
		return nil, eris.Wrap(err, "survey: load attributes")
	}
	return AlignAttributes(tbl)
}

// AlignAttributes keys attribute rows by reversed 1-based position: of N
// rows, the first gets key "N" and the last gets key "1". Attribute files
// list cameras in the reverse order of the coordinate file, so the key of
// row i matches the camera record parsed at position PairIndex(i, N).
// Empty cells become missing values.
func AlignAttributes(tbl *fetcher.Table) (*model.AttributeTable, error) {
	cols := make([]int, 0, len(tbl.Header))
	names := make([]string, 0, len(tbl.Header))
	seen := make(map[string]bool, len(tbl.Header))
	for i, h := range tbl.Header {
		if h == "" {
			continue
		}
		if seen[h] {
			return nil, eris.Wrapf(ErrMalformedInput, "duplicate attribute column %q", h)
		}
		seen[h] = true
		cols = append(cols, i)
		names = append(names, h)
	}

	n := len(tbl.Rows)
	out := &model.AttributeTable{
		Columns: names,
		Records: make([]model.AttributeRecord, n),
	}
	for i := range tbl.Rows {
		values := make(map[string]string, len(cols))
		for j, col := range cols {
			if v, ok := tbl.Cell(i, col); ok {
				values[names[j]] = v
			}
		}
		out.Records[i] = model.AttributeRecord{
			Key:    AttributeKey(i, n),
			Values: values,
		}
	}
	return out, nil
}

// AttributeKey returns the key assigned to 0-based attribute row i of n.
func AttributeKey(i, n int) string {
	return strconv.Itoa(n - i)
}

// PairIndex returns the 1-based camera record position that corresponds to
// the 1-based attribute row i of n: row i pairs with record n-i+1.
func PairIndex(i, n int) int {
	return n - i + 1
}
