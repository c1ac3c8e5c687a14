// Package survey turns a trip's raw coordinate and attribute files into keyed
// camera coverage records.
package survey

import (
	"bufio"
	"io"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/fovcover/internal/model"
)

// Coordinate file layout: every record is recordLines lines, the last of
// which is a separator.
const (
	recordLines = 8
	dataLines   = recordLines - 1
	keyLine     = 0
	latLine     = 3
	lonLine     = 4
)

// ErrMalformedInput marks coordinate or attribute input that cannot be parsed.
var ErrMalformedInput = eris.New("survey: malformed input")

// Duplicate records a key that appeared more than once in a coordinate file.
type Duplicate struct {
	Key string `json:"key" yaml:"key"`
	// Records are the 0-based record positions carrying the key, in file order.
	Records []int `json:"records" yaml:"records"`
}

// ParseResult is the outcome of parsing one coordinate file.
type ParseResult struct {
	// Cameras are in file order, one per distinct key. A repeated key keeps
	// the position of its first record and the coordinates of its last.
	Cameras    []model.CameraRecord
	Duplicates []Duplicate
}

// ParsePoints reads 8-line camera records from r.
func ParsePoints(r io.Reader) (*ParseResult, error) {
	lines, err := readLines(r)
	if err != nil {
		return nil, err
	}
	return ParseLines(lines)
}

// ParseLines parses camera records from already split lines.
func ParseLines(lines []string) (*ParseResult, error) {
	var (
		cameras   []model.CameraRecord
		positions = make(map[string][]int)
		slot      = make(map[string]int)
	)

	for start, rec := 0, 0; start < len(lines); start, rec = start+recordLines, rec+1 {
		end := start + dataLines
		if end > len(lines) {
			return nil, eris.Wrapf(ErrMalformedInput, "record %d: expected %d lines, got %d", rec, dataLines, len(lines)-start)
		}
		cam, err := parseRecord(lines[start:end])
		if err != nil {
			return nil, eris.Wrapf(err, "record %d", rec)
		}

		positions[cam.Key] = append(positions[cam.Key], rec)
		if i, ok := slot[cam.Key]; ok {
			cameras[i] = cam
			continue
		}
		slot[cam.Key] = len(cameras)
		cameras = append(cameras, cam)
	}

	res := &ParseResult{Cameras: cameras}
	for _, cam := range cameras {
		if recs := positions[cam.Key]; len(recs) > 1 {
			res.Duplicates = append(res.Duplicates, Duplicate{Key: cam.Key, Records: recs})
		}
	}
	if len(res.Duplicates) > 0 {
		zap.L().Warn("survey: duplicate camera keys, later records win",
			zap.Int("duplicates", len(res.Duplicates)),
			zap.String("first", res.Duplicates[0].Key),
		)
	}
	return res, nil
}

func parseRecord(block []string) (model.CameraRecord, error) {
	key := strings.Trim(block[keyLine], ".\r\n")
	if strings.TrimSpace(key) == "" {
		return model.CameraRecord{}, eris.Wrap(ErrMalformedInput, "empty key")
	}
	lat, err := parseLabeled(block[latLine], "lat")
	if err != nil {
		return model.CameraRecord{}, err
	}
	lon, err := parseLabeled(block[lonLine], "lon")
	if err != nil {
		return model.CameraRecord{}, err
	}
	return model.CameraRecord{Key: key, Lon: lon, Lat: lat}, nil
}

// parseLabeled parses a "label: value" line.
func parseLabeled(line, label string) (float64, error) {
	_, value, ok := strings.Cut(strings.TrimRight(line, "\r\n"), ":")
	if !ok {
		return 0, eris.Wrapf(ErrMalformedInput, "%s: missing ':' in %q", label, line)
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
	if err != nil {
		return 0, eris.Wrapf(ErrMalformedInput, "%s: parse %q: %v", label, value, err)
	}
	return f, nil
}

func readLines(r io.Reader) ([]string, error) {
	var lines []string
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for sc.Scan() {
		lines = append(lines, sc.Text())
	}
	if err := sc.Err(); err != nil {
		return nil, eris.Wrap(err, "survey: read coordinates")
	}
	return lines, nil
}
