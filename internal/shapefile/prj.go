package shapefile

import (
	"errors"
	"io/fs"
	"os"
	"regexp"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/fovcover/internal/geometry"
)

// topAuthority matches the EPSG authority closing a WKT definition.
var topAuthority = regexp.MustCompile(`AUTHORITY\[\s*"EPSG"\s*,\s*"?(\d+)"?\s*\]\s*\]\s*$`)

// ReadSRID identifies the reference system in the .prj next to a shapefile.
// found reports whether a .prj exists; srid is 0 when its definition is not
// recognized.
func ReadSRID(path string) (srid int, found bool, err error) {
	prj := basename(path) + ".prj"
	data, err := os.ReadFile(prj)
	if errors.Is(err, fs.ErrNotExist) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, eris.Wrapf(err, "shapefile: read %s", prj)
	}

	srid = ParseWKT(string(data))
	if srid == 0 {
		zap.L().Debug("shapefile: unrecognized .prj", zap.String("path", prj))
	}
	return srid, true, nil
}

// ParseWKT maps a WKT or ESRI WKT definition to an EPSG code, or 0.
func ParseWKT(wkt string) int {
	wkt = strings.TrimSpace(wkt)
	for srid, known := range projections {
		if wkt == known {
			return srid
		}
	}
	if m := topAuthority.FindStringSubmatch(wkt); m != nil {
		if srid, err := strconv.Atoi(m[1]); err == nil {
			return srid
		}
	}

	norm := strings.ToLower(strings.NewReplacer(" ", "_", "-", "_").Replace(wkt))
	switch {
	case strings.HasPrefix(norm, "projcs") &&
		strings.Contains(norm, "long_island") &&
		(strings.Contains(norm, "foot_us") || strings.Contains(norm, "us_survey_foot") || strings.Contains(norm, "ftus")):
		return geometry.SRIDNYLongIslandFtUS
	case strings.HasPrefix(norm, "geogcs") && strings.Contains(norm, "wgs_1984"), strings.HasPrefix(norm, "geogcs[\"wgs_84\""):
		return geometry.SRIDWGS84
	case strings.HasPrefix(norm, "geogcs") && (strings.Contains(norm, "north_american_1983") || strings.Contains(norm, "nad83")):
		return geometry.SRIDNAD83
	}
	return 0
}
