// Package geometry provides projection, buffering, polygon overlay and area
// operations over go-geom polygons.
package geometry

import (
	"math"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
)

// Well-known reference systems.
const (
	SRIDWGS84            = 4326
	SRIDNAD83            = 4269
	SRIDNYLongIslandFtUS = 2263
)

// usSurveyFoot is the length of one US survey foot in meters.
const usSurveyFoot = 1200.0 / 3937.0

// Projector converts geographic longitude/latitude into a projected system.
type Projector interface {
	Project(lon, lat float64) (x, y float64)
	SRID() int
}

// ParseSRID parses identifiers such as "EPSG:2263" or "2263".
func ParseSRID(crs string) (int, error) {
	s := strings.TrimSpace(strings.ToUpper(crs))
	s = strings.TrimPrefix(s, "+INIT=")
	s = strings.TrimPrefix(s, "EPSG:")
	srid, err := strconv.Atoi(s)
	if err != nil {
		return 0, eris.Wrapf(err, "geometry: parse crs %q", crs)
	}
	return srid, nil
}

// NewProjector returns a projector from the source to the target system.
// Only geographic WGS84/NAD83 to NAD83 / New York Long Island (ftUS) is
// supported, plus identity when both systems match.
func NewProjector(source, target int) (Projector, error) {
	if source == target {
		return identity{srid: target}, nil
	}
	if (source == SRIDWGS84 || source == SRIDNAD83) && target == SRIDNYLongIslandFtUS {
		return NewLongIslandProjector(), nil
	}
	return nil, eris.Errorf("geometry: unsupported transform EPSG:%d -> EPSG:%d", source, target)
}

type identity struct{ srid int }

func (i identity) Project(lon, lat float64) (float64, float64) { return lon, lat }
func (i identity) SRID() int                                   { return i.srid }

// LambertConic is a Lambert Conformal Conic (2SP) projection on an ellipsoid.
type LambertConic struct {
	srid   int
	a, e   float64
	n, f   float64
	rho0   float64
	lon0   float64
	x0, y0 float64
	unit   float64 // meters per output unit
}

// NewLongIslandProjector returns the EPSG:2263 projection: NAD83 / New York
// Long Island, US survey feet, GRS80 ellipsoid.
func NewLongIslandProjector() *LambertConic {
	return newLambertConic(lambertParams{
		srid:    SRIDNYLongIslandFtUS,
		a:       6378137.0,
		invF:    298.257222101,
		lat1:    dms(41, 2, 0),
		lat2:    dms(40, 40, 0),
		lat0:    dms(40, 10, 0),
		lon0:    -74.0,
		falseE:  300000.0,
		falseN:  0,
		unitLen: usSurveyFoot,
	})
}

type lambertParams struct {
	srid           int
	a, invF        float64
	lat1, lat2     float64
	lat0, lon0     float64
	falseE, falseN float64
	unitLen        float64
}

func newLambertConic(p lambertParams) *LambertConic {
	flat := 1 / p.invF
	e := math.Sqrt(2*flat - flat*flat)

	phi1, phi2, phi0 := rad(p.lat1), rad(p.lat2), rad(p.lat0)
	m1, m2 := lccM(phi1, e), lccM(phi2, e)
	t1, t2, t0 := lccT(phi1, e), lccT(phi2, e), lccT(phi0, e)

	n := (math.Log(m1) - math.Log(m2)) / (math.Log(t1) - math.Log(t2))
	f := m1 / (n * math.Pow(t1, n))

	return &LambertConic{
		srid: p.srid,
		a:    p.a,
		e:    e,
		n:    n,
		f:    f,
		rho0: p.a * f * math.Pow(t0, n),
		lon0: rad(p.lon0),
		x0:   p.falseE,
		y0:   p.falseN,
		unit: p.unitLen,
	}
}

// Project converts degrees of longitude/latitude to projected units.
func (l *LambertConic) Project(lon, lat float64) (float64, float64) {
	t := lccT(rad(lat), l.e)
	rho := l.a * l.f * math.Pow(t, l.n)
	theta := l.n * (rad(lon) - l.lon0)

	x := l.x0 + rho*math.Sin(theta)
	y := l.y0 + l.rho0 - rho*math.Cos(theta)
	return x / l.unit, y / l.unit
}

// SRID returns the EPSG code of the projected system.
func (l *LambertConic) SRID() int { return l.srid }

func lccM(phi, e float64) float64 {
	s := math.Sin(phi)
	return math.Cos(phi) / math.Sqrt(1-e*e*s*s)
}

func lccT(phi, e float64) float64 {
	s := math.Sin(phi)
	return math.Tan(math.Pi/4-phi/2) / math.Pow((1-e*s)/(1+e*s), e/2)
}

func dms(d, m, s float64) float64 { return d + m/60 + s/3600 }

func rad(deg float64) float64 { return deg * math.Pi / 180 }
