package transform

import (
	"errors"
	"fmt"
	"math"
)

// ErrGeodeticNotConverged reports a latitude iteration that did not settle.
var ErrGeodeticNotConverged = errors.New("geodetic latitude did not converge")

const (
	geodeticTol     = 1e-12 // radians
	geodeticMaxIter = 20
	rad2deg         = 180.0 / math.Pi
	deg2rad         = math.Pi / 180.0
)

// Ellipsoid is a reference ellipsoid of revolution.
type Ellipsoid struct {
	A float64 // semi-major axis, meters
	F float64 // flattening
}

var (
	WGS84 = Ellipsoid{A: 6378137.0, F: 1.0 / 298.257223563}
	WGS72 = Ellipsoid{A: 6378135.0, F: 1.0 / 298.26}
)

// E2 returns the first eccentricity squared.
func (el Ellipsoid) E2() float64 { return el.F * (2 - el.F) }

// B returns the semi-minor axis in meters.
func (el Ellipsoid) B() float64 { return el.A * (1 - el.F) }

// GeodeticPoint is a position relative to an ellipsoid.
type GeodeticPoint struct {
	Lat float64 // radians, [−π/2, π/2]
	Lon float64 // radians, (−π, π]
	Alt float64 // meters above the ellipsoid, negative below
}

// LatDeg returns the latitude in degrees.
func (g GeodeticPoint) LatDeg() float64 { return g.Lat * rad2deg }

// LonDeg returns the longitude in degrees.
func (g GeodeticPoint) LonDeg() float64 { return g.Lon * rad2deg }

// GeodeticDeg builds a GeodeticPoint from degrees and meters.
func GeodeticDeg(latDeg, lonDeg, altM float64) GeodeticPoint {
	return GeodeticPoint{Lat: latDeg * deg2rad, Lon: lonDeg * deg2rad, Alt: altM}
}

// ToGeodetic converts Earth-fixed Cartesian coordinates (meters) to geodetic
// coordinates. The latitude starts from Bowring's estimate and is refined
// until successive values differ by less than 1e-12 rad.
func (el Ellipsoid) ToGeodetic(x, y, z float64) (GeodeticPoint, error) {
	if math.IsNaN(x) || math.IsNaN(y) || math.IsNaN(z) ||
		math.IsInf(x, 0) || math.IsInf(y, 0) || math.IsInf(z, 0) {
		return GeodeticPoint{}, fmt.Errorf("%w: non-finite position", ErrGeodeticNotConverged)
	}
	e2 := el.E2()
	p := math.Hypot(x, y)

	// On the polar axis longitude is undefined; report 0. The origin is
	// reported on the north pole.
	if p < 1e-9*el.A {
		lat := math.Pi / 2
		if z < 0 {
			lat = -lat
		}
		return GeodeticPoint{Lat: lat, Lon: 0, Alt: math.Abs(z) - el.B()}, nil
	}

	lon := math.Atan2(y, x)
	if lon <= -math.Pi {
		lon = math.Pi
	}

	lat := math.Atan2(z, p*(1-e2))
	converged := false
	for i := 0; i < geodeticMaxIter; i++ {
		sinLat := math.Sin(lat)
		N := el.A / math.Sqrt(1-e2*sinLat*sinLat)
		next := math.Atan2(z+e2*N*sinLat, p)
		delta := math.Abs(next - lat)
		lat = next
		if delta < geodeticTol {
			converged = true
			break
		}
	}
	if !converged {
		return GeodeticPoint{}, fmt.Errorf("%w after %d iterations", ErrGeodeticNotConverged, geodeticMaxIter)
	}

	sinLat, cosLat := math.Sincos(lat)
	alt := p*cosLat + z*sinLat - el.A*math.Sqrt(1-e2*sinLat*sinLat)

	return GeodeticPoint{Lat: lat, Lon: lon, Alt: alt}, nil
}

// ToECEF converts a geodetic point to Earth-fixed Cartesian coordinates
// in meters.
func (el Ellipsoid) ToECEF(g GeodeticPoint) (x, y, z float64) {
	e2 := el.E2()
	sinLat, cosLat := math.Sincos(g.Lat)
	sinLon, cosLon := math.Sincos(g.Lon)

	// Radius of curvature in the prime vertical.
	N := el.A / math.Sqrt(1-e2*sinLat*sinLat)

	x = (N + g.Alt) * cosLat * cosLon
	y = (N + g.Alt) * cosLat * sinLon
	z = (N*(1-e2) + g.Alt) * sinLat
	return x, y, z
}
