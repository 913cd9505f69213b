package transform

import (
	"math"

	"gonum.org/v1/gonum/mat"
)

// ObserverPosition is a fixed ground site. Its Earth-fixed position and the
// rotation into the local South-East-Zenith frame are computed once so one
// observer can serve many lookups.
type ObserverPosition struct {
	Geodetic GeodeticPoint
	Position Vec3 // ITRF, meters

	sez *mat.Dense
}

// LookAngles holds azimuth, elevation, range and range rate from an
// observer to a satellite.
type LookAngles struct {
	AzimuthDeg   float64 // 0 = North, clockwise
	ElevationDeg float64 // 0 = horizon, 90 = zenith
	RangeKm      float64
	RangeRateKmS float64 // positive when receding
}

// NewObserverPosition places an observer on WGS-84. Latitude and longitude
// are in degrees, altitude in meters above the ellipsoid.
func NewObserverPosition(latDeg, lonDeg, altM float64) ObserverPosition {
	return WGS84.Observer(GeodeticDeg(latDeg, lonDeg, altM))
}

// Observer places g on el.
func (el Ellipsoid) Observer(g GeodeticPoint) ObserverPosition {
	x, y, z := el.ToECEF(g)
	return ObserverPosition{Geodetic: g, Position: Vec3{x, y, z}, sez: sezRotation(g)}
}

// sezRotation is R2(π/2 − φ)·R3(λ), ITRF to South-East-Zenith.
func sezRotation(g GeodeticPoint) *mat.Dense {
	var m mat.Dense
	m.Mul(rotY(math.Pi/2-g.Lat), rotZ(g.Lon))
	return &m
}

// Look returns azimuth, elevation and range to an ITRF position in meters.
// A target at the observer's own position is reported at the zenith.
func (obs ObserverPosition) Look(pos Vec3) LookAngles {
	la, _ := obs.look(pos)
	return la
}

// LookAt is Look for an ITRF state, with range rate from its velocity.
func (obs ObserverPosition) LookAt(sv StateVector) LookAngles {
	la, rho := obs.look(sv.Position)
	if la.RangeKm > 0 {
		la.RangeRateKmS = (rho[0]*sv.Velocity[0] + rho[1]*sv.Velocity[1] + rho[2]*sv.Velocity[2]) /
			rho.Norm() / 1000
	}
	return la
}

func (obs ObserverPosition) look(pos Vec3) (LookAngles, Vec3) {
	rho := Vec3{pos[0] - obs.Position[0], pos[1] - obs.Position[1], pos[2] - obs.Position[2]}
	r := rho.Norm()
	if r == 0 {
		return LookAngles{ElevationDeg: 90}, rho
	}

	sez := obs.sez
	if sez == nil {
		sez = sezRotation(obs.Geodetic)
	}
	var local mat.VecDense
	local.MulVec(sez, vec(rho))
	south, east, zenith := local.AtVec(0), local.AtVec(1), local.AtVec(2)

	az := math.Atan2(east, -south)
	if az < 0 {
		az += 2 * math.Pi
	}
	return LookAngles{
		AzimuthDeg:   az * rad2deg,
		ElevationDeg: math.Asin(zenith/r) * rad2deg,
		RangeKm:      r / 1000,
	}, rho
}
