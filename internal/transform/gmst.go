package transform

import (
	"math"
	"time"
)

// j2000 is the Julian Date of the J2000.0 epoch (January 1, 2000, 12:00:00 TT).
const j2000 = 2451545.0

// OmegaEarth is Earth's rotation rate in rad/s (IAU value).
const OmegaEarth = 7.292115146706979e-5

const (
	twoPi      = 2.0 * math.Pi
	arcsec2rad = math.Pi / 648000.0
)

// JulianDate converts a time.Time (UTC) to Julian Date.
func JulianDate(t time.Time) float64 {
	return FromTime(t).JD()
}

// GMST calculates Greenwich Mean Sidereal Time in radians for a given UTC
// time, treating UTC as UT1.
func GMST(t time.Time) float64 {
	return GMST82(FromTime(t))
}

// GMST82 returns Greenwich Mean Sidereal Time in radians using the IAU-82
// model (Vallado Eq 3-47):
//
//	θ_GMST = 67310.54841 + (876600h + 8640184.812866)*T + 0.093104*T² - 6.2e-6*T³
//
// where T is Julian centuries of UT1 from J2000.0 and the result is in
// seconds of time.
func GMST82(ut1 Epoch) float64 {
	tUT1 := ((ut1.day - j2000) + ut1.frac) / 36525.0

	// 876600h = 876600 * 3600 = 3155760000 seconds.
	gmstSec := 67310.54841 +
		(3155760000.0+8640184.812866)*tUT1 +
		0.093104*tUT1*tUT1 -
		6.2e-6*tUT1*tUT1*tUT1

	// Normalize to [0, 86400) seconds, then convert to radians.
	gmstSec = math.Mod(gmstSec, 86400.0)
	if gmstSec < 0 {
		gmstSec += 86400.0
	}
	return gmstSec / 86400.0 * twoPi
}

// ERA returns the Earth Rotation Angle in radians (IERS Conventions 2010,
// eq. 5.15).
func ERA(ut1 Epoch) float64 {
	du := (ut1.day - j2000) + ut1.frac
	// The day part ends in .5, so its own fraction contributes half a turn.
	turns := 0.7790572732640 + 0.00273781191135448*du + 0.5 + ut1.frac
	return normAngle(twoPi * math.Mod(turns, 1.0))
}

// GMST06 returns Greenwich Mean Sidereal Time in radians consistent with the
// IAU 2006 precession (IERS Conventions 2010, eq. 5.32).
func GMST06(ut1, tt Epoch) float64 {
	t := ((tt.day - j2000) + tt.frac) / 36525.0
	poly := 0.014506 +
		t*(4612.156534+
			t*(1.3915817+
				t*(-0.00000044+
					t*(-0.000029956+
						t*-0.0000000368))))
	return normAngle(ERA(ut1) + poly*arcsec2rad)
}

func normAngle(a float64) float64 {
	a = math.Mod(a, twoPi)
	if a < 0 {
		a += twoPi
	}
	return a
}
