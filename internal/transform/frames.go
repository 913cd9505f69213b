package transform

import (
	"fmt"
	"strings"

	"gonum.org/v1/gonum/mat"
)

// Convention selects the sidereal angle used for TEME → PEF.
type Convention uint8

const (
	// IERS2010 uses GMST06, built on the Earth Rotation Angle.
	IERS2010 Convention = iota
	// IAU1982 uses the classic GMST82 polynomial.
	IAU1982
)

func (c Convention) String() string {
	switch c {
	case IERS2010:
		return "iers2010"
	case IAU1982:
		return "iau1982"
	}
	return fmt.Sprintf("Convention(%d)", uint8(c))
}

// ParseConvention accepts "iers2010" or "iau1982", case-insensitively.
func ParseConvention(s string) (Convention, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "iers2010", "iers_2010", "":
		return IERS2010, nil
	case "iau1982", "iau82", "iau_1982":
		return IAU1982, nil
	}
	return 0, fmt.Errorf("unknown frame convention %q", s)
}

// EOP holds static Earth orientation parameters.
type EOP struct {
	XP, YP float64 // polar motion, radians
	DUT1   float64 // UT1 − UTC, seconds
	LOD    float64 // excess length of day, seconds
}

// Frames bundles the reference data needed to reach the Earth-fixed frame.
// It is a value type and read-only after construction.
type Frames struct {
	Convention Convention
	EOP        EOP
	Leap       *LeapSeconds
}

// DefaultFrames returns IERS 2010 with zero EOP and the built-in leap
// second table.
func DefaultFrames() Frames {
	return Frames{Convention: IERS2010, Leap: DefaultLeapSeconds()}
}

// EarthRotationAngle returns the angle of the TEME → PEF rotation at e for
// the configured convention. UTC and TT epochs are accepted; UT1 epochs are
// used as given.
func (f Frames) EarthRotationAngle(e Epoch) float64 {
	leap := f.Leap
	if leap == nil {
		leap = DefaultLeapSeconds()
	}
	var utc, ut1 Epoch
	switch e.Scale() {
	case TT:
		utc = TTToUTC(e, leap)
		ut1 = UTCToUT1(utc, f.EOP.DUT1)
	case UT1:
		ut1 = e
		utc = e.AddSeconds(-f.EOP.DUT1)
		utc.scale = UTC
	default:
		utc = e
		ut1 = UTCToUT1(e, f.EOP.DUT1)
	}
	if f.Convention == IAU1982 {
		return GMST82(ut1)
	}
	return GMST06(ut1, UTCToTT(utc, leap))
}

// polarMotion returns W = R2(−xp)·R1(−yp), taking PEF to ITRF.
func (f Frames) polarMotion() *mat.Dense {
	if f.EOP.XP == 0 && f.EOP.YP == 0 {
		return mat.NewDense(3, 3, []float64{1, 0, 0, 0, 1, 0, 0, 0, 1})
	}
	var w mat.Dense
	w.Mul(rotY(-f.EOP.XP), rotX(-f.EOP.YP))
	return &w
}
