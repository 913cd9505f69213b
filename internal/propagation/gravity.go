package propagation

import (
	"fmt"
	"math"
	"strings"
)

// GravityModel selects the Earth constants used by SGP4.
type GravityModel uint8

const (
	// WGS72 is the model element sets are generated with.
	WGS72 GravityModel = iota
	// WGS72Old uses the truncated xke of the original Spacetrack report.
	WGS72Old
	WGS84
)

func (g GravityModel) String() string {
	switch g {
	case WGS72:
		return "wgs72"
	case WGS72Old:
		return "wgs72old"
	case WGS84:
		return "wgs84"
	}
	return fmt.Sprintf("GravityModel(%d)", uint8(g))
}

// ParseGravityModel accepts "wgs72", "wgs72old" or "wgs84", case-insensitively.
func ParseGravityModel(s string) (GravityModel, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "wgs72", "":
		return WGS72, nil
	case "wgs72old":
		return WGS72Old, nil
	case "wgs84":
		return WGS84, nil
	}
	return 0, fmt.Errorf("unknown gravity model %q", s)
}

type gravConsts struct {
	mu            float64 // km³/s²
	radiusearthkm float64
	xke           float64 // sqrt(mu) in earth radii^1.5 / min
	j2, j3, j4    float64
	j3oj2         float64
}

func (g GravityModel) constants() gravConsts {
	var c gravConsts
	switch g {
	case WGS72Old:
		c = gravConsts{mu: 398600.79964, radiusearthkm: 6378.135, xke: 0.0743669161,
			j2: 0.001082616, j3: -0.00000253881, j4: -0.00000165597}
	case WGS84:
		c = gravConsts{mu: 398600.5, radiusearthkm: 6378.137,
			j2: 0.00108262998905, j3: -0.00000253215306, j4: -0.00000161098761}
		c.xke = 60.0 / math.Sqrt(c.radiusearthkm*c.radiusearthkm*c.radiusearthkm/c.mu)
	default:
		c = gravConsts{mu: 398600.8, radiusearthkm: 6378.135,
			j2: 0.001082616, j3: -0.00000253881, j4: -0.00000165597}
		c.xke = 60.0 / math.Sqrt(c.radiusearthkm*c.radiusearthkm*c.radiusearthkm/c.mu)
	}
	c.j3oj2 = c.j3 / c.j2
	return c
}
