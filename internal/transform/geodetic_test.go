package transform

import (
	"math"
	"testing"
)

func TestGeodeticRoundTrip(t *testing.T) {
	for _, latDeg := range []float64{-89.9, -60, -23.5, 0, 12.3, 45, 80, 89.9} {
		for _, lonDeg := range []float64{-179.9, -90, 0, 33.3, 120, 180} {
			for _, alt := range []float64{-1000, 0, 420e3, 20200e3, 3.578e7, 4e7} {
				in := GeodeticDeg(latDeg, lonDeg, alt)
				x, y, z := WGS84.ToECEF(in)
				out, err := WGS84.ToGeodetic(x, y, z)
				if err != nil {
					t.Fatalf("ToGeodetic(%v): %v", in, err)
				}
				if d := math.Abs(out.Lat - in.Lat); d > 1e-8 {
					t.Errorf("lat %.1f lon %.1f alt %.0f: lat off by %.3e rad", latDeg, lonDeg, alt, d)
				}
				if d := angleDiff(out.Lon, in.Lon); d > 1e-8 {
					t.Errorf("lat %.1f lon %.1f alt %.0f: lon off by %.3e rad", latDeg, lonDeg, alt, d)
				}
				if d := math.Abs(out.Alt - in.Alt); d > 1e-3 {
					t.Errorf("lat %.1f lon %.1f alt %.0f: alt off by %.3e m", latDeg, lonDeg, alt, d)
				}
			}
		}
	}
}

func TestToGeodeticPoles(t *testing.T) {
	b := WGS84.B()
	tests := []struct {
		name    string
		z       float64
		wantLat float64
		wantAlt float64
	}{
		{"north pole surface", b, math.Pi / 2, 0},
		{"south pole 500 km", -(b + 500e3), -math.Pi / 2, 500e3},
		{"origin", 0, math.Pi / 2, -b},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g, err := WGS84.ToGeodetic(0, 0, tt.z)
			if err != nil {
				t.Fatalf("ToGeodetic: %v", err)
			}
			if g.Lat != tt.wantLat {
				t.Errorf("lat = %.15f, want %.15f", g.Lat, tt.wantLat)
			}
			if g.Lon != 0 {
				t.Errorf("lon = %g, want 0", g.Lon)
			}
			if math.Abs(g.Alt-tt.wantAlt) > 1e-6 {
				t.Errorf("alt = %.6f, want %.6f", g.Alt, tt.wantAlt)
			}
		})
	}
}

func TestToGeodeticLongitudeRange(t *testing.T) {
	// Points straddling the antimeridian.
	for _, y := range []float64{0, 1e-9, -1e-9, 1, -1} {
		g, err := WGS84.ToGeodetic(-7e6, y, 0)
		if err != nil {
			t.Fatal(err)
		}
		if g.Lon <= -math.Pi || g.Lon > math.Pi {
			t.Errorf("y=%g: lon %.15f outside (-π, π]", y, g.Lon)
		}
	}
	g, _ := WGS84.ToGeodetic(-7e6, 0, 0)
	if g.Lon != math.Pi {
		t.Errorf("lon on the antimeridian = %.15f, want π", g.Lon)
	}
	g, _ = WGS84.ToGeodetic(-7e6, math.Copysign(0, -1), 0)
	if g.Lon != math.Pi {
		t.Errorf("lon with negative zero y = %.15f, want π", g.Lon)
	}
}

func TestToGeodeticBelowSurface(t *testing.T) {
	g, err := WGS84.ToGeodetic(WGS84.A-2000, 0, 0)
	if err != nil {
		t.Fatal(err)
	}
	if math.Abs(g.Alt+2000) > 1e-6 {
		t.Errorf("alt = %.6f, want -2000 (no clamping)", g.Alt)
	}
}

func TestToGeodeticRejectsNonFinite(t *testing.T) {
	if _, err := WGS84.ToGeodetic(math.NaN(), 0, 0); err == nil {
		t.Error("NaN accepted")
	}
}

func TestEllipsoidConstants(t *testing.T) {
	if math.Abs(WGS84.B()-6356752.314245) > 1e-3 {
		t.Errorf("WGS84 b = %.6f", WGS84.B())
	}
	if math.Abs(WGS84.E2()-0.00669437999014) > 1e-13 {
		t.Errorf("WGS84 e² = %.14f", WGS84.E2())
	}
	// WGS72 differs from WGS84 by two meters at the equator.
	if d := WGS84.A - WGS72.A; d != 2 {
		t.Errorf("a(WGS84) - a(WGS72) = %g", d)
	}
}
