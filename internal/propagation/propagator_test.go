package propagation

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"math"
	"os"
	"testing"
	"time"

	satellite "github.com/joshuaferrara/go-satellite"
	"github.com/star/tlepos/internal/tle"
	"github.com/star/tlepos/internal/transform"
)

// Vanguard 1, the reference set of the SGP4 verification suite.
const (
	vanguardLine1 = "1 00005U 58002B   00179.78495062  .00000023  00000-0  28098-4 0  4753"
	vanguardLine2 = "2 00005  34.2682 348.7242 1859667 331.7664  19.3264 10.82419157413667"
)

// ISS-like LEO set.
const (
	issLine1 = "1 25544U 98067A   24103.50000000  .00016717  00000-0  30270-3 0  9992"
	issLine2 = "2 25544  51.6393 287.4042 0004514  32.5268  90.4536 15.50177075448029"
)

// Geostationary set: synchronous resonance, Lyddane low-inclination path.
const (
	geoLine1 = "1 28626U 05004A   24103.25000000 -.00000273  00000-0  00000+0 0  9992"
	geoLine2 = "2 28626   0.0453 100.0000 0002000 270.0000  90.0000  1.00270000 70006"
)

// Molniya set: half-day resonance.
const (
	molniyaLine1 = "1 40000U 14001A   24103.75000000  .00000100  00000-0  10000-3 0  9997"
	molniyaLine2 = "2 40000  63.4000 150.0000 7000000 270.0000  10.0000  2.00600000 10001"
)

// GPS-like set: deep space without resonance.
const (
	gpsLine1 = "1 32711U 08012A   24103.00000000 -.00000050  00000-0  00000+0 0  9990"
	gpsLine2 = "2 32711  55.1000  80.0000 0100000  40.0000 320.0000  2.00560000 10009"
)

// Mean motion puts the orbit inside the Earth at epoch.
const (
	decayedLine1 = "1 99999U 24001A   24103.50000000  .00000000  00000-0  00000+0 0  9996"
	decayedLine2 = "2 99999  51.6000 100.0000 0001000   0.0000   0.0000 17.50000000    15"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelWarn}))
}

func mustProp(t testing.TB, line1, line2 string) *Propagator {
	t.Helper()
	el, err := tle.ParseElements(line1, line2)
	if err != nil {
		t.Fatalf("ParseElements: %v", err)
	}
	p, err := New(el, WGS72)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return p
}

// TestVanguardVerificationVector checks the published tsince 0 and 360 min
// states of satellite 00005 (WGS72, improved mode).
func TestVanguardVerificationVector(t *testing.T) {
	p := mustProp(t, vanguardLine1, vanguardLine2)
	if p.Branch() != NearEarth {
		t.Fatalf("branch = %s, want near-earth", p.Branch())
	}

	tests := []struct {
		tsince float64
		r      [3]float64 // km
		v      [3]float64 // km/s, zero when not checked
	}{
		{0, [3]float64{7022.46529266, -1400.08296755, 0.03995155}, [3]float64{1.893841015, 6.405893759, 4.534807250}},
		{360, [3]float64{-7154.03120202, -3783.17682504, -3536.19412294}, [3]float64{}},
	}

	for _, tt := range tests {
		sv, err := p.PropagateMinutes(tt.tsince)
		if err != nil {
			t.Fatalf("PropagateMinutes(%g): %v", tt.tsince, err)
		}
		for i := 0; i < 3; i++ {
			if diff := math.Abs(sv.Position[i]/1000 - tt.r[i]); diff > 1e-3 {
				t.Errorf("t=%g r[%d] = %.8f km, want %.8f (diff %.2e)", tt.tsince, i, sv.Position[i]/1000, tt.r[i], diff)
			}
			if tt.v != [3]float64{} {
				if diff := math.Abs(sv.Velocity[i]/1000 - tt.v[i]); diff > 1e-6 {
					t.Errorf("t=%g v[%d] = %.9f km/s, want %.9f", tt.tsince, i, sv.Velocity[i]/1000, tt.v[i])
				}
			}
		}
	}
}

// goSatelliteEpoch is the element epoch as go-satellite's TLEToSat stores
// it: the seconds of the calendar epoch are truncated to an integer.
func goSatelliteEpoch(p *Propagator) time.Time {
	return p.Epoch().Time().Round(time.Microsecond).Truncate(time.Second)
}

// jday is go-satellite's Julian date of t at whole-second resolution.
func jday(t time.Time) float64 {
	return satellite.JDay(t.Year(), int(t.Month()), t.Day(), t.Hour(), t.Minute(), t.Second())
}

// TestCrossValidateGoSatellite compares TEME output against go-satellite at
// whole-second instants around each epoch. Both sides are evaluated at the
// minutes since epoch go-satellite uses, so epochs with fractional seconds
// compare against the same physical offset.
func TestCrossValidateGoSatellite(t *testing.T) {
	tests := []struct {
		name         string
		line1, line2 string
		tolerance    float64 // meters
	}{
		{"ISS", issLine1, issLine2, 10},
		{"Vanguard", vanguardLine1, vanguardLine2, 10},
		{"GPS-like", gpsLine1, gpsLine2, 100},
	}

	offsets := []time.Duration{0, 90 * time.Minute, 12 * time.Hour, -6 * time.Hour, 3 * 24 * time.Hour}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := mustProp(t, tt.line1, tt.line2)
			ref := satellite.TLEToSat(tt.line1, tt.line2, satellite.GravityWGS72)
			refEpoch := jday(goSatelliteEpoch(p))

			base := p.Epoch().Time().Truncate(time.Minute)
			for _, off := range offsets {
				at := base.Add(off)
				tsince := (jday(at) - refEpoch) * 1440
				got, err := p.PropagateMinutes(tsince)
				if err != nil {
					t.Fatalf("PropagateMinutes(%g): %v", tsince, err)
				}
				pos, _ := satellite.Propagate(ref, at.Year(), int(at.Month()), at.Day(), at.Hour(), at.Minute(), at.Second())
				want := transform.Vec3{pos.X * 1000, pos.Y * 1000, pos.Z * 1000}
				d := transform.Vec3{got.Position[0] - want[0], got.Position[1] - want[1], got.Position[2] - want[2]}
				if d.Norm() > tt.tolerance {
					t.Errorf("%v: position differs from go-satellite by %.3f m", at, d.Norm())
				}
			}
		})
	}
}

// TestPropagateUsesFractionalEpoch checks that Propagate keeps the
// sub-second part of the element epoch that go-satellite drops.
func TestPropagateUsesFractionalEpoch(t *testing.T) {
	p := mustProp(t, vanguardLine1, vanguardLine2)
	frac := p.Epoch().Time().Sub(goSatelliteEpoch(p))
	if frac < 733*time.Millisecond || frac > 734*time.Millisecond {
		t.Fatalf("epoch fraction = %v, want ~733.6ms", frac)
	}

	at := p.Epoch().Time().Add(90 * time.Minute)
	byTime, err := p.Propagate(transform.FromTime(at))
	if err != nil {
		t.Fatal(err)
	}
	byMinutes, err := p.PropagateMinutes(90)
	if err != nil {
		t.Fatal(err)
	}
	d := transform.Vec3{
		byTime.Position[0] - byMinutes.Position[0],
		byTime.Position[1] - byMinutes.Position[1],
		byTime.Position[2] - byMinutes.Position[2],
	}
	if d.Norm() > 1 {
		t.Errorf("Propagate at epoch+90m differs from PropagateMinutes(90) by %.3f m", d.Norm())
	}
}

func TestBranchSelection(t *testing.T) {
	tests := []struct {
		name         string
		line1, line2 string
		want         Branch
		irez         int
	}{
		{"LEO", issLine1, issLine2, NearEarth, -1},
		{"Vanguard 134 min", vanguardLine1, vanguardLine2, NearEarth, -1},
		{"GEO", geoLine1, geoLine2, DeepSpace, 1},
		{"Molniya", molniyaLine1, molniyaLine2, DeepSpace, 2},
		{"GPS-like", gpsLine1, gpsLine2, DeepSpace, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := mustProp(t, tt.line1, tt.line2)
			if got := p.Branch(); got != tt.want {
				t.Errorf("Branch() = %s, want %s (period %.1f min)", got, tt.want, p.Period())
			}
			if (p.Period() >= 225) != (tt.want == DeepSpace) {
				t.Errorf("period %.1f min inconsistent with %s", p.Period(), tt.want)
			}
			if tt.irez >= 0 {
				ds, ok := p.branch.(*deepSpace)
				if !ok {
					t.Fatalf("branch is %T", p.branch)
				}
				if ds.irez != tt.irez {
					t.Errorf("resonance class = %d, want %d", ds.irez, tt.irez)
				}
			}
		})
	}
}

// TestDeepSpaceStability propagates each resonance class for 30 days in
// both directions and checks the radius stays in a physical band.
func TestDeepSpaceStability(t *testing.T) {
	tests := []struct {
		name         string
		line1, line2 string
		minKm, maxKm float64
	}{
		{"GEO", geoLine1, geoLine2, 41900, 42400},
		{"Molniya", molniyaLine1, molniyaLine2, 6500, 46500},
		{"GPS-like", gpsLine1, gpsLine2, 25800, 27400},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := mustProp(t, tt.line1, tt.line2)
			for tsince := -30 * 1440.0; tsince <= 30*1440.0; tsince += 997 {
				sv, err := p.PropagateMinutes(tsince)
				if err != nil {
					t.Fatalf("t=%.0f: %v", tsince, err)
				}
				if !transform.Finite(sv) {
					t.Fatalf("t=%.0f: non-finite state %v", tsince, sv)
				}
				r := sv.Position.Norm() / 1000
				if r < tt.minKm || r > tt.maxKm {
					t.Errorf("t=%.0f: radius %.1f km outside [%.0f, %.0f]", tsince, r, tt.minKm, tt.maxKm)
				}
			}
		})
	}
}

// The resonance integrator restarts from epoch, so a state never depends
// on what was evaluated before it.
func TestDeepSpaceRepeatable(t *testing.T) {
	p := mustProp(t, molniyaLine1, molniyaLine2)
	first, err := p.PropagateMinutes(20000)
	if err != nil {
		t.Fatal(err)
	}
	for _, ts := range []float64{-5000, 40000, 10, 19999} {
		if _, err := p.PropagateMinutes(ts); err != nil {
			t.Fatal(err)
		}
	}
	again, err := p.PropagateMinutes(20000)
	if err != nil {
		t.Fatal(err)
	}
	if first.Position != again.Position || first.Velocity != again.Velocity {
		t.Errorf("state at 20000 min changed: %v then %v", first.Position, again.Position)
	}
}

func TestPropagateAtEpoch(t *testing.T) {
	p := mustProp(t, issLine1, issLine2)

	byEpoch, err := p.Propagate(p.Epoch())
	if err != nil {
		t.Fatal(err)
	}
	byMinutes, err := p.PropagateMinutes(0)
	if err != nil {
		t.Fatal(err)
	}
	if byEpoch.Position != byMinutes.Position {
		t.Errorf("Propagate(epoch) = %v, PropagateMinutes(0) = %v", byEpoch.Position, byMinutes.Position)
	}
	if byEpoch.Frame != transform.FrameTEME {
		t.Errorf("frame = %s, want TEME", byEpoch.Frame)
	}

	// ISS altitude band.
	if r := byEpoch.Position.Norm() / 1000; r < 6700 || r > 6850 {
		t.Errorf("radius = %.1f km, want ISS-like", r)
	}

	// A TT instant is accepted and lands on the same state as its UTC twin.
	at := p.Epoch().AddMinutes(42)
	utc, err := p.Propagate(at)
	if err != nil {
		t.Fatal(err)
	}
	tt, err := p.Propagate(transform.UTCToTT(at, nil))
	if err != nil {
		t.Fatal(err)
	}
	d := transform.Vec3{utc.Position[0] - tt.Position[0], utc.Position[1] - tt.Position[1], utc.Position[2] - tt.Position[2]}
	if d.Norm() > 1e-3 {
		t.Errorf("TT and UTC inputs differ by %.3e m", d.Norm())
	}
}

func TestPropagateRejectsUT1(t *testing.T) {
	p := mustProp(t, issLine1, issLine2)
	if _, err := p.Propagate(transform.UTCToUT1(p.Epoch(), 0.1)); err == nil {
		t.Error("UT1 epoch accepted")
	}
	if _, err := p.PropagateMinutes(math.NaN()); err == nil {
		t.Error("NaN offset accepted")
	}
}

func TestDecayedAtEpoch(t *testing.T) {
	el, err := tle.ParseElements(decayedLine1, decayedLine2)
	if err != nil {
		t.Fatalf("ParseElements: %v", err)
	}
	_, err = New(el, WGS72)
	if err == nil {
		t.Fatal("New succeeded for an orbit inside the Earth")
	}
	var perr *Error
	if !errors.As(err, &perr) {
		t.Fatalf("error %v is not a propagation error", err)
	}
	if perr.Code != CodeDecayed {
		t.Errorf("code = %d (%s), want %d", perr.Code, perr.Code, CodeDecayed)
	}
}

func TestGravityModels(t *testing.T) {
	for in, want := range map[string]GravityModel{"wgs72": WGS72, "WGS84": WGS84, "wgs72old": WGS72Old, "": WGS72} {
		got, err := ParseGravityModel(in)
		if err != nil || got != want {
			t.Errorf("ParseGravityModel(%q) = %v, %v; want %v", in, got, err, want)
		}
	}
	if _, err := ParseGravityModel("egm96"); err == nil {
		t.Error("ParseGravityModel(egm96) succeeded")
	}

	// The models differ by meters, not kilometers, for a LEO at epoch.
	el, _ := tle.ParseElements(issLine1, issLine2)
	p72, err := New(el, WGS72)
	if err != nil {
		t.Fatal(err)
	}
	p84, err := New(el, WGS84)
	if err != nil {
		t.Fatal(err)
	}
	a, _ := p72.PropagateMinutes(0)
	b, _ := p84.PropagateMinutes(0)
	d := transform.Vec3{a.Position[0] - b.Position[0], a.Position[1] - b.Position[1], a.Position[2] - b.Position[2]}
	if d.Norm() == 0 || d.Norm() > 5000 {
		t.Errorf("WGS72 vs WGS84 difference = %.1f m", d.Norm())
	}
}

// TestWorkerPoolSeries checks the pool returns the sequential answer in
// input order.
func TestWorkerPoolSeries(t *testing.T) {
	p := mustProp(t, issLine1, issLine2)
	frames := transform.DefaultFrames()

	instants := make([]transform.Epoch, 200)
	for i := range instants {
		instants[i] = p.Epoch().AddMinutes(float64(i) * 3)
	}

	wp := NewWorkerPool(4, testLogger())
	points, err := wp.Series(context.Background(), p, frames, instants)
	if err != nil {
		t.Fatalf("Series: %v", err)
	}
	if len(points) != len(instants) {
		t.Fatalf("got %d points, want %d", len(points), len(instants))
	}

	for i, pt := range points {
		if pt.Err != nil {
			t.Fatalf("point %d: %v", i, pt.Err)
		}
		if pt.Epoch != instants[i] {
			t.Fatalf("point %d out of order", i)
		}
		teme, _ := p.Propagate(instants[i])
		want, _ := transform.RotateToEarthFixed(teme, frames)
		if pt.State.Position != want.Position {
			t.Errorf("point %d: %v, sequential %v", i, pt.State.Position, want.Position)
		}
		if pt.State.Frame != transform.FrameITRF {
			t.Errorf("point %d frame = %s", i, pt.State.Frame)
		}
	}
}

func TestWorkerPoolSeriesPartialFailure(t *testing.T) {
	p := mustProp(t, issLine1, issLine2)
	instants := []transform.Epoch{
		p.Epoch(),
		transform.UTCToUT1(p.Epoch(), 0),
		p.Epoch().AddMinutes(10),
	}
	points, err := NewWorkerPool(2, testLogger()).Series(context.Background(), p, transform.DefaultFrames(), instants)
	if err != nil {
		t.Fatal(err)
	}
	if points[0].Err != nil || points[2].Err != nil {
		t.Errorf("valid instants failed: %v, %v", points[0].Err, points[2].Err)
	}
	if points[1].Err == nil {
		t.Error("UT1 instant did not fail")
	}
}

func TestWorkerPoolCancellation(t *testing.T) {
	p := mustProp(t, issLine1, issLine2)
	instants := make([]transform.Epoch, 10000)
	for i := range instants {
		instants[i] = p.Epoch().AddMinutes(float64(i))
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	points, err := NewWorkerPool(4, testLogger()).Series(ctx, p, transform.DefaultFrames(), instants)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
	if points != nil {
		t.Errorf("got %d points from a cancelled series", len(points))
	}
}

func TestWorkerPoolEmpty(t *testing.T) {
	p := mustProp(t, issLine1, issLine2)
	points, err := NewWorkerPool(0, testLogger()).Series(context.Background(), p, transform.DefaultFrames(), nil)
	if err != nil || points != nil {
		t.Errorf("Series(nil) = %v, %v", points, err)
	}
}

func BenchmarkPropagateDeepSpace(b *testing.B) {
	el, _ := tle.ParseElements(molniyaLine1, molniyaLine2)
	p, err := New(el, WGS72)
	if err != nil {
		b.Fatal(err)
	}
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := p.PropagateMinutes(float64(i % 43200)); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkSeries1000(b *testing.B) {
	el, _ := tle.ParseElements(issLine1, issLine2)
	p, _ := New(el, WGS72)
	instants := make([]transform.Epoch, 1000)
	for i := range instants {
		instants[i] = p.Epoch().AddMinutes(float64(i))
	}
	wp := NewWorkerPool(4, slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError})))
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := wp.Series(context.Background(), p, transform.DefaultFrames(), instants); err != nil {
			b.Fatal(err)
		}
	}
}
