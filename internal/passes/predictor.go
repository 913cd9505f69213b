package passes

import (
	"context"
	"fmt"
	"time"

	"github.com/star/tlepos/internal/propagation"
	"github.com/star/tlepos/internal/transform"
)

// GroundTrackPoint is a sub-satellite position at a specific time during a pass.
type GroundTrackPoint struct {
	Time      time.Time
	Point     transform.GeodeticPoint
	Elevation float64 // degrees above observer's horizon
}

// Pass describes a single satellite pass over an observer location. A pass
// already in progress at the window start, or still in progress at its
// end, is clipped to the window.
type Pass struct {
	Rise               time.Time
	Culmination        time.Time
	Set                time.Time
	RiseAzimuth        float64
	CulminationAzimuth float64
	SetAzimuth         float64
	MaxElevation       float64
	GroundTrack        []GroundTrackPoint
}

// Duration returns Set − Rise.
func (p Pass) Duration() time.Duration { return p.Set.Sub(p.Rise) }

// Request holds the parameters for a pass prediction request.
type Request struct {
	Observer     transform.ObserverPosition
	Ellipsoid    transform.Ellipsoid // for ground-track points; WGS84 when zero
	Start        time.Time
	Horizon      time.Duration
	MinElevation float64 // degrees
	MaxPasses    int     // 0 means unbounded
}

// StateFunc returns the Earth-fixed state of one satellite at t.
type StateFunc func(t time.Time) (transform.StateVector, error)

// FromPropagator evaluates prop at UTC instants and rotates the result into
// the Earth-fixed frame.
func FromPropagator(prop *propagation.Propagator, frames transform.Frames) StateFunc {
	return func(t time.Time) (transform.StateVector, error) {
		teme, err := prop.Propagate(transform.FromTime(t))
		if err != nil {
			return transform.StateVector{}, err
		}
		return transform.RotateToEarthFixed(teme, frames)
	}
}

const (
	coarseStep      = 30 * time.Second
	groundTrackStep = 10 * time.Second
	edgeTolerance   = 500 * time.Millisecond
	culminationTol  = time.Second
	minPassDur      = 10 * time.Second
)

type predictor struct {
	req   Request
	state StateFunc
}

type sample struct {
	t     time.Time
	look  transform.LookAngles
	state transform.StateVector
}

func (p *predictor) at(t time.Time) (sample, error) {
	sv, err := p.state(t)
	if err != nil {
		return sample{}, fmt.Errorf("at %s: %w", t.UTC().Format(time.RFC3339), err)
	}
	return sample{t: t, look: p.req.Observer.LookAt(sv), state: sv}, nil
}

func (p *predictor) above(s sample) bool { return s.look.ElevationDeg >= p.req.MinElevation }

// Predict scans the window at a coarse step, brackets each horizon
// crossing and refines it by bisection. Passes are returned in time order.
// When a state cannot be evaluated the passes completed so far are returned
// with the error.
func Predict(ctx context.Context, state StateFunc, req Request) ([]Pass, error) {
	if req.Ellipsoid.A == 0 {
		req.Ellipsoid = transform.WGS84
	}
	p := &predictor{req: req, state: state}
	end := req.Start.Add(req.Horizon)

	var passes []Pass
	prev, err := p.at(req.Start)
	if err != nil {
		return nil, err
	}
	var rise sample
	inPass := p.above(prev)
	if inPass {
		rise = prev
	}

	for t := req.Start; t.Before(end); {
		if err := ctx.Err(); err != nil {
			return passes, err
		}
		if req.MaxPasses > 0 && len(passes) >= req.MaxPasses {
			break
		}

		t = t.Add(coarseStep)
		if t.After(end) {
			t = end
		}
		cur, err := p.at(t)
		if err != nil {
			return passes, err
		}

		switch {
		case !inPass && p.above(cur):
			if rise, err = p.crossing(prev, cur); err != nil {
				return passes, err
			}
			inPass = true
		case inPass && !p.above(cur):
			set, err := p.crossing(prev, cur)
			if err != nil {
				return passes, err
			}
			inPass = false
			if pass, ok, err := p.finish(rise, set); err != nil {
				return passes, err
			} else if ok {
				passes = append(passes, pass)
			}
		}
		prev = cur
	}

	if inPass && (req.MaxPasses == 0 || len(passes) < req.MaxPasses) {
		if pass, ok, err := p.finish(rise, prev); err != nil {
			return passes, err
		} else if ok {
			passes = append(passes, pass)
		}
	}
	return passes, nil
}

// crossing bisects between a and b, which lie on opposite sides of the
// minimum elevation, and returns the sample on the above side.
func (p *predictor) crossing(a, b sample) (sample, error) {
	aboveA := p.above(a)
	for b.t.Sub(a.t) > edgeTolerance {
		m, err := p.at(a.t.Add(b.t.Sub(a.t) / 2))
		if err != nil {
			return sample{}, err
		}
		if p.above(m) == aboveA {
			a = m
		} else {
			b = m
		}
	}
	if aboveA {
		return a, nil
	}
	return b, nil
}

// culmination finds the elevation maximum in [lo, hi] by ternary search.
func (p *predictor) culmination(lo, hi sample) (sample, error) {
	best := lo
	if hi.look.ElevationDeg > best.look.ElevationDeg {
		best = hi
	}
	a, b := lo.t, hi.t
	for b.Sub(a) > culminationTol {
		third := b.Sub(a) / 3
		m1, err := p.at(a.Add(third))
		if err != nil {
			return sample{}, err
		}
		m2, err := p.at(b.Add(-third))
		if err != nil {
			return sample{}, err
		}
		if m1.look.ElevationDeg < m2.look.ElevationDeg {
			a = m1.t
		} else {
			b = m2.t
		}
		for _, m := range []sample{m1, m2} {
			if m.look.ElevationDeg > best.look.ElevationDeg {
				best = m
			}
		}
	}
	return best, nil
}

func (p *predictor) finish(rise, set sample) (Pass, bool, error) {
	if set.t.Sub(rise.t) < minPassDur {
		return Pass{}, false, nil
	}
	top, err := p.culmination(rise, set)
	if err != nil {
		return Pass{}, false, err
	}

	pass := Pass{
		Rise:               rise.t,
		Culmination:        top.t,
		Set:                set.t,
		RiseAzimuth:        rise.look.AzimuthDeg,
		CulminationAzimuth: top.look.AzimuthDeg,
		SetAzimuth:         set.look.AzimuthDeg,
		MaxElevation:       top.look.ElevationDeg,
	}
	for t := rise.t; !t.After(set.t); t = t.Add(groundTrackStep) {
		s, err := p.at(t)
		if err != nil {
			return Pass{}, false, err
		}
		pos := s.state.Position
		pt, err := p.req.Ellipsoid.ToGeodetic(pos[0], pos[1], pos[2])
		if err != nil {
			return Pass{}, false, err
		}
		pass.GroundTrack = append(pass.GroundTrack, GroundTrackPoint{Time: t, Point: pt, Elevation: s.look.ElevationDeg})
	}
	return pass, true, nil
}
