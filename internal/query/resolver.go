// Package query resolves catalog names and calendar instants to geodetic
// ground positions. A Resolver is built once from a catalog and is read-only
// afterwards, so its methods are safe for concurrent use.
package query

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"strings"
	"time"

	"github.com/star/tlepos/internal/passes"
	"github.com/star/tlepos/internal/propagation"
	"github.com/star/tlepos/internal/tle"
	"github.com/star/tlepos/internal/transform"
)

// Recorder receives query observations. internal/metrics provides the
// Prometheus implementation.
type Recorder interface {
	ObserveQuery(op, outcome string, d time.Duration)
	ObserveBranch(branch string)
	SetCatalogSize(total, failed int)
}

type nopRecorder struct{}

func (nopRecorder) ObserveQuery(string, string, time.Duration) {}
func (nopRecorder) ObserveBranch(string) {}
func (nopRecorder) SetCatalogSize(int, int) {}

// Options configures a Resolver.
type Options struct {
	Gravity   propagation.GravityModel
	Ellipsoid transform.Ellipsoid
	Frames    transform.Frames
	Workers   int      // series worker pool size
	Recorder  Recorder // nil disables recording
}

// DefaultOptions returns WGS72 gravity, the WGS84 ellipsoid, IERS 2010
// frames with zero EOP and one worker per CPU.
func DefaultOptions() Options {
	return Options{
		Gravity:   propagation.WGS72,
		Ellipsoid: transform.WGS84,
		Frames:    transform.DefaultFrames(),
		Workers:   runtime.NumCPU(),
	}
}

// Result is a resolved position with the intermediate state.
type Result struct {
	Name              string
	Epoch             transform.Epoch // requested instant, UTC
	Point             transform.GeodeticPoint
	State             transform.StateVector // ITRF, m and m/s
	Branch            propagation.Branch
	MinutesSinceEpoch float64
}

// TrackPoint is one sample of a ground-track series.
type TrackPoint struct {
	Epoch transform.Epoch
	Point transform.GeodeticPoint
	State transform.StateVector
	Err   error // *Error when this instant could not be resolved
}

// satellite is a catalog entry with its propagator built, or the error that
// prevented building it.
type satellite struct {
	entry tle.CatalogEntry
	prop  *propagation.Propagator
	err   error
}

// Resolver answers position queries against a fixed catalog.
type Resolver struct {
	cat    *tle.Catalog
	opts   Options
	logger *slog.Logger
	pool   *propagation.WorkerPool
	sats   map[string]*satellite
	order  []*satellite
	failed int
}

// SatelliteInfo describes one catalog name as seen by the resolver.
type SatelliteInfo struct {
	Name          string
	Epoch         transform.Epoch // zero when Err is set
	Branch        propagation.Branch
	PeriodMinutes float64
	Err           error // *Error when the entry cannot be queried
}

// NewResolver initializes one propagator per catalog name. Entries that
// fail to parse or initialize are kept and report their error on every
// query for that name. A nil logger logs to slog.Default().
func NewResolver(cat *tle.Catalog, opts Options, logger *slog.Logger) *Resolver {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.Ellipsoid.A == 0 {
		opts.Ellipsoid = transform.WGS84
	}
	if opts.Recorder == nil {
		opts.Recorder = nopRecorder{}
	}
	if opts.Workers < 1 {
		opts.Workers = runtime.NumCPU()
	}

	r := &Resolver{
		cat:    cat,
		opts:   opts,
		logger: logger,
		pool:   propagation.NewWorkerPool(opts.Workers, logger),
		sats:   make(map[string]*satellite, cat.Len()),
	}

	for _, entry := range cat.Entries() {
		key := strings.ToLower(entry.Name)
		if _, dup := r.sats[key]; dup {
			continue
		}
		prop, err := r.build(entry)
		sat := &satellite{entry: entry, prop: prop, err: err}
		r.sats[key] = sat
		r.order = append(r.order, sat)
		if err != nil {
			r.failed++
			logger.Warn("catalog entry unusable",
				"name", entry.Name,
				"kind", KindOf(err).String(),
				"error", err,
			)
			continue
		}
		opts.Recorder.ObserveBranch(prop.Branch().String())
	}
	opts.Recorder.SetCatalogSize(len(r.sats), r.failed)

	logger.Info("resolver ready",
		"entries", len(r.sats),
		"failed", r.failed,
		"gravity", opts.Gravity.String(),
		"convention", opts.Frames.Convention.String(),
	)
	return r
}

// build parses and initializes the propagator for entry.
func (r *Resolver) build(entry tle.CatalogEntry) (*propagation.Propagator, error) {
	el, err := tle.ParseElements(entry.Line1, entry.Line2)
	if err != nil {
		return nil, wrap(entry.Name, err)
	}
	prop, err := propagation.New(el, r.opts.Gravity)
	if err != nil {
		return nil, wrap(entry.Name, err)
	}
	return prop, nil
}

// Catalog returns the catalog the resolver was built from.
func (r *Resolver) Catalog() *tle.Catalog { return r.cat }

// Stats returns the number of distinct names and how many of them cannot
// be queried.
func (r *Resolver) Stats() (total, failed int) { return len(r.sats), r.failed }

// Satellites lists every distinct name in catalog order.
func (r *Resolver) Satellites() []SatelliteInfo {
	out := make([]SatelliteInfo, len(r.order))
	for i, sat := range r.order {
		info := SatelliteInfo{Name: sat.entry.Name, Err: sat.err}
		if sat.prop != nil {
			info.Epoch = sat.prop.Epoch()
			info.Branch = sat.prop.Branch()
			info.PeriodMinutes = sat.prop.Period()
		}
		out[i] = info
	}
	return out
}

// ResolvePosition returns the geodetic position of the named satellite at in.
func (r *Resolver) ResolvePosition(name string, in Instant) (transform.GeodeticPoint, error) {
	res, err := r.Resolve(name, in)
	if err != nil {
		return transform.GeodeticPoint{}, err
	}
	return res.Point, nil
}

// Resolve is ResolvePosition with the intermediate state attached.
func (r *Resolver) Resolve(name string, in Instant) (res *Result, err error) {
	start := time.Now()
	defer func() { r.observe("resolve", start, err) }()

	sat, err := r.lookup(name)
	if err != nil {
		return nil, err
	}
	at, err := in.Epoch()
	if err != nil {
		return nil, wrap(sat.entry.Name, err)
	}
	return r.compute(sat.entry.Name, sat.prop, at)
}

// ResolveEntry resolves an entry that need not be in the catalog. The
// element set is parsed and initialized on every call.
func (r *Resolver) ResolveEntry(entry tle.CatalogEntry, in Instant) (pt transform.GeodeticPoint, err error) {
	start := time.Now()
	defer func() { r.observe("resolve_entry", start, err) }()

	at, err := in.Epoch()
	if err != nil {
		return transform.GeodeticPoint{}, wrap(entry.Name, err)
	}
	prop, err := r.build(entry)
	if err != nil {
		return transform.GeodeticPoint{}, err
	}
	res, err := r.compute(entry.Name, prop, at)
	if err != nil {
		return transform.GeodeticPoint{}, err
	}
	return res.Point, nil
}

// Series resolves the named satellite at every instant over the worker
// pool. An invalid instant fails the whole call; failures of individual
// valid instants are reported per point.
func (r *Resolver) Series(ctx context.Context, name string, instants []Instant) (track []TrackPoint, err error) {
	start := time.Now()
	defer func() { r.observe("series", start, err) }()

	sat, err := r.lookup(name)
	if err != nil {
		return nil, err
	}
	epochs := make([]transform.Epoch, len(instants))
	for i, in := range instants {
		if epochs[i], err = in.Epoch(); err != nil {
			return nil, wrap(sat.entry.Name, fmt.Errorf("instant %d: %w", i, err))
		}
	}

	points, err := r.pool.Series(ctx, sat.prop, r.opts.Frames, epochs)
	if err != nil {
		return nil, err
	}

	track = make([]TrackPoint, len(points))
	for i, p := range points {
		track[i] = TrackPoint{Epoch: p.Epoch, State: p.State}
		if p.Err != nil {
			track[i].Err = wrap(sat.entry.Name, p.Err)
			continue
		}
		track[i].Point, track[i].Err = r.project(sat.entry.Name, p.State)
	}
	return track, nil
}

// Passes predicts the passes of the named satellite over req.Observer.
// Passes found before a failing instant are returned with its error.
func (r *Resolver) Passes(ctx context.Context, name string, req passes.Request) (found []passes.Pass, err error) {
	start := time.Now()
	defer func() { r.observe("passes", start, err) }()

	sat, err := r.lookup(name)
	if err != nil {
		return nil, err
	}
	if req.Ellipsoid.A == 0 {
		req.Ellipsoid = r.opts.Ellipsoid
	}
	found, err = passes.Predict(ctx, passes.FromPropagator(sat.prop, r.opts.Frames), req)
	if err != nil && ctx.Err() == nil {
		err = wrap(sat.entry.Name, err)
	}
	return found, err
}

func (r *Resolver) lookup(name string) (*satellite, error) {
	sat, ok := r.sats[strings.ToLower(name)]
	if !ok {
		return nil, &Error{Kind: KindNotFound, Name: name, Err: tle.ErrNotFound}
	}
	if sat.err != nil {
		return nil, sat.err
	}
	return sat, nil
}

// compute runs propagate, rotate and project for one instant.
func (r *Resolver) compute(name string, prop *propagation.Propagator, at transform.Epoch) (*Result, error) {
	teme, err := prop.Propagate(at)
	if err != nil {
		return nil, wrap(name, err)
	}
	itrf, err := transform.RotateToEarthFixed(teme, r.opts.Frames)
	if err != nil {
		return nil, wrap(name, err)
	}
	pt, err := r.project(name, itrf)
	if err != nil {
		return nil, err
	}
	return &Result{
		Name:              name,
		Epoch:             at,
		Point:             pt,
		State:             itrf,
		Branch:            prop.Branch(),
		MinutesSinceEpoch: at.MinutesSince(prop.Epoch()),
	}, nil
}

func (r *Resolver) project(name string, itrf transform.StateVector) (transform.GeodeticPoint, error) {
	if !transform.Finite(itrf) {
		return transform.GeodeticPoint{}, &Error{Kind: KindDecay, Name: name, Err: errors.New("non-finite state vector")}
	}
	pos := itrf.Position
	pt, err := r.opts.Ellipsoid.ToGeodetic(pos[0], pos[1], pos[2])
	if err != nil {
		return transform.GeodeticPoint{}, wrap(name, err)
	}
	return pt, nil
}

func (r *Resolver) observe(op string, start time.Time, err error) {
	outcome := "ok"
	if err != nil {
		outcome = KindOf(err).String()
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			outcome = "canceled"
		}
	}
	r.opts.Recorder.ObserveQuery(op, outcome, time.Since(start))
}
