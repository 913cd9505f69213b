package api

import (
	"errors"
	"fmt"
	"math"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/star/tlepos/internal/query"
	"github.com/star/tlepos/internal/transform"
)

const (
	// maxTrackPoints caps the size of one ground-track request.
	maxTrackPoints = 10000
	// maxPassHours caps the window of one pass prediction.
	maxPassHours = 168
)

var errMissingName = errors.New("name is required")

// paramError is a malformed query parameter, answered with 400.
type paramError struct {
	Param string
	Msg   string
}

func (e *paramError) Error() string { return fmt.Sprintf("parameter %q: %s", e.Param, e.Msg) }

// parseTime accepts RFC 3339 with optional fractional seconds.
func parseTime(param, s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, strings.TrimSpace(s))
	if err != nil {
		return time.Time{}, &paramError{Param: param, Msg: "must be an RFC 3339 timestamp"}
	}
	return t, nil
}

// parseInstant reads either time=RFC3339 or the calendar fields
// year, month, day, hour, minute and an optional second. Calendar fields
// are passed through unvalidated so that impossible dates reach the
// resolver. With neither form present, now is used.
func parseInstant(q url.Values, now func() time.Time) (query.Instant, error) {
	if s := q.Get("time"); s != "" {
		t, err := parseTime("time", s)
		if err != nil {
			return query.Instant{}, err
		}
		return query.InstantFromTime(t), nil
	}

	fields := []string{"year", "month", "day", "hour", "minute"}
	var present int
	for _, f := range fields {
		if q.Has(f) {
			present++
		}
	}
	if present == 0 && !q.Has("second") {
		return query.InstantFromTime(now()), nil
	}

	var v [5]int
	for i, f := range fields {
		s := q.Get(f)
		if s == "" {
			return query.Instant{}, &paramError{Param: f, Msg: "required with calendar fields"}
		}
		n, err := strconv.Atoi(s)
		if err != nil {
			return query.Instant{}, &paramError{Param: f, Msg: "must be an integer"}
		}
		v[i] = n
	}
	in := query.Instant{Year: v[0], Month: v[1], Day: v[2], Hour: v[3], Minute: v[4]}
	if s := q.Get("second"); s != "" {
		sec, err := strconv.ParseFloat(s, 64)
		if err != nil || math.IsNaN(sec) || math.IsInf(sec, 0) {
			return query.Instant{}, &paramError{Param: "second", Msg: "must be a number"}
		}
		in.Second = sec
	}
	return in, nil
}

// parseObserver reads lat, lon and an optional alt in meters. ok is false
// when no observer was given.
func parseObserver(q url.Values) (obs transform.ObserverPosition, ok bool, err error) {
	if !q.Has("lat") && !q.Has("lon") {
		if q.Has("alt") {
			return obs, false, &paramError{Param: "alt", Msg: "requires lat and lon"}
		}
		return obs, false, nil
	}
	lat, err := parseFloatRange(q, "lat", -90, 90, true)
	if err != nil {
		return obs, false, err
	}
	lon, err := parseFloatRange(q, "lon", -180, 360, true)
	if err != nil {
		return obs, false, err
	}
	alt, err := parseFloatRange(q, "alt", -500, 1e5, false)
	if err != nil {
		return obs, false, err
	}
	return transform.NewObserverPosition(lat, lon, alt), true, nil
}

func parseFloatRange(q url.Values, param string, min, max float64, required bool) (float64, error) {
	s := q.Get(param)
	if s == "" {
		if required {
			return 0, &paramError{Param: param, Msg: "is required"}
		}
		return 0, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) {
		return 0, &paramError{Param: param, Msg: "must be a number"}
	}
	if f < min || f > max {
		return 0, &paramError{Param: param, Msg: fmt.Sprintf("must be within [%g, %g]", min, max)}
	}
	return f, nil
}

// trackRequest is a validated ground-track request.
type trackRequest struct {
	Name  string
	Start time.Time
	Step  time.Duration
	Count int
}

// parseTrack reads name, start (default now), minutes (default 90) and
// step in seconds (default 60).
func parseTrack(q url.Values, now func() time.Time) (trackRequest, error) {
	req := trackRequest{Name: strings.TrimSpace(q.Get("name")), Start: now().UTC()}
	if req.Name == "" {
		return req, errMissingName
	}
	if s := q.Get("start"); s != "" {
		t, err := parseTime("start", s)
		if err != nil {
			return req, err
		}
		req.Start = t
	}

	minutes := 90.0
	if s := q.Get("minutes"); s != "" {
		f, err := strconv.ParseFloat(s, 64)
		if err != nil || !(f > 0) || math.IsInf(f, 0) {
			return req, &paramError{Param: "minutes", Msg: "must be a positive number"}
		}
		minutes = f
	}
	step := 60.0
	if s := q.Get("step"); s != "" {
		f, err := strconv.ParseFloat(s, 64)
		if err != nil || !(f > 0) || math.IsInf(f, 0) {
			return req, &paramError{Param: "step", Msg: "must be a positive number"}
		}
		step = f
	}

	points := math.Floor(minutes*60/step) + 1
	if points > maxTrackPoints {
		return req, &paramError{Param: "step", Msg: fmt.Sprintf("request exceeds %d points", maxTrackPoints)}
	}
	req.Step = time.Duration(step * float64(time.Second))
	if req.Step <= 0 {
		return req, &paramError{Param: "step", Msg: "must be at least 1ns"}
	}
	req.Count = int(points)
	return req, nil
}

// instants expands the request into UTC sample times.
func (t trackRequest) instants() []query.Instant {
	out := make([]query.Instant, t.Count)
	for i := range out {
		out[i] = query.InstantFromTime(t.Start.Add(time.Duration(i) * t.Step))
	}
	return out
}

// passRequest is a validated pass prediction request.
type passRequest struct {
	Name         string
	Observer     transform.ObserverPosition
	Start        time.Time
	Horizon      time.Duration
	MinElevation float64
	MaxPasses    int
}

// parsePasses reads name, lat, lon, optional alt, start (default now),
// hours (default 24), min_elevation (default 0) and max (default 20).
func parsePasses(q url.Values, now func() time.Time) (passRequest, error) {
	req := passRequest{Name: strings.TrimSpace(q.Get("name")), Start: now().UTC(), MaxPasses: 20}
	if req.Name == "" {
		return req, errMissingName
	}
	obs, ok, err := parseObserver(q)
	if err != nil {
		return req, err
	}
	if !ok {
		return req, &paramError{Param: "lat", Msg: "observer lat and lon are required"}
	}
	req.Observer = obs

	if s := q.Get("start"); s != "" {
		t, err := parseTime("start", s)
		if err != nil {
			return req, err
		}
		req.Start = t
	}
	hours := 24.0
	if q.Has("hours") {
		if hours, err = parseFloatRange(q, "hours", 0, maxPassHours, true); err != nil {
			return req, err
		}
		if hours == 0 {
			return req, &paramError{Param: "hours", Msg: "must be positive"}
		}
	}
	req.Horizon = time.Duration(hours * float64(time.Hour))
	if req.MinElevation, err = parseFloatRange(q, "min_elevation", -5, 90, false); err != nil {
		return req, err
	}
	if s := q.Get("max"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 1 || n > 1000 {
			return req, &paramError{Param: "max", Msg: "must be an integer within [1, 1000]"}
		}
		req.MaxPasses = n
	}
	return req, nil
}
