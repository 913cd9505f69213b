package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"math"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/star/tlepos/internal/observability"
	"github.com/star/tlepos/internal/passes"
	"github.com/star/tlepos/internal/query"
	"github.com/star/tlepos/internal/transform"
)

// now is replaced in tests.
var now = time.Now

type lookAnglesResponse struct {
	AzimuthDeg   float64 `json:"azimuth_deg"`
	ElevationDeg float64 `json:"elevation_deg"`
	RangeKm      float64 `json:"range_km"`
	RangeRateKmS float64 `json:"range_rate_km_s"`
}

type positionResponse struct {
	Name              string              `json:"name"`
	Time              string              `json:"time"`
	LatitudeDeg       float64             `json:"latitude_deg"`
	LongitudeDeg      float64             `json:"longitude_deg"`
	AltitudeM         float64             `json:"altitude_m"`
	Branch            string              `json:"branch"`
	MinutesSinceEpoch float64             `json:"minutes_since_epoch"`
	LookAngles        *lookAnglesResponse `json:"look_angles,omitempty"`
}

type trackPointResponse struct {
	Time         string   `json:"time"`
	LatitudeDeg  *float64 `json:"latitude_deg,omitempty"`
	LongitudeDeg *float64 `json:"longitude_deg,omitempty"`
	AltitudeM    *float64 `json:"altitude_m,omitempty"`
	Error        string   `json:"error,omitempty"`
	Kind         string   `json:"kind,omitempty"`
}

type groundTrackResponse struct {
	Name        string               `json:"name"`
	Start       string               `json:"start"`
	StepSeconds float64              `json:"step_seconds"`
	Points      []trackPointResponse `json:"points"`
}

type satelliteResponse struct {
	Name          string  `json:"name"`
	Epoch         string  `json:"epoch,omitempty"`
	Branch        string  `json:"branch,omitempty"`
	PeriodMinutes float64 `json:"period_minutes,omitempty"`
	Error         string  `json:"error,omitempty"`
	Kind          string  `json:"kind,omitempty"`
}

type catalogResponse struct {
	Source     string              `json:"source,omitempty"`
	LoadedAt   string              `json:"loaded_at"`
	EpochMin   string              `json:"epoch_min,omitempty"`
	EpochMax   string              `json:"epoch_max,omitempty"`
	Count      int                 `json:"count"`
	Failed     int                 `json:"failed"`
	Satellites []satelliteResponse `json:"satellites"`
}

type passPointResponse struct {
	Time         string  `json:"time"`
	LatitudeDeg  float64 `json:"latitude_deg"`
	LongitudeDeg float64 `json:"longitude_deg"`
	AltitudeM    float64 `json:"altitude_m"`
	ElevationDeg float64 `json:"elevation_deg"`
}

type passResponse struct {
	Rise                  string              `json:"rise"`
	Culmination           string              `json:"culmination"`
	Set                   string              `json:"set"`
	DurationSeconds       float64             `json:"duration_seconds"`
	MaxElevationDeg       float64             `json:"max_elevation_deg"`
	RiseAzimuthDeg        float64             `json:"rise_azimuth_deg"`
	CulminationAzimuthDeg float64             `json:"culmination_azimuth_deg"`
	SetAzimuthDeg         float64             `json:"set_azimuth_deg"`
	GroundTrack           []passPointResponse `json:"ground_track"`
}

type passesResponse struct {
	Name   string         `json:"name"`
	Start  string         `json:"start"`
	End    string         `json:"end"`
	Passes []passResponse `json:"passes"`
	Error  string         `json:"error,omitempty"` // set when prediction stopped early
	Kind   string         `json:"kind,omitempty"`
}

type errorResponse struct {
	Error string `json:"error"`
	Kind  string `json:"kind,omitempty"`
}

func positionHandler(logger *slog.Logger, res *query.Resolver) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		name := strings.TrimSpace(q.Get("name"))
		if name == "" {
			writeParamError(w, errMissingName)
			return
		}
		in, err := parseInstant(q, now)
		if err != nil {
			writeParamError(w, err)
			return
		}
		obs, hasObs, err := parseObserver(q)
		if err != nil {
			writeParamError(w, err)
			return
		}

		_, span := observability.Tracer().Start(r.Context(), "query.resolve",
			trace.WithAttributes(
				attribute.String("satellite.name", name),
				attribute.String("query.instant", in.String()),
			),
		)
		result, err := res.Resolve(name, in)
		endSpan(span, err)
		if err != nil {
			writeQueryError(w, logger, err)
			return
		}

		resp := positionResponse{
			Name:              result.Name,
			Time:              formatEpoch(result.Epoch),
			LatitudeDeg:       result.Point.LatDeg(),
			LongitudeDeg:      result.Point.LonDeg(),
			AltitudeM:         result.Point.Alt,
			Branch:            result.Branch.String(),
			MinutesSinceEpoch: result.MinutesSinceEpoch,
		}
		if hasObs {
			la := obs.LookAt(result.State)
			resp.LookAngles = &lookAnglesResponse{
				AzimuthDeg:   la.AzimuthDeg,
				ElevationDeg: la.ElevationDeg,
				RangeKm:      la.RangeKm,
				RangeRateKmS: la.RangeRateKmS,
			}
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

func groundTrackHandler(logger *slog.Logger, res *query.Resolver) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		req, err := parseTrack(r.URL.Query(), now)
		if err != nil {
			writeParamError(w, err)
			return
		}

		ctx, span := observability.Tracer().Start(r.Context(), "query.series",
			trace.WithAttributes(
				attribute.String("satellite.name", req.Name),
				attribute.Int("series.points", req.Count),
			),
		)
		track, err := res.Series(ctx, req.Name, req.instants())
		endSpan(span, err)
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			logger.Debug("ground track canceled", "component", "api", "name", req.Name)
			writeJSON(w, http.StatusServiceUnavailable, errorResponse{Error: "request canceled"})
			return
		}
		if err != nil {
			writeQueryError(w, logger, err)
			return
		}

		resp := groundTrackResponse{
			Name:        req.Name,
			Start:       req.Start.UTC().Format(time.RFC3339Nano),
			StepSeconds: req.Step.Seconds(),
			Points:      make([]trackPointResponse, len(track)),
		}
		if sat, ok := res.Catalog().Lookup(req.Name); ok {
			resp.Name = sat.Name
		}
		for i, tp := range track {
			p := trackPointResponse{Time: formatEpoch(tp.Epoch)}
			if tp.Err != nil {
				p.Error = tp.Err.Error()
				p.Kind = query.KindOf(tp.Err).String()
			} else {
				lat, lon, alt := tp.Point.LatDeg(), tp.Point.LonDeg(), tp.Point.Alt
				p.LatitudeDeg, p.LongitudeDeg, p.AltitudeM = &lat, &lon, &alt
			}
			resp.Points[i] = p
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

func passesHandler(logger *slog.Logger, res *query.Resolver) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		req, err := parsePasses(r.URL.Query(), now)
		if err != nil {
			writeParamError(w, err)
			return
		}

		ctx, span := observability.Tracer().Start(r.Context(), "query.passes",
			trace.WithAttributes(
				attribute.String("satellite.name", req.Name),
				attribute.Float64("passes.horizon_hours", req.Horizon.Hours()),
			),
		)
		found, err := res.Passes(ctx, req.Name, passes.Request{
			Observer:     req.Observer,
			Start:        req.Start,
			Horizon:      req.Horizon,
			MinElevation: req.MinElevation,
			MaxPasses:    req.MaxPasses,
		})
		endSpan(span, err)
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			writeJSON(w, http.StatusServiceUnavailable, errorResponse{Error: "request canceled"})
			return
		}
		if err != nil && len(found) == 0 {
			writeQueryError(w, logger, err)
			return
		}

		resp := passesResponse{
			Name:   req.Name,
			Start:  req.Start.UTC().Format(time.RFC3339Nano),
			End:    req.Start.Add(req.Horizon).UTC().Format(time.RFC3339Nano),
			Passes: make([]passResponse, len(found)),
		}
		if sat, ok := res.Catalog().Lookup(req.Name); ok {
			resp.Name = sat.Name
		}
		if err != nil {
			resp.Error = err.Error()
			resp.Kind = query.KindOf(err).String()
		}
		for i, p := range found {
			pr := passResponse{
				Rise:                  formatTime(p.Rise),
				Culmination:           formatTime(p.Culmination),
				Set:                   formatTime(p.Set),
				DurationSeconds:       p.Duration().Seconds(),
				MaxElevationDeg:       p.MaxElevation,
				RiseAzimuthDeg:        p.RiseAzimuth,
				CulminationAzimuthDeg: p.CulminationAzimuth,
				SetAzimuthDeg:         p.SetAzimuth,
				GroundTrack:           make([]passPointResponse, len(p.GroundTrack)),
			}
			for j, gt := range p.GroundTrack {
				pr.GroundTrack[j] = passPointResponse{
					Time:         formatTime(gt.Time),
					LatitudeDeg:  gt.Point.LatDeg(),
					LongitudeDeg: gt.Point.LonDeg(),
					AltitudeM:    gt.Point.Alt,
					ElevationDeg: gt.Elevation,
				}
			}
			resp.Passes[i] = pr
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

func catalogHandler(res *query.Resolver) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		cat := res.Catalog()
		sats := res.Satellites()
		total, failed := res.Stats()

		resp := catalogResponse{
			Source:     cat.Source,
			LoadedAt:   cat.LoadedAt.UTC().Format(time.RFC3339),
			Count:      total,
			Failed:     failed,
			Satellites: make([]satelliteResponse, len(sats)),
		}
		if !cat.EpochRange.Min.IsZero() {
			resp.EpochMin = cat.EpochRange.Min.UTC().Format(time.RFC3339Nano)
			resp.EpochMax = cat.EpochRange.Max.UTC().Format(time.RFC3339Nano)
		}
		for i, s := range sats {
			sr := satelliteResponse{Name: s.Name}
			if s.Err != nil {
				sr.Error = s.Err.Error()
				sr.Kind = query.KindOf(s.Err).String()
			} else {
				sr.Epoch = formatEpoch(s.Epoch)
				sr.Branch = s.Branch.String()
				sr.PeriodMinutes = math.Round(s.PeriodMinutes*1e4) / 1e4
			}
			resp.Satellites[i] = sr
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

// statusFor maps an error kind to its HTTP status.
func statusFor(k query.Kind) int {
	switch k {
	case query.KindNotFound:
		return http.StatusNotFound
	case query.KindFormat, query.KindChecksum:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

func writeQueryError(w http.ResponseWriter, logger *slog.Logger, err error) {
	kind := query.KindOf(err)
	status := statusFor(kind)
	if status >= 500 {
		logger.Warn("query failed", "component", "api", "kind", kind.String(), "error", err)
	}
	writeJSON(w, status, errorResponse{Error: err.Error(), Kind: kind.String()})
}

func writeParamError(w http.ResponseWriter, err error) {
	writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, query.KindOf(err).String())
	}
	span.End()
}

func formatEpoch(e transform.Epoch) string {
	return formatTime(e.Time())
}

func formatTime(t time.Time) string {
	return t.UTC().Round(time.Microsecond).Format(time.RFC3339Nano)
}
