// Command tlequery resolves a satellite's ground position from a catalog
// file and prints it.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/star/tlepos/internal/config"
	"github.com/star/tlepos/internal/logging"
	"github.com/star/tlepos/internal/passes"
	"github.com/star/tlepos/internal/query"
	"github.com/star/tlepos/internal/tle"
	"github.com/star/tlepos/internal/transform"
)

var (
	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#7B2CBF"))
	labelStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("60")).Width(18)
	valueStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#E0E0E0"))
	errorStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#E84A27")).Bold(true)
	dimStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("60"))
	boxStyle   = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("#9D4EDD")).Padding(0, 1)
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("tlequery", flag.ContinueOnError)
	fs.SetOutput(stderr)
	configPath := fs.String("config", "", "config file for gravity and frame settings")
	catalogPath := fs.String("catalog", "", "catalog file (.json or 3-line TLE text)")
	name := fs.String("name", "", "satellite name, case-insensitive")
	at := fs.String("time", "", "RFC 3339 instant (default now)")
	lat := fs.Float64("lat", 0, "observer latitude, degrees")
	lon := fs.Float64("lon", 0, "observer longitude, degrees")
	alt := fs.Float64("alt", 0, "observer altitude, meters")
	minutes := fs.Float64("minutes", 0, "print a ground track over this many minutes")
	step := fs.Duration("step", time.Minute, "ground track step")
	passHours := fs.Float64("passes", 0, "predict passes over the observer for this many hours")
	minElev := fs.Float64("min-elevation", 10, "pass elevation mask, degrees")
	list := fs.Bool("list", false, "list catalog names and exit")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	logger := logging.New(logging.Config{Level: "error", Format: "text"}, stderr)
	cfg, err := config.Load(*configPath, logger)
	if err != nil {
		fmt.Fprintln(stderr, errorStyle.Render("config: "+err.Error()))
		return 2
	}
	if *catalogPath != "" {
		cfg.CatalogPath = *catalogPath
	}

	cat, err := tle.LoadCatalogFile(cfg.CatalogPath, logger)
	if err != nil {
		fmt.Fprintln(stderr, errorStyle.Render(err.Error()))
		return 2
	}

	opts := query.DefaultOptions()
	opts.Gravity = cfg.Propagation.Gravity
	opts.Workers = cfg.Propagation.Workers
	opts.Frames = cfg.Frames
	res := query.NewResolver(cat, opts, logger)

	if *list {
		fmt.Fprintln(stdout, renderCatalog(res))
		return 0
	}
	if *name == "" {
		fmt.Fprintln(stderr, errorStyle.Render("-name is required"))
		fs.Usage()
		return 2
	}

	start := time.Now().UTC()
	if *at != "" {
		if start, err = time.Parse(time.RFC3339Nano, *at); err != nil {
			fmt.Fprintln(stderr, errorStyle.Render("-time must be RFC 3339: "+err.Error()))
			return 2
		}
	}

	if *passHours > 0 {
		if !isSet(fs, "lat") || !isSet(fs, "lon") {
			fmt.Fprintln(stderr, errorStyle.Render("-passes needs -lat and -lon"))
			return 2
		}
		req := passes.Request{
			Observer:     transform.NewObserverPosition(*lat, *lon, *alt),
			Start:        start,
			Horizon:      time.Duration(*passHours * float64(time.Hour)),
			MinElevation: *minElev,
		}
		return printPasses(res, *name, req, stdout, stderr)
	}

	if *minutes > 0 {
		if *step <= 0 {
			fmt.Fprintln(stderr, errorStyle.Render("-step must be positive"))
			return 2
		}
		return printTrack(res, *name, start, *minutes, *step, stdout, stderr)
	}

	result, err := res.Resolve(*name, query.InstantFromTime(start))
	if err != nil {
		fmt.Fprintln(stderr, renderError(err))
		return 1
	}
	var look *transform.LookAngles
	if isSet(fs, "lat") || isSet(fs, "lon") {
		la := transform.NewObserverPosition(*lat, *lon, *alt).LookAt(result.State)
		look = &la
	}
	fmt.Fprintln(stdout, renderResult(result, look))
	return 0
}

func printTrack(res *query.Resolver, name string, start time.Time, minutes float64, step time.Duration, stdout, stderr io.Writer) int {
	n := int(time.Duration(minutes*float64(time.Minute))/step) + 1
	if n > 10000 {
		fmt.Fprintln(stderr, errorStyle.Render("ground track exceeds 10000 points"))
		return 2
	}
	instants := make([]query.Instant, n)
	for i := range instants {
		instants[i] = query.InstantFromTime(start.Add(time.Duration(i) * step))
	}
	track, err := res.Series(context.Background(), name, instants)
	if err != nil {
		fmt.Fprintln(stderr, renderError(err))
		return 1
	}

	fmt.Fprintln(stdout, titleStyle.Render(name))
	for _, tp := range track {
		ts := dimStyle.Render(tp.Epoch.Time().Format("2006-01-02 15:04:05"))
		if tp.Err != nil {
			fmt.Fprintf(stdout, "%s  %s\n", ts, renderError(tp.Err))
			continue
		}
		fmt.Fprintf(stdout, "%s  %s\n", ts, valueStyle.Render(fmt.Sprintf("%9.4f° %10.4f° %9.3f km",
			tp.Point.LatDeg(), tp.Point.LonDeg(), tp.Point.Alt/1000)))
	}
	return 0
}

func printPasses(res *query.Resolver, name string, req passes.Request, stdout, stderr io.Writer) int {
	found, err := res.Passes(context.Background(), name, req)
	if len(found) == 0 && err != nil {
		fmt.Fprintln(stderr, renderError(err))
		return 1
	}

	fmt.Fprintln(stdout, titleStyle.Render(fmt.Sprintf("%s: %d passes", name, len(found))))
	for _, p := range found {
		fmt.Fprintf(stdout, "%s  %s\n",
			dimStyle.Render(p.Rise.Format("2006-01-02 15:04:05")),
			valueStyle.Render(fmt.Sprintf("max %5.1f° at %s  az %5.1f°→%5.1f°  %s",
				p.MaxElevation, p.Culmination.Format("15:04:05"),
				p.RiseAzimuth, p.SetAzimuth, p.Duration().Round(time.Second))))
	}
	if err != nil {
		fmt.Fprintln(stderr, renderError(err))
		return 1
	}
	return 0
}

func isSet(fs *flag.FlagSet, name string) bool {
	var set bool
	fs.Visit(func(f *flag.Flag) {
		if f.Name == name {
			set = true
		}
	})
	return set
}

func row(label, value string) string {
	return lipgloss.JoinHorizontal(lipgloss.Top, labelStyle.Render(label), valueStyle.Render(value))
}

func renderResult(r *query.Result, look *transform.LookAngles) string {
	rows := []string{
		titleStyle.Render(r.Name),
		row("time", r.Epoch.Time().Format(time.RFC3339Nano)),
		row("latitude", fmt.Sprintf("%.6f°", r.Point.LatDeg())),
		row("longitude", fmt.Sprintf("%.6f°", r.Point.LonDeg())),
		row("altitude", fmt.Sprintf("%.3f km", r.Point.Alt/1000)),
		row("model", r.Branch.String()),
		row("since epoch", fmt.Sprintf("%.3f min", r.MinutesSinceEpoch)),
	}
	if look != nil {
		rows = append(rows,
			row("azimuth", fmt.Sprintf("%.2f°", look.AzimuthDeg)),
			row("elevation", fmt.Sprintf("%.2f°", look.ElevationDeg)),
			row("range", fmt.Sprintf("%.3f km", look.RangeKm)),
			row("range rate", fmt.Sprintf("%+.3f km/s", look.RangeRateKmS)),
		)
	}
	return boxStyle.Render(lipgloss.JoinVertical(lipgloss.Left, rows...))
}

func renderError(err error) string {
	return errorStyle.Render(query.KindOf(err).String()) + " " + err.Error()
}

func renderCatalog(res *query.Resolver) string {
	var b strings.Builder
	total, failed := res.Stats()
	b.WriteString(titleStyle.Render(fmt.Sprintf("%d satellites, %d unusable", total, failed)))
	for _, s := range res.Satellites() {
		b.WriteByte('\n')
		if s.Err != nil {
			b.WriteString(row(s.Name, errorStyle.Render(query.KindOf(s.Err).String())))
			continue
		}
		b.WriteString(row(s.Name, fmt.Sprintf("%s  %.1f min  epoch %s",
			s.Branch, s.PeriodMinutes, s.Epoch.Time().Format("2006-01-02 15:04"))))
	}
	return b.String()
}
