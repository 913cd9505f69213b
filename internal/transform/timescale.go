package transform

import (
	"bufio"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
)

// ttMinusTAI is the constant offset TT − TAI in seconds.
const ttMinusTAI = 32.184

type leapStep struct {
	jd     float64 // UTC Julian Date at which the offset takes effect
	offset float64 // TAI − UTC, seconds
}

// LeapSeconds is a TAI − UTC step table. It is read-only once built.
type LeapSeconds struct {
	steps []leapStep
}

// Steps before 1972 were fractional and drifting; instants earlier than the
// first entry use its offset.
var builtinLeapSeconds = mustLeapTable([][4]float64{
	{1972, 1, 1, 10}, {1972, 7, 1, 11}, {1973, 1, 1, 12}, {1974, 1, 1, 13},
	{1975, 1, 1, 14}, {1976, 1, 1, 15}, {1977, 1, 1, 16}, {1978, 1, 1, 17},
	{1979, 1, 1, 18}, {1980, 1, 1, 19}, {1981, 7, 1, 20}, {1982, 7, 1, 21},
	{1983, 7, 1, 22}, {1985, 7, 1, 23}, {1988, 1, 1, 24}, {1990, 1, 1, 25},
	{1991, 1, 1, 26}, {1992, 7, 1, 27}, {1993, 7, 1, 28}, {1994, 7, 1, 29},
	{1996, 1, 1, 30}, {1997, 7, 1, 31}, {1999, 1, 1, 32}, {2006, 1, 1, 33},
	{2009, 1, 1, 34}, {2012, 7, 1, 35}, {2015, 7, 1, 36}, {2017, 1, 1, 37},
})

func mustLeapTable(rows [][4]float64) *LeapSeconds {
	steps := make([]leapStep, len(rows))
	for i, r := range rows {
		steps[i] = leapStep{jd: julianDay0(int(r[0]), int(r[1]), int(r[2])), offset: r[3]}
	}
	return &LeapSeconds{steps: steps}
}

// DefaultLeapSeconds returns the built-in table, current through the
// 2017-01-01 step (37 s).
func DefaultLeapSeconds() *LeapSeconds { return builtinLeapSeconds }

// LoadLeapSeconds reads a table with one "y m d h m s tai-utc" row per line.
// Blank lines and lines starting with '#' are ignored. Rows must be in
// ascending order.
func LoadLeapSeconds(r io.Reader) (*LeapSeconds, error) {
	var steps []leapStep
	scanner := bufio.NewScanner(r)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		f := strings.Fields(line)
		if len(f) != 7 {
			return nil, fmt.Errorf("leap seconds line %d: want 7 fields, got %d", lineNo, len(f))
		}
		var v [6]int
		for i := 0; i < 6; i++ {
			n, err := strconv.Atoi(f[i])
			if err != nil {
				return nil, fmt.Errorf("leap seconds line %d: %w", lineNo, err)
			}
			v[i] = n
		}
		off, err := strconv.ParseFloat(f[6], 64)
		if err != nil {
			return nil, fmt.Errorf("leap seconds line %d: %w", lineNo, err)
		}
		at, err := FromCalendar(v[0], v[1], v[2], v[3], v[4], float64(v[5]))
		if err != nil {
			return nil, fmt.Errorf("leap seconds line %d: %w", lineNo, err)
		}
		step := leapStep{jd: at.JD(), offset: off}
		if n := len(steps); n > 0 && step.jd <= steps[n-1].jd {
			return nil, fmt.Errorf("leap seconds line %d: not in ascending order", lineNo)
		}
		steps = append(steps, step)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading leap seconds: %w", err)
	}
	if len(steps) == 0 {
		return nil, fmt.Errorf("leap seconds table is empty")
	}
	return &LeapSeconds{steps: steps}, nil
}

// TAIMinusUTC returns TAI − UTC in seconds at the UTC instant utc.
func (l *LeapSeconds) TAIMinusUTC(utc Epoch) float64 {
	if l == nil {
		l = builtinLeapSeconds
	}
	jd := utc.JD()
	i := sort.Search(len(l.steps), func(i int) bool { return l.steps[i].jd > jd })
	if i == 0 {
		return l.steps[0].offset
	}
	return l.steps[i-1].offset
}

// Len returns the number of steps in the table.
func (l *LeapSeconds) Len() int { return len(l.steps) }

// UTCToTT converts a UTC epoch to TT. Epochs already in TT are returned as is.
func UTCToTT(e Epoch, l *LeapSeconds) Epoch {
	if e.scale == TT {
		return e
	}
	tt := e.AddSeconds(l.TAIMinusUTC(e) + ttMinusTAI)
	tt.scale = TT
	return tt
}

// TTToUTC converts a TT epoch to UTC. Epochs not in TT are returned as is.
func TTToUTC(e Epoch, l *LeapSeconds) Epoch {
	if e.scale != TT {
		return e
	}
	// First guess, then correct across a step boundary.
	guess := e.AddSeconds(-ttMinusTAI - l.TAIMinusUTC(Epoch{day: e.day, frac: e.frac}))
	guess.scale = UTC
	utc := e.AddSeconds(-ttMinusTAI - l.TAIMinusUTC(guess))
	utc.scale = UTC
	return utc
}

// UTCToUT1 applies dut1 = UT1 − UTC seconds.
func UTCToUT1(e Epoch, dut1 float64) Epoch {
	if e.scale == UT1 {
		return e
	}
	ut1 := e.AddSeconds(dut1)
	ut1.scale = UT1
	return ut1
}
