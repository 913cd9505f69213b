package transform

import (
	"errors"
	"math"
	"strings"
	"testing"
	"time"
)

func TestFromCalendarValidation(t *testing.T) {
	tests := []struct {
		name            string
		y, mo, d, h, mi int
		sec             float64
		wantErr         bool
	}{
		{"valid", 2024, 4, 12, 14, 30, 0, false},
		{"leap day", 2024, 2, 29, 0, 0, 0, false},
		{"leap second", 2016, 12, 31, 23, 59, 60.5, false},
		{"non-leap Feb 29", 2023, 2, 29, 0, 0, 0, true},
		{"century non-leap", 1900, 2, 29, 0, 0, 0, true},
		{"400-year leap", 2000, 2, 29, 0, 0, 0, false},
		{"month 13", 2024, 13, 1, 0, 0, 0, true},
		{"month 0", 2024, 0, 1, 0, 0, 0, true},
		{"April 31", 2024, 4, 31, 0, 0, 0, true},
		{"hour 24", 2024, 4, 12, 24, 0, 0, true},
		{"minute 60", 2024, 4, 12, 0, 60, 0, true},
		{"second 61", 2024, 4, 12, 0, 0, 61, true},
		{"negative second", 2024, 4, 12, 0, 0, -1, true},
		{"NaN second", 2024, 4, 12, 0, 0, math.NaN(), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := FromCalendar(tt.y, tt.mo, tt.d, tt.h, tt.mi, tt.sec)
			if (err != nil) != tt.wantErr {
				t.Fatalf("FromCalendar err = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, ErrInvalidCalendar) {
				t.Errorf("error %v does not match ErrInvalidCalendar", err)
			}
		})
	}
}

func TestEpochTimeRoundTrip(t *testing.T) {
	for _, ts := range []time.Time{
		time.Date(2024, 4, 12, 14, 30, 0, 0, time.UTC),
		time.Date(1958, 2, 17, 3, 4, 5, 123456000, time.UTC),
		time.Date(2056, 12, 31, 23, 59, 59, 999000000, time.UTC),
		time.Date(1969, 7, 20, 20, 17, 40, 0, time.UTC),
	} {
		got := FromTime(ts).Time()
		if d := got.Sub(ts); d < -time.Microsecond || d > time.Microsecond {
			t.Errorf("round trip %v -> %v (diff %v)", ts, got, d)
		}
	}
}

func TestFromDayOfYear(t *testing.T) {
	e, err := FromDayOfYear(2024, 103.5)
	if err != nil {
		t.Fatal(err)
	}
	want := time.Date(2024, 4, 12, 12, 0, 0, 0, time.UTC)
	if got := e.Time(); !got.Equal(want) {
		t.Errorf("day 103.5 of 2024 = %v, want %v", got, want)
	}

	if _, err := FromDayOfYear(2023, 366.2); err == nil {
		t.Error("day 366 accepted in a non-leap year")
	}
	if _, err := FromDayOfYear(2024, 366.2); err != nil {
		t.Errorf("day 366 of a leap year: %v", err)
	}
	if _, err := FromDayOfYear(2024, 0.5); err == nil {
		t.Error("day 0.5 accepted")
	}
}

func TestEpochArithmetic(t *testing.T) {
	a, _ := FromCalendar(2024, 4, 12, 14, 30, 0)
	b, _ := FromCalendar(2024, 4, 10, 8, 15, 30)

	if got, want := a.Sub(b), 54*time.Hour+14*time.Minute+30*time.Second; got != want {
		t.Errorf("Sub = %v, want %v", got, want)
	}
	if got := a.MinutesSince(b); math.Abs(got-3254.5) > 1e-9 {
		t.Errorf("MinutesSince = %.12f, want 3254.5", got)
	}
	if c := b.AddMinutes(3254.5); math.Abs(c.MinutesSince(a)) > 1e-9 {
		t.Errorf("AddMinutes round trip off by %.3e min", c.MinutesSince(a))
	}
	if !b.Before(a) || a.Before(b) {
		t.Error("Before ordering is wrong")
	}

	// Crossing midnight backwards keeps the fraction in [0, 1).
	c := a.AddMinutes(-15 * 60)
	if _, frac := c.Parts(); frac < 0 || frac >= 1 {
		t.Errorf("fraction %.6f out of [0, 1)", frac)
	}
	if got := c.Time(); !got.Equal(time.Date(2024, 4, 11, 23, 30, 0, 0, time.UTC)) {
		t.Errorf("AddMinutes(-900) = %v", got)
	}
}

func TestEpochRefusesMixedScales(t *testing.T) {
	utc, _ := FromCalendar(2024, 4, 12, 14, 30, 0)
	tt := UTCToTT(utc, nil)

	defer func() {
		r := recover()
		if r == nil {
			t.Fatal("Sub across scales did not panic")
		}
		if !strings.Contains(r.(string), "mixing") {
			t.Errorf("unexpected panic: %v", r)
		}
	}()
	_ = tt.Sub(utc)
}

func TestUTCToTT(t *testing.T) {
	tests := []struct {
		name string
		utc  time.Time
		want float64 // TT − UTC, seconds
	}{
		{"2024", time.Date(2024, 4, 12, 14, 30, 0, 0, time.UTC), 69.184},
		{"before 2017 step", time.Date(2016, 12, 31, 12, 0, 0, 0, time.UTC), 68.184},
		{"J2000", time.Date(2000, 1, 1, 12, 0, 0, 0, time.UTC), 64.184},
		{"1980", time.Date(1980, 6, 1, 0, 0, 0, 0, time.UTC), 51.184},
		{"pre-1972", time.Date(1960, 1, 1, 0, 0, 0, 0, time.UTC), 42.184},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			utc := FromTime(tc.utc)
			tt := UTCToTT(utc, DefaultLeapSeconds())
			if tt.Scale() != TT {
				t.Fatalf("scale = %s, want TT", tt.Scale())
			}
			got := (tt.JD() - utc.JD()) * 86400
			if math.Abs(got-tc.want) > 1e-4 {
				t.Errorf("TT - UTC = %.6f s, want %.3f", got, tc.want)
			}
			back := TTToUTC(tt, DefaultLeapSeconds())
			if back.Scale() != UTC || math.Abs(back.MinutesSince(utc)) > 1e-9 {
				t.Errorf("TTToUTC round trip off by %.3e min", back.MinutesSince(utc))
			}
		})
	}
}

func TestLoadLeapSeconds(t *testing.T) {
	const table = `# TAI-UTC table
2012 7 1 0 0 0 35
2015 7 1 0 0 0 36

2017 1 1 0 0 0 37
2030 1 1 0 0 0 38
`
	ls, err := LoadLeapSeconds(strings.NewReader(table))
	if err != nil {
		t.Fatalf("LoadLeapSeconds: %v", err)
	}
	if ls.Len() != 4 {
		t.Errorf("Len = %d, want 4", ls.Len())
	}
	at, _ := FromCalendar(2031, 1, 1, 0, 0, 0)
	if got := ls.TAIMinusUTC(at); got != 38 {
		t.Errorf("TAI-UTC in 2031 = %g, want 38", got)
	}
	before, _ := FromCalendar(2016, 1, 1, 0, 0, 0)
	if got := ls.TAIMinusUTC(before); got != 36 {
		t.Errorf("TAI-UTC in 2016 = %g, want 36", got)
	}

	bad := []string{
		"2017 1 1 0 0 37\n",
		"2017 1 1 0 0 0 x\n",
		"2017 1 1 0 0 0 37\n2015 7 1 0 0 0 36\n",
		"# nothing\n",
		"2017 13 1 0 0 0 37\n",
	}
	for _, in := range bad {
		if _, err := LoadLeapSeconds(strings.NewReader(in)); err == nil {
			t.Errorf("LoadLeapSeconds(%q) succeeded, want error", in)
		}
	}
}

func TestParseConvention(t *testing.T) {
	for in, want := range map[string]Convention{"iers2010": IERS2010, "IAU1982": IAU1982, "": IERS2010, "iau82": IAU1982} {
		got, err := ParseConvention(in)
		if err != nil || got != want {
			t.Errorf("ParseConvention(%q) = %v, %v; want %v", in, got, err, want)
		}
	}
	if _, err := ParseConvention("fk5"); err == nil {
		t.Error("ParseConvention(fk5) succeeded")
	}
}
