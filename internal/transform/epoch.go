package transform

import (
	"errors"
	"fmt"
	"math"
	"time"
)

// ErrInvalidCalendar is matched by every rejected calendar instant.
var ErrInvalidCalendar = errors.New("invalid calendar instant")

// unixEpochJD is the Julian Date of 1970-01-01T00:00:00.
const unixEpochJD = 2440587.5

// Scale identifies the time scale an Epoch is expressed in.
type Scale uint8

const (
	UTC Scale = iota
	UT1
	TT
)

func (s Scale) String() string {
	switch s {
	case UTC:
		return "UTC"
	case UT1:
		return "UT1"
	case TT:
		return "TT"
	}
	return fmt.Sprintf("Scale(%d)", uint8(s))
}

// Epoch is an instant stored as a two-part Julian Date: the date at 0h
// (always ending in .5) and the fraction of that day in [0, 1). The split
// keeps sub-millisecond resolution over centuries.
type Epoch struct {
	day   float64
	frac  float64
	scale Scale
}

// FromCalendar converts a proleptic Gregorian UTC calendar instant to an
// Epoch. Seconds may reach 60.x to express a leap second; the day is
// treated as uniform.
func FromCalendar(year, month, day, hour, minute int, second float64) (Epoch, error) {
	if year < 1 || year > 9999 {
		return Epoch{}, fmt.Errorf("%w: year %d", ErrInvalidCalendar, year)
	}
	if month < 1 || month > 12 {
		return Epoch{}, fmt.Errorf("%w: month %d", ErrInvalidCalendar, month)
	}
	if day < 1 || day > daysIn(year, month) {
		return Epoch{}, fmt.Errorf("%w: day %d of %04d-%02d", ErrInvalidCalendar, day, year, month)
	}
	if hour < 0 || hour > 23 {
		return Epoch{}, fmt.Errorf("%w: hour %d", ErrInvalidCalendar, hour)
	}
	if minute < 0 || minute > 59 {
		return Epoch{}, fmt.Errorf("%w: minute %d", ErrInvalidCalendar, minute)
	}
	if math.IsNaN(second) || second < 0 || second >= 61 {
		return Epoch{}, fmt.Errorf("%w: second %g", ErrInvalidCalendar, second)
	}
	sod := float64(hour)*3600 + float64(minute)*60 + second
	return newEpoch(julianDay0(year, month, day), sod/86400.0, UTC), nil
}

// FromDayOfYear converts a year and 1-based fractional day of year, as
// carried by element set epochs, to a UTC Epoch.
func FromDayOfYear(year int, doy float64) (Epoch, error) {
	if year < 1 || year > 9999 {
		return Epoch{}, fmt.Errorf("%w: year %d", ErrInvalidCalendar, year)
	}
	if math.IsNaN(doy) || doy < 1 || doy >= float64(daysInYear(year)+1) {
		return Epoch{}, fmt.Errorf("%w: day of year %g", ErrInvalidCalendar, doy)
	}
	whole := math.Floor(doy - 1)
	return newEpoch(julianDay0(year, 1, 1)+whole, doy-1-whole, UTC), nil
}

// FromTime converts t to a UTC Epoch.
func FromTime(t time.Time) Epoch {
	t = t.UTC()
	sod := float64(t.Hour()*3600+t.Minute()*60+t.Second()) + float64(t.Nanosecond())/1e9
	return newEpoch(julianDay0(t.Year(), int(t.Month()), t.Day()), sod/86400.0, UTC)
}

// FromJD builds an Epoch from a single Julian Date in the given scale.
func FromJD(jd float64, scale Scale) Epoch {
	day := math.Floor(jd-0.5) + 0.5
	return newEpoch(day, jd-day, scale)
}

func newEpoch(day, frac float64, scale Scale) Epoch {
	if shift := math.Floor(frac); shift != 0 {
		day += shift
		frac -= shift
	}
	return Epoch{day: day, frac: frac, scale: scale}
}

// JD returns the Julian Date as a single float64.
func (e Epoch) JD() float64 { return e.day + e.frac }

// Parts returns the Julian Date at 0h and the day fraction.
func (e Epoch) Parts() (day, frac float64) { return e.day, e.frac }

// Scale reports the time scale of e.
func (e Epoch) Scale() Scale { return e.scale }

// Time returns the calendar reading of e as a time.Time in the UTC location.
// For non-UTC scales the reading is that of the epoch's own scale.
func (e Epoch) Time() time.Time {
	days := int64(math.Round(e.day - unixEpochJD))
	sod := e.frac * 86400.0
	whole := math.Floor(sod)
	nsec := int64(math.Round((sod - whole) * 1e9))
	return time.Unix(days*86400+int64(whole), nsec).UTC()
}

// AddSeconds returns e shifted by s seconds, keeping its scale.
func (e Epoch) AddSeconds(s float64) Epoch {
	d := s / 86400.0
	whole := math.Trunc(d)
	return newEpoch(e.day+whole, e.frac+(d-whole), e.scale)
}

// AddMinutes returns e shifted by m minutes, keeping its scale.
func (e Epoch) AddMinutes(m float64) Epoch {
	return e.AddSeconds(m * 60.0)
}

// MinutesSince returns e − o in minutes. Both epochs must share a scale.
func (e Epoch) MinutesSince(o Epoch) float64 {
	e.mustMatch(o)
	return (e.day-o.day)*1440.0 + (e.frac-o.frac)*1440.0
}

// Sub returns e − o. Both epochs must share a scale.
func (e Epoch) Sub(o Epoch) time.Duration {
	e.mustMatch(o)
	sec := (e.day-o.day)*86400.0 + (e.frac-o.frac)*86400.0
	return time.Duration(math.Round(sec * 1e9))
}

// Before reports whether e is earlier than o. Both must share a scale.
func (e Epoch) Before(o Epoch) bool {
	return e.MinutesSince(o) < 0
}

func (e Epoch) mustMatch(o Epoch) {
	if e.scale != o.scale {
		panic(fmt.Sprintf("transform: mixing %s and %s epochs", e.scale, o.scale))
	}
}

func (e Epoch) String() string {
	return e.Time().Format("2006-01-02T15:04:05.000") + " " + e.scale.String()
}

// julianDay0 returns the Julian Date at 0h of a Gregorian calendar date.
func julianDay0(year, month, day int) float64 {
	y := float64(year)
	m := float64(month)
	// Adjust year/month for Jan/Feb (treat as months 13/14 of previous year).
	if m <= 2 {
		y--
		m += 12
	}
	A := math.Floor(y / 100)
	B := 2 - A + math.Floor(A/4)
	return math.Floor(365.25*(y+4716)) + math.Floor(30.6001*(m+1)) + float64(day) + B - 1524.5
}

func daysInYear(y int) int {
	if isLeap(y) {
		return 366
	}
	return 365
}

func isLeap(y int) bool {
	return (y%4 == 0 && y%100 != 0) || y%400 == 0
}

func daysIn(year, month int) int {
	switch month {
	case 2:
		if isLeap(year) {
			return 29
		}
		return 28
	case 4, 6, 9, 11:
		return 30
	}
	return 31
}
