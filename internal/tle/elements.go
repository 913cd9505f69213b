package tle

import (
	"errors"
	"math"
	"strconv"
	"strings"

	"github.com/star/tlepos/internal/transform"
)

// LineLength is the fixed width of a TLE line including the checksum column.
const LineLength = 69

const (
	deg2rad = math.Pi / 180.0
	// minutes per day over 2π: converts rev/day to rad/min.
	xpdotp = 1440.0 / (2.0 * math.Pi)
)

var errNotNumeric = errors.New("not numeric")

// Checksum returns the modulo-10 checksum of the first 68 columns of line:
// digits count their value, '-' counts 1, everything else 0.
func Checksum(line string) int {
	sum := 0
	for i := 0; i < len(line) && i < LineLength-1; i++ {
		c := line[i]
		switch {
		case c >= '0' && c <= '9':
			sum += int(c - '0')
		case c == '-':
			sum++
		}
	}
	return sum % 10
}

// ParseElements parses and validates a two-line element set.
// Malformed fields yield a *FieldError, checksum mismatches a *ChecksumError.
func ParseElements(line1, line2 string) (*Elements, error) {
	line1 = normalizeLine(line1)
	line2 = normalizeLine(line2)

	if err := checkLine(1, line1); err != nil {
		return nil, err
	}
	if err := checkLine(2, line2); err != nil {
		return nil, err
	}
	if err := checkSeparators(1, line1); err != nil {
		return nil, err
	}
	if err := checkSeparators(2, line2); err != nil {
		return nil, err
	}

	el := &Elements{}
	var err error

	// Line 1.
	if el.SatNum, err = parseSatNum(1, line1[2:7]); err != nil {
		return nil, err
	}
	el.Classification = line1[7]
	el.Designator = strings.TrimSpace(line1[9:17])

	yy, err := parseInt(1, "epoch year", line1[18:20])
	if err != nil {
		return nil, err
	}
	if yy < 57 {
		el.EpochYear = 2000 + yy
	} else {
		el.EpochYear = 1900 + yy
	}
	if el.EpochDay, err = parseFloat(1, "epoch day", line1[20:32]); err != nil {
		return nil, err
	}
	if el.EpochDay < 1 || el.EpochDay >= float64(daysInYear(el.EpochYear)+1) {
		return nil, fieldErr(1, "epoch day", line1[20:32], "out of range for %d", el.EpochYear)
	}
	if el.Epoch, err = transform.FromDayOfYear(el.EpochYear, el.EpochDay); err != nil {
		return nil, &FieldError{Line: 1, Field: "epoch", Value: line1[18:32], Err: err}
	}

	ndot, err := parseFloat(1, "mean motion dot", line1[33:43])
	if err != nil {
		return nil, err
	}
	nddot, err := parseImpliedDecimal(1, "mean motion ddot", line1[44:52])
	if err != nil {
		return nil, err
	}
	if el.BStar, err = parseImpliedDecimal(1, "bstar", line1[53:61]); err != nil {
		return nil, err
	}
	if el.EphemerisType, err = parseOptionalInt(1, "ephemeris type", line1[62:63]); err != nil {
		return nil, err
	}
	if el.ElementNumber, err = parseOptionalInt(1, "element number", line1[64:68]); err != nil {
		return nil, err
	}

	// Line 2.
	satNum2, err := parseSatNum(2, line2[2:7])
	if err != nil {
		return nil, err
	}
	if satNum2 != el.SatNum {
		return nil, fieldErr(0, "satellite number", line2[2:7], "line 2 does not match line 1 (%d)", el.SatNum)
	}

	incl, err := parseAngle(2, "inclination", line2[8:16], 180)
	if err != nil {
		return nil, err
	}
	raan, err := parseAngle(2, "raan", line2[17:25], 360)
	if err != nil {
		return nil, err
	}
	eccField := line2[26:33]
	if !allDigits(eccField) {
		return nil, &FieldError{Line: 2, Field: "eccentricity", Value: eccField, Err: errNotNumeric}
	}
	ecc, err := strconv.ParseFloat("0."+eccField, 64)
	if err != nil {
		return nil, &FieldError{Line: 2, Field: "eccentricity", Value: eccField, Err: err}
	}
	argp, err := parseAngle(2, "argument of perigee", line2[34:42], 360)
	if err != nil {
		return nil, err
	}
	mo, err := parseAngle(2, "mean anomaly", line2[43:51], 360)
	if err != nil {
		return nil, err
	}
	n, err := parseFloat(2, "mean motion", line2[52:63])
	if err != nil {
		return nil, err
	}
	if !(n > 0) {
		return nil, fieldErr(2, "mean motion", line2[52:63], "must be positive")
	}
	if el.RevNumber, err = parseOptionalInt(2, "revolution number", line2[63:68]); err != nil {
		return nil, err
	}

	el.Inclination = incl * deg2rad
	el.RAAN = raan * deg2rad
	el.Eccentricity = ecc
	el.ArgPerigee = argp * deg2rad
	el.MeanAnomaly = mo * deg2rad
	el.MeanMotion = n / xpdotp
	el.MeanMotionDot = ndot / (xpdotp * 1440.0)
	el.MeanMotionDDot = nddot / (xpdotp * 1440.0 * 1440.0)
	return el, nil
}

// normalizeLine drops a trailing line terminator and, for over-long lines,
// trailing padding.
func normalizeLine(s string) string {
	s = strings.TrimRight(s, "\r\n")
	if len(s) > LineLength {
		s = strings.TrimRight(s, " ")
	}
	return s
}

func checkLine(num int, line string) error {
	if len(line) != LineLength {
		return fieldErr(num, "line", line, "length %d, want %d", len(line), LineLength)
	}
	if line[0] != byte('0'+num) || line[1] != ' ' {
		return fieldErr(num, "line number", line[:2], "want %q", string(rune('0'+num))+" ")
	}
	c := line[LineLength-1]
	if c < '0' || c > '9' {
		return fieldErr(num, "checksum", string(c), "not a digit")
	}
	want := int(c - '0')
	if got := Checksum(line); got != want {
		return &ChecksumError{Line: num, Want: want, Got: got}
	}
	return nil
}

// separators are the 0-based columns that must be blank on each line.
var separators = [3][]int{
	1: {8, 17, 32, 43, 52, 61, 63},
	2: {7, 16, 25, 33, 42, 51},
}

func checkSeparators(num int, line string) error {
	for _, i := range separators[num] {
		if line[i] != ' ' {
			return fieldErr(num, "separator", string(line[i]), "column %d must be blank", i+1)
		}
	}
	return nil
}

// parseSatNum accepts plain five-digit catalog numbers and the Alpha-5
// extension, where a leading letter (I and O excluded) encodes 10..33.
func parseSatNum(line int, s string) (int, error) {
	field := strings.TrimSpace(s)
	if field == "" {
		return 0, &FieldError{Line: line, Field: "satellite number", Value: s, Err: errNotNumeric}
	}
	if c := field[0]; c >= 'A' && c <= 'Z' && c != 'I' && c != 'O' && len(field) == 5 {
		v := int(c-'A') + 10
		if c > 'I' {
			v--
		}
		if c > 'O' {
			v--
		}
		rest, err := strconv.Atoi(field[1:])
		if err != nil || !allDigits(field[1:]) {
			return 0, &FieldError{Line: line, Field: "satellite number", Value: s, Err: errNotNumeric}
		}
		return v*10000 + rest, nil
	}
	if !allDigits(field) {
		return 0, &FieldError{Line: line, Field: "satellite number", Value: s, Err: errNotNumeric}
	}
	v, err := strconv.Atoi(field)
	if err != nil {
		return 0, &FieldError{Line: line, Field: "satellite number", Value: s, Err: err}
	}
	return v, nil
}

func parseInt(line int, field, s string) (int, error) {
	t := strings.TrimSpace(s)
	if t == "" || !allDigits(t) {
		return 0, &FieldError{Line: line, Field: field, Value: s, Err: errNotNumeric}
	}
	v, err := strconv.Atoi(t)
	if err != nil {
		return 0, &FieldError{Line: line, Field: field, Value: s, Err: err}
	}
	return v, nil
}

// parseOptionalInt treats an all-blank field as zero.
func parseOptionalInt(line int, field, s string) (int, error) {
	if strings.TrimSpace(s) == "" {
		return 0, nil
	}
	return parseInt(line, field, s)
}

func parseFloat(line int, field, s string) (float64, error) {
	t := strings.TrimSpace(s)
	if t == "" {
		return 0, &FieldError{Line: line, Field: field, Value: s, Err: errNotNumeric}
	}
	v, err := strconv.ParseFloat(t, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, &FieldError{Line: line, Field: field, Value: s, Err: errNotNumeric}
	}
	return v, nil
}

func parseAngle(line int, field, s string, max float64) (float64, error) {
	v, err := parseFloat(line, field, s)
	if err != nil {
		return 0, err
	}
	if v < 0 || v > max {
		return 0, fieldErr(line, field, s, "out of range [0, %g]", max)
	}
	return v, nil
}

// parseImpliedDecimal decodes the "SMMMMMSE" exponent notation used for
// n̈/6 and B*: " 12345-3" is 0.12345e-3.
func parseImpliedDecimal(line int, field, s string) (float64, error) {
	if len(s) != 8 {
		return 0, fieldErr(line, field, s, "width %d, want 8", len(s))
	}
	if strings.TrimSpace(s) == "" {
		return 0, nil
	}
	sign := 1.0
	switch s[0] {
	case '-':
		sign = -1
	case '+', ' ':
	default:
		return 0, &FieldError{Line: line, Field: field, Value: s, Err: errNotNumeric}
	}
	mant := strings.TrimSpace(s[1:6])
	if mant == "" {
		mant = "0"
	}
	if !allDigits(mant) {
		return 0, &FieldError{Line: line, Field: field, Value: s, Err: errNotNumeric}
	}
	expSign := 1
	switch s[6] {
	case '-':
		expSign = -1
	case '+', ' ':
	default:
		return 0, &FieldError{Line: line, Field: field, Value: s, Err: errNotNumeric}
	}
	if s[7] < '0' || s[7] > '9' {
		return 0, &FieldError{Line: line, Field: field, Value: s, Err: errNotNumeric}
	}
	m, err := strconv.ParseFloat("0."+mant, 64)
	if err != nil {
		return 0, &FieldError{Line: line, Field: field, Value: s, Err: err}
	}
	exp := expSign * int(s[7]-'0')
	return sign * m * math.Pow10(exp), nil
}

func allDigits(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

func daysInYear(y int) int {
	if (y%4 == 0 && y%100 != 0) || y%400 == 0 {
		return 366
	}
	return 365
}
