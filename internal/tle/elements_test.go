package tle

import (
	"errors"
	"math"
	"strconv"
	"testing"
	"time"
)

const (
	issLine1 = "1 25544U 98067A   24103.50000000  .00016717  00000-0  30270-3 0  9992"
	issLine2 = "2 25544  51.6393 287.4042 0004514  32.5268  90.4536 15.50177075448029"

	vanguardLine1 = "1 00005U 58002B   00179.78495062  .00000023  00000-0  28098-4 0  4753"
	vanguardLine2 = "2 00005  34.2682 348.7242 1859667 331.7664  19.3264 10.82419157413667"
)

// withChecksum replaces column 69 of line with its computed checksum.
func withChecksum(line string) string {
	return line[:LineLength-1] + strconv.Itoa(Checksum(line))
}

// replaceAt overwrites line starting at index i and fixes the checksum.
func replaceAt(line string, i int, s string) string {
	return withChecksum(line[:i] + s + line[i+len(s):])
}

func TestChecksum(t *testing.T) {
	for _, line := range []string{issLine1, issLine2, vanguardLine1, vanguardLine2} {
		want := int(line[LineLength-1] - '0')
		if got := Checksum(line); got != want {
			t.Errorf("Checksum(%q) = %d, want %d", line, got, want)
		}
	}
}

func TestParseElementsFields(t *testing.T) {
	el, err := ParseElements(issLine1, issLine2)
	if err != nil {
		t.Fatalf("ParseElements: %v", err)
	}

	const deg = math.Pi / 180
	checks := []struct {
		name      string
		got, want float64
		tol       float64
	}{
		{"epoch day", el.EpochDay, 103.5, 0},
		{"inclination", el.Inclination, 51.6393 * deg, 1e-15},
		{"raan", el.RAAN, 287.4042 * deg, 1e-15},
		{"eccentricity", el.Eccentricity, 0.0004514, 1e-15},
		{"argument of perigee", el.ArgPerigee, 32.5268 * deg, 1e-15},
		{"mean anomaly", el.MeanAnomaly, 90.4536 * deg, 1e-15},
		{"mean motion", el.MeanMotion, 15.50177075 * 2 * math.Pi / 1440, 1e-15},
		{"mean motion dot", el.MeanMotionDot, 0.00016717 * 2 * math.Pi / (1440 * 1440), 1e-20},
		{"mean motion ddot", el.MeanMotionDDot, 0, 0},
		{"bstar", el.BStar, 0.30270e-3, 1e-18},
	}
	for _, c := range checks {
		if math.Abs(c.got-c.want) > c.tol {
			t.Errorf("%s = %.17g, want %.17g", c.name, c.got, c.want)
		}
	}

	if el.SatNum != 25544 {
		t.Errorf("SatNum = %d", el.SatNum)
	}
	if el.Classification != 'U' {
		t.Errorf("Classification = %q", el.Classification)
	}
	if el.Designator != "98067A" {
		t.Errorf("Designator = %q", el.Designator)
	}
	if el.EpochYear != 2024 {
		t.Errorf("EpochYear = %d", el.EpochYear)
	}
	if el.ElementNumber != 999 || el.RevNumber != 44802 || el.EphemerisType != 0 {
		t.Errorf("element %d rev %d ephemeris %d", el.ElementNumber, el.RevNumber, el.EphemerisType)
	}
	if want := time.Date(2024, 4, 12, 12, 0, 0, 0, time.UTC); !el.EpochTime().Equal(want) {
		t.Errorf("EpochTime = %v, want %v", el.EpochTime(), want)
	}
}

func TestParseElementsEpochYear(t *testing.T) {
	tests := []struct {
		yy   string
		want int
	}{
		{"00", 2000},
		{"56", 2056},
		{"57", 1957},
		{"99", 1999},
	}
	for _, tt := range tests {
		l1 := replaceAt(vanguardLine1, 18, tt.yy)
		el, err := ParseElements(l1, vanguardLine2)
		if err != nil {
			t.Fatalf("year %s: %v", tt.yy, err)
		}
		if el.EpochYear != tt.want {
			t.Errorf("year %s = %d, want %d", tt.yy, el.EpochYear, tt.want)
		}
	}
}

// Every single-digit change in columns 3-69 breaks the checksum.
func TestParseElementsDetectsCorruption(t *testing.T) {
	for _, which := range []int{1, 2} {
		lines := [2]string{issLine1, issLine2}
		base := lines[which-1]
		for i := 2; i < LineLength; i++ {
			c := base[i]
			if c < '0' || c > '9' {
				continue
			}
			b := []byte(base)
			b[i] = '0' + (c-'0'+1)%10
			lines[which-1] = string(b)

			_, err := ParseElements(lines[0], lines[1])
			var cerr *ChecksumError
			if !errors.As(err, &cerr) {
				t.Errorf("line %d column %d: err = %v, want checksum error", which, i+1, err)
				continue
			}
			if cerr.Line != which {
				t.Errorf("line %d column %d: reported line %d", which, i+1, cerr.Line)
			}
			if !errors.Is(err, ErrChecksum) || errors.Is(err, ErrFormat) {
				t.Errorf("line %d column %d: sentinel mismatch", which, i+1)
			}
		}
	}
}

func TestParseElementsFormatErrors(t *testing.T) {
	tests := []struct {
		name         string
		line1, line2 string
		wantLine     int
	}{
		{"68 character line", issLine1[:68], issLine2, 1},
		{"70 character line", issLine1, issLine2 + "0", 2},
		{"wrong line number", issLine2, issLine2, 1},
		{"checksum not a digit", issLine1[:68] + "X", issLine2, 1},
		{"eccentricity with blank", issLine1, replaceAt(issLine2, 26, "00 4514"), 2},
		{"eccentricity with point", issLine1, replaceAt(issLine2, 26, ".004514"), 2},
		{"inclination above 180", issLine1, replaceAt(issLine2, 8, "190.0000"), 2},
		{"raan above 360", issLine1, replaceAt(issLine2, 17, "361.0000"), 2},
		{"zero mean motion", issLine1, replaceAt(issLine2, 52, " 0.00000000"), 2},
		{"garbled bstar", replaceAt(issLine1, 53, " 3x270-3"), issLine2, 1},
		{"garbled epoch", replaceAt(issLine1, 20, "1o3.50000000"), issLine2, 1},
		{"epoch day zero", replaceAt(issLine1, 20, "000.50000000"), issLine2, 1},
		{"epoch day 367", replaceAt(issLine1, 20, "367.50000000"), issLine2, 1},
		{"satellite number mismatch", issLine1, replaceAt(issLine2, 2, "25545"), 0},
		{"line 2 column 8 not blank", issLine1, replaceAt(issLine2, 7, "5"), 2},
		{"line 2 column 17 not blank", issLine1, replaceAt(issLine2, 16, "0"), 2},
		{"line 1 column 9 not blank", replaceAt(issLine1, 8, "9"), issLine2, 1},
		{"line 1 column 64 not blank", replaceAt(issLine1, 63, "1"), issLine2, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseElements(tt.line1, tt.line2)
			if err == nil {
				t.Fatal("ParseElements succeeded")
			}
			var ferr *FieldError
			if !errors.As(err, &ferr) {
				t.Fatalf("err = %v (%T), want *FieldError", err, err)
			}
			if ferr.Line != tt.wantLine {
				t.Errorf("Line = %d, want %d (%v)", ferr.Line, tt.wantLine, err)
			}
			if !errors.Is(err, ErrFormat) {
				t.Errorf("%v does not match ErrFormat", err)
			}
		})
	}
}

func TestParseElementsTolerance(t *testing.T) {
	// Line terminators and trailing padding beyond column 69 are ignored.
	if _, err := ParseElements(issLine1+"\r\n", issLine2+"   "); err != nil {
		t.Errorf("padded lines rejected: %v", err)
	}
	// Blank optional fields parse as zero.
	l1 := replaceAt(issLine1, 62, " ")
	el, err := ParseElements(l1, issLine2)
	if err != nil {
		t.Fatalf("blank ephemeris type: %v", err)
	}
	if el.EphemerisType != 0 {
		t.Errorf("EphemerisType = %d", el.EphemerisType)
	}
}

func TestParseElementsAlpha5(t *testing.T) {
	tests := []struct {
		field string
		want  int
	}{
		{"A0001", 100001},
		{"H9999", 179999},
		{"J0000", 180000},
		{"P1234", 231234},
		{"Z9999", 339999},
	}
	for _, tt := range tests {
		l1 := replaceAt(issLine1, 2, tt.field)
		l2 := replaceAt(issLine2, 2, tt.field)
		el, err := ParseElements(l1, l2)
		if err != nil {
			t.Fatalf("%s: %v", tt.field, err)
		}
		if el.SatNum != tt.want {
			t.Errorf("%s = %d, want %d", tt.field, el.SatNum, tt.want)
		}
	}

	l1 := replaceAt(issLine1, 2, "I0001")
	l2 := replaceAt(issLine2, 2, "I0001")
	if _, err := ParseElements(l1, l2); !errors.Is(err, ErrFormat) {
		t.Errorf("letter I accepted: %v", err)
	}
}

func TestParseImpliedDecimal(t *testing.T) {
	tests := []struct {
		in   string
		want float64
	}{
		{" 12345-3", 0.12345e-3},
		{"-12345-3", -0.12345e-3},
		{" 00000-0", 0},
		{" 00000+0", 0},
		{"+50000+1", 5},
		{"        ", 0},
	}
	for _, tt := range tests {
		got, err := parseImpliedDecimal(1, "bstar", tt.in)
		if err != nil {
			t.Errorf("parseImpliedDecimal(%q): %v", tt.in, err)
			continue
		}
		if math.Abs(got-tt.want) > 1e-18 {
			t.Errorf("parseImpliedDecimal(%q) = %g, want %g", tt.in, got, tt.want)
		}
	}
	for _, bad := range []string{"1234-3", " 1234x-3", " 12345*3", " 12345-x"} {
		if _, err := parseImpliedDecimal(1, "bstar", bad); err == nil {
			t.Errorf("parseImpliedDecimal(%q) succeeded", bad)
		}
	}
}
