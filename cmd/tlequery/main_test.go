package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const catalogJSON = `[
  {"name": "ISS",
   "line1": "1 25544U 98067A   24103.50000000  .00016717  00000-0  30270-3 0  9992",
   "line2": "2 25544  51.6393 287.4042 0004514  32.5268  90.4536 15.50177075448029"},
  {"name": "Broken",
   "line1": "1 25544U 98067A   24103.50000000  .00016717  00000-0  30270-3 0  9990",
   "line2": "2 25544  51.6393 287.4042 0004514  32.5268  90.4536 15.50177075448029"}
]`

func writeCatalog(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "tle.json")
	if err := os.WriteFile(path, []byte(catalogJSON), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestRun(t *testing.T) {
	t.Setenv("TLEPOS_CONFIG", "")
	cat := writeCatalog(t)

	tests := []struct {
		name     string
		args     []string
		wantCode int
		wantOut  []string
		wantErr  []string
	}{
		{
			name:     "position",
			args:     []string{"-catalog", cat, "-name", "iss", "-time", "2024-04-12T14:30:00Z"},
			wantCode: 0,
			wantOut:  []string{"ISS", "latitude", "near-earth", "150.000 min"},
		},
		{
			name:     "look angles",
			args:     []string{"-catalog", cat, "-name", "ISS", "-time", "2024-04-12T14:30:00Z", "-lat", "40", "-lon", "-105"},
			wantCode: 0,
			wantOut:  []string{"azimuth", "elevation", "range"},
		},
		{
			name:     "ground track",
			args:     []string{"-catalog", cat, "-name", "ISS", "-time", "2024-04-12T12:00:00Z", "-minutes", "3", "-step", "1m"},
			wantCode: 0,
			wantOut:  []string{"2024-04-12 12:00:00", "2024-04-12 12:03:00"},
		},
		{
			name:     "list",
			args:     []string{"-catalog", cat, "-list"},
			wantCode: 0,
			wantOut:  []string{"2 satellites, 1 unusable", "ChecksumError"},
		},
		{
			name:     "passes",
			args:     []string{"-catalog", cat, "-name", "ISS", "-time", "2024-04-12T12:00:00Z", "-passes", "24", "-lat", "40.7128", "-lon", "-74.006"},
			wantCode: 0,
			wantOut:  []string{"ISS:", "passes", "2024-04-1"},
		},
		{
			name:     "passes without observer",
			args:     []string{"-catalog", cat, "-name", "ISS", "-passes", "24"},
			wantCode: 2,
			wantErr:  []string{"-passes needs -lat and -lon"},
		},
		{
			name:     "not found",
			args:     []string{"-catalog", cat, "-name", "HUBBLE"},
			wantCode: 1,
			wantErr:  []string{"NotFoundError"},
		},
		{
			name:     "checksum",
			args:     []string{"-catalog", cat, "-name", "broken"},
			wantCode: 1,
			wantErr:  []string{"ChecksumError"},
		},
		{
			name:     "missing name",
			args:     []string{"-catalog", cat},
			wantCode: 2,
			wantErr:  []string{"-name is required"},
		},
		{
			name:     "bad time",
			args:     []string{"-catalog", cat, "-name", "ISS", "-time", "noon"},
			wantCode: 2,
			wantErr:  []string{"RFC 3339"},
		},
		{
			name:     "missing catalog",
			args:     []string{"-catalog", filepath.Join(t.TempDir(), "none.json"), "-name", "ISS"},
			wantCode: 2,
			wantErr:  []string{"opening catalog"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var stdout, stderr bytes.Buffer
			code := run(tt.args, &stdout, &stderr)
			if code != tt.wantCode {
				t.Errorf("exit code = %d, want %d; stderr: %s", code, tt.wantCode, stderr.String())
			}
			for _, s := range tt.wantOut {
				if !strings.Contains(stdout.String(), s) {
					t.Errorf("stdout missing %q:\n%s", s, stdout.String())
				}
			}
			for _, s := range tt.wantErr {
				if !strings.Contains(stderr.String(), s) {
					t.Errorf("stderr missing %q:\n%s", s, stderr.String())
				}
			}
		})
	}
}
