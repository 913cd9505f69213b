package tle

import (
	"time"

	"github.com/star/tlepos/internal/transform"
)

// CatalogEntry is one named two-line element set as stored in a catalog.
type CatalogEntry struct {
	Name  string `json:"name"`
	Line1 string `json:"line1"`
	Line2 string `json:"line2"`
}

// Elements is a parsed element set. Angles are radians, mean motion is
// radians per minute and its derivatives are radians per minute^2 and ^3.
type Elements struct {
	SatNum         int
	Classification byte
	Designator     string

	EpochYear int     // four-digit year
	EpochDay  float64 // fractional day of year, 1-based
	Epoch     transform.Epoch

	MeanMotionDot  float64 // first derivative of mean motion / 2
	MeanMotionDDot float64 // second derivative of mean motion / 6
	BStar          float64 // drag term, 1/earth radii
	EphemerisType  int
	ElementNumber  int

	Inclination  float64
	RAAN         float64
	Eccentricity float64
	ArgPerigee   float64
	MeanAnomaly  float64
	MeanMotion   float64
	RevNumber    int
}

// EpochTime returns the element epoch as a UTC time.Time.
func (e *Elements) EpochTime() time.Time {
	return e.Epoch.Time()
}

// EpochRange represents the minimum and maximum element epochs in a catalog.
type EpochRange struct {
	Min time.Time
	Max time.Time
}
